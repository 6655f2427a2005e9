package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// JupiterBaseURL is the production Jupiter price endpoint.
const JupiterBaseURL = "https://price.jup.ag/v4"

// JupiterClient fetches batch USD prices from Jupiter.
type JupiterClient struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

// JupiterClientOptions contains configuration for creating a JupiterClient.
type JupiterClientOptions struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// NewJupiterClient creates a Jupiter price client.
func NewJupiterClient(opts JupiterClientOptions) *JupiterClient {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = JupiterBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &JupiterClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		logger:     logger.Named("jupiter"),
	}
}

type jupiterPriceResponse struct {
	Data map[string]struct {
		ID    string  `json:"id"`
		Price float64 `json:"price"`
	} `json:"data"`
}

// PricesUSD fetches USD prices for a batch of mints in one request.
// Mints the provider doesn't know are absent from the result.
func (c *JupiterClient) PricesUSD(ctx context.Context, mints []string) (map[string]float64, error) {
	if len(mints) == 0 {
		return map[string]float64{}, nil
	}

	reqURL := fmt.Sprintf("%s/price?ids=%s", c.baseURL, url.QueryEscape(strings.Join(mints, ",")))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch jupiter prices: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read jupiter response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jupiter price request failed with status %d", resp.StatusCode)
	}

	var parsed jupiterPriceResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode jupiter response: %w", err)
	}

	prices := make(map[string]float64, len(parsed.Data))
	for mint, entry := range parsed.Data {
		prices[mint] = entry.Price
	}

	c.logger.Debug("fetched jupiter prices",
		zap.Int("requested", len(mints)),
		zap.Int("returned", len(prices)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return prices, nil
}
