// Package market fetches token metadata and prices from public market
// data providers and assembles discovery batches from them.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"trenches-buddy/internal/domain"
)

const (
	// MoralisBaseURL is the production Moralis deep-index endpoint.
	MoralisBaseURL = "https://deep-index.moralis.io/api/v2"

	defaultMetadataTTL = 5 * time.Minute
	defaultPriceTTL    = 30 * time.Second
	defaultHTTPTimeout = 15 * time.Second
)

// MoralisClient fetches Solana token metadata and USD prices.
// Provider failures are soft: a non-200 status or a malformed body yields
// an empty result, not an error, because discovery must keep polling past
// a flaky provider.
type MoralisClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	cache      *gocache.Cache
	priceTTL   time.Duration
	logger     *zap.Logger
}

// MoralisClientOptions contains configuration for creating a MoralisClient.
type MoralisClientOptions struct {
	// APIKey is sent as the X-API-Key header.
	APIKey string

	// BaseURL overrides the production endpoint, for tests.
	BaseURL string

	// HTTPClient overrides the default client.
	HTTPClient *http.Client

	Logger *zap.Logger

	// MetadataTTL and PriceTTL bound how long responses are served from
	// cache. Defaults: 5m metadata, 30s prices.
	MetadataTTL time.Duration
	PriceTTL    time.Duration
}

// NewMoralisClient creates a Moralis client.
func NewMoralisClient(opts MoralisClientOptions) *MoralisClient {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = MoralisBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metadataTTL := opts.MetadataTTL
	if metadataTTL <= 0 {
		metadataTTL = defaultMetadataTTL
	}
	priceTTL := opts.PriceTTL
	if priceTTL <= 0 {
		priceTTL = defaultPriceTTL
	}
	// One cache, per-entry TTLs; cleanup interval tracks the shorter TTL.
	c := gocache.New(metadataTTL, 2*priceTTL)

	return &MoralisClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     opts.APIKey,
		cache:      c,
		priceTTL:   priceTTL,
		logger:     logger.Named("moralis"),
	}
}

type moralisMetadata struct {
	Address   string `json:"address"`
	Name      string `json:"name"`
	Symbol    string `json:"symbol"`
	Decimals  int    `json:"decimals"`
	Logo      string `json:"logo"`
	Thumbnail string `json:"thumbnail"`
}

type moralisPrice struct {
	TokenName   string   `json:"tokenName"`
	TokenSymbol string   `json:"tokenSymbol"`
	UsdPrice    *float64 `json:"usdPrice"`
}

// TokenMetadata fetches identity metadata for a mint. Returns (nil, nil)
// when the provider has nothing usable for it.
func (c *MoralisClient) TokenMetadata(ctx context.Context, mint string) (*domain.TokenMetadata, error) {
	cacheKey := "meta:" + mint
	if cached, ok := c.cache.Get(cacheKey); ok {
		meta := cached.(domain.TokenMetadata)
		return &meta, nil
	}

	reqURL := fmt.Sprintf("%s/erc20/metadata?chain=solana&addresses=%s", c.baseURL, url.QueryEscape(mint))
	body, status, err := c.get(ctx, reqURL)
	if err != nil {
		return nil, fmt.Errorf("fetch metadata for %s: %w", mint, err)
	}
	if status != http.StatusOK {
		c.logger.Debug("metadata request not ok",
			zap.String("mint", mint),
			zap.Int("status", status),
		)
		return nil, nil
	}

	var entries []moralisMetadata
	if err := json.Unmarshal(body, &entries); err != nil || len(entries) == 0 {
		c.logger.Debug("metadata response unusable", zap.String("mint", mint))
		return nil, nil
	}

	first := entries[0]
	logo := first.Logo
	if logo == "" {
		logo = first.Thumbnail
	}
	meta := domain.TokenMetadata{
		Address:  first.Address,
		Name:     first.Name,
		Symbol:   first.Symbol,
		Decimals: first.Decimals,
		Logo:     logo,
	}
	if meta.Address == "" {
		meta.Address = mint
	}

	c.cache.Set(cacheKey, meta, gocache.DefaultExpiration)
	return &meta, nil
}

// TokenPriceUSD fetches the USD price of a mint. The second return is
// false when the provider has no price for it.
func (c *MoralisClient) TokenPriceUSD(ctx context.Context, mint string) (float64, bool, error) {
	cacheKey := "price:" + mint
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached.(float64), true, nil
	}

	reqURL := fmt.Sprintf("%s/erc20/%s/price?chain=solana", c.baseURL, url.PathEscape(mint))
	body, status, err := c.get(ctx, reqURL)
	if err != nil {
		return 0, false, fmt.Errorf("fetch price for %s: %w", mint, err)
	}
	if status != http.StatusOK {
		c.logger.Debug("price request not ok",
			zap.String("mint", mint),
			zap.Int("status", status),
		)
		return 0, false, nil
	}

	var price moralisPrice
	if err := json.Unmarshal(body, &price); err != nil || price.UsdPrice == nil {
		c.logger.Debug("price response unusable", zap.String("mint", mint))
		return 0, false, nil
	}

	c.cache.Set(cacheKey, *price.UsdPrice, c.priceTTL)
	return *price.UsdPrice, true, nil
}

func (c *MoralisClient) get(ctx context.Context, reqURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}
