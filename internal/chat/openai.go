package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"trenches-buddy/internal/domain"
)

// Production endpoints and models for the OpenAI-compatible providers.
const (
	GroqAPIURL     = "https://api.groq.com/openai/v1/chat/completions"
	TogetherAPIURL = "https://api.together.xyz/v1/chat/completions"

	groqModel             = "llama3-8b-8192"
	togetherModel         = "meta-llama/Llama-3.3-70B-Instruct-Turbo-Free"
	togetherFallbackModel = "deepseek-ai/DeepSeek-R1-Distill-Llama-70B-free"

	defaultChatTimeout = 60 * time.Second
)

// OpenAICompatible talks to any provider exposing the OpenAI chat
// completions wire format. A fallback model, when set, is retried once
// after a 400 or 404, which is how free-tier models get rotated out.
type OpenAICompatible struct {
	name          string
	apiURL        string
	apiKey        string
	model         string
	fallbackModel string
	httpClient    *http.Client
	logger        *zap.Logger
}

// OpenAICompatibleOptions contains configuration for creating an
// OpenAI-compatible provider.
type OpenAICompatibleOptions struct {
	Name          string
	APIURL        string
	APIKey        string
	Model         string
	FallbackModel string
	HTTPClient    *http.Client
	Logger        *zap.Logger
}

// NewOpenAICompatible creates a provider from explicit options.
func NewOpenAICompatible(opts OpenAICompatibleOptions) *OpenAICompatible {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultChatTimeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OpenAICompatible{
		name:          opts.Name,
		apiURL:        opts.APIURL,
		apiKey:        opts.APIKey,
		model:         opts.Model,
		fallbackModel: opts.FallbackModel,
		httpClient:    httpClient,
		logger:        logger.Named("chat-" + opts.Name),
	}
}

// NewGroqProvider creates the Groq provider.
func NewGroqProvider(apiKey, apiURL string, logger *zap.Logger) *OpenAICompatible {
	if apiURL == "" {
		apiURL = GroqAPIURL
	}
	return NewOpenAICompatible(OpenAICompatibleOptions{
		Name:   "groq",
		APIURL: apiURL,
		APIKey: apiKey,
		Model:  groqModel,
		Logger: logger,
	})
}

// NewTogetherProvider creates the Together AI provider with its free-model
// fallback.
func NewTogetherProvider(apiKey, apiURL string, logger *zap.Logger) *OpenAICompatible {
	if apiURL == "" {
		apiURL = TogetherAPIURL
	}
	return NewOpenAICompatible(OpenAICompatibleOptions{
		Name:          "together",
		APIURL:        apiURL,
		APIKey:        apiKey,
		Model:         togetherModel,
		FallbackModel: togetherFallbackModel,
		Logger:        logger,
	})
}

var _ Provider = (*OpenAICompatible)(nil)

// Name implements Provider.
func (c *OpenAICompatible) Name() string { return c.name }

type chatCompletionRequest struct {
	Model       string               `json:"model"`
	Messages    []domain.ChatMessage `json:"messages"`
	MaxTokens   int                  `json:"max_tokens"`
	Temperature float64              `json:"temperature"`
	Stream      bool                 `json:"stream"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete implements Provider.
func (c *OpenAICompatible) Complete(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	reply, status, err := c.complete(ctx, c.model, messages)
	if err == nil {
		return reply, nil
	}
	if c.fallbackModel != "" && (status == http.StatusBadRequest || status == http.StatusNotFound) {
		c.logger.Info("primary model unavailable, trying fallback",
			zap.String("model", c.model),
			zap.String("fallback", c.fallbackModel),
		)
		fallbackReply, _, fallbackErr := c.complete(ctx, c.fallbackModel, messages)
		if fallbackErr == nil {
			return fallbackReply, nil
		}
		return "", fmt.Errorf("%s fallback model: %w", c.name, fallbackErr)
	}
	return "", err
}

func (c *OpenAICompatible) complete(ctx context.Context, model string, messages []domain.ChatMessage) (string, int, error) {
	payload, err := json.Marshal(chatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxCompletionTokens,
		Temperature: completionTemperature,
		Stream:      false,
	})
	if err != nil {
		return "", 0, fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("%s request: %w", c.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("read %s response: %w", c.name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", resp.StatusCode, fmt.Errorf("%s api error: status %d: %s", c.name, resp.StatusCode, string(body))
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", resp.StatusCode, fmt.Errorf("decode %s response: %w", c.name, err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return fallbackReply, resp.StatusCode, nil
	}
	return parsed.Choices[0].Message.Content, resp.StatusCode, nil
}
