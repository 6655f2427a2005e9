package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"trenches-buddy/internal/domain"
	"trenches-buddy/internal/observability"
)

// TradingBuddySystemPrompt frames every conversation.
const TradingBuddySystemPrompt = `You are Trenches Buddy, an AI trading companion for Solana DeFi. You are:

- Knowledgeable about Solana, DeFi, and trading strategies
- Helpful but cautious about financial advice
- Able to learn from user preferences and adapt strategies
- Conversational and friendly, but professional
- Focused on risk management and education

Key traits:
- Always emphasize that trading involves risk
- Ask clarifying questions to understand user goals
- Provide educational explanations for your recommendations
- Remember previous conversations and user preferences
- Use trading terminology appropriately but explain complex concepts

Current context: You're integrated into a trading interface where users can see real-time token prices and execute trades.`

// ErrNoProviderConfigured means no provider has an API key. The message
// is user-displayable and lists where free keys come from.
var ErrNoProviderConfigured = errors.New(`no chat provider configured. You can get free API keys from:

- Groq: https://console.groq.com/
- Together AI: https://api.together.xyz/
- Hugging Face: https://huggingface.co/settings/tokens`)

// Environment variables the service reads keys and overrides from.
const (
	EnvGroqAPIKey     = "GROQ_API_KEY"
	EnvTogetherAPIKey = "TOGETHER_API_KEY"
	EnvHFAPIKey       = "HF_API_KEY"
	EnvGeminiAPIKey   = "GEMINI_API_KEY"

	EnvGroqAPIURL     = "GROQ_API_URL"
	EnvTogetherAPIURL = "TOGETHER_API_URL"
	EnvHFAPIURL       = "HF_API_URL"
	EnvGeminiModel    = "GEMINI_MODEL"
)

// Service fans a conversation out to the configured providers in
// preference order and returns the first success.
type Service struct {
	providers []Provider
	logger    *zap.Logger
}

// NewService creates a service over an explicit provider list, tried in
// the given order.
func NewService(logger *zap.Logger, providers ...Provider) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{providers: providers, logger: logger.Named("chat")}
}

// NewServiceFromEnv builds the provider chain from environment keys, in
// the order Together, Groq, Gemini, Hugging Face. A missing key just
// disables that provider.
func NewServiceFromEnv(ctx context.Context, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var providers []Provider
	if key := os.Getenv(EnvTogetherAPIKey); key != "" {
		providers = append(providers, NewTogetherProvider(key, os.Getenv(EnvTogetherAPIURL), logger))
	}
	if key := os.Getenv(EnvGroqAPIKey); key != "" {
		providers = append(providers, NewGroqProvider(key, os.Getenv(EnvGroqAPIURL), logger))
	}
	if key := os.Getenv(EnvGeminiAPIKey); key != "" {
		gemini, err := NewGeminiProvider(ctx, key, os.Getenv(EnvGeminiModel))
		if err != nil {
			return nil, fmt.Errorf("configure gemini provider: %w", err)
		}
		providers = append(providers, gemini)
	}
	if key := os.Getenv(EnvHFAPIKey); key != "" {
		providers = append(providers, NewHuggingFaceProvider(key, os.Getenv(EnvHFAPIURL), logger))
	}

	return NewService(logger, providers...), nil
}

// Providers returns the configured provider names in try order.
func (s *Service) Providers() []string {
	names := make([]string, len(s.providers))
	for i, p := range s.providers {
		names[i] = p.Name()
	}
	return names
}

// HasProviders reports whether at least one provider is configured.
func (s *Service) HasProviders() bool {
	return len(s.providers) > 0
}

// SendMessage runs the conversation against the provider chain. The
// system prompt, with the trading context serialized into it when
// present, is prepended to the caller's messages.
func (s *Service) SendMessage(ctx context.Context, messages []domain.ChatMessage, tradingCtx *domain.TradingContext) (string, error) {
	if len(s.providers) == 0 {
		return "", ErrNoProviderConfigured
	}

	system := TradingBuddySystemPrompt
	if tradingCtx != nil {
		serialized, err := json.Marshal(tradingCtx)
		if err == nil {
			system += "\n\nCurrent context: " + string(serialized)
		}
	}
	full := make([]domain.ChatMessage, 0, len(messages)+1)
	full = append(full, domain.ChatMessage{Role: domain.RoleSystem, Content: system})
	full = append(full, messages...)

	var lastErr error
	for _, p := range s.providers {
		start := time.Now()
		reply, err := p.Complete(ctx, full)
		if err != nil {
			observability.RecordChatCompletion(p.Name(), "error", time.Since(start).Seconds())
			s.logger.Warn("chat provider failed, trying next",
				zap.String("provider", p.Name()),
				zap.Error(err),
			)
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		observability.RecordChatCompletion(p.Name(), "ok", time.Since(start).Seconds())
		return reply, nil
	}

	return "", fmt.Errorf("all chat providers failed: %w", lastErr)
}
