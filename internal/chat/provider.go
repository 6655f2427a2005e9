// Package chat routes buddy conversations to hosted chat-completion
// providers, trying each configured provider in order until one answers.
package chat

import (
	"context"

	"trenches-buddy/internal/domain"
)

// Generation parameters shared by all providers.
const (
	maxCompletionTokens   = 500
	completionTemperature = 0.7
)

// fallbackReply is returned when a provider answers with no content.
const fallbackReply = "Sorry, I had trouble processing that."

// Provider is one hosted chat-completion backend.
type Provider interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// Complete sends the full message list, system prompt included, and
	// returns the assistant's reply.
	Complete(ctx context.Context, messages []domain.ChatMessage) (string, error)
}
