package chat

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"trenches-buddy/internal/domain"
)

const defaultGeminiModel = "gemini-2.0-flash"

// Gemini drives Google's Gemini API through the genai SDK.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider creates the Gemini provider.
func NewGeminiProvider(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if model == "" {
		model = defaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Gemini{client: client, model: model}, nil
}

var _ Provider = (*Gemini)(nil)

// Name implements Provider.
func (g *Gemini) Name() string { return "gemini" }

// Complete implements Provider. The system message becomes the model's
// system instruction; the rest map onto user/model turns.
func (g *Gemini) Complete(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	var system string
	var contents []*genai.Content
	for _, msg := range messages {
		switch msg.Role {
		case domain.RoleSystem:
			system = msg.Content
		case domain.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	if len(contents) == 0 {
		return "", fmt.Errorf("no user messages to send")
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](completionTemperature),
		MaxOutputTokens: maxCompletionTokens,
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, "")
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return fallbackReply, nil
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	if sb.Len() == 0 {
		return fallbackReply, nil
	}
	return sb.String(), nil
}
