package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"trenches-buddy/internal/domain"
)

// HuggingFaceAPIURL is the production inference endpoint for the
// conversational model this provider drives.
const HuggingFaceAPIURL = "https://api-inference.huggingface.co/models/microsoft/DialoGPT-medium"

// HuggingFace is the last-resort provider. The inference API is not
// chat-shaped, so only the latest user message is sent.
type HuggingFace struct {
	apiURL     string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHuggingFaceProvider creates the Hugging Face provider.
func NewHuggingFaceProvider(apiKey, apiURL string, logger *zap.Logger) *HuggingFace {
	if apiURL == "" {
		apiURL = HuggingFaceAPIURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HuggingFace{
		apiURL:     apiURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultChatTimeout},
		logger:     logger.Named("chat-huggingface"),
	}
}

var _ Provider = (*HuggingFace)(nil)

// Name implements Provider.
func (h *HuggingFace) Name() string { return "huggingface" }

type hfRequest struct {
	Inputs     string `json:"inputs"`
	Parameters struct {
		MaxLength      int     `json:"max_length"`
		Temperature    float64 `json:"temperature"`
		ReturnFullText bool    `json:"return_full_text"`
	} `json:"parameters"`
}

type hfResponse []struct {
	GeneratedText string `json:"generated_text"`
}

// Complete implements Provider.
func (h *HuggingFace) Complete(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	var last string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != domain.RoleSystem {
			last = messages[i].Content
			break
		}
	}

	reqBody := hfRequest{Inputs: last}
	reqBody.Parameters.MaxLength = 200
	reqBody.Parameters.Temperature = completionTemperature
	reqBody.Parameters.ReturnFullText = false

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal huggingface request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.apiURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+h.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("huggingface request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read huggingface response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("huggingface api error: status %d: %s", resp.StatusCode, string(body))
	}

	var parsed hfResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode huggingface response: %w", err)
	}
	if len(parsed) == 0 || parsed[0].GeneratedText == "" {
		return fallbackReply, nil
	}
	return parsed[0].GeneratedText, nil
}
