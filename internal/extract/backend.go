// Copyright PolyMD Authors, 2026. All rights reserved.

package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/apaudelx/PolyMD/internal/httputil"
)

// Backend abstracts the language-model endpoint so tests can supply a
// mock. It returns the raw reply text; parsing and fallback capture are
// the engine's job, never the backend's.
type Backend interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// chatSystemPrompt frames the extraction task for the model.
const chatSystemPrompt = "You are an assistant for extracting simulation data " +
	"from polymer research articles. Your task is to identify numerical results " +
	"from molecular dynamics (MD) simulations and return them in JSON format."

// ChatBackend calls an OpenAI-compatible chat-completions API.
type ChatBackend struct {
	Endpoint *httputil.Endpoint

	// BaseURL is the API base (e.g. "https://api.perplexity.ai").
	BaseURL string
	Model   string
	APIKey  string
}

// chatRequest is the request body for the chat completions API.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// chatMessage is a single message in the conversation.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the response body from the chat completions API.
type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

// Complete sends the prompt and returns the model's reply text.
// Temperature is pinned to 0 for reproducible extraction.
func (b *ChatBackend) Complete(ctx context.Context, prompt string) (string, error) {
	reqBody := chatRequest{
		Model: b.Model,
		Messages: []chatMessage{
			{Role: "system", Content: chatSystemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0,
		MaxTokens:   8000,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	resp, err := b.Endpoint.Do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost,
			strings.TrimSuffix(b.BaseURL, "/")+"/chat/completions",
			bytes.NewReader(bodyBytes))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+b.APIKey)
		return req, nil
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("decoding chat response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("chat API returned no choices")
	}
	return strings.TrimSpace(cr.Choices[0].Message.Content), nil
}
