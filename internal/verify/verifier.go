// Copyright PolyMD Authors, 2026. All rights reserved.

package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/apaudelx/PolyMD/internal/httputil"
	"github.com/apaudelx/PolyMD/pkg/types"
)

// Verifier is one model endpoint that reviews extracted records against
// the article text. Additional verifiers plug in behind this interface
// without touching the engine's aggregation logic.
type Verifier interface {
	ID() string
	Review(ctx context.Context, prompt string) (string, error)
}

// ChatVerifier reviews records through an OpenAI-compatible
// chat-completions API.
type ChatVerifier struct {
	id string

	Endpoint *httputil.Endpoint
	BaseURL  string
	Model    string
	APIKey   string
}

// NewChatVerifier builds a verifier with its own throttled endpoint.
// Each verifier is a separate rate-limit domain.
func NewChatVerifier(cfg types.VerifierConfig, client *http.Client, retry types.RetryConfig) *ChatVerifier {
	return &ChatVerifier{
		id:       cfg.ID,
		Endpoint: httputil.NewEndpoint("verifier-"+cfg.ID, client, retry),
		BaseURL:  cfg.BaseURL,
		Model:    cfg.Model,
		APIKey:   cfg.APIKey,
	}
}

func (v *ChatVerifier) ID() string { return v.id }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

// Review sends the verification prompt and returns the reply text.
// Temperature is pinned to 0 so repeated runs over the same records
// produce the same verdicts.
func (v *ChatVerifier) Review(ctx context.Context, prompt string) (string, error) {
	reqBody := chatRequest{
		Model:       v.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0,
		MaxTokens:   4000,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	resp, err := v.Endpoint.Do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost,
			strings.TrimSuffix(v.BaseURL, "/")+"/chat/completions",
			bytes.NewReader(bodyBytes))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+v.APIKey)
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
