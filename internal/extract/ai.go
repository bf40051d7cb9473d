// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/noticewala/notice-engine/pkg/types"
)

// defaultAPIURL is the Claude Messages API endpoint, overridable through
// AIConfig.Endpoint (tests point it at a local server).
const defaultAPIURL = "https://api.anthropic.com/v1/messages"

// ClaudeBackend calls the Claude API to extract announcement fields from a
// notice document.
type ClaudeBackend struct {
	endpoint string
	model    string
	apiKey   string
	client   *http.Client
}

// NewClaudeBackend builds the production AI backend from configuration.
func NewClaudeBackend(cfg types.AIConfig) *ClaudeBackend {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultAPIURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ClaudeBackend{
		endpoint: endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: timeout},
	}
}

// claudeRequest is the request body for the Claude Messages API.
type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	Messages  []claudeMessage `json:"messages"`
}

// claudeMessage is a single message in the Claude API conversation.
type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// claudeResponse is the response body from the Claude Messages API.
type claudeResponse struct {
	Content []claudeContent `json:"content"`
}

// claudeContent is a content block in the Claude API response.
type claudeContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Extract calls the Claude API with the extraction prompt for one document.
func (c *ClaudeBackend) Extract(ctx context.Context, document string) (AIResponse, error) {
	prompt, err := renderPrompt(document)
	if err != nil {
		return AIResponse{}, fmt.Errorf("rendering prompt: %w", err)
	}

	reqBody := claudeRequest{
		Model:     c.model,
		MaxTokens: 4096,
		Messages: []claudeMessage{
			{Role: "user", Content: prompt},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return AIResponse{}, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return AIResponse{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.client.Do(req)
	if err != nil {
		return AIResponse{}, fmt.Errorf("calling AI API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return AIResponse{}, fmt.Errorf("AI API returned %d: %s", resp.StatusCode, string(body))
	}

	var cResp claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
		return AIResponse{}, fmt.Errorf("decoding AI response: %w", err)
	}

	for _, block := range cResp.Content {
		if block.Type != "text" {
			continue
		}
		var aiResp AIResponse
		if err := json.Unmarshal([]byte(block.Text), &aiResp); err != nil {
			return AIResponse{}, fmt.Errorf("parsing AI response JSON: %w", err)
		}
		return aiResp, nil
	}

	return AIResponse{}, fmt.Errorf("no text content in AI API response")
}
