// Package backend calls the text-generation service whose output the
// pipeline consumes as an opaque string.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/neurorouter"
)

// ErrEmptyResponse is returned when the backend answers without content.
var ErrEmptyResponse = errors.New("backend: empty response")

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config holds parameters for an OpenAI-compatible chat completion endpoint.
type Config struct {
	APIURL       string
	APIKey       string
	Model        string
	SystemPrompt string
	MaxTokens    int
	Timeout      time.Duration
}

// HTTPGenerator calls a chat completion endpoint.
type HTTPGenerator struct {
	cfg    Config
	client *http.Client
}

// NewHTTP returns an HTTPGenerator for cfg.
func NewHTTP(cfg Config) *HTTPGenerator {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 600
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &HTTPGenerator{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate sends prompt as the user message. A 429 answer wraps
// neurorouter.ErrRateLimited.
func (g *HTTPGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	var messages []chatMessage
	if g.cfg.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: g.cfg.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	body, err := json.Marshal(chatRequest{
		Model:     g.cfg.Model,
		Messages:  messages,
		MaxTokens: g.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("backend: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("backend: create request: %w", err)
	}
	if g.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("backend: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("backend: %w", neurorouter.ErrRateLimited)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("backend: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("backend: decode response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	content := strings.TrimSpace(result.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}

// Static returns a fixed reply, or Err when set.
type Static struct {
	Reply string
	Err   error
}

// Generate implements Generator.
func (s Static) Generate(_ context.Context, _ string) (string, error) {
	if s.Err != nil {
		return "", s.Err
	}
	return s.Reply, nil
}

// Echo returns the prompt unchanged. It stands in when no backend is configured.
type Echo struct{}

// Generate implements Generator.
func (Echo) Generate(_ context.Context, prompt string) (string, error) {
	return prompt, nil
}
