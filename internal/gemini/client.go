// Package gemini turns a prompt into a single text completion using the
// Gemini API through the google.golang.org/genai SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("gemini: api key not configured")

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("gemini: empty response")

// Client calls models/{model}:generateContent. A Client built without an
// API key is valid but every call returns ErrNotConfigured.
type Client struct {
	model  string
	models *genai.Models
}

// NewClient creates a client. An empty baseURL uses the SDK default endpoint
// and a zero timeout falls back to 45s.
func NewClient(ctx context.Context, baseURL, apiKey, model string, timeout time.Duration) (*Client, error) {
	c := &Client{model: model}
	if strings.TrimSpace(apiKey) == "" {
		return c, nil
	}
	if timeout <= 0 {
		timeout = 45 * time.Second
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	c.models = gc.Models
	return c, nil
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// GenerateText sends prompt as a single user turn and returns the text of
// the first candidate.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	if c.models == nil {
		return "", ErrNotConfigured
	}

	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
		return "", fmt.Errorf("gemini: prompt blocked: %s", fb.BlockReason)
	}

	out := resp.Text()
	if out == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}
