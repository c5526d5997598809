package aiclient

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"ThreadSentinel/internal/quota"
)

// ErrMalformedResponse is returned when the service answers with something unusable.
var ErrMalformedResponse = errors.New("malformed ai response")

// Config addresses an OpenAI-compatible chat-completions endpoint.
type Config struct {
	BaseURL  string
	APIKey   string
	Model    string
	ProxyURL string
	Timeout  time.Duration
}

// Client talks to the chat-completions API.
type Client struct {
	model string
	api   *openai.Client
}

// New creates a Client with optional proxy support. An empty BaseURL keeps
// the SDK default.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	tr := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.ProxyURL != "" {
		u, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			log.Printf("[WARN] ignoring invalid ai proxy %q: %v", cfg.ProxyURL, err)
		} else {
			tr.Proxy = http.ProxyURL(u)
		}
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout, Transport: tr}

	return &Client{model: cfg.Model, api: openai.NewClientWithConfig(oc)}
}

// complete sends one chat request and returns the first choice's content.
func (c *Client) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	req.Model = c.model
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

// classify maps SDK errors onto the quota sentinel where the service reports
// rate limiting or an exhausted balance.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.Type == "insufficient_quota" {
			return fmt.Errorf("%w: ai service status %d: %s", quota.ErrQuotaExceeded, apiErr.HTTPStatusCode, apiErr.Message)
		}
		return fmt.Errorf("ai service error: status %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: ai service status 429: %v", quota.ErrQuotaExceeded, reqErr.Err)
	}
	return fmt.Errorf("chat request: %w", err)
}

func chatMessages(system, user string) []openai.ChatCompletionMessage {
	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
		{Role: openai.ChatMessageRoleUser, Content: user},
	}
}
