// File: internal/llmclient/client.go
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/pipemedic/pipemedic/internal/config"
	"github.com/pipemedic/pipemedic/internal/healer"
)

// Client implements healer.FixGenerator against an OpenAI-compatible
// chat-completions API (OpenRouter uses the same wire format).
type Client struct {
	cfg        config.AIConfig
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

// -- Chat API request/response structures (internal to this file) --

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequestPayload struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponsePayload struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewClient validates the configuration and initializes the client.
func NewClient(cfg config.AIConfig, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("AI API key is required")
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		return nil, fmt.Errorf("AI base URL is required")
	}

	return &Client{
		cfg:      cfg,
		endpoint: baseURL + "/chat/completions",
		httpClient: &http.Client{
			Timeout: cfg.APITimeout,
		},
		logger: logger.Named("llm_client." + string(cfg.Provider)),
	}, nil
}

// Generate requests a replacement job source for one healing attempt. The
// HTTP round-trip is retried with exponential backoff; a request that still
// fails afterwards is returned as an error, which the orchestrator treats as
// "no new fix" for that attempt.
func (c *Client) Generate(ctx context.Context, req healer.FixRequest) (string, error) {
	c.logger.Info("Requesting fix from generation service.",
		zap.Int("attempt", req.Attempt),
		zap.String("model", c.cfg.Model))

	payload := chatRequestPayload{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(req)},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request payload: %w", err)
	}

	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.cfg.MaxRetries))

	var content string
	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("generation request failed: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			// Fall through to decoding below.
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return backoff.Permanent(fmt.Errorf("generation service rejected credentials (HTTP %d)", resp.StatusCode))
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("generation service unavailable (HTTP %d): %s", resp.StatusCode, truncateBody(respBody))
		default:
			return backoff.Permanent(fmt.Errorf("generation request failed (HTTP %d): %s", resp.StatusCode, truncateBody(respBody)))
		}

		var parsed chatResponsePayload
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
		}
		if parsed.Error != nil {
			return backoff.Permanent(fmt.Errorf("generation service error: %s", parsed.Error.Message))
		}
		if len(parsed.Choices) == 0 {
			return backoff.Permanent(fmt.Errorf("generation response contained no choices"))
		}

		content = parsed.Choices[0].Message.Content
		c.logger.Debug("Fix generated.",
			zap.Int("prompt_tokens", parsed.Usage.PromptTokens),
			zap.Int("completion_tokens", parsed.Usage.CompletionTokens))
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return "", err
	}

	return StripCodeFences(content), nil
}

// StripCodeFences removes a surrounding markdown code block if the generator
// wrapped its answer in one, returning the inner source text.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	// Drop the opening fence and its optional language tag.
	rest := strings.TrimPrefix(s, "```")
	if idx := strings.Index(rest, "\n"); idx >= 0 {
		rest = rest[idx+1:]
	} else {
		rest = ""
	}
	// Drop everything from the closing fence on.
	if idx := strings.LastIndex(rest, "```"); idx >= 0 {
		rest = rest[:idx]
	}
	return strings.TrimSpace(rest)
}

func truncateBody(body []byte) string {
	const limit = 300
	s := string(body)
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
