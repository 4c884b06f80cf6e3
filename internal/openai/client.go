// ABOUTME: Chat Completions client implementing chat.Backend
// ABOUTME: Minimal request/response shapes, status-aware error classification, bounded retry

package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/2389/sms-gateway/internal/chat"
	"github.com/2389/sms-gateway/internal/conversation"
)

// DefaultModel is used when config doesn't name one.
const DefaultModel = "gpt-4o"

// DefaultBaseURL is the OpenAI API host.
const DefaultBaseURL = "https://api.openai.com/v1"

// retryPause is the wait between attempts on transient upstream failures.
const retryPause = time.Second

// chatRequest is the minimal request shape for the Chat Completions endpoint.
type chatRequest struct {
	Model    string       `json:"model"`
	Messages []apiMessage `json:"messages"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the minimal response shape we read back.
type chatResponse struct {
	Choices []struct {
		Message apiMessage `json:"message"`
	} `json:"choices"`
}

// Config holds client settings.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration

	// MaxRetries is the number of extra attempts after a transient
	// failure. Retry policy lives here, not in the orchestration core.
	MaxRetries int
}

// Client talks to an OpenAI-compatible Chat Completions endpoint. It
// implements chat.Backend.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	maxRetries int
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client. The API key is required.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		apiKey:     cfg.APIKey,
		model:      model,
		baseURL:    strings.TrimRight(baseURL, "/"),
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "openai"),
	}, nil
}

// Complete implements chat.Backend.
func (c *Client) Complete(ctx context.Context, messages []chat.Message) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: toAPIMessages(messages),
	})
	if err != nil {
		return "", fmt.Errorf("%w: encoding request: %v", chat.ErrBackendRejected, err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Debug("retrying completion", "attempt", attempt)
			select {
			case <-time.After(retryPause):
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %v", chat.ErrBackendUnavailable, ctx.Err())
			}
		}

		text, err := c.complete(ctx, payload)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !errors.Is(err, chat.ErrBackendUnavailable) {
			break
		}
	}
	return "", lastErr
}

// complete performs one attempt.
func (c *Client) complete(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: building request: %v", chat.ErrBackendRejected, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", chat.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", classifyStatus(resp.StatusCode, string(body))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", chat.ErrBackendUnavailable, err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: response contained no choices", chat.ErrBackendUnavailable)
	}
	return parsed.Choices[0].Message.Content, nil
}

// classifyStatus maps an upstream HTTP status onto the backend taxonomy.
// 429 and 5xx may clear on retry; other 4xx will not.
func classifyStatus(status int, body string) error {
	body = strings.TrimSpace(body)
	if status == http.StatusTooManyRequests || status >= 500 {
		return fmt.Errorf("%w: status %d: %s", chat.ErrBackendUnavailable, status, body)
	}
	return fmt.Errorf("%w: status %d: %s", chat.ErrBackendRejected, status, body)
}

// toAPIMessages maps conversation roles onto wire roles.
func toAPIMessages(messages []chat.Message) []apiMessage {
	out := make([]apiMessage, len(messages))
	for i, m := range messages {
		role := "user"
		switch m.Role {
		case conversation.RoleAssistant:
			role = "assistant"
		case conversation.RoleSystem:
			role = "system"
		}
		out[i] = apiMessage{Role: role, Content: m.Content}
	}
	return out
}
