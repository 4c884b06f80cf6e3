// ABOUTME: Outbound SMS via the Twilio Messages REST endpoint
// ABOUTME: Form-encoded POST with basic auth; one call per segment keeps ordering

package twilio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the production Twilio API host. Tests point BaseURL at
// a local server.
const DefaultBaseURL = "https://api.twilio.com"

// Config holds the account credentials and the sending number.
type Config struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	BaseURL    string
}

// Client sends SMS through Twilio. It implements the orchestrator's
// MessagingClient capability.
type Client struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client from config.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       cfg.FromNumber,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.With("component", "twilio"),
	}
}

// Send delivers one text segment to destination. Segments of one reply are
// sent by sequential calls, which preserves their order.
func (c *Client) Send(ctx context.Context, destination, text string) error {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, c.accountSID)
	form := url.Values{
		"From": {c.from},
		"To":   {destination},
		"Body": {text},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("building send request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("twilio returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	c.logger.Debug("message sent", "to", destination, "bytes", len(text))
	return nil
}
