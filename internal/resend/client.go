// Package resend sends transactional email through the Resend API.
package resend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ceramiquejlepage/contact-api/internal/config"
	"github.com/ceramiquejlepage/contact-api/internal/pkg/httpretry"
	"github.com/ceramiquejlepage/contact-api/internal/pkg/logger"
)

// ErrMissingAPIKey means no delivery credential is configured; nothing
// was sent.
var ErrMissingAPIKey = errors.New("resend API key not configured")

// Client is the Resend API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient httpretry.HTTPDoer
}

// NewClient creates a Resend client. Sends retry on 429/5xx and
// transient network errors.
func NewClient(cfg config.ResendConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		}, 2),
	}
}

// SetHTTPClient sets a custom HTTP client (useful for testing).
func (c *Client) SetHTTPClient(client httpretry.HTTPDoer) {
	c.httpClient = client
}

// Send delivers one email and returns the service-assigned delivery
// id. A structured rejection from the service comes back as *APIError.
func (c *Client) Send(ctx context.Context, email *Email) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}

	body, err := json.Marshal(email)
	if err != nil {
		return "", fmt.Errorf("marshaling email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating send request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("resend request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("reading resend response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(raw, apiErr); err != nil {
			apiErr.Name = "unknown_error"
			apiErr.Message = string(raw)
		}
		if apiErr.StatusCode == 0 {
			apiErr.StatusCode = resp.StatusCode
		}
		return "", apiErr
	}

	var parsed sendResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("parsing resend response: %w", err)
	}
	if parsed.ID == "" {
		return "", fmt.Errorf("resend response missing delivery id")
	}

	logger.Debug("email accepted by delivery service", "delivery_id", parsed.ID)
	return parsed.ID, nil
}
