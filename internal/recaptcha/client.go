// Package recaptcha assesses contact-form submissions against the
// reCAPTCHA Enterprise assessment API.
package recaptcha

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

// ErrUnavailable means the assessment service could not be reached or
// returned an unusable response. The request fails closed; there is no
// retry, the submitter can simply resubmit.
var ErrUnavailable = errors.New("verification service unavailable")

// maxDiagnosticBytes bounds how much of an unparseable response body
// is kept for logging.
const maxDiagnosticBytes = 8 << 10

// Client calls the reCAPTCHA Enterprise assessment endpoint.
type Client struct {
	baseURL        string
	apiKey         string
	projectID      string
	siteKey        string
	expectedAction string
	httpClient     httpretry.HTTPDoer
}

// NewClient creates an assessment client. Missing credentials are
// tolerated: the client logs a configuration warning and still issues
// the call, so a misconfigured deployment surfaces as assessment
// failures rather than a silent bypass.
func NewClient(cfg config.RecaptchaConfig) *Client {
	if cfg.APIKey == "" || cfg.ProjectID == "" {
		logger.Warn("recaptcha credentials incomplete, assessments will fail",
			"has_api_key", cfg.APIKey != "",
			"has_project_id", cfg.ProjectID != "")
	}
	return &Client{
		baseURL:        cfg.BaseURL,
		apiKey:         cfg.APIKey,
		projectID:      cfg.ProjectID,
		siteKey:        cfg.SiteKey,
		expectedAction: cfg.ExpectedAction,
		// The gate is deliberately not retried: a transient failure
		// fails the request closed.
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
	}
}

// SetHTTPClient sets a custom HTTP client (useful for testing).
func (c *Client) SetHTTPClient(client httpretry.HTTPDoer) {
	c.httpClient = client
}

type assessmentRequest struct {
	Event assessmentEvent `json:"event"`
}

type assessmentEvent struct {
	Token          string `json:"token"`
	ExpectedAction string `json:"expectedAction"`
	SiteKey        string `json:"siteKey"`
}

type assessmentResponse struct {
	TokenProperties struct {
		Valid         bool   `json:"valid"`
		Action        string `json:"action"`
		InvalidReason string `json:"invalidReason"`
		Hostname      string `json:"hostname"`
	} `json:"tokenProperties"`
	RiskAnalysis struct {
		Score float64 `json:"score"`
	} `json:"riskAnalysis"`
}

// Assess submits the token for risk assessment and returns the
// outcome. Transport failures, non-2xx statuses, and unparseable
// bodies all map to ErrUnavailable; the diagnostic detail is logged,
// never propagated to the submitter.
func (c *Client) Assess(ctx context.Context, token string) (*Outcome, error) {
	body, err := json.Marshal(assessmentRequest{
		Event: assessmentEvent{
			Token:          token,
			ExpectedAction: c.expectedAction,
			SiteKey:        c.siteKey,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling assessment request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/projects/%s/assessments?key=%s", c.baseURL, c.projectID, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating assessment request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("recaptcha assessment call failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxDiagnosticBytes))
	if err != nil {
		logger.Error("reading assessment response failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		logger.Error("recaptcha assessment rejected",
			"status", resp.StatusCode,
			"body", string(raw))
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var parsed assessmentResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		// Keep the raw body as a diagnostic instead of faulting.
		logger.Error("assessment response is not valid JSON",
			"error", err,
			"body", string(raw))
		return nil, fmt.Errorf("%w: unparseable response", ErrUnavailable)
	}

	outcome := &Outcome{
		Valid:  parsed.TokenProperties.Valid,
		Score:  parsed.RiskAnalysis.Score,
		Action: parsed.TokenProperties.Action,
		Reason: parsed.TokenProperties.InvalidReason,
	}

	// Action mismatch is recorded and logged but does not by itself
	// reject the submission; acceptance hinges on validity and score.
	if outcome.Valid && outcome.Action != c.expectedAction {
		logger.Warn("recaptcha action mismatch",
			"expected", c.expectedAction,
			"observed", outcome.Action,
			"hostname", parsed.TokenProperties.Hostname)
	}

	return outcome, nil
}
