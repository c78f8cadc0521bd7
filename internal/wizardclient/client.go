// Package wizardclient is a small Go client for the customer wizard API.
// It follows the polling contract the server advertises on submission.
package wizardclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrPollTimeout is returned when a request is still open after the max poll duration.
var ErrPollTimeout = errors.New("request did not finish within the max poll duration")

// ErrNotFound is returned for unknown request ids.
var ErrNotFound = errors.New("request not found")

const (
	defaultInterval    = 5 * time.Second
	defaultMaxDuration = 15 * time.Minute
)

// Client calls the wizard endpoints of a sitequeue server. It is safe for
// concurrent use.
type Client struct {
	http *resty.Client

	mu          sync.RWMutex // guards interval and maxDuration
	interval    time.Duration
	maxDuration time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

// Config holds configuration for the client. Zero durations fall back to the
// values the server advertises, then to 5s and 15m.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	Interval    time.Duration
	MaxDuration time.Duration
}

// New creates a new wizard client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:        httpClient,
		interval:    cfg.Interval,
		maxDuration: cfg.MaxDuration,
		sleep:       sleepCtx,
	}
}

// SubmitRequest is the body of a wizard submission.
type SubmitRequest struct {
	RequestType     string          `json:"request_type"`
	BusinessType    string          `json:"business_type,omitempty"`
	Terminology     string          `json:"terminology,omitempty"`
	RequestData     json.RawMessage `json:"request_data,omitempty"`
	CustomerID      string          `json:"customer_id,omitempty"`
	SiteID          string          `json:"site_id,omitempty"`
	WizardSessionID string          `json:"wizard_session_id,omitempty"`
}

// Submission is the server's answer to a submission.
type Submission struct {
	RequestID         string    `json:"request_id"`
	Status            string    `json:"status"`
	ExpiresAt         time.Time `json:"expires_at"`
	PollIntervalMs    int64     `json:"poll_interval_ms"`
	MaxPollDurationMs int64     `json:"max_poll_duration_ms"`
}

// Status is the customer view of one request.
type Status struct {
	RequestID        string          `json:"request_id"`
	RequestType      string          `json:"request_type"`
	Status           string          `json:"status"`
	Progress         int             `json:"progress"`
	Terminal         bool            `json:"terminal"`
	GeneratedContent json.RawMessage `json:"generated_content,omitempty"`
	ErrorMessage     string          `json:"error_message,omitempty"`
	UpdatedAt        time.Time       `json:"updated_at"`
	PollAfterMs      int64           `json:"poll_after_ms,omitempty"`
}

type apiError struct {
	Error string `json:"error"`
}

// Submit creates a request and adopts the advertised polling contract for
// durations the caller left unset.
func (c *Client) Submit(ctx context.Context, in SubmitRequest) (*Submission, error) {
	var out Submission
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(in).
		SetResult(&out).
		SetError(&apiErr).
		Post("/api/v1/wizard/requests")
	if err != nil {
		return nil, fmt.Errorf("submit request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("submit request: HTTP %d: %s", resp.StatusCode(), apiErr.Error)
	}

	c.mu.Lock()
	if c.interval <= 0 && out.PollIntervalMs > 0 {
		c.interval = time.Duration(out.PollIntervalMs) * time.Millisecond
	}
	if c.maxDuration <= 0 && out.MaxPollDurationMs > 0 {
		c.maxDuration = time.Duration(out.MaxPollDurationMs) * time.Millisecond
	}
	c.mu.Unlock()
	return &out, nil
}

// GetStatus reads the current status of a request.
func (c *Client) GetStatus(ctx context.Context, requestID string) (*Status, error) {
	var out Status
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", requestID).
		SetResult(&out).
		SetError(&apiErr).
		Get("/api/v1/wizard/requests/{id}/status")
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.IsError() {
		return nil, fmt.Errorf("get status: HTTP %d: %s", resp.StatusCode(), apiErr.Error)
	}
	return &out, nil
}

// WaitForTerminal polls until the request is completed, rejected or failed.
// Transient HTTP errors are retried on the next tick; ErrNotFound is not.
// Parameters:
//   - ctx: context for cancellation.
//   - requestID: request to watch.
// Returns:
//   - *Status: the terminal status.
//   - error: ErrPollTimeout after the max duration, ErrNotFound, or ctx.Err().
func (c *Client) WaitForTerminal(ctx context.Context, requestID string) (*Status, error) {
	interval, maxDuration := c.pollSettings()

	deadline := time.Now().Add(maxDuration)
	for {
		st, err := c.GetStatus(ctx, requestID)
		switch {
		case errors.Is(err, ErrNotFound):
			return nil, err
		case err == nil && st.Terminal:
			return st, nil
		}

		wait := interval
		if err == nil && st.PollAfterMs > 0 {
			wait = time.Duration(st.PollAfterMs) * time.Millisecond
		}
		if time.Now().Add(wait).After(deadline) {
			return nil, ErrPollTimeout
		}
		if err := c.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

// pollSettings returns the current interval and max duration with defaults applied.
func (c *Client) pollSettings() (time.Duration, time.Duration) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	interval, maxDuration := c.interval, c.maxDuration
	if interval <= 0 {
		interval = defaultInterval
	}
	if maxDuration <= 0 {
		maxDuration = defaultMaxDuration
	}
	return interval, maxDuration
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
