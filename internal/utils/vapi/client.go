package vapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"
)

// RateLimitError is returned when the server responds with HTTP 429.
type RateLimitError struct {
	Message        string
	ResetTimestamp time.Time // from X-RateLimit-Reset, if present
}

func (r *RateLimitError) Error() string {
	if !r.ResetTimestamp.IsZero() {
		return fmt.Sprintf("rate limit exceeded; retry after %s", r.ResetTimestamp.Format(time.RFC3339))
	}
	return fmt.Sprintf("rate limit exceeded: %s", r.Message)
}

// APIError carries the provider's status code so callers can tell
// credential rejections (401/403) from transient failures.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vapi error (%d): %s", e.StatusCode, e.Message)
}

// IsAuthError reports whether the provider rejected the tenant's API key.
func (e *APIError) IsAuthError() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// Client manages communication with the Vapi API. Credentials are per
// request: each tenant supplies their own key.
type Client struct {
	BaseURL      *url.URL
	HTTPClient   *http.Client
	MaxRetries   int           // how many times to retry on 429
	RetryInitial time.Duration // initial backoff
}

const defaultBaseURL = "https://api.vapi.ai"

// NewClient initializes a Vapi client. If baseURL is empty, the production
// endpoint is used. maxRetries and retryInitial define 429 handling.
func NewClient(baseURL string, maxRetries int, retryInitial time.Duration) (*Client, error) {
	base := baseURL
	if base == "" {
		base = defaultBaseURL
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid baseURL: %w", err)
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	if retryInitial <= 0 {
		retryInitial = 1 * time.Second
	}

	return &Client{
		BaseURL:      parsed,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
		MaxRetries:   maxRetries,
		RetryInitial: retryInitial,
	}, nil
}

// doRequest builds, executes and parses an HTTP request with minimal
// backoff for 429. The bearer key is passed per call, never stored.
func (c *Client) doRequest(ctx context.Context, apiKey, method, reqPath string, body any, out any) error {
	var attempt int
	backoff := c.RetryInitial

	for {
		attempt++

		u := *c.BaseURL
		u.Path = path.Join(u.Path, reqPath)

		var reqBody io.Reader
		if body != nil {
			raw, err := json.Marshal(body)
			if err != nil {
				return fmt.Errorf("marshal request body: %w", err)
			}
			reqBody = bytes.NewReader(raw)
		}

		req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+apiKey)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return err
		}

		raw, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return readErr
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			rlErr := &RateLimitError{Message: string(raw)}
			if reset := resp.Header.Get("X-RateLimit-Reset"); reset != "" {
				if secs, parseErr := strconv.ParseInt(reset, 10, 64); parseErr == nil {
					rlErr.ResetTimestamp = time.Unix(secs, 0)
				}
			}
			if attempt > c.MaxRetries {
				return rlErr
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue

		case resp.StatusCode >= 400:
			return &APIError{StatusCode: resp.StatusCode, Message: string(raw)}
		}

		if out != nil && len(raw) > 0 {
			if err := json.Unmarshal(raw, out); err != nil {
				return fmt.Errorf("unmarshal response: %w", err)
			}
		}
		return nil
	}
}
