// Package provider holds what the outbound provider clients share: the
// provider error type and request plumbing.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrNotConfigured is returned when a client lacks its credentials.
var ErrNotConfigured = errors.New("provider credentials not configured")

// Error is returned when a provider responds with a non-2xx status.
//
// Body carries the decoded provider payload for diagnostics. It must never
// include our own credentials.
type Error struct {
	Provider   string
	StatusCode int
	Message    string
	Body       map[string]any
}

func (e *Error) Error() string {
	if e == nil {
		return "provider error"
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s request failed: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s request failed: %s", e.Provider, e.Message)
}

// WithTimeout bounds ctx when timeout is positive. The returned cancel may be
// nil.
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, nil
	}
	return context.WithTimeout(ctx, timeout)
}

// Do sends req and returns the status and the whole body.
func Do(client *http.Client, req *http.Request) (int, []byte, error) {
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// IsSuccess reports whether status is 2xx.
func IsSuccess(status int) bool {
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}

// NewError builds an Error from a failed response. The message is taken from
// the payload's "message" field when it is a string, else fallback.
func NewError(name string, status int, body []byte, fallback string) *Error {
	payload := map[string]any{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			payload = map[string]any{"raw": string(body)}
		}
	}

	message := fallback
	if msg, ok := payload["message"].(string); ok && msg != "" {
		message = msg
	}

	return &Error{Provider: name, StatusCode: status, Message: message, Body: payload}
}
