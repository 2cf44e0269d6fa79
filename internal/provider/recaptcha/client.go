// Package recaptcha verifies reCAPTCHA v3 tokens against the siteverify API.
package recaptcha

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/callgate/callgate/internal/provider"
)

const (
	providerName     = "recaptcha"
	defaultVerifyURL = "https://www.google.com/recaptcha/api/siteverify"
)

// Result is the siteverify answer.
type Result struct {
	Success     bool     `json:"success"`
	Score       float64  `json:"score"`
	Action      string   `json:"action"`
	ChallengeTS string   `json:"challenge_ts"`
	Hostname    string   `json:"hostname"`
	ErrorCodes  []string `json:"error-codes"`
}

// Client calls siteverify. A client without a secret is disabled.
type Client struct {
	VerifyURL  string
	Secret     string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// NewClient returns a client with defaults applied.
func NewClient(verifyURL, secret string) *Client {
	u := strings.TrimSpace(verifyURL)
	if u == "" {
		u = defaultVerifyURL
	}
	return &Client{VerifyURL: u, Secret: strings.TrimSpace(secret)}
}

// Enabled reports whether a secret is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.Secret != ""
}

// Verify submits token, and remoteIP when known. An error means the verifier
// could not be reached or answered garbage; a rejection is a Result with
// Success false.
func (c *Client) Verify(ctx context.Context, token, remoteIP string) (*Result, error) {
	if !c.Enabled() {
		return nil, provider.ErrNotConfigured
	}

	ctx, cancel := provider.WithTimeout(ctx, c.Timeout)
	if cancel != nil {
		defer cancel()
	}

	form := url.Values{}
	form.Set("secret", c.Secret)
	form.Set("response", token)
	if ip := strings.TrimSpace(remoteIP); ip != "" && ip != "unknown" {
		form.Set("remoteip", ip)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.VerifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	status, body, err := provider.Do(c.HTTPClient, req)
	if err != nil {
		return nil, err
	}
	if !provider.IsSuccess(status) {
		return nil, provider.NewError(providerName, status, body, "verification request failed")
	}

	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}
