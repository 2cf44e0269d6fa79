// Package vapi places outbound phone calls through the Vapi API.
package vapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/callgate/callgate/internal/core"
	"github.com/callgate/callgate/internal/provider"
)

const (
	providerName   = "vapi"
	defaultBaseURL = "https://api.vapi.ai"

	// DefaultErrorMessage is used when Vapi fails without a message.
	DefaultErrorMessage = "Failed to initiate call"
)

// Client creates phone calls. It only holds the private key; the assistant
// and phone-number resource travel in each CallOrder.
type Client struct {
	BaseURL    string
	PrivateKey string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// NewClient returns a client with defaults applied.
func NewClient(baseURL, privateKey string) *Client {
	u := strings.TrimSpace(baseURL)
	if u == "" {
		u = defaultBaseURL
	}
	return &Client{BaseURL: u, PrivateKey: strings.TrimSpace(privateKey)}
}

type customer struct {
	Number string `json:"number"`
}

type callRequest struct {
	AssistantID        string            `json:"assistantId"`
	PhoneNumberID      string            `json:"phoneNumberId"`
	Customer           customer          `json:"customer"`
	Metadata           core.CallMetadata `json:"metadata"`
	MaxDurationSeconds int               `json:"maxDurationSeconds"`
}

// PlaceCall sends order to POST /call/phone. A non-2xx answer is returned as
// a *provider.Error carrying Vapi's status and payload.
func (c *Client) PlaceCall(ctx context.Context, order core.CallOrder) (*core.CallResult, error) {
	if c == nil || c.PrivateKey == "" {
		return nil, provider.ErrNotConfigured
	}

	body, err := json.Marshal(callRequest{
		AssistantID:        order.AssistantID,
		PhoneNumberID:      order.PhoneNumberID,
		Customer:           customer{Number: order.CustomerNumber},
		Metadata:           order.Metadata,
		MaxDurationSeconds: order.MaxDurationSeconds,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	ctx, cancel := provider.WithTimeout(ctx, c.Timeout)
	if cancel != nil {
		defer cancel()
	}

	url := strings.TrimRight(c.BaseURL, "/") + "/call/phone"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.PrivateKey)
	req.Header.Set("Content-Type", "application/json")

	status, respBody, err := provider.Do(c.HTTPClient, req)
	if err != nil {
		return nil, err
	}
	if !provider.IsSuccess(status) {
		return nil, provider.NewError(providerName, status, respBody, DefaultErrorMessage)
	}

	data := map[string]any{}
	if err := json.Unmarshal(respBody, &data); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	id, _ := data["id"].(string)
	return &core.CallResult{ID: id, Data: data}, nil
}
