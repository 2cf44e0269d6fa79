// Package paystack verifies transactions with the Paystack API.
package paystack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/callgate/callgate/internal/provider"
)

const (
	providerName   = "paystack"
	defaultBaseURL = "https://api.paystack.co"

	// StatusSuccess is the transaction status of a completed payment.
	StatusSuccess = "success"

	// DefaultErrorMessage is used when Paystack fails without a message.
	DefaultErrorMessage = "Payment verification failed"
)

// ErrReferenceRequired is returned for an empty reference.
var ErrReferenceRequired = errors.New("payment reference is required")

// Customer is the paying customer.
type Customer struct {
	Email        string `json:"email"`
	CustomerCode string `json:"customer_code"`
}

// Transaction is the subset of Paystack's transaction object we relay.
// Amount is in minor units (kobo, cents).
type Transaction struct {
	Reference string   `json:"reference"`
	Amount    int64    `json:"amount"`
	Currency  string   `json:"currency"`
	Status    string   `json:"status"`
	PaidAt    *string  `json:"paid_at"`
	Customer  Customer `json:"customer"`
	Metadata  any      `json:"metadata"`
}

// Successful reports whether the payment completed.
func (t *Transaction) Successful() bool {
	return t != nil && t.Status == StatusSuccess
}

// Payment is the normalized view returned to clients.
type Payment struct {
	Reference string   `json:"reference"`
	Amount    float64  `json:"amount"`
	Currency  string   `json:"currency"`
	Status    string   `json:"status"`
	PaidAt    *string  `json:"paid_at"`
	Customer  Customer `json:"customer"`
	Metadata  any      `json:"metadata"`
}

// Payment converts the amount to major units.
func (t *Transaction) Payment() Payment {
	return Payment{
		Reference: t.Reference,
		Amount:    float64(t.Amount) / 100,
		Currency:  t.Currency,
		Status:    t.Status,
		PaidAt:    t.PaidAt,
		Customer:  t.Customer,
		Metadata:  t.Metadata,
	}
}

type verifyResponse struct {
	Status  bool         `json:"status"`
	Message string       `json:"message"`
	Data    *Transaction `json:"data"`
}

// Client calls the Paystack API with a secret key.
type Client struct {
	BaseURL    string
	SecretKey  string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// NewClient returns a client with defaults applied.
func NewClient(baseURL, secretKey string) *Client {
	u := strings.TrimSpace(baseURL)
	if u == "" {
		u = defaultBaseURL
	}
	return &Client{BaseURL: u, SecretKey: strings.TrimSpace(secretKey)}
}

// Verify fetches the transaction for reference. A non-2xx answer is returned
// as a *provider.Error.
func (c *Client) Verify(ctx context.Context, reference string) (*Transaction, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, ErrReferenceRequired
	}
	if c == nil || c.SecretKey == "" {
		return nil, provider.ErrNotConfigured
	}

	ctx, cancel := provider.WithTimeout(ctx, c.Timeout)
	if cancel != nil {
		defer cancel()
	}

	endpoint := strings.TrimRight(c.BaseURL, "/") + "/transaction/verify/" + url.PathEscape(reference)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("Content-Type", "application/json")

	status, body, err := provider.Do(c.HTTPClient, req)
	if err != nil {
		return nil, err
	}
	if !provider.IsSuccess(status) {
		return nil, provider.NewError(providerName, status, body, DefaultErrorMessage)
	}

	var parsed verifyResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if parsed.Data == nil {
		return nil, errors.New("paystack response has no transaction data")
	}
	return parsed.Data, nil
}
