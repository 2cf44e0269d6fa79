package core

import "strings"

// DefaultFirstName is forwarded when the visitor leaves the first name blank.
const DefaultFirstName = "Guest"

// CallRequest is a "call me" form submission. It is never persisted.
type CallRequest struct {
	PhoneNumber    string `json:"phoneNumber"`
	FirstName      string `json:"firstName,omitempty"`
	LastName       string `json:"lastName,omitempty"`
	Email          string `json:"email,omitempty"`
	Message        string `json:"message,omitempty"`
	Honeypot       string `json:"honeypot,omitempty"`
	RecaptchaToken string `json:"recaptchaToken,omitempty"`

	// FormStartTime is the form-render time in milliseconds since the epoch.
	FormStartTime *int64 `json:"formStartTime,omitempty"`

	// UserInteracted is nil when the client did not report it.
	UserInteracted *bool `json:"userInteracted,omitempty"`
}

// CallMetadata is the opaque metadata forwarded with an outbound call.
type CallMetadata struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Message   string `json:"message"`
}

// Metadata derives the forwarded metadata, applying defaults.
func (r CallRequest) Metadata() CallMetadata {
	first := strings.TrimSpace(r.FirstName)
	if first == "" {
		first = DefaultFirstName
	}
	return CallMetadata{
		FirstName: first,
		LastName:  strings.TrimSpace(r.LastName),
		Email:     strings.TrimSpace(r.Email),
		Message:   r.Message,
	}
}

// CallOrder is the request sent to the voice-call provider.
type CallOrder struct {
	AssistantID        string       `json:"assistantId"`
	PhoneNumberID      string       `json:"phoneNumberId"`
	CustomerNumber     string       `json:"-"`
	Metadata           CallMetadata `json:"metadata"`
	MaxDurationSeconds int          `json:"maxDurationSeconds"`
}

// CallResult is the provider's answer to a successful call order.
type CallResult struct {
	ID   string         `json:"id"`
	Data map[string]any `json:"data"`
}
