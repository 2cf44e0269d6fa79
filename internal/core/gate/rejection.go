package gate

import "fmt"

// Kind classifies a rejection for the transport layer.
type Kind string

const (
	KindInvalidInput Kind = "invalid_input"
	KindSecurity     Kind = "security"
	KindBlacklisted  Kind = "blacklisted"
	KindRateLimited  Kind = "rate_limited"
	KindConfig       Kind = "config"
)

// Step names the pipeline stage that produced an outcome.
type Step string

const (
	StepHoneypot       Step = "honeypot"
	StepBotScore       Step = "bot_score"
	StepTiming         Step = "timing"
	StepInteraction    Step = "interaction"
	StepValidation     Step = "validation"
	StepBlacklist      Step = "blacklist"
	StepRateLimitIP    Step = "rate_limit_ip"
	StepRateLimitPhone Step = "rate_limit_phone"
	StepCall           Step = "call"
)

// Client-facing messages. Security messages never name the heuristic.
const (
	MsgPhoneRequired  = "Phone number is required"
	MsgPhoneFormat    = "Invalid phone number format. Use international format (e.g., +15551234567)"
	MsgPhonePattern   = "Invalid phone number pattern"
	MsgBotScore       = "Security verification failed. Please refresh and try again."
	MsgSecurity       = "Request rejected for security reasons."
	MsgRateLimitIP    = "Too many call requests from your location. Please try again later."
	MsgRateLimitPhone = "Too many call requests for this number. Please try again later."
	MsgConfig         = "Server configuration error"
)

// Bot-score rejection details.
const (
	DetailTokenRequired  = "Security verification required"
	DetailVerifyFailed   = "Security verification failed"
	DetailLowScore       = "Suspicious activity detected"
	DetailVerifierFailed = "Verification failed"
)

// Rejection is a pipeline verdict that stops a submission.
type Rejection struct {
	Kind    Kind
	Step    Step
	Message string
	// Details is only set where the client may see it.
	Details    string
	RetryAfter int
	// Reason is the limiter's reason for rate-limit rejections.
	Reason string
	// Cause is logged, never returned to the client.
	Cause error
}

func (r *Rejection) Error() string {
	if r.Cause != nil {
		return fmt.Sprintf("%s rejected at %s: %s: %v", r.Kind, r.Step, r.Message, r.Cause)
	}
	return fmt.Sprintf("%s rejected at %s: %s", r.Kind, r.Step, r.Message)
}

func (r *Rejection) Unwrap() error {
	return r.Cause
}
