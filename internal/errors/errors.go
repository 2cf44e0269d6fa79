package errors

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/callgate/callgate/internal/metrics"
	"github.com/callgate/callgate/internal/observability"
	"github.com/callgate/callgate/internal/server/middleware"
)

// Error codes
const (
	CodeInvalidInput       = "INVALID_INPUT"
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeNotFound           = "NOT_FOUND"
	CodeForbidden          = "FORBIDDEN"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodeRateLimited        = "RATE_LIMITED"
	CodeInternal           = "INTERNAL_ERROR"
	CodeConfigInvalid      = "CONFIG_INVALID"
	CodeExternalService    = "EXTERNAL_SERVICE_ERROR"
	CodeTimeout            = "TIMEOUT"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// Keys of envelope details that are returned to callers. Anything else in
// the envelope (context, wrapped causes) is logged only.
const (
	detailPublic     = "details"
	detailMessage    = "message"
	detailRetryAfter = "retry_after"
	detailStatus     = "status"
)

// User Errors (400-level)
func NewInvalidInputError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeInvalidInput, message)
}

func NewValidationError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeValidationFailed, message)
}

func NewNotFoundError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeNotFound, message)
}

func NewMethodNotAllowedError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeMethodNotAllowed, message)
}

// NewForbiddenError is used for security rejections; they log at WARN.
func NewForbiddenError(message string) *errors.ErrorEnvelope {
	env := errors.NewErrorEnvelope(CodeForbidden, message)
	env, _ = env.WithSeverity(errors.SeverityMedium)
	return env
}

// NewRateLimitedError carries the seconds until the client may retry.
func NewRateLimitedError(message string, retryAfter int) *errors.ErrorEnvelope {
	env := errors.NewErrorEnvelope(CodeRateLimited, message)
	env, _ = env.WithSeverity(errors.SeverityMedium)
	return withDetail(env, detailRetryAfter, retryAfter)
}

// Server Errors (500-level)
func NewInternalError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeInternal, message)
}

func NewConfigInvalidError(message string) *errors.ErrorEnvelope {
	env := errors.NewErrorEnvelope(CodeConfigInvalid, message)
	env, _ = env.WithSeverity(errors.SeverityHigh)
	return env
}

func NewExternalServiceError(message string) *errors.ErrorEnvelope {
	env := errors.NewErrorEnvelope(CodeExternalService, message)
	env, _ = env.WithSeverity(errors.SeverityHigh)
	return env
}

func NewServiceUnavailableError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeServiceUnavailable, message)
}

// WithPublicDetails sets the "details" field of the response body.
func WithPublicDetails(envelope *errors.ErrorEnvelope, details any) *errors.ErrorEnvelope {
	if details == nil {
		return envelope
	}
	return withDetail(envelope, detailPublic, details)
}

// WithPublicMessage sets the "message" field of the response body.
func WithPublicMessage(envelope *errors.ErrorEnvelope, message string) *errors.ErrorEnvelope {
	if message == "" {
		return envelope
	}
	return withDetail(envelope, detailMessage, message)
}

// WithStatus sets the "status" field of the response body.
func WithStatus(envelope *errors.ErrorEnvelope, status string) *errors.ErrorEnvelope {
	return withDetail(envelope, detailStatus, status)
}

// Wrap functions for existing errors
// These functions accept a context to extract correlation/trace IDs from the request context

func WrapInvalidInput(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return wrap(ctx, NewInvalidInputError(message), err)
}

func WrapForbidden(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return wrap(ctx, NewForbiddenError(message), err)
}

func WrapInternal(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	env := NewInternalError(message)
	env, _ = env.WithSeverity(errors.SeverityHigh)
	return wrap(ctx, env, err)
}

func WrapConfigInvalid(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return wrap(ctx, NewConfigInvalidError(message), err)
}

func WrapExternalService(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return wrap(ctx, NewExternalServiceError(message), err)
}

func WrapTimeout(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	env := errors.NewErrorEnvelope(CodeTimeout, message)
	env, _ = env.WithSeverity(errors.SeverityHigh)
	return wrap(ctx, env, err)
}

func wrap(ctx context.Context, envelope *errors.ErrorEnvelope, err error) *errors.ErrorEnvelope {
	envelope = envelope.WithCorrelationID(extractCorrelationID(ctx))
	envelope = envelope.WithTraceID(extractTraceID(ctx))
	return withWrappedError(envelope, err)
}

// extractCorrelationID gets correlation ID from context, falls back to generating new UUID
func extractCorrelationID(ctx context.Context) string {
	if ctx != nil {
		if requestID := middleware.GetRequestID(ctx); requestID != "" {
			return requestID
		}
	}
	return uuid.New().String()
}

// extractTraceID uses the correlation ID until a tracer is wired in.
func extractTraceID(ctx context.Context) string {
	return extractCorrelationID(ctx)
}

// EnsureEnvelope normalizes any error into a gofulmen ErrorEnvelope. Timeouts
// map to TIMEOUT, everything else unknown to a generic internal error.
func EnsureEnvelope(err error) *errors.ErrorEnvelope {
	if err == nil {
		env := errors.NewErrorEnvelope(CodeInternal, "unexpected nil error")
		env, _ = env.WithSeverity(errors.SeverityCritical)
		return env
	}

	var envelope *errors.ErrorEnvelope
	if stderrors.As(err, &envelope) && envelope != nil {
		return envelope
	}

	if stderrors.Is(err, context.DeadlineExceeded) {
		return WrapTimeout(context.Background(), err, "Upstream request timed out")
	}

	return WrapInternal(context.Background(), err, "Internal server error")
}

// EnsureCorrelationID attaches a correlation ID to the envelope using the context when available.
func EnsureCorrelationID(envelope *errors.ErrorEnvelope, ctx context.Context) *errors.ErrorEnvelope {
	if envelope == nil {
		return nil
	}

	var requestID string
	if ctx != nil {
		requestID = middleware.GetRequestID(ctx)
	}
	if requestID != "" {
		return envelope.WithCorrelationID(requestID)
	}
	if envelope.CorrelationID != "" {
		return envelope
	}

	return envelope.WithCorrelationID("fallback-" + errors.GenerateCorrelationID())
}

// HTTPStatusFromEnvelope resolves the HTTP status code corresponding to an error envelope.
func HTTPStatusFromEnvelope(envelope *errors.ErrorEnvelope) int {
	if envelope == nil {
		return http.StatusInternalServerError
	}
	return HTTPStatusFromCode(envelope.Code)
}

// HTTPStatusFromCode resolves the HTTP status code corresponding to an error code.
func HTTPStatusFromCode(code string) int {
	switch code {
	case CodeInvalidInput, CodeValidationFailed:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeForbidden:
		return http.StatusForbidden
	case CodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeExternalService:
		return http.StatusBadGateway
	case CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func withWrappedError(envelope *errors.ErrorEnvelope, err error) *errors.ErrorEnvelope {
	if envelope == nil || err == nil {
		return envelope
	}

	updated, updateErr := envelope.WithContext(map[string]interface{}{
		"wrapped_error": err.Error(),
	})
	if updateErr != nil {
		return envelope
	}
	return updated
}

func withDetail(envelope *errors.ErrorEnvelope, key string, value any) *errors.ErrorEnvelope {
	if envelope == nil {
		return nil
	}
	details := make(map[string]interface{}, len(envelope.Details)+1)
	for k, v := range envelope.Details {
		details[k] = v
	}
	details[key] = value
	return envelope.WithDetails(details)
}

// HTTPErrorResponse is the error body returned to callers.
type HTTPErrorResponse struct {
	Error      string `json:"error"`
	Code       string `json:"code"`
	Message    string `json:"message,omitempty"`
	Details    any    `json:"details,omitempty"`
	RetryAfter *int   `json:"retryAfter,omitempty"`
	Status     string `json:"status,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
}

// BuildResponse projects the public parts of an envelope into a response body.
func BuildResponse(envelope *errors.ErrorEnvelope) HTTPErrorResponse {
	response := HTTPErrorResponse{
		Error:     envelope.Message,
		Code:      envelope.Code,
		RequestID: envelope.CorrelationID,
	}

	if v, ok := envelope.Details[detailPublic]; ok {
		response.Details = v
	}
	if v, ok := envelope.Details[detailMessage].(string); ok {
		response.Message = v
	}
	if v, ok := envelope.Details[detailStatus].(string); ok {
		response.Status = v
	}
	if v, ok := envelope.Details[detailRetryAfter].(int); ok {
		retry := v
		response.RetryAfter = &retry
	}

	return response
}

// RespondWithError normalizes the supplied error and writes a JSON response.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	RespondWithEnvelope(w, r, EnsureEnvelope(err))
}

// RespondWithEnvelope writes the envelope with the status mapped from its code.
func RespondWithEnvelope(w http.ResponseWriter, r *http.Request, envelope *errors.ErrorEnvelope) {
	RespondWithStatus(w, r, HTTPStatusFromEnvelope(envelope), envelope)
}

// RespondWithStatus finalizes the provided envelope with an explicit status,
// logging and emitting metrics. Provider errors use it to pass the upstream
// status through.
func RespondWithStatus(w http.ResponseWriter, r *http.Request, statusCode int, envelope *errors.ErrorEnvelope) {
	if w == nil {
		return
	}
	if envelope == nil {
		envelope = EnsureEnvelope(nil)
	}

	var ctx context.Context
	if r != nil {
		ctx = r.Context()
	}
	envelope = EnsureCorrelationID(envelope, ctx)

	response := BuildResponse(envelope)

	logHTTPError(envelope, statusCode)
	emitErrorMetrics(r, envelope, statusCode)

	if response.RetryAfter != nil {
		w.Header().Set("Retry-After", strconv.Itoa(*response.RetryAfter))
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(response); err != nil {
		http.Error(w, envelope.Message, statusCode)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(buf.Bytes())
}

func logHTTPError(envelope *errors.ErrorEnvelope, statusCode int) {
	if observability.ServerLogger == nil || envelope == nil {
		return
	}

	fields := []zap.Field{
		zap.String("error_code", envelope.Code),
		zap.Int("http_status", statusCode),
	}

	if envelope.Severity != "" {
		fields = append(fields, zap.String("severity", string(envelope.Severity)))
	}

	for key, value := range envelope.Context {
		fields = append(fields, zap.Any(key, value))
	}

	if envelope.CorrelationID != "" {
		fields = append(fields, zap.String("request_id", envelope.CorrelationID))
	}

	switch envelope.Severity {
	case errors.SeverityCritical, errors.SeverityHigh:
		observability.ServerLogger.Error(envelope.Message, fields...)
	case errors.SeverityMedium:
		observability.ServerLogger.Warn(envelope.Message, fields...)
	default:
		observability.ServerLogger.Info(envelope.Message, fields...)
	}
}

func emitErrorMetrics(r *http.Request, envelope *errors.ErrorEnvelope, statusCode int) {
	if envelope == nil {
		return
	}

	metrics.RecordError(envelope.Code, statusCode)
	if r != nil {
		metrics.RecordErrorByEndpoint(r.URL.Path, envelope.Code)
	}
}
