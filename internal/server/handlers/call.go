package handlers

import (
	"context"
	"errors"
	"net/http"

	gferrors "github.com/fulmenhq/gofulmen/errors"

	"github.com/callgate/callgate/internal/core"
	"github.com/callgate/callgate/internal/core/gate"
	apperrors "github.com/callgate/callgate/internal/errors"
	"github.com/callgate/callgate/internal/provider"
	servermw "github.com/callgate/callgate/internal/server/middleware"
)

// MsgCallInitiated is returned for placed calls and, identically, for
// honeypot hits.
const MsgCallInitiated = "Call initiated successfully"

// Bodies for unexpected failures. The cause is logged, never returned.
const (
	MsgInternal     = "Internal server error"
	MsgCallFailed   = "Failed to initiate call"
	MsgVerifyFailed = "Failed to verify payment"
)

// CallSubmitter runs a call request through the anti-abuse pipeline.
type CallSubmitter interface {
	Submit(ctx context.Context, req core.CallRequest, clientIP string) (*gate.Result, error)
}

// CallResponse is the success body of POST /api/initiate-call.
type CallResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	CallID  string         `json:"callId,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// CallHandler serves POST /api/initiate-call.
type CallHandler struct {
	Gate         CallSubmitter
	MaxBodyBytes int64
}

func (h *CallHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req core.CallRequest
	if err := decodeJSON(w, r, &req, h.MaxBodyBytes); err != nil {
		respondInvalidBody(w, r, err)
		return
	}

	result, err := h.Gate.Submit(r.Context(), req, servermw.ClientIP(r))
	if err != nil {
		respondCallError(w, r, err)
		return
	}

	if result.Honeypot {
		writeJSON(w, http.StatusOK, CallResponse{Success: true, Message: MsgCallInitiated})
		return
	}

	writeJSON(w, http.StatusOK, CallResponse{
		Success: true,
		Message: MsgCallInitiated,
		CallID:  result.CallID,
		Data:    result.Data,
	})
}

func respondCallError(w http.ResponseWriter, r *http.Request, err error) {
	var rej *gate.Rejection
	if errors.As(err, &rej) {
		respondWithError(w, r, rejectionEnvelope(r.Context(), rej))
		return
	}

	var perr *provider.Error
	if errors.As(err, &perr) {
		respondProviderError(w, r, perr)
		return
	}

	envelope := apperrors.WrapInternal(r.Context(), err, MsgInternal)
	respondWithError(w, r, apperrors.WithPublicMessage(envelope, MsgCallFailed))
}

// rejectionEnvelope maps a pipeline verdict to its HTTP error. The envelope
// context keeps the step and cause for logs.
func rejectionEnvelope(ctx context.Context, rej *gate.Rejection) *gferrors.ErrorEnvelope {
	var envelope *gferrors.ErrorEnvelope
	switch rej.Kind {
	case gate.KindInvalidInput:
		envelope = apperrors.WrapInvalidInput(ctx, rej, rej.Message)
	case gate.KindSecurity, gate.KindBlacklisted:
		envelope = apperrors.WrapForbidden(ctx, rej, rej.Message)
		if rej.Details != "" {
			envelope = apperrors.WithPublicDetails(envelope, rej.Details)
		}
	case gate.KindRateLimited:
		envelope = apperrors.NewRateLimitedError(rej.Message, rej.RetryAfter)
	case gate.KindConfig:
		envelope = apperrors.WrapConfigInvalid(ctx, rej, MsgConfig)
	default:
		envelope = apperrors.WithPublicMessage(apperrors.WrapInternal(ctx, rej, MsgInternal), MsgCallFailed)
	}

	updated, err := envelope.WithContext(map[string]interface{}{
		"step":          string(rej.Step),
		"reason":        rej.Reason,
		"wrapped_error": rej.Error(),
	})
	if err == nil {
		envelope = updated
	}
	return envelope
}
