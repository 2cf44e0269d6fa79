package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	apperrors "github.com/callgate/callgate/internal/errors"
	"github.com/callgate/callgate/internal/metrics"
	"github.com/callgate/callgate/internal/provider"
	"github.com/callgate/callgate/internal/provider/paystack"
)

// Payment endpoint messages
const (
	MsgReferenceRequired = "Payment reference is required"
	MsgPaymentFailed     = "Payment was not successful"
	MsgPaymentVerified   = "Payment verified successfully"
)

// PaymentVerifier looks a transaction up by reference.
type PaymentVerifier interface {
	Verify(ctx context.Context, reference string) (*paystack.Transaction, error)
}

// PaymentRequest is the body of POST /api/verify-payment.
type PaymentRequest struct {
	Reference string `json:"reference"`
}

// PaymentResponse is the success body of POST /api/verify-payment.
type PaymentResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Data    paystack.Payment `json:"data"`
}

// PaymentHandler serves POST /api/verify-payment.
type PaymentHandler struct {
	Verifier     PaymentVerifier
	MaxBodyBytes int64
}

func (h *PaymentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequest
	if err := decodeJSON(w, r, &req, h.MaxBodyBytes); err != nil {
		respondInvalidBody(w, r, err)
		return
	}

	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		respondWithError(w, r, apperrors.NewInvalidInputError(MsgReferenceRequired))
		return
	}

	if h.Verifier == nil {
		metrics.RecordPaymentVerification("not_configured")
		respondWithError(w, r, apperrors.WrapConfigInvalid(r.Context(), provider.ErrNotConfigured, MsgConfig))
		return
	}

	tx, err := h.Verifier.Verify(r.Context(), reference)
	if err != nil {
		h.respondVerifyError(w, r, err)
		return
	}

	if !tx.Successful() {
		metrics.RecordPaymentVerification("unsuccessful")
		envelope := apperrors.NewInvalidInputError(MsgPaymentFailed)
		respondWithError(w, r, apperrors.WithStatus(envelope, tx.Status))
		return
	}

	metrics.RecordPaymentVerification(paystack.StatusSuccess)
	writeJSON(w, http.StatusOK, PaymentResponse{
		Success: true,
		Message: MsgPaymentVerified,
		Data:    tx.Payment(),
	})
}

func (h *PaymentHandler) respondVerifyError(w http.ResponseWriter, r *http.Request, err error) {
	var perr *provider.Error
	switch {
	case errors.Is(err, paystack.ErrReferenceRequired):
		respondWithError(w, r, apperrors.NewInvalidInputError(MsgReferenceRequired))
	case errors.Is(err, provider.ErrNotConfigured):
		metrics.RecordPaymentVerification("not_configured")
		respondWithError(w, r, apperrors.WrapConfigInvalid(r.Context(), err, MsgConfig))
	case errors.As(err, &perr):
		metrics.RecordPaymentVerification("provider_error")
		respondProviderError(w, r, perr)
	default:
		metrics.RecordPaymentVerification("error")
		envelope := apperrors.WrapInternal(r.Context(), err, MsgInternal)
		respondWithError(w, r, apperrors.WithPublicMessage(envelope, MsgVerifyFailed))
	}
}
