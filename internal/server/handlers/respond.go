package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	apperrors "github.com/callgate/callgate/internal/errors"
	"github.com/callgate/callgate/internal/provider"
)

// DefaultMaxBodyBytes bounds JSON request bodies.
const DefaultMaxBodyBytes int64 = 64 << 10

// MsgConfig is returned when a provider secret is missing; the cause is only
// logged.
const MsgConfig = "Server configuration error"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a bounded JSON body into v. An empty body leaves v at its
// zero value so field validation reports the missing input.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, limit int64) error {
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func respondInvalidBody(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "Request body too large"))
		return
	}
	respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "Invalid JSON body"))
}

// respondProviderError passes the provider's status and payload through.
func respondProviderError(w http.ResponseWriter, r *http.Request, perr *provider.Error) {
	status := perr.StatusCode
	if status < http.StatusBadRequest || status > 599 {
		status = http.StatusBadGateway
	}

	envelope := apperrors.WrapExternalService(r.Context(), perr, perr.Message)
	if len(perr.Body) > 0 {
		envelope = apperrors.WithPublicDetails(envelope, perr.Body)
	}
	apperrors.RespondWithStatus(w, r, status, envelope)
}
