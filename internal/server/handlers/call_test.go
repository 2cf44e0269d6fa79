package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callgate/callgate/internal/core"
	"github.com/callgate/callgate/internal/core/gate"
	"github.com/callgate/callgate/internal/provider"
)

type stubGate struct {
	result   *gate.Result
	err      error
	req      core.CallRequest
	clientIP string
	calls    int
}

func (s *stubGate) Submit(_ context.Context, req core.CallRequest, clientIP string) (*gate.Result, error) {
	s.calls++
	s.req = req
	s.clientIP = clientIP
	return s.result, s.err
}

func postCall(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/initiate-call", strings.NewReader(body))
	req.RemoteAddr = "203.0.113.9:51234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	return rec, decoded
}

func TestCallHandlerSuccess(t *testing.T) {
	g := &stubGate{result: &gate.Result{CallID: "call_1", Data: map[string]any{"id": "call_1", "status": "queued"}}}
	h := &CallHandler{Gate: g}

	rec, body := postCall(t, h, `{"phoneNumber":"+15557654321","firstName":"Ada","formStartTime":1700000000000,"userInteracted":true}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, MsgCallInitiated, body["message"])
	assert.Equal(t, "call_1", body["callId"])
	assert.Equal(t, "queued", body["data"].(map[string]any)["status"])

	assert.Equal(t, "203.0.113.9", g.clientIP)
	assert.Equal(t, "+15557654321", g.req.PhoneNumber)
	require.NotNil(t, g.req.FormStartTime)
	assert.EqualValues(t, 1700000000000, *g.req.FormStartTime)
	require.NotNil(t, g.req.UserInteracted)
	assert.True(t, *g.req.UserInteracted)
}

func TestCallHandlerHoneypotLooksLikeSuccess(t *testing.T) {
	h := &CallHandler{Gate: &stubGate{result: &gate.Result{Honeypot: true}}}

	rec, body := postCall(t, h, `{"phoneNumber":"+15557654321","honeypot":"x"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"success": true, "message": MsgCallInitiated}, body)
}

func TestCallHandlerRejections(t *testing.T) {
	tests := []struct {
		name   string
		rej    *gate.Rejection
		status int
		check  func(t *testing.T, rec *httptest.ResponseRecorder, body map[string]any)
	}{
		{
			name:   "invalid phone",
			rej:    &gate.Rejection{Kind: gate.KindInvalidInput, Step: gate.StepValidation, Message: gate.MsgPhonePattern},
			status: http.StatusBadRequest,
			check: func(t *testing.T, _ *httptest.ResponseRecorder, body map[string]any) {
				assert.Equal(t, gate.MsgPhonePattern, body["error"])
			},
		},
		{
			name:   "bot score",
			rej:    &gate.Rejection{Kind: gate.KindSecurity, Step: gate.StepBotScore, Message: gate.MsgBotScore, Details: gate.DetailLowScore},
			status: http.StatusForbidden,
			check: func(t *testing.T, _ *httptest.ResponseRecorder, body map[string]any) {
				assert.Equal(t, gate.MsgBotScore, body["error"])
				assert.Equal(t, gate.DetailLowScore, body["details"])
			},
		},
		{
			name:   "timing",
			rej:    &gate.Rejection{Kind: gate.KindSecurity, Step: gate.StepTiming, Message: gate.MsgSecurity},
			status: http.StatusForbidden,
			check: func(t *testing.T, rec *httptest.ResponseRecorder, body map[string]any) {
				assert.Equal(t, gate.MsgSecurity, body["error"])
				assert.NotContains(t, body, "details")
				assert.NotContains(t, rec.Body.String(), "timing")
			},
		},
		{
			name:   "blacklisted",
			rej:    &gate.Rejection{Kind: gate.KindBlacklisted, Step: gate.StepBlacklist, Message: gate.MsgSecurity},
			status: http.StatusForbidden,
			check: func(t *testing.T, rec *httptest.ResponseRecorder, _ map[string]any) {
				assert.NotContains(t, rec.Body.String(), "blacklist")
			},
		},
		{
			name:   "rate limited",
			rej:    &gate.Rejection{Kind: gate.KindRateLimited, Step: gate.StepRateLimitPhone, Message: gate.MsgRateLimitPhone, RetryAfter: 842},
			status: http.StatusTooManyRequests,
			check: func(t *testing.T, rec *httptest.ResponseRecorder, body map[string]any) {
				assert.Equal(t, gate.MsgRateLimitPhone, body["error"])
				assert.EqualValues(t, 842, body["retryAfter"])
				assert.Equal(t, "842", rec.Header().Get("Retry-After"))
			},
		},
		{
			name:   "config",
			rej:    &gate.Rejection{Kind: gate.KindConfig, Step: gate.StepCall, Message: gate.MsgConfig, Cause: provider.ErrNotConfigured},
			status: http.StatusInternalServerError,
			check: func(t *testing.T, rec *httptest.ResponseRecorder, body map[string]any) {
				assert.Equal(t, MsgConfig, body["error"])
				assert.NotContains(t, rec.Body.String(), "credentials")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &CallHandler{Gate: &stubGate{err: tt.rej}}
			rec, body := postCall(t, h, `{"phoneNumber":"+15557654321"}`)
			require.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, body["request_id"])
			tt.check(t, rec, body)
		})
	}
}

func TestCallHandlerProviderPassthrough(t *testing.T) {
	perr := &provider.Error{
		Provider:   "vapi",
		StatusCode: http.StatusBadRequest,
		Message:    "customer.number must be a valid phone number",
		Body:       map[string]any{"message": "customer.number must be a valid phone number", "statusCode": float64(400)},
	}
	h := &CallHandler{Gate: &stubGate{err: perr}}

	rec, body := postCall(t, h, `{"phoneNumber":"+15557654321"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, perr.Message, body["error"])
	assert.Equal(t, perr.Body, body["details"])
}

func TestCallHandlerInfrastructureError(t *testing.T) {
	h := &CallHandler{Gate: &stubGate{err: errors.New("redis: connection pool exhausted")}}

	rec, body := postCall(t, h, `{"phoneNumber":"+15557654321"}`)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, MsgInternal, body["error"])
	assert.Equal(t, MsgCallFailed, body["message"])
	assert.NotContains(t, rec.Body.String(), "redis")
}

func TestCallHandlerBody(t *testing.T) {
	t.Run("Malformed", func(t *testing.T) {
		g := &stubGate{}
		rec, body := postCall(t, &CallHandler{Gate: g}, `{"phoneNumber":`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid JSON body", body["error"])
		assert.Zero(t, g.calls)
	})

	t.Run("Empty reaches validation", func(t *testing.T) {
		g := &stubGate{err: &gate.Rejection{Kind: gate.KindInvalidInput, Step: gate.StepValidation, Message: gate.MsgPhoneRequired}}
		rec, _ := postCall(t, &CallHandler{Gate: g}, ``)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, 1, g.calls)
		assert.Empty(t, g.req.PhoneNumber)
	})

	t.Run("Too large", func(t *testing.T) {
		g := &stubGate{}
		big := `{"phoneNumber":"+15557654321","message":"` + strings.Repeat("a", 2048) + `"}`
		rec, body := postCall(t, &CallHandler{Gate: g, MaxBodyBytes: 512}, big)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Request body too large", body["error"])
		assert.Zero(t, g.calls)
	})
}
