package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewError(t *testing.T) {
	err := NewError("vapi", http.StatusBadRequest, []byte(`{"message":"customer.number must be valid","statusCode":400}`), "Failed to initiate call")
	require.Equal(t, "customer.number must be valid", err.Message)
	require.Equal(t, http.StatusBadRequest, err.StatusCode)
	require.EqualValues(t, 400, err.Body["statusCode"])
	require.Contains(t, err.Error(), "status 400")

	err = NewError("vapi", http.StatusBadGateway, []byte("upstream down"), "Failed to initiate call")
	require.Equal(t, "Failed to initiate call", err.Message)
	require.Equal(t, "upstream down", err.Body["raw"])

	err = NewError("paystack", http.StatusUnauthorized, []byte(`{"message":["a","b"]}`), "Payment verification failed")
	require.Equal(t, "Payment verification failed", err.Message)
}

func TestWithTimeout(t *testing.T) {
	ctx, cancel := WithTimeout(context.Background(), 0)
	require.Nil(t, cancel)
	_, ok := ctx.Deadline()
	require.False(t, ok)

	ctx, cancel = WithTimeout(context.Background(), time.Second)
	require.NotNil(t, cancel)
	defer cancel()
	_, ok = ctx.Deadline()
	require.True(t, ok)
}

func TestDo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`ok`))
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	status, body, err := Do(nil, req)
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, status)
	require.Equal(t, "ok", string(body))
	require.True(t, IsSuccess(status))
	require.False(t, IsSuccess(http.StatusMultipleChoices))
}
