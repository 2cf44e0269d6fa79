package integration

import (
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callgate/callgate/internal/core/gate"
	"github.com/callgate/callgate/internal/core/limiter"
	"github.com/callgate/callgate/internal/observability"
	"github.com/callgate/callgate/internal/provider/vapi"
	"github.com/callgate/callgate/internal/server"
)

// cleanupMetrics tears down global telemetry state so each test starts clean.
// This matters in sandboxes where lingering exporters can block future binds.
func cleanupMetrics(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		_ = observability.ShutdownMetrics()
		observability.TelemetrySystem = nil
	})
}

// isPermissionError normalizes OS-specific permission errors (macOS/Linux/BSD)
// so we can gracefully skip when loopback sockets are blocked.
func isPermissionError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.EACCES) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range []string{"permission denied", "operation not permitted", "not permitted"} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}

	return false
}

// initMetricsOrSkip attempts to start the metrics exporter; if the environment
// forbids network binds we skip instead of failing the entire suite.
func initMetricsOrSkip(t *testing.T) {
	t.Helper()

	if err := observability.InitMetrics("test", 0, "test"); err != nil {
		if isPermissionError(err) {
			t.Skipf("skipping metrics tests due to sandbox permissions: %v", err)
		}
		require.NoError(t, err)
	}

	cleanupMetrics(t)
}

type gateway struct {
	url       string
	client    *http.Client
	vapiCalls *atomic.Int32
}

// newGateway serves the full router over IPv4 loopback with a fake call
// provider, skipping when the sandbox refuses to open sockets.
func newGateway(t *testing.T, mutate func(*gate.Config)) *gateway {
	t.Helper()

	var calls atomic.Int32
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"call_integration","status":"queued"}`))
	}))
	t.Cleanup(provider.Close)

	cfg := gate.DefaultConfig
	cfg.AssistantID = "assistant-1"
	cfg.PhoneNumberID = "number-1"
	if mutate != nil {
		mutate(&cfg)
	}

	g := &gate.Gate{
		Config:    cfg,
		Limiter:   limiter.New(limiter.NewMemoryStore(), limiter.DefaultPolicy),
		Blacklist: limiter.NewMemoryBlacklist(),
		Caller:    vapi.NewClient(provider.URL, "vapi-secret"),
		Logger:    observability.ServerLogger,
	}
	srv := server.New(server.Options{Host: "127.0.0.1"}, server.Deps{Gate: g})

	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if isPermissionError(err) {
			t.Skipf("skipping gateway server setup: %v", err)
		}
		require.NoError(t, err)
	}

	ts := &httptest.Server{
		Listener: listener,
		Config:   &http.Server{Handler: srv.Handler()},
	}
	ts.Start()
	t.Cleanup(ts.Close)
	return &gateway{url: ts.URL, client: ts.Client(), vapiCalls: &calls}
}

func (g *gateway) submit(t *testing.T, body, clientIP string) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, g.url+"/api/initiate-call", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Real-IP", clientIP)

	resp, err := g.client.Do(req)
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	require.NoError(t, resp.Body.Close())
	return resp.StatusCode
}

func (g *gateway) metrics(t *testing.T) string {
	t.Helper()
	resp, err := g.client.Get(g.url + "/metrics")
	require.NoError(t, err)
	body, readErr := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, readErr)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return string(body)
}

func TestGatewayMetrics_Integration(t *testing.T) {
	observability.InitServerLogger("test", observability.ServerLoggerOptions{Level: "info"})
	initMetricsOrSkip(t)

	gw := newGateway(t, func(c *gate.Config) {
		c.RequireToken = false
		c.MaxCallsPerIP = 100
	})

	assert.Equal(t, http.StatusOK, gw.submit(t, `{"phoneNumber":"+15557654321"}`, "198.51.100.1"))
	assert.Equal(t, http.StatusOK, gw.submit(t, `{"phoneNumber":"+15557654321","honeypot":"x"}`, "198.51.100.1"))
	assert.Equal(t, http.StatusBadRequest, gw.submit(t, `{"phoneNumber":"+11111111111"}`, "198.51.100.1"))

	content := gw.metrics(t)
	assert.Contains(t, content, "test_http_requests_total")
	assert.Contains(t, content, "test_gate_requests_total")
	assert.Contains(t, content, "test_gate_rejections_total")
	assert.Contains(t, content, "test_calls_placed_total")
	assert.Equal(t, int32(1), gw.vapiCalls.Load())
}

func TestGatewayConcurrentSubmissions_Integration(t *testing.T) {
	observability.InitServerLogger("test", observability.ServerLoggerOptions{Level: "warn"})
	initMetricsOrSkip(t)

	gw := newGateway(t, func(c *gate.Config) {
		c.RequireToken = false
		c.MaxCallsPerIP = 1000
		c.MaxCallsPerPhone = 2
		c.BlacklistThreshold = 1000
	})

	const numRequests = 40
	const numWorkers = 8

	requests := make(chan int, numRequests)
	for i := 0; i < numRequests; i++ {
		requests <- i
	}
	close(requests)

	var ok, limited atomic.Int32
	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func() {
			defer wg.Done()
			for range requests {
				switch gw.submit(t, `{"phoneNumber":"+15557654321"}`, "198.51.100.7") {
				case http.StatusOK:
					ok.Add(1)
				case http.StatusTooManyRequests:
					limited.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	// The per-phone count is serialized, so exactly the limit gets through.
	assert.Equal(t, int32(2), ok.Load())
	assert.Equal(t, int32(numRequests-2), limited.Load())
	assert.Equal(t, int32(2), gw.vapiCalls.Load())
}

func TestMetricsEndpoint_WithTelemetryDisabled(t *testing.T) {
	observability.InitServerLogger("test", observability.ServerLoggerOptions{Level: "info"})

	originalExporter := observability.PrometheusExporter
	originalTelemetry := observability.TelemetrySystem
	observability.PrometheusExporter = nil
	observability.InitDisabledMetrics()
	t.Cleanup(func() {
		observability.PrometheusExporter = originalExporter
		observability.TelemetrySystem = originalTelemetry
	})

	gw := newGateway(t, nil)

	resp, err := gw.client.Get(gw.url + "/metrics")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
