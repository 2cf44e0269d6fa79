package metrics

import (
	"time"

	"github.com/callgate/callgate/internal/observability"
)

// Application-level metrics following Prometheus conventions
var (
	// Pipeline metrics
	GateRequestsTotal       = "gate_requests_total"
	GateRejectionsTotal     = "gate_rejections_total"
	GateBotScore            = "gate_bot_score"
	CallsPlacedTotal        = "calls_placed_total"
	BlacklistAdditionsTotal = "blacklist_additions_total"
	RateLimitSweepsTotal    = "rate_limit_sweeps_total"
	RateLimitSweptEntries   = "rate_limit_swept_entries_total"

	// Payment metrics
	PaymentVerificationsTotal = "payment_verifications_total"

	// Health check metrics
	HealthCheckTotal    = "app_health_check_total"
	HealthCheckDuration = "app_health_check_duration_ms"

	// Server lifecycle metrics
	ServerStartTime = "app_server_start_time_seconds"
)

// RecordGateRequest counts a submission entering the pipeline.
func RecordGateRequest() {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(GateRequestsTotal, 1, nil)
	}
}

// RecordGateRejection counts a submission stopped at step.
func RecordGateRejection(step string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			GateRejectionsTotal,
			1,
			map[string]string{"step": step},
		)
	}
}

// RecordBotScore records a verifier score, scaled to 0-1000 so it fits the
// millisecond histogram buckets.
func RecordBotScore(score float64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Histogram(
			GateBotScore,
			time.Duration(score*1000)*time.Millisecond,
			nil,
		)
	}
}

// RecordCallPlaced counts an outbound call attempt by outcome.
func RecordCallPlaced(status string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			CallsPlacedTotal,
			1,
			map[string]string{"status": status},
		)
	}
}

// RecordBlacklistAddition counts a number added to the blacklist.
func RecordBlacklistAddition(source string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			BlacklistAdditionsTotal,
			1,
			map[string]string{"source": source},
		)
	}
}

// RecordRateLimitSweep counts a sweep run and the entries it removed.
func RecordRateLimitSweep(removed int) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(RateLimitSweepsTotal, 1, nil)
		if removed > 0 {
			_ = observability.TelemetrySystem.Counter(RateLimitSweptEntries, float64(removed), nil)
		}
	}
}

// RecordPaymentVerification counts a payment verification by outcome.
func RecordPaymentVerification(status string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			PaymentVerificationsTotal,
			1,
			map[string]string{"status": status},
		)
	}
}

// RecordHealthCheck records a health check execution
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			HealthCheckTotal,
			1,
			map[string]string{
				"check":  checkName,
				"status": status,
			},
		)

		_ = observability.TelemetrySystem.Histogram(
			HealthCheckDuration,
			duration,
			map[string]string{
				"check": checkName,
			},
		)
	}
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ServerStartTime,
			float64(timestamp),
			nil,
		)
	}
}
