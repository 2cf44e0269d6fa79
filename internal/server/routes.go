package server

import (
	"context"
	"net/http"
	"os"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/callgate/callgate/internal/appid"
	"github.com/callgate/callgate/internal/observability"
	"github.com/callgate/callgate/internal/server/handlers"
)

func (s *Server) registerRoutes() {
	health := s.deps.Health
	s.router.Get("/health", health.HealthHandler)
	s.router.Get("/health/live", health.LivenessHandler)
	s.router.Get("/health/ready", health.ReadinessHandler)
	s.router.Get("/health/startup", health.StartupHandler)

	s.router.Get("/version", handlers.VersionHandler)
	s.router.Get("/metrics", MetricsHandler)

	s.router.Route("/api", func(r chi.Router) {
		r.Method(http.MethodPost, "/initiate-call", &handlers.CallHandler{
			Gate:         s.deps.Gate,
			MaxBodyBytes: s.opts.MaxBodyBytes,
		})
		r.Method(http.MethodPost, "/verify-payment", &handlers.PaymentHandler{
			Verifier:     s.deps.Payments,
			MaxBodyBytes: s.opts.MaxBodyBytes,
		})
	})

	s.registerAdminEndpoint()
}

// registerAdminEndpoint exposes /admin/signal when {PREFIX}ADMIN_TOKEN is set,
// so a reload can be triggered without shell access.
func (s *Server) registerAdminEndpoint() {
	envPrefix := appid.EnvPrefix(context.Background())
	adminToken := os.Getenv(envPrefix + "ADMIN_TOKEN")
	logger := observability.ServerLogger

	if adminToken == "" {
		if logger != nil {
			logger.Debug("Admin signal endpoint disabled (no " + envPrefix + "ADMIN_TOKEN set)")
		}
		return
	}

	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: adminToken,
		RateLimit: 10,
		RateBurst: 5,
		Manager:   nil,
	})
	s.router.Post("/admin/signal", handler.ServeHTTP)

	if logger != nil {
		logger.Info("Admin signal endpoint enabled",
			zap.String("path", "/admin/signal"),
			zap.String("rate_limit", "10/min, burst 5"))
	}
}
