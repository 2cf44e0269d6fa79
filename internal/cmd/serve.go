package cmd

import (
	"context"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/callgate/callgate/internal/config"
	"github.com/callgate/callgate/internal/core/limiter"
	errwrap "github.com/callgate/callgate/internal/errors"
	"github.com/callgate/callgate/internal/metrics"
	"github.com/callgate/callgate/internal/observability"
	"github.com/callgate/callgate/internal/server"
	"github.com/callgate/callgate/internal/server/handlers"
)

var (
	serverPort int
	serverHost string
)

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

// identityHealthChecker validates app identity metadata
type identityHealthChecker struct {
	binaryName string
	envPrefix  string
	configName string
}

func (i identityHealthChecker) CheckHealth(ctx context.Context) error {
	switch {
	case i.binaryName == "":
		return errwrap.NewConfigInvalidError("app identity missing binary name")
	case i.envPrefix == "":
		return errwrap.NewConfigInvalidError("app identity missing env prefix")
	case i.configName == "":
		return errwrap.NewConfigInvalidError("app identity missing config name")
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the call gateway with graceful shutdown support.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Reload the config file (logging settings apply immediately)

On shutdown the HTTP server drains, the rate-limit sweeper stops, the store
is closed and logs are flushed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		identity := GetAppIdentity()
		namespace := identity.TelemetryNamespace()

		cfg, err := loadConfig(ctx, serveOverrides(cmd))
		if err != nil {
			return errwrap.WrapConfigInvalid(ctx, err, "config load failed")
		}

		loggerOpts := observability.ServerLoggerOptions{
			Level:     cfg.Logging.Level,
			Profile:   cfg.Logging.Profile,
			Namespace: namespace,
		}
		if verbose {
			loggerOpts.Level = "debug"
		}
		observability.InitServerLogger(identity.BinaryName, loggerOpts)
		log := observability.ServerLogger

		if cfg.Metrics.Enabled {
			if err := observability.InitMetrics(identity.BinaryName, cfg.Metrics.Port, namespace); err != nil {
				log.Error("Failed to initialize metrics", zap.Error(err))
				return errwrap.WrapInternal(ctx, err, "metrics initialization failed")
			}
		} else {
			observability.InitDisabledMetrics()
		}

		b, err := openBackend(ctx, cfg.Store)
		if err != nil {
			log.Error("Failed to open store", zap.String("backend", cfg.Store.Backend), zap.Error(err))
			return errwrap.WrapConfigInvalid(ctx, err, "store initialization failed")
		}

		seeded, err := seedBlacklist(ctx, b.blacklist, cfg.RateLimit)
		if err != nil {
			// Bad entries are skipped; the rest of the seed still applies.
			log.Warn("Blacklist seed had errors", zap.Int("added", seeded), zap.Error(err))
		} else if seeded > 0 {
			log.Info("Blacklist seeded", zap.Int("added", seeded))
		}

		g := buildGate(cfg, b, log)
		verifierEnabled := g.Verifier.Enabled()
		if !verifierEnabled {
			log.Warn("Bot-score verification disabled: no secret configured, running in degraded mode")
		}
		payments := buildPayments(cfg.Paystack)

		sweeper := limiter.NewSweeper(b.store, cfg.RateLimit.CleanupInterval, log)
		sweeper.OnSweep = metrics.RecordRateLimitSweep
		if err := sweeper.Start(); err != nil {
			_ = b.Close()
			return errwrap.WrapConfigInvalid(ctx, err, "sweeper initialization failed")
		}

		log.Info("Initializing server",
			zap.String("service", identity.BinaryName),
			zap.String("namespace", namespace),
			zap.String("version", versionInfo.Version),
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
			zap.String("store_backend", b.name),
			zap.Bool("verifier_enabled", verifierEnabled),
			zap.Bool("payments_enabled", payments != nil),
			zap.Bool("metrics_enabled", cfg.Metrics.Enabled))

		hm := handlers.NewHealthManager(versionInfo.Version)
		hm.RegisterChecker("store", handlers.StoreChecker(b))
		hm.RegisterChecker("bot_verifier", handlers.VerifierChecker(verifierEnabled))
		if cfg.Metrics.Enabled {
			hm.RegisterChecker("telemetry", telemetryHealthChecker{})
		}
		hm.RegisterChecker("app_identity", identityHealthChecker{
			binaryName: identity.BinaryName,
			envPrefix:  identity.EnvPrefix,
			configName: identity.ConfigName,
		})

		handlers.SetAppIdentity(identity)
		handlers.SetServiceInfo(handlers.ServiceInfo{
			StoreBackend:     b.name,
			VerifierEnabled:  verifierEnabled,
			PaymentsEnabled:  payments != nil,
			CallerConfigured: cfg.Vapi.PrivateKey != "",
		})

		srv := server.New(server.Options{
			Host:         cfg.Server.Host,
			Port:         cfg.Server.Port,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		}, server.Deps{
			Gate:     g,
			Payments: payments,
			Health:   hm,
		})

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout == 0 {
			shutdownTimeout = 10 * time.Second
		}

		// Shutdown handlers run last registered first.
		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Flushing logger...")
			if err := observability.ServerLogger.Sync(); err != nil {
				// Sync errors are often benign (stdout/stderr already closed)
				observability.ServerLogger.Warn("Logger sync returned error (may be benign)",
					zap.Error(err))
			}
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			if err := observability.ShutdownMetrics(); err != nil {
				observability.ServerLogger.Warn("Metrics exporter stop failed", zap.Error(err))
			}
			if err := b.Close(); err != nil {
				return errwrap.WrapInternal(ctx, err, "store close failed")
			}
			observability.ServerLogger.Info("Store closed", zap.String("backend", b.name))
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}
			sweeper.Stop(shutdownCtx)

			observability.ServerLogger.Info("HTTP server stopped gracefully")
			return nil
		})

		signals.OnReload(func(ctx context.Context) error {
			observability.ServerLogger.Info("Received SIGHUP: attempting config reload")
			return reloadConfig(ctx, cmd, identity.BinaryName, namespace)
		})

		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			log.Warn("Failed to enable double-tap force quit", zap.Error(err))
		}

		errChan := make(chan error, 1)
		go func() {
			if err := srv.Start(); err != nil {
				errChan <- err
			}
		}()

		go func() {
			if err := signals.Listen(ctx); err != nil {
				observability.ServerLogger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		if err := <-errChan; err != nil {
			sweeper.Stop(context.Background())
			_ = b.Close()
			return errwrap.WrapInternal(ctx, err, "server error")
		}
		return nil
	},
}

// serveOverrides turns explicitly set --host/--port flags into runtime
// overrides, the highest config layer.
func serveOverrides(cmd *cobra.Command) map[string]any {
	overrides := map[string]any{}
	listen := map[string]any{}
	if cmd.Flags().Changed("host") {
		listen["host"] = serverHost
	}
	if cmd.Flags().Changed("port") {
		listen["port"] = serverPort
	}
	if len(listen) > 0 {
		overrides["server"] = listen
	}
	return overrides
}

// reloadConfig re-reads the configuration and applies the logging section.
// Limits, thresholds and credentials are read once at startup.
func reloadConfig(ctx context.Context, cmd *cobra.Command, service, namespace string) error {
	cfg, err := loadConfig(ctx, serveOverrides(cmd))
	if err != nil {
		observability.ServerLogger.Error("Failed to reload config",
			zap.String("file", config.ConfigFileUsed()),
			zap.Error(err))
		return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
	}

	opts := observability.ServerLoggerOptions{
		Level:     cfg.Logging.Level,
		Profile:   cfg.Logging.Profile,
		Namespace: namespace,
	}
	if err := observability.ReloadServerLogger(service, opts); err != nil {
		observability.ServerLogger.Warn("Logger settings rejected, keeping current logger", zap.Error(err))
	}

	observability.ServerLogger.Info("Configuration reloaded",
		zap.String("file", config.ConfigFileUsed()),
		zap.String("log_level", cfg.Logging.Level),
		zap.String("log_profile", cfg.Logging.Profile))
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host (overrides server.host)")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port (overrides server.port)")
}
