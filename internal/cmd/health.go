package cmd

import (
	"context"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	errwrap "github.com/callgate/callgate/internal/errors"
	"github.com/callgate/callgate/internal/observability"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long: `Run a self-health check: version info, configuration, and the configured
store backend. Missing provider secrets are reported as warnings.`,
	Run: func(cmd *cobra.Command, args []string) {
		log := observability.CLILogger
		if log == nil {
			ExitWithCodeStderr(foundry.ExitConfigInvalid, "Logger not initialized", errwrap.NewConfigInvalidError("Logger not initialized"))
			return
		}
		log.Info("Running health check...")

		if versionInfo.Version == "" {
			log.Error("❌ FAIL: Version information missing")
			ExitWithCode(log, foundry.ExitConfigInvalid, "Version information missing", errwrap.NewConfigInvalidError("Version information missing"))
			return
		}
		log.Debug("Version check passed", zap.String("version", versionInfo.Version))
		log.Info("✅ Version information available")

		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			log.Error("❌ FAIL: Configuration invalid", zap.Error(err))
			ExitWithCode(log, foundry.ExitConfigInvalid, "Configuration invalid", err)
			return
		}
		log.Info("✅ Configuration loaded")

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		b, err := openBackend(ctx, cfg.Store)
		if err != nil {
			log.Error("❌ FAIL: Store unavailable", zap.String("backend", cfg.Store.Backend), zap.Error(err))
			ExitWithCode(log, foundry.ExitExternalServiceUnavailable, "Store unavailable", err)
			return
		}
		defer b.Close() // nolint:errcheck // best-effort cleanup
		if err := b.Ping(ctx); err != nil {
			log.Error("❌ FAIL: Store ping failed", zap.String("backend", b.name), zap.Error(err))
			ExitWithCode(log, foundry.ExitExternalServiceUnavailable, "Store ping failed", err)
			return
		}
		log.Info("✅ Store reachable", zap.String("backend", b.name))

		if cfg.Vapi.PrivateKey == "" || cfg.Vapi.AssistantID == "" || cfg.Vapi.PhoneNumberID == "" {
			log.Warn("⚠️  Call provider not fully configured; call requests will fail with a configuration error")
		}
		if cfg.Recaptcha.SecretKey == "" {
			log.Warn("⚠️  Bot-score verification disabled; the gate will run in degraded mode")
		}
		if cfg.Paystack.SecretKey == "" {
			log.Warn("⚠️  Payment verification disabled")
		}

		log.Info("")
		log.Info("✅ All health checks passed")
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
