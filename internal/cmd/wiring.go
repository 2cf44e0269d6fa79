package cmd

import (
	"github.com/fulmenhq/gofulmen/logging"

	"github.com/callgate/callgate/internal/config"
	"github.com/callgate/callgate/internal/core/gate"
	"github.com/callgate/callgate/internal/core/limiter"
	"github.com/callgate/callgate/internal/provider/paystack"
	"github.com/callgate/callgate/internal/provider/recaptcha"
	"github.com/callgate/callgate/internal/provider/vapi"
	"github.com/callgate/callgate/internal/server/handlers"
)

func limiterPolicy(cfg config.RateLimitConfig) limiter.Policy {
	return limiter.Policy{
		Window:          cfg.Window,
		BlockDuration:   cfg.BlockDuration,
		CleanupInterval: cfg.CleanupInterval,
	}
}

func gateConfig(cfg *config.Config) gate.Config {
	return gate.Config{
		MinScore:           cfg.Gate.MinScore,
		NeutralScore:       cfg.Gate.NeutralScore,
		MinFillTime:        cfg.Gate.MinFillTime,
		RequireToken:       cfg.Gate.RequireToken,
		FailClosed:         cfg.Gate.FailClosed,
		MaxCallsPerIP:      cfg.RateLimit.MaxCallsPerIP,
		MaxCallsPerPhone:   cfg.RateLimit.MaxCallsPerPhone,
		BlacklistThreshold: cfg.RateLimit.BlacklistThreshold,
		AssistantID:        cfg.Vapi.AssistantID,
		PhoneNumberID:      cfg.Vapi.PhoneNumberID,
		MaxCallDuration:    cfg.Call.MaxDuration,
	}
}

// buildGate assembles the pipeline over b. The verifier and caller are always
// present; without secrets they report themselves disabled or unconfigured.
func buildGate(cfg *config.Config, b *backend, logger *logging.Logger) *gate.Gate {
	verifier := recaptcha.NewClient(cfg.Recaptcha.VerifyURL, cfg.Recaptcha.SecretKey)
	verifier.Timeout = cfg.Recaptcha.Timeout

	caller := vapi.NewClient(cfg.Vapi.BaseURL, cfg.Vapi.PrivateKey)
	caller.Timeout = cfg.Vapi.Timeout

	return &gate.Gate{
		Config:    gateConfig(cfg),
		Verifier:  verifier,
		Limiter:   limiter.New(b.store, limiterPolicy(cfg.RateLimit)),
		Blacklist: b.blacklist,
		Caller:    caller,
		Logger:    logger,
	}
}

// buildPayments returns nil when no Paystack secret is configured, which the
// handler answers with a configuration error.
func buildPayments(cfg config.PaystackConfig) handlers.PaymentVerifier {
	if cfg.SecretKey == "" {
		return nil
	}
	client := paystack.NewClient(cfg.BaseURL, cfg.SecretKey)
	client.Timeout = cfg.Timeout
	return client
}
