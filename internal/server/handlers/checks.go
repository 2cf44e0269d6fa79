package handlers

import (
	"context"
	"errors"
)

// Pinger is a store that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreChecker reports the rate-limit store unhealthy when it cannot be
// reached.
func StoreChecker(store Pinger) HealthChecker {
	return CheckerFunc(func(ctx context.Context) error {
		if store == nil {
			return errors.New("store not initialized")
		}
		return store.Ping(ctx)
	})
}

// VerifierChecker reports degraded protection when no bot-score verifier is
// configured.
func VerifierChecker(enabled bool) HealthChecker {
	return CheckerFunc(func(context.Context) error {
		if !enabled {
			return ErrDegraded
		}
		return nil
	})
}
