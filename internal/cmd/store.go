package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/callgate/callgate/internal/config"
	"github.com/callgate/callgate/internal/core"
	"github.com/callgate/callgate/internal/core/limiter"
	"github.com/callgate/callgate/internal/core/store"
	"github.com/callgate/callgate/internal/core/store/redisstore"
)

// backend bundles the rate-limit store and blacklist selected by
// store.backend.
type backend struct {
	name      string
	store     limiter.Store
	blacklist limiter.Blacklist
	ping      func(ctx context.Context) error
	close     func() error
}

func (b *backend) Ping(ctx context.Context) error {
	if b.ping == nil {
		return nil
	}
	return b.ping(ctx)
}

func (b *backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

func (b *backend) persistent() bool {
	return b.name != config.BackendMemory
}

func openBackend(ctx context.Context, cfg config.StoreConfig) (*backend, error) {
	switch cfg.Backend {
	case config.BackendMemory, "":
		return &backend{
			name:      config.BackendMemory,
			store:     limiter.NewMemoryStore(),
			blacklist: limiter.NewMemoryBlacklist(),
		}, nil

	case config.BackendLibsql:
		db, err := store.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		return &backend{
			name:      config.BackendLibsql,
			store:     db,
			blacklist: db.Blacklist(),
			ping:      db.Ping,
			close:     db.Close,
		}, nil

	case config.BackendRedis:
		rs, err := redisstore.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return &backend{
			name:      config.BackendRedis,
			store:     rs,
			blacklist: rs.Blacklist(),
			ping:      rs.Ping,
			close:     rs.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

// openAdminBackend opens the configured backend for the management commands,
// which only make sense when state outlives the process.
func openAdminBackend(ctx context.Context) (*backend, *config.Config, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	b, err := openBackend(ctx, cfg.Store)
	if err != nil {
		return nil, nil, err
	}
	if !b.persistent() {
		_ = b.Close()
		return nil, nil, errors.New("store.backend is memory; state only lives inside a running server (use libsql or redis)")
	}
	return b, cfg, nil
}

// seedBlacklist adds the configured numbers and the seed file to bl.
func seedBlacklist(ctx context.Context, bl limiter.Blacklist, cfg config.RateLimitConfig) (int, error) {
	numbers := append([]string(nil), cfg.Blacklist...)
	fromFile, err := limiter.LoadSeedFile(cfg.BlacklistFile)
	if err != nil {
		return 0, err
	}
	numbers = append(numbers, fromFile...)
	if len(numbers) == 0 {
		return 0, nil
	}
	return limiter.Seed(ctx, bl, numbers, core.BlacklistSourceConfig, time.Now().UTC())
}
