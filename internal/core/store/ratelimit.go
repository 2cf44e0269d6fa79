package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/callgate/callgate/internal/core"
	"github.com/callgate/callgate/internal/core/limiter"
)

var _ limiter.Store = (*Store)(nil)

// Get returns the stored entry for key, or nil.
func (s *Store) Get(ctx context.Context, key string) (*core.RateLimitEntry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("key is required")
	}

	var (
		count        int
		resetAt      int64
		blockedUntil sql.NullInt64
	)

	row := s.DB.QueryRowContext(ctx, `
		SELECT count, reset_at, blocked_until
		FROM rate_limit_entries
		WHERE key = ?
	`, key)

	if err := row.Scan(&count, &resetAt, &blockedUntil); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch rate limit: %w", err)
	}

	return toEntry(count, resetAt, blockedUntil), nil
}

// Put persists the entry for key.
func (s *Store) Put(ctx context.Context, key string, entry *core.RateLimitEntry) error {
	if err := s.ready(); err != nil {
		return err
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("key is required")
	}
	if entry == nil {
		return errors.New("rate limit entry is required")
	}

	var blockedUntil sql.NullInt64
	if entry.BlockedUntil != nil {
		blockedUntil = sql.NullInt64{Int64: entry.BlockedUntil.UnixMilli(), Valid: true}
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO rate_limit_entries (key, count, reset_at, blocked_until)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			count = excluded.count,
			reset_at = excluded.reset_at,
			blocked_until = excluded.blocked_until
	`, key, entry.Count, entry.ResetAt.UnixMilli(), blockedUntil)
	if err != nil {
		return fmt.Errorf("store rate limit: %w", err)
	}

	return nil
}

// Delete removes the entry for key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM rate_limit_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete rate limit: %w", err)
	}
	return nil
}

// Sweep deletes entries whose window has passed and whose block, if any, has
// also passed.
func (s *Store) Sweep(ctx context.Context, now time.Time) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}

	ms := now.UnixMilli()
	result, err := s.DB.ExecContext(ctx, `
		DELETE FROM rate_limit_entries
		WHERE reset_at < ?
			AND (blocked_until IS NULL OR blocked_until < ?)
	`, ms, ms)
	if err != nil {
		return 0, fmt.Errorf("sweep rate limits: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweep rate limits: %w", err)
	}
	return int(affected), nil
}

// List returns entries whose key starts with prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]limiter.Record, error) {
	if prefix == "" {
		return s.ListRateLimits(ctx, limiter.Query{All: true})
	}
	return s.ListRateLimits(ctx, limiter.Query{Prefix: prefix})
}

func toEntry(count int, resetAt int64, blockedUntil sql.NullInt64) *core.RateLimitEntry {
	entry := &core.RateLimitEntry{
		Count:   count,
		ResetAt: time.UnixMilli(resetAt).UTC(),
	}
	if blockedUntil.Valid {
		value := time.UnixMilli(blockedUntil.Int64).UTC()
		entry.BlockedUntil = &value
	}
	return entry
}
