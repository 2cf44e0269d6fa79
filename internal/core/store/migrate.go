package store

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS rate_limit_entries (
		key TEXT PRIMARY KEY,
		count INTEGER NOT NULL DEFAULT 0,
		reset_at INTEGER NOT NULL,
		blocked_until INTEGER
	);`,
	`CREATE INDEX IF NOT EXISTS idx_rate_limit_entries_reset ON rate_limit_entries(reset_at);`,
	`CREATE TABLE IF NOT EXISTS blacklist (
		phone TEXT PRIMARY KEY,
		reason TEXT,
		source TEXT NOT NULL,
		added_at INTEGER NOT NULL
	);`,
}

// Migrate ensures the required database tables exist.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}

	for _, stmt := range schemaStatements {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store migration failed: %w", err)
		}
	}

	return nil
}
