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

var _ limiter.Blacklist = (*Blacklist)(nil)

// Blacklist is the blacklist table of a Store.
type Blacklist struct {
	store *Store
}

// Blacklist returns the blacklist view of the store.
func (s *Store) Blacklist() *Blacklist {
	return &Blacklist{store: s}
}

// IsBlacklisted reports whether number is on the blacklist.
func (b *Blacklist) IsBlacklisted(ctx context.Context, number string) (bool, error) {
	s := b.store
	if err := s.ready(); err != nil {
		return false, err
	}

	var found int
	err := s.DB.QueryRowContext(ctx, `SELECT 1 FROM blacklist WHERE phone = ?`, number).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check blacklist: %w", err)
	}
	return true, nil
}

// Add inserts entry, keeping the original record if the number is present.
func (b *Blacklist) Add(ctx context.Context, entry core.BlacklistEntry) (bool, error) {
	s := b.store
	if err := s.ready(); err != nil {
		return false, err
	}

	number := strings.TrimSpace(entry.Phone)
	if number == "" {
		return false, errors.New("phone is required")
	}
	addedAt := entry.AddedAt
	if addedAt.IsZero() {
		addedAt = time.Now().UTC()
	}

	result, err := s.DB.ExecContext(ctx, `
		INSERT INTO blacklist (phone, reason, source, added_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(phone) DO NOTHING
	`, number, entry.Reason, entry.Source, addedAt.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("add blacklist entry: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add blacklist entry: %w", err)
	}
	return affected > 0, nil
}

// Remove deletes number from the blacklist.
func (b *Blacklist) Remove(ctx context.Context, number string) (bool, error) {
	s := b.store
	if err := s.ready(); err != nil {
		return false, err
	}

	result, err := s.DB.ExecContext(ctx, `DELETE FROM blacklist WHERE phone = ?`, number)
	if err != nil {
		return false, fmt.Errorf("remove blacklist entry: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove blacklist entry: %w", err)
	}
	return affected > 0, nil
}

// List returns every blacklisted number ordered by phone.
func (b *Blacklist) List(ctx context.Context) ([]core.BlacklistEntry, error) {
	s := b.store
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT phone, reason, source, added_at
		FROM blacklist
		ORDER BY phone
	`)
	if err != nil {
		return nil, fmt.Errorf("list blacklist: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	entries := []core.BlacklistEntry{}
	for rows.Next() {
		var (
			entry   core.BlacklistEntry
			reason  sql.NullString
			addedAt int64
		)
		if err := rows.Scan(&entry.Phone, &reason, &entry.Source, &addedAt); err != nil {
			return nil, fmt.Errorf("scan blacklist: %w", err)
		}
		entry.Reason = reason.String
		entry.AddedAt = time.UnixMilli(addedAt).UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list blacklist: %w", err)
	}
	return entries, nil
}
