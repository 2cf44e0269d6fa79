package limiter

import (
	"context"
	"errors"
	"strings"
)

// Query selects rate-limit entries for administration.
type Query struct {
	All    bool
	Key    string
	Prefix string
}

func (q Query) Validate() error {
	if q.All {
		return nil
	}
	if strings.TrimSpace(q.Key) != "" {
		return nil
	}
	if strings.TrimSpace(q.Prefix) != "" {
		return nil
	}
	return errors.New("must specify --all, --key, or --prefix")
}

// Match reports whether key is selected by q.
func (q Query) Match(key string) bool {
	if q.All {
		return true
	}
	if k := strings.TrimSpace(q.Key); k != "" {
		return key == k
	}
	prefix := strings.TrimSpace(q.Prefix)
	return prefix != "" && strings.HasPrefix(key, prefix)
}

// Resetter is implemented by stores that can delete matched entries in bulk.
type Resetter interface {
	ResetRateLimits(ctx context.Context, q Query) (int64, error)
}

// Find lists the entries of store matched by q.
func Find(ctx context.Context, store Store, q Query) ([]Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	prefix := ""
	if !q.All {
		prefix = strings.TrimSpace(q.Prefix)
		if k := strings.TrimSpace(q.Key); k != "" {
			prefix = k
		}
	}
	records, err := store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	out := make([]Record, 0, len(records))
	for _, record := range records {
		if q.Match(record.Key) {
			out = append(out, record)
		}
	}
	return out, nil
}

// Reset deletes the entries of store matched by q and returns how many were
// removed.
func Reset(ctx context.Context, store Store, q Query) (int64, error) {
	if resetter, ok := store.(Resetter); ok {
		return resetter.ResetRateLimits(ctx, q)
	}

	records, err := Find(ctx, store, q)
	if err != nil {
		return 0, err
	}
	for _, record := range records {
		if err := store.Delete(ctx, record.Key); err != nil {
			return 0, err
		}
	}
	return int64(len(records)), nil
}
