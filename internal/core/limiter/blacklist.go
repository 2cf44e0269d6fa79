package limiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/callgate/callgate/internal/core"
	"github.com/callgate/callgate/internal/core/phone"
)

// Blacklist holds phone numbers rejected before rate limiting.
type Blacklist interface {
	IsBlacklisted(ctx context.Context, number string) (bool, error)
	// Add stores entry and reports whether the number was new.
	Add(ctx context.Context, entry core.BlacklistEntry) (bool, error)
	// Remove deletes number and reports whether it was present.
	Remove(ctx context.Context, number string) (bool, error)
	List(ctx context.Context) ([]core.BlacklistEntry, error)
}

// Seed adds configured numbers to bl. Numbers are cleaned the same way the
// validator cleans submissions; entries that are not E.164 are reported in
// the returned error and skipped.
func Seed(ctx context.Context, bl Blacklist, numbers []string, source string, now time.Time) (int, error) {
	added := 0
	var errs []error
	for _, raw := range numbers {
		number := phone.Clean(raw)
		if !phone.IsE164Format(number) {
			errs = append(errs, fmt.Errorf("blacklist seed %q: %w", raw, phone.ErrFormat))
			continue
		}
		ok, err := bl.Add(ctx, core.BlacklistEntry{
			Phone:   number,
			Reason:  "seeded from configuration",
			Source:  source,
			AddedAt: now,
		})
		if err != nil {
			return added, err
		}
		if ok {
			added++
		}
	}
	return added, errors.Join(errs...)
}
