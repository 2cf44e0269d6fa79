// Package limiter implements the two-key rate limiter with escalating
// temporary blocks, and the phone blacklist consulted before it.
package limiter

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/callgate/callgate/internal/core"
)

// Rejection reasons.
const (
	ReasonBlocked  = "Temporarily blocked due to excessive requests"
	ReasonExceeded = "Rate limit exceeded. Please try again later."
)

// Key prefixes.
const (
	PrefixIP    = "ip:"
	PrefixPhone = "phone:"
)

// IPKey returns the rate-limit key for a client address.
func IPKey(addr string) string { return PrefixIP + addr }

// PhoneKey returns the rate-limit key for a normalized phone number.
func PhoneKey(number string) string { return PrefixPhone + number }

// Policy holds the window and penalty lengths shared by every key.
type Policy struct {
	Window          time.Duration
	BlockDuration   time.Duration
	CleanupInterval time.Duration
}

// DefaultPolicy mirrors the configuration defaults.
var DefaultPolicy = Policy{
	Window:          15 * time.Minute,
	BlockDuration:   time.Hour,
	CleanupInterval: 30 * time.Minute,
}

// Decision is the verdict for one request against one key.
type Decision struct {
	Allowed bool
	// RetryAfter is in whole seconds, rounded up. Zero when allowed.
	RetryAfter int
	Reason     string
	// Count is the entry's count after this request was applied.
	Count int
}

// Outcome pairs a decision with the entry to store. Write is nil when the
// stored entry must stay as it is.
type Outcome struct {
	Decision Decision
	Write    *core.RateLimitEntry
}

// Evaluate computes the decision for one request given the stored entry. It
// never mutates prev.
func Evaluate(prev *core.RateLimitEntry, maxCalls int, policy Policy, now time.Time) Outcome {
	if prev.Blocked(now) {
		return Outcome{Decision: Decision{
			Allowed:    false,
			RetryAfter: ceilSeconds(prev.BlockedUntil.Sub(now)),
			Reason:     ReasonBlocked,
			Count:      prev.Count,
		}}
	}

	if prev == nil || prev.Expired(now) {
		return Outcome{
			Decision: Decision{Allowed: true, Count: 1},
			Write:    &core.RateLimitEntry{Count: 1, ResetAt: now.Add(policy.Window)},
		}
	}

	next := *prev
	next.Count++
	if next.Count <= maxCalls {
		return Outcome{Decision: Decision{Allowed: true, Count: next.Count}, Write: &next}
	}

	if next.Count > maxCalls*2 {
		until := now.Add(policy.BlockDuration)
		next.BlockedUntil = &until
	}

	return Outcome{
		Decision: Decision{
			Allowed:    false,
			RetryAfter: ceilSeconds(next.ResetAt.Sub(now)),
			Reason:     ReasonExceeded,
			Count:      next.Count,
		},
		Write: &next,
	}
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

// Record is a stored entry with its key.
type Record struct {
	Key   string
	Entry core.RateLimitEntry
}

// Store persists rate-limit entries.
type Store interface {
	Get(ctx context.Context, key string) (*core.RateLimitEntry, error)
	Put(ctx context.Context, key string, entry *core.RateLimitEntry) error
	Delete(ctx context.Context, key string) error
	// Sweep removes entries whose window and block have both passed.
	Sweep(ctx context.Context, now time.Time) (int, error)
	// List returns entries whose key starts with prefix, ordered by key.
	List(ctx context.Context, prefix string) ([]Record, error)
}

// Limiter applies Evaluate against a Store. Check calls are serialized so the
// read-evaluate-write sequence is atomic within one process.
type Limiter struct {
	Store  Store
	Policy Policy
	Clock  func() time.Time

	mu sync.Mutex
}

// New creates a limiter over store.
func New(store Store, policy Policy) *Limiter {
	return &Limiter{Store: store, Policy: policy}
}

// Check counts one request for id and reports whether it may proceed.
func (l *Limiter) Check(ctx context.Context, id string, maxCalls int) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	prev, err := l.Store.Get(ctx, id)
	if err != nil {
		return Decision{}, err
	}

	outcome := Evaluate(prev, maxCalls, l.Policy, now)
	if outcome.Write != nil {
		if err := l.Store.Put(ctx, id, outcome.Write); err != nil {
			return Decision{}, err
		}
	}
	return outcome.Decision, nil
}

// Info summarizes a key's state without counting a request.
type Info struct {
	Key       string
	Count     int
	Remaining int
	// ResetIn is in seconds, rounded up.
	ResetIn      int
	BlockedFor   int
	ResetAt      time.Time
	BlockedUntil *time.Time
}

// Info returns the key's remaining allowance, or nil if it has no live entry.
func (l *Limiter) Info(ctx context.Context, id string, maxCalls int) (*Info, error) {
	entry, err := l.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := l.now()
	if entry == nil || (entry.Expired(now) && !entry.Blocked(now)) {
		return nil, nil
	}
	return Describe(id, *entry, maxCalls, now), nil
}

// Describe builds Info for a stored entry.
func Describe(key string, entry core.RateLimitEntry, maxCalls int, now time.Time) *Info {
	info := &Info{
		Key:          key,
		Count:        entry.Count,
		Remaining:    max(0, maxCalls-entry.Count),
		ResetIn:      ceilSeconds(entry.ResetAt.Sub(now)),
		ResetAt:      entry.ResetAt,
		BlockedUntil: entry.BlockedUntil,
	}
	if entry.Blocked(now) {
		info.BlockedFor = ceilSeconds(entry.BlockedUntil.Sub(now))
	}
	return info
}

// MaxCallsFor picks the limit that applies to a key from its prefix.
func MaxCallsFor(key string, perIP, perPhone int) int {
	if strings.HasPrefix(key, PrefixPhone) {
		return perPhone
	}
	return perIP
}

func (l *Limiter) now() time.Time {
	if l != nil && l.Clock != nil {
		return l.Clock()
	}
	return time.Now().UTC()
}
