package core

import "time"

// RateLimitEntry captures the counter state for one rate-limit key.
type RateLimitEntry struct {
	Count        int        `json:"count"`
	ResetAt      time.Time  `json:"reset_at"`
	BlockedUntil *time.Time `json:"blocked_until,omitempty"`
}

// Expired reports whether the entry's window has passed.
func (e *RateLimitEntry) Expired(now time.Time) bool {
	return e == nil || now.After(e.ResetAt)
}

// Blocked reports whether the entry is under an active block.
func (e *RateLimitEntry) Blocked(now time.Time) bool {
	return e != nil && e.BlockedUntil != nil && e.BlockedUntil.After(now)
}

// Sweepable reports whether the entry can be physically removed: its window
// has passed and it carries no active block.
func (e *RateLimitEntry) Sweepable(now time.Time) bool {
	if e == nil {
		return true
	}
	if !e.ResetAt.Before(now) {
		return false
	}
	return e.BlockedUntil == nil || e.BlockedUntil.Before(now)
}

// BlacklistEntry is a phone number rejected before rate limiting.
type BlacklistEntry struct {
	Phone   string    `json:"phone"`
	Reason  string    `json:"reason,omitempty"`
	Source  string    `json:"source"`
	AddedAt time.Time `json:"added_at"`
}

// Blacklist sources.
const (
	BlacklistSourceAuto   = "auto"
	BlacklistSourceConfig = "config"
	BlacklistSourceManual = "manual"
)
