package limiter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper periodically removes dead entries from a Store on a cron schedule.
type Sweeper struct {
	Store    Store
	Interval time.Duration
	Clock    func() time.Time
	Logger   *logging.Logger
	// OnSweep, when set, receives the number of entries each run removed.
	OnSweep func(removed int)

	mu   sync.Mutex
	cron *cron.Cron
}

// NewSweeper creates a sweeper for store running every interval.
func NewSweeper(store Store, interval time.Duration, logger *logging.Logger) *Sweeper {
	return &Sweeper{Store: store, Interval: interval, Logger: logger}
}

// Start schedules the sweep. It is a no-op if already started.
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return nil
	}
	if s.Interval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %s", s.Interval)
	}

	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", s.Interval), func() {
		_, _ = s.SweepOnce(context.Background())
	}); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}
	c.Start()
	s.cron = c
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish or ctx to end.
func (s *Sweeper) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
}

// SweepOnce runs a single sweep now.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	removed, err := s.Store.Sweep(ctx, s.now())
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("Rate limit sweep failed", zap.Error(err))
		}
		return 0, err
	}
	if s.Logger != nil && removed > 0 {
		s.Logger.Debug("Rate limit sweep completed", zap.Int("removed", removed))
	}
	if s.OnSweep != nil {
		s.OnSweep(removed)
	}
	return removed, nil
}

func (s *Sweeper) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now().UTC()
}
