package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultSweepInterval is used when SweeperConfig.Interval is not positive.
const DefaultSweepInterval = 5 * time.Minute

// Cleaner is anything that can drop its expired entries on demand.
type Cleaner interface {
	Cleanup() int
}

// Cleaners sweeps several targets as one.
type Cleaners []Cleaner

// Cleanup runs every cleaner in order and returns the total removed.
func (cs Cleaners) Cleanup() int {
	n := 0
	for _, c := range cs {
		n += c.Cleanup()
	}
	return n
}

// SweeperConfig holds the sweeper parameters.
type SweeperConfig struct {
	// Interval between two sweeps.
	Interval time.Duration

	// OnSweep, when set, is called after every sweep with the number of
	// removed entries.
	OnSweep func(removed int)
}

// Sweeper periodically calls Cleanup on a Cleaner so keys that are never read
// again still leave memory. It does nothing until Start is called and must be
// stopped by its owner.
type Sweeper struct {
	target Cleaner
	cfg    SweeperConfig

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	// newTicker is swapped in tests to drive sweeps without waiting.
	newTicker func(time.Duration) (<-chan time.Time, func())
}

// NewSweeper creates a stopped Sweeper for target.
func NewSweeper(target Cleaner, cfg SweeperConfig) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSweepInterval
	}
	return &Sweeper{
		target:    target,
		cfg:       cfg,
		newTicker: realTicker,
	}
}

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Start launches the background sweep loop. It returns immediately; calling
// Start on a running sweeper is a no-op. The loop ends when ctx is done or
// Stop is called.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	tick, stop := s.newTicker(s.cfg.Interval)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		defer stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick:
				s.Sweep()
			}
		}
	}(s.done)
}

// Stop ends the sweep loop and waits for it to exit. Stopping a sweeper that
// is not running is a no-op.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the sweep loop is active.
func (s *Sweeper) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Sweep runs one cleanup pass synchronously and returns the number of removed
// entries.
func (s *Sweeper) Sweep() int {
	n := s.target.Cleanup()
	if s.cfg.OnSweep != nil {
		s.cfg.OnSweep(n)
	}
	return n
}
