// Package breaker provides a minimal, thread-safe circuit breaker that guards
// calls to an unreliable dependency.
//
// States:
//   - Closed: calls flow normally; consecutive failures are counted.
//   - Open: calls fail fast; once ResetTimeout has passed since the last
//     failure the next call moves the breaker to HalfOpen.
//   - HalfOpen: exactly one trial call is let through. Success closes the
//     breaker, failure reopens it.
package breaker

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// State represents the current circuit breaker state.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const (
	DefaultFailureThreshold = 5
	DefaultResetTimeout     = 30 * time.Second
)

// Config holds the circuit breaker parameters. It is copied by New and never
// changes afterwards.
type Config struct {
	// Name identifies the protected dependency in errors and stats.
	Name string

	// FailureThreshold is the number of consecutive failures in Closed state
	// before the breaker trips to Open.
	FailureThreshold int

	// ResetTimeout is how long after the last failure the breaker stays Open
	// before a trial call is allowed.
	ResetTimeout time.Duration

	// IsFailure classifies an operation error. Errors for which it returns
	// false are handed back to the caller but recorded as successes. When nil
	// every non-nil error is a failure.
	IsFailure func(error) bool

	// OnStateChange, when set, is called after every transition. It runs
	// outside the breaker's lock.
	OnStateChange func(name string, from, to State)
}

// Stats is a point-in-time view of the breaker for health endpoints.
type Stats struct {
	Name          string
	State         State
	Failures      int
	Successes     uint64
	LastFailureAt time.Time
}

// Breaker is a minimal circuit breaker. All methods are safe for concurrent use.
type Breaker struct {
	mu sync.Mutex

	cfg Config

	state         State
	failures      int    // consecutive failures
	successes     uint64 // lifetime successes
	lastFailureAt time.Time
	probing       bool             // a HalfOpen trial is in flight
	nowFunc       func() time.Time // for testing; defaults to time.Now
}

// New creates a Breaker with the given configuration. Non-positive values
// fall back to DefaultFailureThreshold and DefaultResetTimeout.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = DefaultResetTimeout
	}
	return &Breaker{
		cfg:     cfg,
		state:   Closed,
		nowFunc: time.Now,
	}
}

// Name returns the configured name.
func (b *Breaker) Name() string {
	return b.cfg.Name
}

// Config returns a copy of the breaker configuration.
func (b *Breaker) Config() Config {
	return b.cfg
}

// State returns the current state of the breaker. It does not move an Open
// breaker to HalfOpen; that only happens when a call is attempted.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats returns a snapshot of the breaker counters.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Name:          b.cfg.Name,
		State:         b.state,
		Failures:      b.failures,
		Successes:     b.successes,
		LastFailureAt: b.lastFailureAt,
	}
}

// Execute runs op under the breaker. When the breaker rejects the call and
// fallback is non-nil, fallback's result is returned and op is not invoked;
// without a fallback the rejection is an *OpenError. Errors returned by op
// are passed through unchanged.
func (b *Breaker) Execute(ctx context.Context, op func(context.Context) error, fallback func(context.Context) error) error {
	trial, err := b.acquire()
	if err != nil {
		if fallback != nil {
			return fallback(ctx)
		}
		return err
	}

	done := false
	defer func() {
		if !done {
			// op panicked; count it so a HalfOpen trial slot is released.
			b.record(trial, true)
		}
	}()

	err = op(ctx)
	done = true
	b.record(trial, err != nil && b.isFailure(err))
	return err
}

// Do is the value-returning form of Execute.
func Do[T any](ctx context.Context, b *Breaker, op func(context.Context) (T, error), fallback func(context.Context) (T, error)) (T, error) {
	var out T
	var fb func(context.Context) error
	if fallback != nil {
		fb = func(ctx context.Context) error {
			v, err := fallback(ctx)
			out = v
			return err
		}
	}
	err := b.Execute(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		out = v
		return err
	}, fb)
	return out, err
}

// acquire decides whether a call may proceed. trial reports that the caller
// holds the single HalfOpen slot.
func (b *Breaker) acquire() (trial bool, err error) {
	b.mu.Lock()
	from := b.state
	b.checkResetTimeout()
	to := b.state

	switch b.state {
	case Closed:
	case HalfOpen:
		if b.probing {
			err = b.openError()
		} else {
			b.probing = true
			trial = true
		}
	default: // Open
		err = b.openError()
	}
	b.mu.Unlock()

	b.notify(from, to)
	return trial, err
}

// record applies the outcome of a call that acquire let through.
func (b *Breaker) record(trial, failed bool) {
	b.mu.Lock()
	from := b.state

	if failed {
		b.failures++
		b.lastFailureAt = b.now()
		switch {
		case trial:
			b.toOpen()
		case b.state == Closed && b.failures >= b.cfg.FailureThreshold:
			b.toOpen()
		}
	} else {
		b.successes++
		switch {
		case trial:
			b.state = Closed
			b.failures = 0
			b.probing = false
		case b.state == Closed:
			b.failures = 0
		}
	}

	to := b.state
	b.mu.Unlock()

	b.notify(from, to)
}

// checkResetTimeout transitions from Open to HalfOpen once ResetTimeout has
// elapsed since the last failure. Must be called with b.mu held.
func (b *Breaker) checkResetTimeout() {
	if b.state == Open && b.now().Sub(b.lastFailureAt) > b.cfg.ResetTimeout {
		b.state = HalfOpen
		b.probing = false
	}
}

func (b *Breaker) toOpen() {
	b.state = Open
	b.probing = false
}

// openError must be called with b.mu held.
func (b *Breaker) openError() *OpenError {
	retryIn := b.cfg.ResetTimeout - b.now().Sub(b.lastFailureAt)
	if retryIn < 0 {
		retryIn = 0
	}
	return &OpenError{Name: b.cfg.Name, State: b.state, RetryIn: retryIn}
}

func (b *Breaker) isFailure(err error) bool {
	if b.cfg.IsFailure == nil {
		return true
	}
	return b.cfg.IsFailure(err)
}

func (b *Breaker) notify(from, to State) {
	if from != to && b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.cfg.Name, from, to)
	}
}

func (b *Breaker) now() time.Time {
	if b.nowFunc != nil {
		return b.nowFunc()
	}
	return time.Now()
}
