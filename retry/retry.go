// Package retry re-invokes idempotent client calls with exponential back-off.
// Servers never retry on a caller's behalf.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Config controls the retry behaviour of [Do].
type Config struct {
	// MaxAttempts is the maximum number of times fn is called (including the
	// first attempt). Values ≤ 1 mean no retries.
	MaxAttempts int

	// BaseDelay is the delay before the first retry. Subsequent retries use
	// exponential back-off: BaseDelay * 2^attempt.
	BaseDelay time.Duration

	// MaxDelay caps the computed back-off delay and any server-provided hint.
	MaxDelay time.Duration

	// Jitter adds randomness to the delay. A value of 0.2 means ±20 % of
	// the computed delay. Zero disables jitter.
	Jitter float64

	// RetryCodes lists the gRPC status codes that are considered retryable.
	RetryCodes []codes.Code

	// Retryable classifies errors that carry no gRPC status, such as Discord
	// REST errors. When nil only RetryCodes are consulted.
	Retryable func(error) bool
}

// Hinter is implemented by errors that know how long the caller should wait
// before trying again, such as a Discord 429 or an open circuit.
type Hinter interface {
	RetryAfterHint() time.Duration
}

// Do calls fn up to cfg.MaxAttempts times, retrying only errors that are
// retryable under cfg. Between attempts an exponential back-off delay (with
// optional jitter) is applied; when the error carries a retry-after hint the
// longer of the two is used.
//
// The context is checked before every retry; if ctx is done the function
// returns immediately with the context error.
func Do[T any](ctx context.Context, cfg Config, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := max(cfg.MaxAttempts, 1)
	for i := 0; ; i++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if i == attempts-1 || !retryable(cfg, err) {
			return zero, err
		}

		timer := time.NewTimer(cfg.Delay(i, hintOf(err)))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
}

// Delay returns the wait before retry number attempt (0-indexed): BaseDelay
// doubled per attempt, spread by Jitter, raised to hint when the server asked
// for longer, and capped at MaxDelay.
func (c Config) Delay(attempt int, hint time.Duration) time.Duration {
	d := c.BaseDelay
	for range attempt {
		if c.MaxDelay > 0 && d >= c.MaxDelay {
			break
		}
		d *= 2
	}
	if c.MaxDelay > 0 {
		d = min(d, c.MaxDelay)
	}
	if c.Jitter > 0 && d > 0 {
		spread := float64(d) * c.Jitter
		d += time.Duration(spread * (2*rand.Float64() - 1))
	}
	d = max(d, hint, 0)
	if c.MaxDelay > 0 {
		d = min(d, c.MaxDelay)
	}
	return d
}

func retryable(cfg Config, err error) bool {
	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		return slices.Contains(cfg.RetryCodes, st.Code())
	}
	return cfg.Retryable != nil && cfg.Retryable(err)
}

// hintOf reads a retry-after hint from a Hinter or from a RetryInfo detail
// attached to a gRPC status.
func hintOf(err error) time.Duration {
	var h Hinter
	if errors.As(err, &h) {
		return h.RetryAfterHint()
	}
	if st, ok := status.FromError(err); ok {
		for _, d := range st.Details() {
			if ri, ok := d.(*errdetails.RetryInfo); ok && ri.GetRetryDelay() != nil {
				return ri.GetRetryDelay().AsDuration()
			}
		}
	}
	return 0
}
