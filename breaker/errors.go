package breaker

import (
	"errors"
	"fmt"
	"time"
)

// ErrOpen matches every rejection issued by a breaker via errors.Is.
var ErrOpen = errors.New("breaker: circuit open")

// OpenError is returned by Execute when the breaker refuses a call, either
// because it is Open or because a HalfOpen trial is already in flight.
type OpenError struct {
	Name    string
	State   State
	RetryIn time.Duration
}

func (e *OpenError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("breaker: circuit %s", e.State)
	}
	return fmt.Sprintf("breaker: circuit %q %s, retry in %s", e.Name, e.State, e.RetryIn.Round(time.Millisecond))
}

// Is reports ErrOpen as a match.
func (e *OpenError) Is(target error) bool {
	return target == ErrOpen
}

// RetryAfterHint tells retrying callers how long the breaker expects to stay
// Open.
func (e *OpenError) RetryAfterHint() time.Duration {
	return e.RetryIn
}
