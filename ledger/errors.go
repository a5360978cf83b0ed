package ledger

import (
	"errors"
	"fmt"
	"time"
)

// Sentinels matched by the typed errors below via errors.Is.
var (
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
	ErrCooldown          = errors.New("ledger: cooldown")
	ErrInvalidEntry      = errors.New("ledger: invalid entry")
	ErrInvalidConfig     = errors.New("ledger: invalid config")
)

// InsufficientFundsError rejects a transaction that would leave an account
// with a negative balance. Nothing is applied when it is returned.
type InsufficientFundsError struct {
	UserID   string
	Currency Currency
	Balance  int64
	Required int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("ledger: insufficient %s for user %s: balance %d, required %d",
		e.Currency, e.UserID, e.Balance, e.Required)
}

func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// CooldownError rejects a reward claim made before its window elapsed.
type CooldownError struct {
	Kind      ClaimKind
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("ledger: %s already claimed, next in %s", e.Kind, e.Remaining.Round(time.Second))
}

func (e *CooldownError) Is(target error) bool {
	return target == ErrCooldown
}

// RemainingMs is the wait time in milliseconds.
func (e *CooldownError) RemainingMs() int64 {
	return e.Remaining.Milliseconds()
}

// RetryAfterHint lets retrying callers wait out the cooldown.
func (e *CooldownError) RetryAfterHint() time.Duration {
	return e.Remaining
}

// InvalidEntryError rejects malformed input before any balance is looked at.
// Index is the offending entry position, or -1 when the request as a whole
// is malformed.
type InvalidEntryError struct {
	Index  int
	Reason string
}

func (e *InvalidEntryError) Error() string {
	if e.Index < 0 {
		return "ledger: invalid entry: " + e.Reason
	}
	return fmt.Sprintf("ledger: invalid entry %d: %s", e.Index, e.Reason)
}

func (e *InvalidEntryError) Is(target error) bool {
	return target == ErrInvalidEntry
}

func invalid(index int, reason string) error {
	return &InvalidEntryError{Index: index, Reason: reason}
}

// DriftError reports that a guild's running total no longer matches the sum
// of its balances.
type DriftError struct {
	GuildID string
	Running int64
	Actual  int64
}

func (e *DriftError) Error() string {
	return fmt.Sprintf("ledger: guild %s total drifted: running %d, actual %d", e.GuildID, e.Running, e.Actual)
}
