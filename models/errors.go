package models

import (
	"errors"
	"fmt"
	"time"
)

// Engine failure kinds. The bot layer discriminates on these with
// errors.Is/errors.As and turns them into user-facing replies; none of
// them are fatal.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnknownItem       = errors.New("unknown item")
	ErrAlreadyOwned      = errors.New("item already owned")
	ErrSessionConflict   = errors.New("a session is already running here")
	ErrNoActiveSession   = errors.New("no active session")
	ErrIllegalAction     = errors.New("illegal action")
	ErrCooldownActive    = errors.New("cooldown active")
)

// CooldownError reports how long until a cooldown-gated operation can be
// retried. Matches ErrCooldownActive under errors.Is.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("cooldown active for another %s", e.Remaining.Round(time.Second))
}

// Is reports whether target is ErrCooldownActive.
func (e *CooldownError) Is(target error) bool {
	return target == ErrCooldownActive
}

// NewCooldownError builds a CooldownError, flooring negative remainders to zero.
func NewCooldownError(remaining time.Duration) *CooldownError {
	if remaining < 0 {
		remaining = 0
	}
	return &CooldownError{Remaining: remaining}
}
