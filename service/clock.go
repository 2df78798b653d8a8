package service

import (
	"time"
)

// Clock supplies the current time. Injected so cooldown and expiry logic is
// testable without sleeping.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
