package models

import (
	"time"
)

// GambleOutcome tags how a gamble landed.
type GambleOutcome string

const (
	GambleWin  GambleOutcome = "win"
	GambleLose GambleOutcome = "lose"
	GamblePush GambleOutcome = "push"
)

// DailyResult is returned by a successful daily claim.
type DailyResult struct {
	Amount     int64
	NewBalance int64
	NextClaim  time.Time
}

// WorkResult is returned by a successful work claim.
type WorkResult struct {
	Job        string
	Amount     int64
	NewBalance int64
	NextClaim  time.Time
}

// GambleResult is returned by a resolved gamble.
type GambleResult struct {
	Roll       int
	Outcome    GambleOutcome
	Delta      int64
	NewBalance int64
	// Lucky is purely flavor for the reply; it never changes the odds.
	Lucky bool
}

// TransferResult reports both sides of a completed transfer.
type TransferResult struct {
	FromBalance int64
	ToBalance   int64
}

// PurchaseResult is returned by a completed shop purchase.
type PurchaseResult struct {
	Item       Item
	NewBalance int64
	// Payout is the instant winnings of a consumable item, zero otherwise.
	Payout int64
	// ActiveUntil is the granted window of a timed item, nil otherwise.
	ActiveUntil *time.Time
}
