package models

import (
	"time"
)

// StartBalance is granted to every account on first economic interaction.
const StartBalance = 100

// Account is the per-guild, per-user economy record.
type Account struct {
	GuildID    int64      `json:"guild_id"`
	UserID     int64      `json:"user_id"`
	Balance    int64      `json:"balance"`
	LastDaily  *time.Time `json:"last_daily,omitempty"`
	LastWork   *time.Time `json:"last_work,omitempty"`
	LuckyUntil *time.Time `json:"lucky_until,omitempty"`
	Inventory  []string   `json:"inventory,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// NewAccount creates a fresh account with the starting balance.
func NewAccount(guildID, userID int64, now time.Time) *Account {
	return &Account{
		GuildID:   guildID,
		UserID:    userID,
		Balance:   StartBalance,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Credit adds amount to the balance. Amount must be positive.
func (a *Account) Credit(amount int64) error {
	if amount <= 0 {
		return ErrIllegalAction
	}
	a.Balance += amount
	return nil
}

// Debit subtracts amount from the balance. Fails with ErrInsufficientFunds
// if the balance would go negative; the account is left unchanged.
func (a *Account) Debit(amount int64) error {
	if amount <= 0 {
		return ErrIllegalAction
	}
	if a.Balance < amount {
		return ErrInsufficientFunds
	}
	a.Balance -= amount
	return nil
}

// Owns reports whether itemID is in the inventory.
func (a *Account) Owns(itemID string) bool {
	for _, id := range a.Inventory {
		if id == itemID {
			return true
		}
	}
	return false
}

// AddItem appends itemID to the inventory.
func (a *Account) AddItem(itemID string) {
	a.Inventory = append(a.Inventory, itemID)
}

// LuckyActive reports whether a lucky window covers now.
func (a *Account) LuckyActive(now time.Time) bool {
	return a.LuckyUntil != nil && now.Before(*a.LuckyUntil)
}

// DailyRemaining returns how long until the next daily claim, zero if ready.
func (a *Account) DailyRemaining(now time.Time, cooldown time.Duration) time.Duration {
	return cooldownRemaining(a.LastDaily, now, cooldown)
}

// WorkRemaining returns how long until the next work claim, zero if ready.
func (a *Account) WorkRemaining(now time.Time, cooldown time.Duration) time.Duration {
	return cooldownRemaining(a.LastWork, now, cooldown)
}

func cooldownRemaining(last *time.Time, now time.Time, cooldown time.Duration) time.Duration {
	if last == nil {
		return 0
	}
	remaining := cooldown - now.Sub(*last)
	if remaining < 0 {
		return 0
	}
	return remaining
}
