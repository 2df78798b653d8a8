package models

import (
	"time"
)

// GiveawayState represents where a giveaway is in its lifecycle.
type GiveawayState string

const (
	GiveawayStateOpen      GiveawayState = "open"
	GiveawayStateEnded     GiveawayState = "ended"
	GiveawayStateCancelled GiveawayState = "cancelled"
)

// MaxGiveawayWinners caps the winner count of a single giveaway.
const MaxGiveawayWinners = 20

// Giveaway is a timed prize draw keyed by its announcement message. It
// stays persisted after ending so winners can be rerolled from the same
// entrant set.
type Giveaway struct {
	GuildID     int64         `json:"guild_id"`
	ChannelID   int64         `json:"channel_id"`
	MessageID   int64         `json:"message_id"`
	HostID      int64         `json:"host_id"`
	Prize       string        `json:"prize"`
	WinnerCount int           `json:"winner_count"`
	EndsAt      time.Time     `json:"ends_at"`
	State       GiveawayState `json:"state"`
	// Entrants keeps join order; Enter enforces set semantics.
	Entrants  []int64   `json:"entrants,omitempty"`
	Winners   []int64   `json:"winners,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewGiveaway opens a giveaway ending at endsAt.
func NewGiveaway(guildID, channelID, messageID, hostID int64, prize string, winnerCount int, endsAt, now time.Time) (*Giveaway, error) {
	if prize == "" || winnerCount < 1 || winnerCount > MaxGiveawayWinners || !endsAt.After(now) {
		return nil, ErrIllegalAction
	}
	return &Giveaway{
		GuildID:     guildID,
		ChannelID:   channelID,
		MessageID:   messageID,
		HostID:      hostID,
		Prize:       prize,
		WinnerCount: winnerCount,
		EndsAt:      endsAt,
		State:       GiveawayStateOpen,
		CreatedAt:   now,
	}, nil
}

// IsOpen reports whether the giveaway still accepts entries.
func (g *Giveaway) IsOpen() bool {
	return g.State == GiveawayStateOpen
}

// Enter records userID once. Re-entry is a no-op reported via the added
// flag. Entering a giveaway that is no longer open fails.
func (g *Giveaway) Enter(userID int64) (bool, error) {
	if !g.IsOpen() {
		return false, ErrNoActiveSession
	}
	for _, id := range g.Entrants {
		if id == userID {
			return false, nil
		}
	}
	g.Entrants = append(g.Entrants, userID)
	return true, nil
}

// Withdraw removes userID's entry. Reports whether one was removed.
func (g *Giveaway) Withdraw(userID int64) bool {
	if !g.IsOpen() {
		return false
	}
	for i, id := range g.Entrants {
		if id == userID {
			g.Entrants = append(g.Entrants[:i], g.Entrants[i+1:]...)
			return true
		}
	}
	return false
}

// End closes entry and draws winners: min(WinnerCount, entrants) of them,
// uniformly without replacement via sample, which must return k distinct
// indices in [0, n). Zero entrants end with zero winners, not an error.
func (g *Giveaway) End(sample func(n, k int) []int) error {
	if !g.IsOpen() {
		return ErrNoActiveSession
	}
	g.State = GiveawayStateEnded
	g.Winners = g.draw(sample)
	return nil
}

// Reroll draws a fresh winner set from the same entrants. Only an ended
// giveaway can be rerolled.
func (g *Giveaway) Reroll(sample func(n, k int) []int) error {
	if g.State != GiveawayStateEnded {
		return ErrIllegalAction
	}
	g.Winners = g.draw(sample)
	return nil
}

// Cancel closes an open giveaway without drawing winners.
func (g *Giveaway) Cancel() error {
	if !g.IsOpen() {
		return ErrNoActiveSession
	}
	g.State = GiveawayStateCancelled
	return nil
}

func (g *Giveaway) draw(sample func(n, k int) []int) []int64 {
	k := g.WinnerCount
	if k > len(g.Entrants) {
		k = len(g.Entrants)
	}
	if k == 0 {
		return nil
	}
	winners := make([]int64, 0, k)
	for _, idx := range sample(len(g.Entrants), k) {
		winners = append(winners, g.Entrants[idx])
	}
	return winners
}
