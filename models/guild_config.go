package models

import (
	"time"
)

// FailPolicy selects what happens when a counting message breaks the chain.
type FailPolicy string

const (
	// FailPolicyResetMessage resets the count and asks the facade to
	// announce the break.
	FailPolicyResetMessage FailPolicy = "reset-message"
	// FailPolicyRestart resets the count silently.
	FailPolicyRestart FailPolicy = "restart"
	// FailPolicyContinue ignores the break; the count is unchanged and the
	// next expected number stays the same.
	FailPolicyContinue FailPolicy = "continue"
)

// Valid reports whether p is a known fail policy.
func (p FailPolicy) Valid() bool {
	switch p {
	case FailPolicyResetMessage, FailPolicyRestart, FailPolicyContinue:
		return true
	}
	return false
}

// ChannelKind names a configurable channel binding.
type ChannelKind string

const (
	ChannelEconomy ChannelKind = "economy"
	ChannelGames   ChannelKind = "games"
	ChannelMusic   ChannelKind = "music"
)

// Valid reports whether k is a bindable channel kind.
func (k ChannelKind) Valid() bool {
	switch k {
	case ChannelEconomy, ChannelGames, ChannelMusic:
		return true
	}
	return false
}

// ChannelBindings holds the per-guild channel designations. Zero means unbound.
type ChannelBindings struct {
	Economy  int64 `json:"economy,omitempty"`
	Games    int64 `json:"games,omitempty"`
	Music    int64 `json:"music,omitempty"`
	Counting int64 `json:"counting,omitempty"`
}

// Counting is the per-guild counting chain state and policy.
type Counting struct {
	Count      int64      `json:"count"`
	LastUserID int64      `json:"last_user_id,omitempty"`
	Strict     bool       `json:"strict"`
	Policy     FailPolicy `json:"policy"`
	HighScore  int64      `json:"high_score,omitempty"`
}

// GuildConfig is the per-guild administrative record. All mutations go
// through admin-gated operations and are applied under the guild's store key.
type GuildConfig struct {
	GuildID  int64           `json:"guild_id"`
	Channels ChannelBindings `json:"channels"`
	Counting Counting        `json:"counting"`

	// SelfRoles maps message id -> emoji -> role id.
	SelfRoles map[int64]map[string]int64 `json:"self_roles,omitempty"`

	// Mutes maps user id -> expiry of a temporary mute.
	Mutes map[int64]time.Time `json:"mutes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewGuildConfig creates a guild config with default counting policy.
func NewGuildConfig(guildID int64, now time.Time) *GuildConfig {
	return &GuildConfig{
		GuildID: guildID,
		Counting: Counting{
			Strict: true,
			Policy: FailPolicyResetMessage,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// countMilestones are counts worth celebrating.
var countMilestones = map[int64]bool{
	10: true, 25: true, 50: true, 69: true, 100: true,
	250: true, 500: true, 1000: true,
}

// CountOutcome describes how a counting message was handled.
type CountOutcome struct {
	// Accepted is true when the message advanced the chain.
	Accepted bool
	// Count is the chain value after handling.
	Count int64
	// Reset is true when a fail policy reset the chain.
	Reset bool
	// Announce is true when the facade should call out the break.
	Announce bool
	// Milestone is true when the new count is a celebrated value.
	Milestone bool
	// NewHighScore is true when the accepted count set a record.
	NewHighScore bool
}

// AdvanceCount runs one counting message against the chain. The next
// accepted number is always Count+1; in strict mode the author must differ
// from the last counter. A failed check applies the configured policy.
func (g *GuildConfig) AdvanceCount(userID, number int64) CountOutcome {
	c := &g.Counting
	expected := c.Count + 1
	if number == expected && (!c.Strict || userID != c.LastUserID) {
		c.Count = expected
		c.LastUserID = userID
		out := CountOutcome{
			Accepted:  true,
			Count:     c.Count,
			Milestone: countMilestones[c.Count],
		}
		if c.Count > c.HighScore {
			c.HighScore = c.Count
			out.NewHighScore = true
		}
		return out
	}

	switch c.Policy {
	case FailPolicyContinue:
		return CountOutcome{Count: c.Count}
	case FailPolicyRestart:
		c.Count = 0
		c.LastUserID = 0
		return CountOutcome{Count: 0, Reset: true}
	default: // reset-message
		c.Count = 0
		c.LastUserID = 0
		return CountOutcome{Count: 0, Reset: true, Announce: true}
	}
}

// BindCountingChannel points the counting game at a channel and restarts
// the chain.
func (g *GuildConfig) BindCountingChannel(channelID int64) {
	g.Channels.Counting = channelID
	g.Counting.Count = 0
	g.Counting.LastUserID = 0
}

// BindSelfRole registers emoji on message to grant role.
func (g *GuildConfig) BindSelfRole(messageID int64, emoji string, roleID int64) error {
	if messageID == 0 || emoji == "" || roleID == 0 {
		return ErrIllegalAction
	}
	if g.SelfRoles == nil {
		g.SelfRoles = make(map[int64]map[string]int64)
	}
	if g.SelfRoles[messageID] == nil {
		g.SelfRoles[messageID] = make(map[string]int64)
	}
	g.SelfRoles[messageID][emoji] = roleID
	return nil
}

// UnbindSelfRole removes one emoji binding, or the whole message entry when
// emoji is empty. Returns false when nothing was bound.
func (g *GuildConfig) UnbindSelfRole(messageID int64, emoji string) bool {
	bindings, ok := g.SelfRoles[messageID]
	if !ok {
		return false
	}
	if emoji == "" {
		delete(g.SelfRoles, messageID)
		return true
	}
	if _, ok := bindings[emoji]; !ok {
		return false
	}
	delete(bindings, emoji)
	if len(bindings) == 0 {
		delete(g.SelfRoles, messageID)
	}
	return true
}

// SelfRole resolves the role bound to emoji on message.
func (g *GuildConfig) SelfRole(messageID int64, emoji string) (int64, bool) {
	roleID, ok := g.SelfRoles[messageID][emoji]
	return roleID, ok
}

// SetMute records a temporary mute expiring at until.
func (g *GuildConfig) SetMute(userID int64, until time.Time) {
	if g.Mutes == nil {
		g.Mutes = make(map[int64]time.Time)
	}
	g.Mutes[userID] = until
}

// ClearMute removes a mute entry, reporting whether one existed.
func (g *GuildConfig) ClearMute(userID int64) bool {
	if _, ok := g.Mutes[userID]; !ok {
		return false
	}
	delete(g.Mutes, userID)
	return true
}

// MuteExpiry returns the expiry of an active mute entry.
func (g *GuildConfig) MuteExpiry(userID int64) (time.Time, bool) {
	until, ok := g.Mutes[userID]
	return until, ok
}
