package models

import (
	"time"
)

// SessionVariant tags which game occupies a channel session slot.
type SessionVariant string

const (
	VariantTicTacToe   SessionVariant = "tictactoe"
	VariantNumberGuess SessionVariant = "numberguess"
	VariantHangman     SessionVariant = "hangman"
)

// Session is the one interactive game a channel may run at a time. Exactly
// one of the variant fields is set, matching Variant. Rock-paper-scissors
// resolves within its creating call and therefore never appears here.
type Session struct {
	GuildID   int64          `json:"guild_id"`
	ChannelID int64          `json:"channel_id"`
	Variant   SessionVariant `json:"variant"`
	CreatedAt time.Time      `json:"created_at"`

	TicTacToe   *TicTacToe   `json:"tictactoe,omitempty"`
	NumberGuess *NumberGuess `json:"numberguess,omitempty"`
	Hangman     *Hangman     `json:"hangman,omitempty"`
}
