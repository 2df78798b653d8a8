package models

import (
	"math"
)

// NumberGuess bounds.
const (
	NumberGuessMinMax     = 10
	NumberGuessMaxMax     = 1_000_000
	NumberGuessDefaultMax = 100
	numberGuessMinTries   = 5
)

// NumberGuessAttempts returns the attempt budget for a given upper bound.
func NumberGuessAttempts(max int) int {
	attempts := int(math.Sqrt(float64(max)))
	if attempts < numberGuessMinTries {
		attempts = numberGuessMinTries
	}
	return attempts
}

// NumberGuess is a guess-the-number game open to the whole channel. The
// secret is drawn uniformly from [1, Max] at creation.
type NumberGuess struct {
	StarterID int64 `json:"starter_id"`
	Max       int   `json:"max"`
	Secret    int   `json:"secret"`
	Remaining int   `json:"remaining"`
}

// NewNumberGuess starts a game around a pre-drawn secret.
func NewNumberGuess(starterID int64, max, secret int) *NumberGuess {
	return &NumberGuess{
		StarterID: starterID,
		Max:       max,
		Secret:    secret,
		Remaining: NumberGuessAttempts(max),
	}
}

// GuessFeedback is the engine's reply to one guess.
type GuessFeedback string

const (
	GuessHigher  GuessFeedback = "higher"
	GuessLower   GuessFeedback = "lower"
	GuessCorrect GuessFeedback = "correct"
)

// GuessResult reports one guess. Secret is disclosed only when Done.
type GuessResult struct {
	Feedback  GuessFeedback
	Remaining int
	Done      bool
	Won       bool
	Secret    int
}

// Guess evaluates n. Guesses outside [1, Max] fail with ErrIllegalAction
// without consuming an attempt. Exhausting all attempts without the correct
// number ends the game.
func (g *NumberGuess) Guess(n int) (GuessResult, error) {
	if n < 1 || n > g.Max {
		return GuessResult{}, ErrIllegalAction
	}

	g.Remaining--
	switch {
	case n == g.Secret:
		return GuessResult{
			Feedback:  GuessCorrect,
			Remaining: g.Remaining,
			Done:      true,
			Won:       true,
			Secret:    g.Secret,
		}, nil
	case g.Remaining == 0:
		feedback := GuessHigher
		if n > g.Secret {
			feedback = GuessLower
		}
		return GuessResult{
			Feedback: feedback,
			Done:     true,
			Secret:   g.Secret,
		}, nil
	case n < g.Secret:
		return GuessResult{Feedback: GuessHigher, Remaining: g.Remaining}, nil
	default:
		return GuessResult{Feedback: GuessLower, Remaining: g.Remaining}, nil
	}
}
