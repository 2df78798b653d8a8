package models

import (
	"strings"
)

// HangmanMaxWrong is the number of wrong letters that loses the game.
const HangmanMaxWrong = 6

// hangmanWords is the draw pool for new games.
var hangmanWords = []string{
	"keyboard", "monitor", "compiler", "network", "database",
	"function", "variable", "pointer", "package", "channel",
	"server", "router", "firewall", "terminal", "algorithm",
	"protocol", "debugger", "kernel", "syntax", "browser",
}

// HangmanWordCount returns the size of the draw pool.
func HangmanWordCount() int {
	return len(hangmanWords)
}

// HangmanWord returns the nth word of the draw pool.
func HangmanWord(n int) string {
	return hangmanWords[n]
}

// Hangman is a letter-guessing game open to the whole channel.
type Hangman struct {
	StarterID int64  `json:"starter_id"`
	Word      string `json:"word"`
	// Guessed holds every tried letter in guess order.
	Guessed  []string `json:"guessed,omitempty"`
	Wrong    int      `json:"wrong"`
	MaxWrong int      `json:"max_wrong"`
}

// NewHangman starts a game around word.
func NewHangman(starterID int64, word string) *Hangman {
	return &Hangman{
		StarterID: starterID,
		Word:      word,
		MaxWrong:  HangmanMaxWrong,
	}
}

// HangmanResult reports one letter guess. Word is disclosed only when Done.
type HangmanResult struct {
	Correct  bool
	Revealed string
	Wrong    int
	MaxWrong int
	Done     bool
	Won      bool
	Word     string
}

// GuessLetter evaluates a single lowercase letter. Repeated letters and
// anything that is not one ASCII letter fail with ErrIllegalAction and do
// not change the game ("no penalty" for repeats). A wrong letter increments
// the wrong count; hitting MaxWrong loses, a full reveal wins.
func (h *Hangman) GuessLetter(letter string) (HangmanResult, error) {
	letter = strings.ToLower(letter)
	if len(letter) != 1 || letter[0] < 'a' || letter[0] > 'z' {
		return HangmanResult{}, ErrIllegalAction
	}
	if h.tried(letter) {
		return HangmanResult{}, ErrIllegalAction
	}

	h.Guessed = append(h.Guessed, letter)
	correct := strings.Contains(h.Word, letter)
	if !correct {
		h.Wrong++
	}

	res := HangmanResult{
		Correct:  correct,
		Revealed: h.Revealed(),
		Wrong:    h.Wrong,
		MaxWrong: h.MaxWrong,
	}
	switch {
	case h.fullyRevealed():
		res.Done = true
		res.Won = true
		res.Word = h.Word
	case h.Wrong >= h.MaxWrong:
		res.Done = true
		res.Word = h.Word
	}
	return res, nil
}

// Revealed renders the word with untried letters masked, e.g. "k e _ _ e l".
func (h *Hangman) Revealed() string {
	parts := make([]string, 0, len(h.Word))
	for _, r := range h.Word {
		if h.tried(string(r)) {
			parts = append(parts, string(r))
		} else {
			parts = append(parts, "_")
		}
	}
	return strings.Join(parts, " ")
}

func (h *Hangman) tried(letter string) bool {
	for _, g := range h.Guessed {
		if g == letter {
			return true
		}
	}
	return false
}

func (h *Hangman) fullyRevealed() bool {
	for _, r := range h.Word {
		if !h.tried(string(r)) {
			return false
		}
	}
	return true
}
