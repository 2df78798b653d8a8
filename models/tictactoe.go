package models

// Board marks. An empty string is a free cell.
const (
	MarkX = "X"
	MarkO = "O"
)

// TicTacToe is a two-player 3x3 game. The challenger plays X and moves
// first. Board cells are indexed row*3+col.
type TicTacToe struct {
	XPlayer int64     `json:"x_player"`
	OPlayer int64     `json:"o_player"`
	Board   [9]string `json:"board"`
	// Turn is the user whose move is awaited.
	Turn  int64 `json:"turn"`
	Moves int   `json:"moves"`
}

// NewTicTacToe starts a game between x (moves first) and o.
func NewTicTacToe(xPlayer, oPlayer int64) *TicTacToe {
	return &TicTacToe{
		XPlayer: xPlayer,
		OPlayer: oPlayer,
		Turn:    xPlayer,
	}
}

// TicTacToeResult reports the game state after an accepted move. Board is a
// copy taken after the move, so callers can render terminal positions even
// though finished games are purged.
type TicTacToeResult struct {
	Done     bool
	Winner   int64
	Draw     bool
	NextTurn int64
	Board    [9]string
}

// Mark returns the mark player uses, or "" for a non-player.
func (t *TicTacToe) Mark(player int64) string {
	switch player {
	case t.XPlayer:
		return MarkX
	case t.OPlayer:
		return MarkO
	}
	return ""
}

// Move places player's mark at (row, col). Moves out of turn, out of range
// or onto an occupied cell fail with ErrIllegalAction and leave the board
// untouched. The win check runs after every accepted move; a full board
// without a winner is a draw.
func (t *TicTacToe) Move(player int64, row, col int) (TicTacToeResult, error) {
	if player != t.XPlayer && player != t.OPlayer {
		return TicTacToeResult{}, ErrIllegalAction
	}
	if player != t.Turn {
		return TicTacToeResult{}, ErrIllegalAction
	}
	if row < 0 || row > 2 || col < 0 || col > 2 {
		return TicTacToeResult{}, ErrIllegalAction
	}
	idx := row*3 + col
	if t.Board[idx] != "" {
		return TicTacToeResult{}, ErrIllegalAction
	}

	t.Board[idx] = t.Mark(player)
	t.Moves++

	if t.hasWin(t.Board[idx]) {
		return TicTacToeResult{Done: true, Winner: player, Board: t.Board}, nil
	}
	if t.Moves == 9 {
		return TicTacToeResult{Done: true, Draw: true, Board: t.Board}, nil
	}

	if player == t.XPlayer {
		t.Turn = t.OPlayer
	} else {
		t.Turn = t.XPlayer
	}
	return TicTacToeResult{NextTurn: t.Turn, Board: t.Board}, nil
}

// winLines are the eight three-in-a-row index triples.
var winLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8}, // rows
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8}, // columns
	{0, 4, 8}, {2, 4, 6}, // diagonals
}

func (t *TicTacToe) hasWin(mark string) bool {
	for _, line := range winLines {
		if t.Board[line[0]] == mark && t.Board[line[1]] == mark && t.Board[line[2]] == mark {
			return true
		}
	}
	return false
}
