package models

import (
	"strings"
)

// RPSMove is one rock-paper-scissors throw.
type RPSMove string

const (
	RPSRock     RPSMove = "rock"
	RPSPaper    RPSMove = "paper"
	RPSScissors RPSMove = "scissors"
)

// RPSMoves lists the throws in draw order; index them with a uniform [0,3) draw.
var RPSMoves = [3]RPSMove{RPSRock, RPSPaper, RPSScissors}

// ParseRPSMove reads a player throw, case-insensitively.
func ParseRPSMove(s string) (RPSMove, error) {
	switch RPSMove(strings.ToLower(strings.TrimSpace(s))) {
	case RPSRock:
		return RPSRock, nil
	case RPSPaper:
		return RPSPaper, nil
	case RPSScissors:
		return RPSScissors, nil
	}
	return "", ErrIllegalAction
}

// RPSOutcome is the player's result against the bot.
type RPSOutcome string

const (
	RPSWin  RPSOutcome = "win"
	RPSLose RPSOutcome = "lose"
	RPSTie  RPSOutcome = "tie"
)

// beats maps each throw to the throw it defeats.
var beats = map[RPSMove]RPSMove{
	RPSRock:     RPSScissors,
	RPSPaper:    RPSRock,
	RPSScissors: RPSPaper,
}

// ResolveRPS scores the player's throw against the bot's.
func ResolveRPS(player, bot RPSMove) RPSOutcome {
	switch {
	case player == bot:
		return RPSTie
	case beats[player] == bot:
		return RPSWin
	default:
		return RPSLose
	}
}

// RPSResult reports a resolved round.
type RPSResult struct {
	PlayerID   int64
	PlayerMove RPSMove
	BotMove    RPSMove
	Outcome    RPSOutcome
}
