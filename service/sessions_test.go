package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arcade/events"
	"arcade/models"
	"arcade/random"
)

func TestPlayRPS(t *testing.T) {
	tests := []struct {
		name        string
		move        string
		scripted    int
		wantBot     models.RPSMove
		wantOutcome models.RPSOutcome
	}{
		{name: "rock crushes scissors", move: "rock", scripted: 2, wantBot: models.RPSScissors, wantOutcome: models.RPSWin},
		{name: "mirror throw ties", move: "rock", scripted: 0, wantBot: models.RPSRock, wantOutcome: models.RPSTie},
		{name: "paper covers rock", move: " Rock ", scripted: 1, wantBot: models.RPSPaper, wantOutcome: models.RPSLose},
		{name: "scissors cut paper", move: "SCISSORS", scripted: 1, wantBot: models.RPSPaper, wantOutcome: models.RPSWin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := testSessions(t, random.Sequence(tt.scripted))
			ctx := context.Background()

			result, err := svc.PlayRPS(ctx, 100, 300, 200, tt.move)
			require.NoError(t, err)
			assert.Equal(t, int64(200), result.PlayerID)
			assert.Equal(t, tt.wantBot, result.BotMove)
			assert.Equal(t, tt.wantOutcome, result.Outcome)

			// A round never occupies the channel.
			_, found, err := svc.State(ctx, 100, 300)
			require.NoError(t, err)
			assert.False(t, found)
		})
	}
}

func TestPlayRPSRejectsUnknownMove(t *testing.T) {
	svc, _ := testSessions(t, nil)
	ctx := context.Background()

	_, err := svc.PlayRPS(ctx, 100, 300, 200, "lizard")
	assert.ErrorIs(t, err, models.ErrIllegalAction)
}

func TestPlayRPSBlockedByLiveSession(t *testing.T) {
	svc, _ := testSessions(t, random.Sequence(0))
	ctx := context.Background()

	_, err := svc.StartHangman(ctx, 100, 300, 200)
	require.NoError(t, err)

	_, err = svc.PlayRPS(ctx, 100, 300, 201, "rock")
	assert.ErrorIs(t, err, models.ErrSessionConflict)
}

func TestTicTacToeTopRowWin(t *testing.T) {
	svc, _ := testSessions(t, nil)
	ctx := context.Background()

	sess, err := svc.StartTicTacToe(ctx, 100, 300, 1, 2)
	require.NoError(t, err)
	require.NotNil(t, sess.TicTacToe)
	assert.Equal(t, int64(1), sess.TicTacToe.Turn)

	moves := []struct {
		player   int64
		row, col int
	}{
		{1, 0, 0}, {2, 1, 1}, {1, 0, 1}, {2, 1, 0},
	}
	for _, m := range moves {
		result, err := svc.PlayMove(ctx, 100, 300, m.player, m.row, m.col)
		require.NoError(t, err)
		assert.False(t, result.Done)
	}

	result, err := svc.PlayMove(ctx, 100, 300, 1, 0, 2)
	require.NoError(t, err)
	assert.True(t, result.Done)
	assert.Equal(t, int64(1), result.Winner)
	assert.False(t, result.Draw)

	// The finished game is gone in the same unit that scored it.
	_, found, err := svc.State(ctx, 100, 300)
	require.NoError(t, err)
	assert.False(t, found)

	_, err = svc.PlayMove(ctx, 100, 300, 2, 2, 2)
	assert.ErrorIs(t, err, models.ErrNoActiveSession)
}

func TestTicTacToeDraw(t *testing.T) {
	svc, _ := testSessions(t, nil)
	ctx := context.Background()

	_, err := svc.StartTicTacToe(ctx, 100, 300, 1, 2)
	require.NoError(t, err)

	moves := []struct {
		player   int64
		row, col int
	}{
		{1, 0, 0}, {2, 0, 1}, {1, 0, 2}, {2, 1, 2},
		{1, 1, 0}, {2, 2, 0}, {1, 1, 1}, {2, 2, 2},
	}
	for _, m := range moves {
		result, err := svc.PlayMove(ctx, 100, 300, m.player, m.row, m.col)
		require.NoError(t, err)
		require.False(t, result.Done)
	}

	result, err := svc.PlayMove(ctx, 100, 300, 1, 2, 1)
	require.NoError(t, err)
	assert.True(t, result.Done)
	assert.True(t, result.Draw)
	assert.Equal(t, int64(0), result.Winner)

	_, found, err := svc.State(ctx, 100, 300)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestTicTacToeIllegalMoves(t *testing.T) {
	svc, _ := testSessions(t, nil)
	ctx := context.Background()

	_, err := svc.StartTicTacToe(ctx, 100, 300, 1, 2)
	require.NoError(t, err)

	// Out of turn, out of range, non-player, occupied cell: none of these
	// advance the game.
	_, err = svc.PlayMove(ctx, 100, 300, 2, 0, 0)
	assert.ErrorIs(t, err, models.ErrIllegalAction)
	_, err = svc.PlayMove(ctx, 100, 300, 1, 3, 0)
	assert.ErrorIs(t, err, models.ErrIllegalAction)
	_, err = svc.PlayMove(ctx, 100, 300, 99, 0, 0)
	assert.ErrorIs(t, err, models.ErrIllegalAction)

	_, err = svc.PlayMove(ctx, 100, 300, 1, 0, 0)
	require.NoError(t, err)
	_, err = svc.PlayMove(ctx, 100, 300, 2, 0, 0)
	assert.ErrorIs(t, err, models.ErrIllegalAction)

	sess, found, err := svc.State(ctx, 100, 300)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 1, sess.TicTacToe.Moves)
	assert.Equal(t, int64(2), sess.TicTacToe.Turn)
}

func TestStartTicTacToeRejectsSelfPlay(t *testing.T) {
	svc, _ := testSessions(t, nil)
	ctx := context.Background()

	_, err := svc.StartTicTacToe(ctx, 100, 300, 1, 1)
	assert.ErrorIs(t, err, models.ErrIllegalAction)
}

func TestSessionConflictLeavesFirstUntouched(t *testing.T) {
	// Script covers the number-guess secret and the hangman word draw of
	// the create that must fail.
	svc, _ := testSessions(t, random.Sequence(6, 0))
	ctx := context.Background()

	_, err := svc.StartNumberGuess(ctx, 100, 300, 200, 0)
	require.NoError(t, err)

	_, err = svc.StartHangman(ctx, 100, 300, 201)
	assert.ErrorIs(t, err, models.ErrSessionConflict)

	sess, found, err := svc.State(ctx, 100, 300)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.VariantNumberGuess, sess.Variant)
	require.NotNil(t, sess.NumberGuess)
	assert.Equal(t, 7, sess.NumberGuess.Secret)
}

func TestSessionsIndependentAcrossChannels(t *testing.T) {
	svc, _ := testSessions(t, random.Sequence(6))
	ctx := context.Background()

	_, err := svc.StartTicTacToe(ctx, 100, 300, 1, 2)
	require.NoError(t, err)
	_, err = svc.StartNumberGuess(ctx, 100, 301, 200, 0)
	require.NoError(t, err)

	first, found, err := svc.State(ctx, 100, 300)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.VariantTicTacToe, first.Variant)

	second, found, err := svc.State(ctx, 100, 301)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.VariantNumberGuess, second.Variant)
}

func TestNumberGuess(t *testing.T) {
	svc, _ := testSessions(t, random.Sequence(6))
	ctx := context.Background()

	sess, err := svc.StartNumberGuess(ctx, 100, 300, 200, 0)
	require.NoError(t, err)
	require.NotNil(t, sess.NumberGuess)
	assert.Equal(t, models.NumberGuessDefaultMax, sess.NumberGuess.Max)
	assert.Equal(t, 7, sess.NumberGuess.Secret)
	assert.Equal(t, 10, sess.NumberGuess.Remaining)

	result, err := svc.GuessNumber(ctx, 100, 300, 201, 5)
	require.NoError(t, err)
	assert.Equal(t, models.GuessHigher, result.Feedback)
	assert.Equal(t, 9, result.Remaining)
	assert.False(t, result.Done)

	result, err = svc.GuessNumber(ctx, 100, 300, 202, 9)
	require.NoError(t, err)
	assert.Equal(t, models.GuessLower, result.Feedback)
	assert.Equal(t, 8, result.Remaining)

	result, err = svc.GuessNumber(ctx, 100, 300, 201, 7)
	require.NoError(t, err)
	assert.Equal(t, models.GuessCorrect, result.Feedback)
	assert.True(t, result.Done)
	assert.True(t, result.Won)
	assert.Equal(t, 7, result.Secret)

	_, found, err := svc.State(ctx, 100, 300)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestNumberGuessOutOfBoundsCostsNothing(t *testing.T) {
	svc, _ := testSessions(t, random.Sequence(6))
	ctx := context.Background()

	_, err := svc.StartNumberGuess(ctx, 100, 300, 200, 0)
	require.NoError(t, err)

	_, err = svc.GuessNumber(ctx, 100, 300, 201, 0)
	assert.ErrorIs(t, err, models.ErrIllegalAction)
	_, err = svc.GuessNumber(ctx, 100, 300, 201, 101)
	assert.ErrorIs(t, err, models.ErrIllegalAction)

	result, err := svc.GuessNumber(ctx, 100, 300, 201, 50)
	require.NoError(t, err)
	assert.Equal(t, 9, result.Remaining)
}

func TestNumberGuessExhaustionDisclosesSecret(t *testing.T) {
	svc, _ := testSessions(t, random.Sequence(9))
	ctx := context.Background()

	sess, err := svc.StartNumberGuess(ctx, 100, 300, 200, 10)
	require.NoError(t, err)
	require.Equal(t, 10, sess.NumberGuess.Secret)
	require.Equal(t, 5, sess.NumberGuess.Remaining)

	for _, n := range []int{1, 2, 3, 4} {
		result, err := svc.GuessNumber(ctx, 100, 300, 201, n)
		require.NoError(t, err)
		require.False(t, result.Done)
	}

	result, err := svc.GuessNumber(ctx, 100, 300, 201, 5)
	require.NoError(t, err)
	assert.True(t, result.Done)
	assert.False(t, result.Won)
	assert.Equal(t, 10, result.Secret)
	assert.Equal(t, models.GuessHigher, result.Feedback)

	_, found, err := svc.State(ctx, 100, 300)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStartNumberGuessValidatesMax(t *testing.T) {
	svc, _ := testSessions(t, nil)
	ctx := context.Background()

	_, err := svc.StartNumberGuess(ctx, 100, 300, 200, 5)
	assert.ErrorIs(t, err, models.ErrIllegalAction)
	_, err = svc.StartNumberGuess(ctx, 100, 300, 200, 2_000_000)
	assert.ErrorIs(t, err, models.ErrIllegalAction)
}

func TestHangmanWin(t *testing.T) {
	svc, _ := testSessions(t, random.Sequence(0))
	ctx := context.Background()

	sess, err := svc.StartHangman(ctx, 100, 300, 200)
	require.NoError(t, err)
	require.NotNil(t, sess.Hangman)
	require.Equal(t, "keyboard", sess.Hangman.Word)

	result, err := svc.GuessHangmanLetter(ctx, 100, 300, 201, "k")
	require.NoError(t, err)
	assert.True(t, result.Correct)
	assert.Equal(t, "k _ _ _ _ _ _ _", result.Revealed)

	result, err = svc.GuessHangmanLetter(ctx, 100, 300, 202, "z")
	require.NoError(t, err)
	assert.False(t, result.Correct)
	assert.Equal(t, 1, result.Wrong)

	// Retrying a tried letter costs nothing.
	_, err = svc.GuessHangmanLetter(ctx, 100, 300, 201, "k")
	assert.ErrorIs(t, err, models.ErrIllegalAction)
	_, err = svc.GuessHangmanLetter(ctx, 100, 300, 201, "z")
	assert.ErrorIs(t, err, models.ErrIllegalAction)

	for _, letter := range []string{"e", "y", "b", "o", "a", "r"} {
		result, err = svc.GuessHangmanLetter(ctx, 100, 300, 201, letter)
		require.NoError(t, err)
		require.False(t, result.Done)
	}

	result, err = svc.GuessHangmanLetter(ctx, 100, 300, 203, "d")
	require.NoError(t, err)
	assert.True(t, result.Done)
	assert.True(t, result.Won)
	assert.Equal(t, "keyboard", result.Word)
	assert.Equal(t, 1, result.Wrong)

	_, found, err := svc.State(ctx, 100, 300)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestHangmanLoss(t *testing.T) {
	svc, _ := testSessions(t, random.Sequence(0))
	ctx := context.Background()

	_, err := svc.StartHangman(ctx, 100, 300, 200)
	require.NoError(t, err)

	wrong := []string{"z", "q", "x", "c", "v", "n"}
	for i, letter := range wrong {
		result, err := svc.GuessHangmanLetter(ctx, 100, 300, 201, letter)
		require.NoError(t, err)
		assert.False(t, result.Correct)
		assert.Equal(t, i+1, result.Wrong)
		if i < len(wrong)-1 {
			require.False(t, result.Done)
		} else {
			assert.True(t, result.Done)
			assert.False(t, result.Won)
			assert.Equal(t, "keyboard", result.Word)
		}
	}

	_, found, err := svc.State(ctx, 100, 300)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestHangmanRejectsBadInput(t *testing.T) {
	svc, _ := testSessions(t, random.Sequence(0))
	ctx := context.Background()

	_, err := svc.StartHangman(ctx, 100, 300, 200)
	require.NoError(t, err)

	for _, bad := range []string{"", "ab", "7", "!"} {
		_, err = svc.GuessHangmanLetter(ctx, 100, 300, 201, bad)
		assert.ErrorIs(t, err, models.ErrIllegalAction)
	}
}

func TestActionOnWrongVariant(t *testing.T) {
	svc, _ := testSessions(t, random.Sequence(0))
	ctx := context.Background()

	_, err := svc.StartHangman(ctx, 100, 300, 200)
	require.NoError(t, err)

	_, err = svc.GuessNumber(ctx, 100, 300, 201, 5)
	assert.ErrorIs(t, err, models.ErrNoActiveSession)
	_, err = svc.PlayMove(ctx, 100, 300, 201, 0, 0)
	assert.ErrorIs(t, err, models.ErrNoActiveSession)
}

func TestAbort(t *testing.T) {
	svc, _ := testSessions(t, nil)
	ctx := context.Background()

	_, err := svc.StartTicTacToe(ctx, 100, 300, 1, 2)
	require.NoError(t, err)

	require.NoError(t, svc.Abort(ctx, 100, 300))

	_, found, err := svc.State(ctx, 100, 300)
	require.NoError(t, err)
	assert.False(t, found)

	assert.ErrorIs(t, svc.Abort(ctx, 100, 300), models.ErrNoActiveSession)
}

func TestSessionFinishedEvent(t *testing.T) {
	svc, bus, _ := testSessionsWithBus(t, random.Sequence(6))
	ctx := context.Background()

	received := make(chan events.Event, 1)
	bus.Subscribe(events.EventTypeSessionFinished, func(ctx context.Context, event events.Event) {
		received <- event
	})

	_, err := svc.StartNumberGuess(ctx, 100, 300, 200, 0)
	require.NoError(t, err)
	_, err = svc.GuessNumber(ctx, 100, 300, 201, 7)
	require.NoError(t, err)

	select {
	case event := <-received:
		finished, ok := event.(events.SessionFinishedEvent)
		require.True(t, ok)
		assert.Equal(t, int64(100), finished.GuildID)
		assert.Equal(t, int64(300), finished.ChannelID)
		assert.Equal(t, string(models.VariantNumberGuess), finished.Variant)
		assert.Equal(t, int64(201), finished.WinnerID)
		assert.False(t, finished.Draw)
	case <-time.After(time.Second):
		t.Fatal("expected a session_finished event")
	}
}
