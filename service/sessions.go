package service

import (
	"context"

	"arcade/events"
	"arcade/models"
	"arcade/random"
	"arcade/store"
)

// SessionService runs the per-channel interactive games. A channel holds at
// most one live session; creating another fails with ErrSessionConflict, and
// acting on a missing or finished one fails with ErrNoActiveSession. Every
// transition is one store mutate on the session key, and terminal sessions
// are purged in the same mutate that finished them.
type SessionService struct {
	store store.Store
	bus   *events.Bus
	clock Clock
	rng   random.Source
}

// NewSessionService creates a new session service.
func NewSessionService(st store.Store, bus *events.Bus, clock Clock, rng random.Source) *SessionService {
	return &SessionService{
		store: st,
		bus:   bus,
		clock: clock,
		rng:   rng,
	}
}

// State returns the live session at the channel, if any.
func (s *SessionService) State(ctx context.Context, guildID, channelID int64) (*models.Session, bool, error) {
	return store.GetRecord[models.Session](ctx, s.store, sessionKey(guildID, channelID))
}

// Abort removes the live session at the channel regardless of progress.
func (s *SessionService) Abort(ctx context.Context, guildID, channelID int64) error {
	return store.MutateRecord(ctx, s.store, sessionKey(guildID, channelID), func(sess *models.Session, found bool) (store.RecordOp, error) {
		if !found {
			return store.OpSkip, models.ErrNoActiveSession
		}
		return store.OpDelete, nil
	})
}

// PlayRPS resolves one rock-paper-scissors round against the bot. The round
// respects session exclusivity but never persists: it is created, resolved
// against a uniform bot throw and purged within the one call.
func (s *SessionService) PlayRPS(ctx context.Context, guildID, channelID, userID int64, move string) (*models.RPSResult, error) {
	playerMove, err := models.ParseRPSMove(move)
	if err != nil {
		return nil, err
	}
	var result *models.RPSResult
	err = store.MutateRecord(ctx, s.store, sessionKey(guildID, channelID), func(sess *models.Session, found bool) (store.RecordOp, error) {
		if found {
			return store.OpSkip, models.ErrSessionConflict
		}
		botMove := models.RPSMoves[s.rng.Intn(len(models.RPSMoves))]
		result = &models.RPSResult{
			PlayerID:   userID,
			PlayerMove: playerMove,
			BotMove:    botMove,
			Outcome:    models.ResolveRPS(playerMove, botMove),
		}
		return store.OpSkip, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// StartTicTacToe opens a game between challenger (X, moves first) and
// opponent (O).
func (s *SessionService) StartTicTacToe(ctx context.Context, guildID, channelID, challengerID, opponentID int64) (*models.Session, error) {
	if challengerID == opponentID {
		return nil, models.ErrIllegalAction
	}
	return s.create(ctx, guildID, channelID, func(sess *models.Session) {
		sess.Variant = models.VariantTicTacToe
		sess.TicTacToe = models.NewTicTacToe(challengerID, opponentID)
	})
}

// PlayMove applies one tic-tac-toe move. A finished game is purged in the
// same unit that scored it.
func (s *SessionService) PlayMove(ctx context.Context, guildID, channelID, userID int64, row, col int) (*models.TicTacToeResult, error) {
	pending := events.NewPendingBus(s.bus)
	var result *models.TicTacToeResult
	err := store.MutateRecord(ctx, s.store, sessionKey(guildID, channelID), func(sess *models.Session, found bool) (store.RecordOp, error) {
		if !found || sess.Variant != models.VariantTicTacToe {
			return store.OpSkip, models.ErrNoActiveSession
		}
		res, err := sess.TicTacToe.Move(userID, row, col)
		if err != nil {
			return store.OpSkip, err
		}
		result = &res
		if res.Done {
			pending.Publish(events.SessionFinishedEvent{
				GuildID:   guildID,
				ChannelID: channelID,
				Variant:   string(models.VariantTicTacToe),
				WinnerID:  res.Winner,
				Draw:      res.Draw,
			})
			return store.OpDelete, nil
		}
		return store.OpWrite, nil
	})
	if err != nil {
		pending.Discard()
		return nil, err
	}
	pending.Flush(ctx)
	return result, nil
}

// StartNumberGuess opens a guess-the-number game. max of zero takes the
// default; otherwise it must lie within the allowed bounds. The secret is
// drawn uniformly from [1, max] at creation.
func (s *SessionService) StartNumberGuess(ctx context.Context, guildID, channelID, starterID int64, max int) (*models.Session, error) {
	if max == 0 {
		max = models.NumberGuessDefaultMax
	}
	if max < models.NumberGuessMinMax || max > models.NumberGuessMaxMax {
		return nil, models.ErrIllegalAction
	}
	secret := 1 + s.rng.Intn(max)
	return s.create(ctx, guildID, channelID, func(sess *models.Session) {
		sess.Variant = models.VariantNumberGuess
		sess.NumberGuess = models.NewNumberGuess(starterID, max, secret)
	})
}

// GuessNumber applies one guess; the game is open to the whole channel.
func (s *SessionService) GuessNumber(ctx context.Context, guildID, channelID, userID int64, n int) (*models.GuessResult, error) {
	pending := events.NewPendingBus(s.bus)
	var result *models.GuessResult
	err := store.MutateRecord(ctx, s.store, sessionKey(guildID, channelID), func(sess *models.Session, found bool) (store.RecordOp, error) {
		if !found || sess.Variant != models.VariantNumberGuess {
			return store.OpSkip, models.ErrNoActiveSession
		}
		res, err := sess.NumberGuess.Guess(n)
		if err != nil {
			return store.OpSkip, err
		}
		result = &res
		if res.Done {
			finished := events.SessionFinishedEvent{
				GuildID:   guildID,
				ChannelID: channelID,
				Variant:   string(models.VariantNumberGuess),
			}
			if res.Won {
				finished.WinnerID = userID
			}
			pending.Publish(finished)
			return store.OpDelete, nil
		}
		return store.OpWrite, nil
	})
	if err != nil {
		pending.Discard()
		return nil, err
	}
	pending.Flush(ctx)
	return result, nil
}

// StartHangman opens a hangman game around a random word.
func (s *SessionService) StartHangman(ctx context.Context, guildID, channelID, starterID int64) (*models.Session, error) {
	word := models.HangmanWord(s.rng.Intn(models.HangmanWordCount()))
	return s.create(ctx, guildID, channelID, func(sess *models.Session) {
		sess.Variant = models.VariantHangman
		sess.Hangman = models.NewHangman(starterID, word)
	})
}

// GuessHangmanLetter applies one letter guess; the game is open to the whole
// channel.
func (s *SessionService) GuessHangmanLetter(ctx context.Context, guildID, channelID, userID int64, letter string) (*models.HangmanResult, error) {
	pending := events.NewPendingBus(s.bus)
	var result *models.HangmanResult
	err := store.MutateRecord(ctx, s.store, sessionKey(guildID, channelID), func(sess *models.Session, found bool) (store.RecordOp, error) {
		if !found || sess.Variant != models.VariantHangman {
			return store.OpSkip, models.ErrNoActiveSession
		}
		res, err := sess.Hangman.GuessLetter(letter)
		if err != nil {
			return store.OpSkip, err
		}
		result = &res
		if res.Done {
			finished := events.SessionFinishedEvent{
				GuildID:   guildID,
				ChannelID: channelID,
				Variant:   string(models.VariantHangman),
			}
			if res.Won {
				finished.WinnerID = userID
			}
			pending.Publish(finished)
			return store.OpDelete, nil
		}
		return store.OpWrite, nil
	})
	if err != nil {
		pending.Discard()
		return nil, err
	}
	pending.Flush(ctx)
	return result, nil
}

// create installs a new session under the channel key, failing with
// ErrSessionConflict when one is live. init fills the variant state.
func (s *SessionService) create(ctx context.Context, guildID, channelID int64, init func(sess *models.Session)) (*models.Session, error) {
	var snapshot *models.Session
	err := store.MutateRecord(ctx, s.store, sessionKey(guildID, channelID), func(sess *models.Session, found bool) (store.RecordOp, error) {
		if found {
			return store.OpSkip, models.ErrSessionConflict
		}
		sess.GuildID = guildID
		sess.ChannelID = channelID
		sess.CreatedAt = s.clock.Now()
		init(sess)
		copied := *sess
		snapshot = &copied
		return store.OpWrite, nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}
