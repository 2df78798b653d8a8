package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"arcade/events"
	"arcade/models"
	"arcade/random"
	"arcade/store"
)

// GiveawayService runs timed prize draws. Giveaways are keyed by their
// announcement message and stay persisted after ending so winners can be
// rerolled; the scheduler drives the timed end through the same per-key
// mutate as manual operations.
type GiveawayService struct {
	store store.Store
	bus   *events.Bus
	clock Clock
	rng   random.Source
	sched *Scheduler
}

// NewGiveawayService creates a new giveaway service.
func NewGiveawayService(st store.Store, bus *events.Bus, clock Clock, rng random.Source, sched *Scheduler) *GiveawayService {
	return &GiveawayService{
		store: st,
		bus:   bus,
		clock: clock,
		rng:   rng,
		sched: sched,
	}
}

// Start opens a giveaway ending after duration and schedules its draw.
func (s *GiveawayService) Start(ctx context.Context, guildID, channelID, messageID, hostID int64, prize string, winnerCount int, duration time.Duration) (*models.Giveaway, error) {
	now := s.clock.Now()
	giveaway, err := models.NewGiveaway(guildID, channelID, messageID, hostID, prize, winnerCount, now.Add(duration), now)
	if err != nil {
		return nil, err
	}
	err = store.MutateRecord(ctx, s.store, giveawayKey(guildID, messageID), func(rec *models.Giveaway, found bool) (store.RecordOp, error) {
		if found {
			return store.OpSkip, models.ErrSessionConflict
		}
		*rec = *giveaway
		return store.OpWrite, nil
	})
	if err != nil {
		return nil, err
	}
	s.sched.Schedule(giveaway.EndsAt, Action{
		Kind:     ActionEndGiveaway,
		GuildID:  guildID,
		TargetID: messageID,
	})
	return giveaway, nil
}

// Get returns the giveaway, ended or not.
func (s *GiveawayService) Get(ctx context.Context, guildID, messageID int64) (*models.Giveaway, error) {
	giveaway, found, err := store.GetRecord[models.Giveaway](ctx, s.store, giveawayKey(guildID, messageID))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, models.ErrNoActiveSession
	}
	return giveaway, nil
}

// Enter records userID once; re-entry is a no-op. Returns whether the entry
// was new.
func (s *GiveawayService) Enter(ctx context.Context, guildID, messageID, userID int64) (bool, error) {
	var added bool
	err := store.MutateRecord(ctx, s.store, giveawayKey(guildID, messageID), func(rec *models.Giveaway, found bool) (store.RecordOp, error) {
		if !found {
			return store.OpSkip, models.ErrNoActiveSession
		}
		var err error
		added, err = rec.Enter(userID)
		if err != nil {
			return store.OpSkip, err
		}
		if !added {
			return store.OpSkip, nil
		}
		return store.OpWrite, nil
	})
	if err != nil {
		return false, err
	}
	return added, nil
}

// Withdraw removes userID's entry. Returns whether one was removed.
func (s *GiveawayService) Withdraw(ctx context.Context, guildID, messageID, userID int64) (bool, error) {
	var removed bool
	err := store.MutateRecord(ctx, s.store, giveawayKey(guildID, messageID), func(rec *models.Giveaway, found bool) (store.RecordOp, error) {
		if !found {
			return store.OpSkip, models.ErrNoActiveSession
		}
		removed = rec.Withdraw(userID)
		if !removed {
			return store.OpSkip, nil
		}
		return store.OpWrite, nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// End closes entry and draws winners, whether called by the scheduler at the
// due time or by a manual early end. Ending an already-ended giveaway fails
// with ErrNoActiveSession, which the scheduler path treats as a no-op.
func (s *GiveawayService) End(ctx context.Context, guildID, messageID int64) (*models.Giveaway, error) {
	return s.draw(ctx, guildID, messageID, false)
}

// Reroll redraws winners from the same entrant set without reopening entry.
func (s *GiveawayService) Reroll(ctx context.Context, guildID, messageID int64) (*models.Giveaway, error) {
	return s.draw(ctx, guildID, messageID, true)
}

func (s *GiveawayService) draw(ctx context.Context, guildID, messageID int64, reroll bool) (*models.Giveaway, error) {
	pending := events.NewPendingBus(s.bus)
	var snapshot *models.Giveaway
	err := store.MutateRecord(ctx, s.store, giveawayKey(guildID, messageID), func(rec *models.Giveaway, found bool) (store.RecordOp, error) {
		if !found {
			return store.OpSkip, models.ErrNoActiveSession
		}
		var err error
		if reroll {
			err = rec.Reroll(s.rng.Sample)
		} else {
			err = rec.End(s.rng.Sample)
		}
		if err != nil {
			return store.OpSkip, err
		}
		copied := *rec
		snapshot = &copied
		pending.Publish(events.GiveawayEndedEvent{
			GuildID:   rec.GuildID,
			ChannelID: rec.ChannelID,
			MessageID: rec.MessageID,
			Prize:     rec.Prize,
			Winners:   rec.Winners,
			Rerolled:  reroll,
		})
		return store.OpWrite, nil
	})
	if err != nil {
		pending.Discard()
		return nil, err
	}
	pending.Flush(ctx)
	if !reroll {
		s.sched.CancelAction(ActionEndGiveaway, guildID, messageID)
	}
	return snapshot, nil
}

// Cancel closes an open giveaway without drawing winners.
func (s *GiveawayService) Cancel(ctx context.Context, guildID, messageID int64) error {
	err := store.MutateRecord(ctx, s.store, giveawayKey(guildID, messageID), func(rec *models.Giveaway, found bool) (store.RecordOp, error) {
		if !found {
			return store.OpSkip, models.ErrNoActiveSession
		}
		if err := rec.Cancel(); err != nil {
			return store.OpSkip, err
		}
		return store.OpWrite, nil
	})
	if err != nil {
		return err
	}
	s.sched.CancelAction(ActionEndGiveaway, guildID, messageID)
	return nil
}

// Rehydrate walks the stored giveaways after a restart: still-open ones get
// their end rescheduled, ones that came due while the process was down are
// drawn immediately. Returns how many were rescheduled.
func (s *GiveawayService) Rehydrate(ctx context.Context) (int, error) {
	entries, err := s.store.List(ctx, store.KindGiveaway)
	if err != nil {
		return 0, err
	}
	now := s.clock.Now()
	rescheduled := 0
	for _, entry := range entries {
		giveaway := new(models.Giveaway)
		if err := json.Unmarshal(entry.Value, giveaway); err != nil {
			log.WithFields(log.Fields{
				"key":   entry.Key.String(),
				"error": err,
			}).Warn("Discarding undecodable giveaway")
			continue
		}
		if !giveaway.IsOpen() {
			continue
		}
		if giveaway.EndsAt.After(now) {
			s.sched.Schedule(giveaway.EndsAt, Action{
				Kind:     ActionEndGiveaway,
				GuildID:  giveaway.GuildID,
				TargetID: giveaway.MessageID,
			})
			rescheduled++
			continue
		}
		if _, err := s.End(ctx, giveaway.GuildID, giveaway.MessageID); err != nil && !errors.Is(err, models.ErrNoActiveSession) {
			log.WithFields(log.Fields{
				"guildID":   giveaway.GuildID,
				"messageID": giveaway.MessageID,
				"error":     err,
			}).Warn("Failed to end overdue giveaway")
		}
	}
	return rescheduled, nil
}
