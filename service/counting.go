package service

import (
	"context"
	"strconv"
	"strings"

	"arcade/events"
	"arcade/models"
	"arcade/store"
)

// CountingService runs the per-guild counting chain. The whole
// check-and-advance runs inside the guild's store mutate, so two
// simultaneous correct-next-number messages cannot both be accepted.
type CountingService struct {
	store store.Store
	bus   *events.Bus
	clock Clock
}

// NewCountingService creates a new counting service.
func NewCountingService(st store.Store, bus *events.Bus, clock Clock) *CountingService {
	return &CountingService{
		store: st,
		bus:   bus,
		clock: clock,
	}
}

// HandleMessage runs one channel message against the counting chain.
// handled is false when the message is not a candidate count: not in the
// bound counting channel, or not a bare integer.
func (s *CountingService) HandleMessage(ctx context.Context, guildID, channelID, userID int64, content string) (outcome *models.CountOutcome, handled bool, err error) {
	number, numeric := parseCount(content)
	if !numeric {
		return nil, false, nil
	}

	pending := events.NewPendingBus(s.bus)
	err = store.MutateRecord(ctx, s.store, guildKey(guildID), func(cfg *models.GuildConfig, found bool) (store.RecordOp, error) {
		if !found || cfg.Channels.Counting == 0 || cfg.Channels.Counting != channelID {
			return store.OpSkip, nil
		}
		handled = true
		res := cfg.AdvanceCount(userID, number)
		outcome = &res
		if res.Milestone {
			pending.Publish(events.CountMilestoneEvent{
				GuildID:      guildID,
				ChannelID:    channelID,
				UserID:       userID,
				Count:        res.Count,
				NewHighScore: res.NewHighScore,
			})
		}
		if !res.Accepted && !res.Reset {
			// continue policy: nothing changed, nothing to write
			return store.OpSkip, nil
		}
		cfg.UpdatedAt = s.clock.Now()
		return store.OpWrite, nil
	})
	if err != nil {
		pending.Discard()
		return nil, false, err
	}
	pending.Flush(ctx)
	return outcome, handled, nil
}

// SetChannel binds the counting game to a channel and restarts the chain.
// A zero channel unbinds it.
func (s *CountingService) SetChannel(ctx context.Context, guildID, channelID int64) error {
	return s.mutateConfig(ctx, guildID, func(cfg *models.GuildConfig) error {
		cfg.BindCountingChannel(channelID)
		return nil
	})
}

// SetStrict toggles the same-user restriction.
func (s *CountingService) SetStrict(ctx context.Context, guildID int64, strict bool) error {
	return s.mutateConfig(ctx, guildID, func(cfg *models.GuildConfig) error {
		cfg.Counting.Strict = strict
		return nil
	})
}

// SetPolicy selects what a broken chain does.
func (s *CountingService) SetPolicy(ctx context.Context, guildID int64, policy models.FailPolicy) error {
	if !policy.Valid() {
		return models.ErrIllegalAction
	}
	return s.mutateConfig(ctx, guildID, func(cfg *models.GuildConfig) error {
		cfg.Counting.Policy = policy
		return nil
	})
}

// Status returns the chain state and its bound channel.
func (s *CountingService) Status(ctx context.Context, guildID int64) (models.Counting, int64, error) {
	cfg, found, err := store.GetRecord[models.GuildConfig](ctx, s.store, guildKey(guildID))
	if err != nil {
		return models.Counting{}, 0, err
	}
	if !found {
		fresh := models.NewGuildConfig(guildID, s.clock.Now())
		return fresh.Counting, 0, nil
	}
	return cfg.Counting, cfg.Channels.Counting, nil
}

func (s *CountingService) mutateConfig(ctx context.Context, guildID int64, fn func(cfg *models.GuildConfig) error) error {
	return store.MutateRecord(ctx, s.store, guildKey(guildID), func(cfg *models.GuildConfig, found bool) (store.RecordOp, error) {
		now := s.clock.Now()
		ensureGuildConfig(cfg, found, guildID, now)
		if err := fn(cfg); err != nil {
			return store.OpSkip, err
		}
		cfg.UpdatedAt = now
		return store.OpWrite, nil
	})
}

// parseCount reads a counting candidate: the whole message must be one
// integer.
func parseCount(content string) (int64, bool) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return 0, false
	}
	number, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, false
	}
	return number, true
}
