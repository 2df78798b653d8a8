package service

import (
	"context"
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"

	"arcade/events"
	"arcade/models"
	"arcade/store"
)

// GuildService owns the per-guild administrative record: channel bindings,
// self-role messages and temporary mutes. Callers are assumed to have
// already verified admin rights.
type GuildService struct {
	store store.Store
	bus   *events.Bus
	clock Clock
	sched *Scheduler
}

// NewGuildService creates a new guild service.
func NewGuildService(st store.Store, bus *events.Bus, clock Clock, sched *Scheduler) *GuildService {
	return &GuildService{
		store: st,
		bus:   bus,
		clock: clock,
		sched: sched,
	}
}

// Config returns the guild record, or a fresh default when none is stored.
func (s *GuildService) Config(ctx context.Context, guildID int64) (*models.GuildConfig, error) {
	cfg, found, err := store.GetRecord[models.GuildConfig](ctx, s.store, guildKey(guildID))
	if err != nil {
		return nil, err
	}
	if !found {
		return models.NewGuildConfig(guildID, s.clock.Now()), nil
	}
	return cfg, nil
}

// BindChannel designates a channel for a feature; zero clears the binding.
func (s *GuildService) BindChannel(ctx context.Context, guildID int64, kind models.ChannelKind, channelID int64) error {
	if !kind.Valid() {
		return models.ErrIllegalAction
	}
	return s.mutateConfig(ctx, guildID, func(cfg *models.GuildConfig) error {
		switch kind {
		case models.ChannelEconomy:
			cfg.Channels.Economy = channelID
		case models.ChannelGames:
			cfg.Channels.Games = channelID
		case models.ChannelMusic:
			cfg.Channels.Music = channelID
		}
		return nil
	})
}

// BindSelfRole registers an emoji on a message to grant a role.
func (s *GuildService) BindSelfRole(ctx context.Context, guildID, messageID int64, emoji string, roleID int64) error {
	return s.mutateConfig(ctx, guildID, func(cfg *models.GuildConfig) error {
		return cfg.BindSelfRole(messageID, emoji, roleID)
	})
}

// UnbindSelfRole removes one emoji binding, or the whole message when emoji
// is empty. Returns whether anything was removed.
func (s *GuildService) UnbindSelfRole(ctx context.Context, guildID, messageID int64, emoji string) (bool, error) {
	var removed bool
	err := store.MutateRecord(ctx, s.store, guildKey(guildID), func(cfg *models.GuildConfig, found bool) (store.RecordOp, error) {
		if !found {
			return store.OpSkip, nil
		}
		removed = cfg.UnbindSelfRole(messageID, emoji)
		if !removed {
			return store.OpSkip, nil
		}
		cfg.UpdatedAt = s.clock.Now()
		return store.OpWrite, nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// ReactionRole resolves the role bound to an emoji on a message.
func (s *GuildService) ReactionRole(ctx context.Context, guildID, messageID int64, emoji string) (int64, bool, error) {
	cfg, found, err := store.GetRecord[models.GuildConfig](ctx, s.store, guildKey(guildID))
	if err != nil || !found {
		return 0, false, err
	}
	roleID, ok := cfg.SelfRole(messageID, emoji)
	return roleID, ok, nil
}

// Mute records a temporary mute and schedules its expiry. Muting again
// replaces the previous window.
func (s *GuildService) Mute(ctx context.Context, guildID, userID int64, duration time.Duration) (time.Time, error) {
	if duration <= 0 {
		return time.Time{}, models.ErrIllegalAction
	}
	expiry := s.clock.Now().Add(duration)
	err := s.mutateConfig(ctx, guildID, func(cfg *models.GuildConfig) error {
		cfg.SetMute(userID, expiry)
		return nil
	})
	if err != nil {
		return time.Time{}, err
	}
	s.sched.CancelAction(ActionExpireMute, guildID, userID)
	s.sched.Schedule(expiry, Action{
		Kind:     ActionExpireMute,
		GuildID:  guildID,
		TargetID: userID,
	})
	return expiry, nil
}

// Unmute lifts a mute early. Returns whether one was active.
func (s *GuildService) Unmute(ctx context.Context, guildID, userID int64) (bool, error) {
	var removed bool
	err := store.MutateRecord(ctx, s.store, guildKey(guildID), func(cfg *models.GuildConfig, found bool) (store.RecordOp, error) {
		if !found {
			return store.OpSkip, nil
		}
		removed = cfg.ClearMute(userID)
		if !removed {
			return store.OpSkip, nil
		}
		cfg.UpdatedAt = s.clock.Now()
		return store.OpWrite, nil
	})
	if err != nil {
		return false, err
	}
	s.sched.CancelAction(ActionExpireMute, guildID, userID)
	return removed, nil
}

// MuteExpiry returns the expiry of an active mute.
func (s *GuildService) MuteExpiry(ctx context.Context, guildID, userID int64) (time.Time, bool, error) {
	cfg, found, err := store.GetRecord[models.GuildConfig](ctx, s.store, guildKey(guildID))
	if err != nil || !found {
		return time.Time{}, false, err
	}
	expiry, ok := cfg.MuteExpiry(userID)
	return expiry, ok, nil
}

// ExpireMute is the scheduler's entry point for a due mute. A mute that was
// lifted or extended since scheduling is a no-op.
func (s *GuildService) ExpireMute(ctx context.Context, guildID, userID int64) error {
	pending := events.NewPendingBus(s.bus)
	err := store.MutateRecord(ctx, s.store, guildKey(guildID), func(cfg *models.GuildConfig, found bool) (store.RecordOp, error) {
		if !found {
			return store.OpSkip, nil
		}
		expiry, ok := cfg.MuteExpiry(userID)
		if !ok || expiry.After(s.clock.Now()) {
			return store.OpSkip, nil
		}
		cfg.ClearMute(userID)
		cfg.UpdatedAt = s.clock.Now()
		pending.Publish(events.MuteExpiredEvent{GuildID: guildID, UserID: userID})
		return store.OpWrite, nil
	})
	if err != nil {
		pending.Discard()
		return err
	}
	pending.Flush(ctx)
	return nil
}

// RehydrateMutes walks the stored guilds after a restart: mutes still in
// the future get their expiry rescheduled, ones that lapsed while the
// process was down are expired immediately. Returns how many were
// rescheduled.
func (s *GuildService) RehydrateMutes(ctx context.Context) (int, error) {
	entries, err := s.store.List(ctx, store.KindGuild)
	if err != nil {
		return 0, err
	}
	now := s.clock.Now()
	rescheduled := 0
	for _, entry := range entries {
		cfg := new(models.GuildConfig)
		if err := json.Unmarshal(entry.Value, cfg); err != nil {
			log.WithFields(log.Fields{
				"key":   entry.Key.String(),
				"error": err,
			}).Warn("Discarding undecodable guild config")
			continue
		}
		for userID, expiry := range cfg.Mutes {
			if expiry.After(now) {
				s.sched.Schedule(expiry, Action{
					Kind:     ActionExpireMute,
					GuildID:  cfg.GuildID,
					TargetID: userID,
				})
				rescheduled++
				continue
			}
			if err := s.ExpireMute(ctx, cfg.GuildID, userID); err != nil {
				log.WithFields(log.Fields{
					"guildID": cfg.GuildID,
					"userID":  userID,
					"error":   err,
				}).Warn("Failed to expire overdue mute")
			}
		}
	}
	return rescheduled, nil
}

func (s *GuildService) mutateConfig(ctx context.Context, guildID int64, fn func(cfg *models.GuildConfig) error) error {
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

// ensureGuildConfig initializes a default config in place when the record
// was absent.
func ensureGuildConfig(cfg *models.GuildConfig, found bool, guildID int64, now time.Time) {
	if !found {
		*cfg = *models.NewGuildConfig(guildID, now)
	}
}
