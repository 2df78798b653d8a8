package service

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"arcade/events"
	"arcade/models"
	"arcade/observability"
	"arcade/random"
	"arcade/store"
)

// Engine is the process-wide state object: every service, the bus and the
// scheduler, constructed once at startup and passed down explicitly. There
// are no package-level instances anywhere in the engine.
type Engine struct {
	Store     store.Store
	Bus       *events.Bus
	Catalog   *models.Catalog
	Ledger    *LedgerService
	Sessions  *SessionService
	Giveaways *GiveawayService
	Counting  *CountingService
	Guilds    *GuildService
	Scheduler *Scheduler

	clock Clock
}

// NewEngine wires the services around one store, bus and clock. metrics may
// be nil.
func NewEngine(st store.Store, bus *events.Bus, catalog *models.Catalog, clock Clock, rng random.Source, sweepInterval time.Duration, metrics *observability.MetricsProvider) *Engine {
	sched := NewScheduler(clock, sweepInterval, metrics)
	e := &Engine{
		Store:     st,
		Bus:       bus,
		Catalog:   catalog,
		Ledger:    NewLedgerService(st, bus, catalog, clock, rng, sched),
		Sessions:  NewSessionService(st, bus, clock, rng),
		Giveaways: NewGiveawayService(st, bus, clock, rng, sched),
		Counting:  NewCountingService(st, bus, clock),
		Guilds:    NewGuildService(st, bus, clock, sched),
		Scheduler: sched,
		clock:     clock,
	}
	sched.Bind(e.handleAction)
	return e
}

// Rehydrate re-registers timed work from persisted state after a restart.
func (e *Engine) Rehydrate(ctx context.Context) error {
	giveaways, err := e.Giveaways.Rehydrate(ctx)
	if err != nil {
		return err
	}
	mutes, err := e.Guilds.RehydrateMutes(ctx)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"giveaways": giveaways,
		"mutes":     mutes,
	}).Info("Rescheduled timed work from store")
	return nil
}

// Start launches the scheduler sweep loop.
func (e *Engine) Start(ctx context.Context) {
	e.Scheduler.Start(ctx)
}

// Stop halts the scheduler.
func (e *Engine) Stop() {
	e.Scheduler.Stop()
}

// Close stops background work and releases the store.
func (e *Engine) Close() error {
	e.Stop()
	return e.Store.Close()
}

// handleAction is the scheduler's callback. Every branch re-enters a
// service through the normal per-key mutate; a target that is gone or
// already handled is a no-op.
func (e *Engine) handleAction(ctx context.Context, action Action) {
	switch action.Kind {
	case ActionEndGiveaway:
		_, err := e.Giveaways.End(ctx, action.GuildID, action.TargetID)
		if errors.Is(err, models.ErrNoActiveSession) {
			log.WithFields(log.Fields{
				"guildID":   action.GuildID,
				"messageID": action.TargetID,
			}).Debug("Giveaway already resolved before timer fired")
			return
		}
		if err != nil {
			log.WithFields(log.Fields{
				"guildID":   action.GuildID,
				"messageID": action.TargetID,
				"error":     err,
			}).Error("Failed to end giveaway from timer")
		}
	case ActionExpireMute:
		if err := e.Guilds.ExpireMute(ctx, action.GuildID, action.TargetID); err != nil {
			log.WithFields(log.Fields{
				"guildID": action.GuildID,
				"userID":  action.TargetID,
				"error":   err,
			}).Error("Failed to expire mute from timer")
		}
	case ActionCooldownElapsed:
		e.Bus.Emit(ctx, events.CooldownElapsedEvent{
			GuildID: action.GuildID,
			UserID:  action.TargetID,
			Claim:   action.Claim,
		})
	default:
		log.WithField("kind", action.Kind).Warn("Unknown scheduled action kind")
	}
}
