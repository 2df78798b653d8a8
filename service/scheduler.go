package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"arcade/observability"
)

// ActionKind names what a scheduled entry should do when due.
type ActionKind string

const (
	ActionEndGiveaway     ActionKind = "end_giveaway"
	ActionExpireMute      ActionKind = "expire_mute"
	ActionCooldownElapsed ActionKind = "cooldown_elapsed"
)

// Action is the resumption target of a timed entry. Firing one re-enters the
// services through the same per-key mutate as any command, so a fire racing
// a manual operation is safe; a fire whose target is gone is a no-op.
type Action struct {
	Kind     ActionKind
	GuildID  int64
	TargetID int64
	// Claim names which cooldown elapsed for ActionCooldownElapsed.
	Claim string
}

// ActionFunc handles a due action.
type ActionFunc func(ctx context.Context, action Action)

type scheduled struct {
	due    time.Time
	action Action
}

// Scheduler holds pending timed actions and fires them on a coarse periodic
// sweep. Entries are removed from the pending set before their handler runs,
// so a slow handler cannot double-fire on the next sweep.
type Scheduler struct {
	clock    Clock
	interval time.Duration
	metrics  *observability.MetricsProvider

	mu      sync.Mutex
	pending map[uuid.UUID]scheduled
	handler ActionFunc
	running bool

	stop chan struct{}
	done chan struct{}
}

// NewScheduler creates a scheduler sweeping at the given interval.
func NewScheduler(clock Clock, interval time.Duration, metrics *observability.MetricsProvider) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Scheduler{
		clock:    clock,
		interval: interval,
		metrics:  metrics,
		pending:  make(map[uuid.UUID]scheduled),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Bind sets the handler invoked for due actions. Must be called before Start.
func (s *Scheduler) Bind(fn ActionFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = fn
}

// Schedule registers an action to fire once due has passed.
func (s *Scheduler) Schedule(due time.Time, action Action) uuid.UUID {
	id := uuid.New()
	s.mu.Lock()
	s.pending[id] = scheduled{due: due, action: action}
	s.mu.Unlock()

	log.WithFields(log.Fields{
		"id":       id,
		"kind":     action.Kind,
		"guildID":  action.GuildID,
		"targetID": action.TargetID,
		"due":      due,
	}).Debug("Scheduled action")
	return id
}

// Cancel removes a pending entry, reporting whether it was still pending.
func (s *Scheduler) Cancel(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[id]
	delete(s.pending, id)
	return ok
}

// CancelAction removes every pending entry matching the target. Returns how
// many were removed.
func (s *Scheduler) CancelAction(kind ActionKind, guildID, targetID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, entry := range s.pending {
		a := entry.action
		if a.Kind == kind && a.GuildID == guildID && a.TargetID == targetID {
			delete(s.pending, id)
			removed++
		}
	}
	return removed
}

// PendingCount returns the size of the pending set.
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Start launches the sweep loop. Idempotent.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	go s.run(ctx)
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Stop halts the sweep loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	running := s.running
	s.running = false
	s.mu.Unlock()
	if !running {
		return
	}
	close(s.stop)
	<-s.done
}

// Sweep fires every action whose due time has elapsed, oldest first. Each
// entry leaves the pending set before its handler runs. Returns how many
// fired.
func (s *Scheduler) Sweep(ctx context.Context) int {
	start := time.Now()
	now := s.clock.Now()

	s.mu.Lock()
	handler := s.handler
	var due []scheduled
	for id, entry := range s.pending {
		if entry.due.After(now) {
			continue
		}
		due = append(due, entry)
		delete(s.pending, id)
	}
	s.mu.Unlock()

	if len(due) == 0 {
		return 0
	}
	sort.Slice(due, func(i, j int) bool { return due[i].due.Before(due[j].due) })

	for _, entry := range due {
		s.fire(ctx, handler, entry.action)
	}
	s.metrics.RecordSweep(time.Since(start))
	return len(due)
}

func (s *Scheduler) fire(ctx context.Context, handler ActionFunc, action Action) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"kind":     action.Kind,
				"guildID":  action.GuildID,
				"targetID": action.TargetID,
				"panic":    r,
			}).Error("Action handler panicked")
		}
	}()

	if handler == nil {
		log.WithField("kind", action.Kind).Warn("Dropping due action, no handler bound")
		return
	}
	log.WithFields(log.Fields{
		"kind":     action.Kind,
		"guildID":  action.GuildID,
		"targetID": action.TargetID,
	}).Debug("Firing scheduled action")
	s.metrics.RecordActionFired(string(action.Kind))
	handler(ctx, action)
}
