package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"arcade/config"
	"arcade/events"
	"arcade/models"
	"arcade/random"
	"arcade/store"
)

// fakeClock is a settable Clock shared by concurrent operations.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testCatalog(t *testing.T) *models.Catalog {
	t.Helper()
	catalog, err := config.LoadCatalog("")
	require.NoError(t, err)
	return catalog
}

// testLedger builds a ledger on a fresh in-memory store. rng may be nil for
// operations that never draw.
func testLedger(t *testing.T, rng random.Source) (*LedgerService, *fakeClock) {
	t.Helper()
	svc, _, clock := testLedgerWithBus(t, rng)
	return svc, clock
}

func testLedgerWithBus(t *testing.T, rng random.Source) (*LedgerService, *events.Bus, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	bus := events.NewBus()
	svc := NewLedgerService(store.NewMemory(), bus, testCatalog(t), clock, rng, nil)
	return svc, bus, clock
}

func testSessions(t *testing.T, rng random.Source) (*SessionService, *fakeClock) {
	t.Helper()
	svc, _, clock := testSessionsWithBus(t, rng)
	return svc, clock
}

func testSessionsWithBus(t *testing.T, rng random.Source) (*SessionService, *events.Bus, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	bus := events.NewBus()
	svc := NewSessionService(store.NewMemory(), bus, clock, rng)
	return svc, bus, clock
}

func testCounting(t *testing.T) (*CountingService, *events.Bus, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	bus := events.NewBus()
	svc := NewCountingService(store.NewMemory(), bus, clock)
	return svc, bus, clock
}

// testGiveaways builds a giveaway service whose scheduler is never started,
// so due entries fire only on an explicit Sweep.
func testGiveaways(t *testing.T, rng random.Source) (*GiveawayService, *Scheduler, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	sched := NewScheduler(clock, time.Hour, nil)
	svc := NewGiveawayService(store.NewMemory(), events.NewBus(), clock, rng, sched)
	return svc, sched, clock
}

func testGuilds(t *testing.T) (*GuildService, *Scheduler, *events.Bus, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	bus := events.NewBus()
	sched := NewScheduler(clock, time.Hour, nil)
	svc := NewGuildService(store.NewMemory(), bus, clock, sched)
	return svc, sched, bus, clock
}

// testEngine wires a full engine over an in-memory store with a one-hour
// sweep interval, so timers only fire when a test sweeps explicitly.
func testEngine(t *testing.T, rng random.Source) (*Engine, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	engine := NewEngine(store.NewMemory(), events.NewBus(), testCatalog(t), clock, rng, time.Hour, nil)
	return engine, clock
}
