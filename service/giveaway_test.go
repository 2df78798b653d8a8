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
	"arcade/store"
)

func TestGiveawayLifecycle(t *testing.T) {
	svc, sched, clock := testGiveaways(t, random.Sequence(1, 0))
	ctx := context.Background()

	giveaway, err := svc.Start(ctx, 100, 300, 400, 200, "Nitro", 2, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, models.GiveawayStateOpen, giveaway.State)
	assert.Equal(t, clock.Now().Add(time.Hour), giveaway.EndsAt)
	assert.Equal(t, 1, sched.PendingCount())

	for _, userID := range []int64{201, 202, 203} {
		added, err := svc.Enter(ctx, 100, 400, userID)
		require.NoError(t, err)
		assert.True(t, added)
	}

	// Re-entry is a silent no-op.
	added, err := svc.Enter(ctx, 100, 400, 202)
	require.NoError(t, err)
	assert.False(t, added)

	removed, err := svc.Withdraw(ctx, 100, 400, 202)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = svc.Withdraw(ctx, 100, 400, 202)
	require.NoError(t, err)
	assert.False(t, removed)

	ended, err := svc.End(ctx, 100, 400)
	require.NoError(t, err)
	assert.Equal(t, models.GiveawayStateEnded, ended.State)
	assert.Equal(t, []int64{203, 201}, ended.Winners)
	assert.Equal(t, 0, sched.PendingCount())

	// The record survives its end for rerolls.
	stored, err := svc.Get(ctx, 100, 400)
	require.NoError(t, err)
	assert.Equal(t, models.GiveawayStateEnded, stored.State)
	assert.Equal(t, []int64{201, 203}, stored.Entrants)
}

func TestGiveawayZeroEntrants(t *testing.T) {
	// An empty script proves no draw happens with nobody entered.
	svc, _, _ := testGiveaways(t, random.Sequence())
	ctx := context.Background()

	_, err := svc.Start(ctx, 100, 300, 400, 200, "Nitro", 3, time.Hour)
	require.NoError(t, err)

	ended, err := svc.End(ctx, 100, 400)
	require.NoError(t, err)
	assert.Equal(t, models.GiveawayStateEnded, ended.State)
	assert.Empty(t, ended.Winners)
}

func TestGiveawayWinnersCappedByEntrants(t *testing.T) {
	svc, _, _ := testGiveaways(t, random.Sequence(1, 0))
	ctx := context.Background()

	_, err := svc.Start(ctx, 100, 300, 400, 200, "Nitro", 5, time.Hour)
	require.NoError(t, err)
	_, err = svc.Enter(ctx, 100, 400, 201)
	require.NoError(t, err)
	_, err = svc.Enter(ctx, 100, 400, 202)
	require.NoError(t, err)

	ended, err := svc.End(ctx, 100, 400)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{201, 202}, ended.Winners)
}

func TestGiveawayEndTwice(t *testing.T) {
	svc, _, _ := testGiveaways(t, random.Sequence())
	ctx := context.Background()

	_, err := svc.Start(ctx, 100, 300, 400, 200, "Nitro", 1, time.Hour)
	require.NoError(t, err)
	_, err = svc.End(ctx, 100, 400)
	require.NoError(t, err)

	// The second end is what a late scheduler fire looks like.
	_, err = svc.End(ctx, 100, 400)
	assert.ErrorIs(t, err, models.ErrNoActiveSession)
}

func TestGiveawayClosedToLateEntries(t *testing.T) {
	svc, _, _ := testGiveaways(t, random.Sequence())
	ctx := context.Background()

	_, err := svc.Start(ctx, 100, 300, 400, 200, "Nitro", 1, time.Hour)
	require.NoError(t, err)
	_, err = svc.End(ctx, 100, 400)
	require.NoError(t, err)

	_, err = svc.Enter(ctx, 100, 400, 201)
	assert.ErrorIs(t, err, models.ErrNoActiveSession)

	removed, err := svc.Withdraw(ctx, 100, 400, 201)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestGiveawayEnterUnknownMessage(t *testing.T) {
	svc, _, _ := testGiveaways(t, nil)
	ctx := context.Background()

	_, err := svc.Enter(ctx, 100, 400, 201)
	assert.ErrorIs(t, err, models.ErrNoActiveSession)
	_, err = svc.Get(ctx, 100, 400)
	assert.ErrorIs(t, err, models.ErrNoActiveSession)
}

func TestGiveawayReroll(t *testing.T) {
	svc, _, _ := testGiveaways(t, random.Sequence(0, 2))
	ctx := context.Background()

	_, err := svc.Start(ctx, 100, 300, 400, 200, "Nitro", 1, time.Hour)
	require.NoError(t, err)
	for _, userID := range []int64{201, 202, 203} {
		_, err = svc.Enter(ctx, 100, 400, userID)
		require.NoError(t, err)
	}

	ended, err := svc.End(ctx, 100, 400)
	require.NoError(t, err)
	assert.Equal(t, []int64{201}, ended.Winners)

	rerolled, err := svc.Reroll(ctx, 100, 400)
	require.NoError(t, err)
	assert.Equal(t, []int64{203}, rerolled.Winners)
	assert.Equal(t, models.GiveawayStateEnded, rerolled.State)
}

func TestGiveawayRerollRequiresEnded(t *testing.T) {
	svc, _, _ := testGiveaways(t, nil)
	ctx := context.Background()

	_, err := svc.Start(ctx, 100, 300, 400, 200, "Nitro", 1, time.Hour)
	require.NoError(t, err)

	_, err = svc.Reroll(ctx, 100, 400)
	assert.ErrorIs(t, err, models.ErrIllegalAction)
}

func TestGiveawayCancel(t *testing.T) {
	svc, sched, _ := testGiveaways(t, nil)
	ctx := context.Background()

	_, err := svc.Start(ctx, 100, 300, 400, 200, "Nitro", 1, time.Hour)
	require.NoError(t, err)
	_, err = svc.Enter(ctx, 100, 400, 201)
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(ctx, 100, 400))
	assert.Equal(t, 0, sched.PendingCount())

	stored, err := svc.Get(ctx, 100, 400)
	require.NoError(t, err)
	assert.Equal(t, models.GiveawayStateCancelled, stored.State)
	assert.Empty(t, stored.Winners)

	_, err = svc.End(ctx, 100, 400)
	assert.ErrorIs(t, err, models.ErrNoActiveSession)
	_, err = svc.Enter(ctx, 100, 400, 202)
	assert.ErrorIs(t, err, models.ErrNoActiveSession)
}

func TestGiveawayStartValidation(t *testing.T) {
	svc, _, _ := testGiveaways(t, nil)
	ctx := context.Background()

	_, err := svc.Start(ctx, 100, 300, 400, 200, "", 1, time.Hour)
	assert.ErrorIs(t, err, models.ErrIllegalAction)
	_, err = svc.Start(ctx, 100, 300, 400, 200, "Nitro", 0, time.Hour)
	assert.ErrorIs(t, err, models.ErrIllegalAction)
	_, err = svc.Start(ctx, 100, 300, 400, 200, "Nitro", models.MaxGiveawayWinners+1, time.Hour)
	assert.ErrorIs(t, err, models.ErrIllegalAction)
	_, err = svc.Start(ctx, 100, 300, 400, 200, "Nitro", 1, 0)
	assert.ErrorIs(t, err, models.ErrIllegalAction)
}

func TestGiveawayDoubleStartSameMessage(t *testing.T) {
	svc, sched, _ := testGiveaways(t, nil)
	ctx := context.Background()

	_, err := svc.Start(ctx, 100, 300, 400, 200, "Nitro", 1, time.Hour)
	require.NoError(t, err)
	_, err = svc.Start(ctx, 100, 300, 400, 200, "Other", 1, time.Hour)
	assert.ErrorIs(t, err, models.ErrSessionConflict)
	assert.Equal(t, 1, sched.PendingCount())
}

func TestGiveawayEndedEvent(t *testing.T) {
	clock := newFakeClock()
	bus := events.NewBus()
	sched := NewScheduler(clock, time.Hour, nil)
	svc := NewGiveawayService(store.NewMemory(), bus, clock, random.Sequence(0), sched)
	ctx := context.Background()

	received := make(chan events.Event, 1)
	bus.Subscribe(events.EventTypeGiveawayEnded, func(ctx context.Context, event events.Event) {
		received <- event
	})

	_, err := svc.Start(ctx, 100, 300, 400, 200, "Nitro", 1, time.Hour)
	require.NoError(t, err)
	_, err = svc.Enter(ctx, 100, 400, 201)
	require.NoError(t, err)
	_, err = svc.End(ctx, 100, 400)
	require.NoError(t, err)

	select {
	case event := <-received:
		ended, ok := event.(events.GiveawayEndedEvent)
		require.True(t, ok)
		assert.Equal(t, int64(100), ended.GuildID)
		assert.Equal(t, int64(300), ended.ChannelID)
		assert.Equal(t, int64(400), ended.MessageID)
		assert.Equal(t, "Nitro", ended.Prize)
		assert.Equal(t, []int64{201}, ended.Winners)
		assert.False(t, ended.Rerolled)
	case <-time.After(time.Second):
		t.Fatal("expected a giveaway_ended event")
	}
}

func TestGiveawayRehydrate(t *testing.T) {
	st := store.NewMemory()
	clock := newFakeClock()
	bus := events.NewBus()
	sched := NewScheduler(clock, time.Hour, nil)
	svc := NewGiveawayService(st, bus, clock, random.Sequence(0), sched)
	ctx := context.Background()

	_, err := svc.Start(ctx, 100, 300, 400, 200, "Nitro", 1, 2*time.Hour)
	require.NoError(t, err)
	_, err = svc.Start(ctx, 100, 300, 401, 200, "Stickers", 1, 30*time.Minute)
	require.NoError(t, err)
	_, err = svc.Enter(ctx, 100, 401, 201)
	require.NoError(t, err)

	// A restart loses the in-memory timers but not the records.
	clock.Advance(time.Hour)
	restartedSched := NewScheduler(clock, time.Hour, nil)
	restarted := NewGiveawayService(st, bus, clock, random.Sequence(0), restartedSched)

	rescheduled, err := restarted.Rehydrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rescheduled)
	assert.Equal(t, 1, restartedSched.PendingCount())

	// The overdue one was drawn on the spot.
	overdue, err := restarted.Get(ctx, 100, 401)
	require.NoError(t, err)
	assert.Equal(t, models.GiveawayStateEnded, overdue.State)
	assert.Equal(t, []int64{201}, overdue.Winners)

	still, err := restarted.Get(ctx, 100, 400)
	require.NoError(t, err)
	assert.Equal(t, models.GiveawayStateOpen, still.State)
}
