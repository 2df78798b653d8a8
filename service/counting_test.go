package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arcade/events"
	"arcade/models"
)

func TestCountingAdvance(t *testing.T) {
	svc, _, _ := testCounting(t)
	ctx := context.Background()

	require.NoError(t, svc.SetChannel(ctx, 100, 300))

	outcome, handled, err := svc.HandleMessage(ctx, 100, 300, 201, "1")
	require.NoError(t, err)
	require.True(t, handled)
	assert.True(t, outcome.Accepted)
	assert.Equal(t, int64(1), outcome.Count)
	assert.True(t, outcome.NewHighScore)

	outcome, handled, err = svc.HandleMessage(ctx, 100, 300, 202, "2")
	require.NoError(t, err)
	require.True(t, handled)
	assert.True(t, outcome.Accepted)
	assert.Equal(t, int64(2), outcome.Count)

	state, bound, err := svc.Status(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(300), bound)
	assert.Equal(t, int64(2), state.Count)
	assert.Equal(t, int64(202), state.LastUserID)
	assert.Equal(t, int64(2), state.HighScore)
}

func TestCountingIgnoresUnboundAndForeignChannels(t *testing.T) {
	svc, _, _ := testCounting(t)
	ctx := context.Background()

	// Nothing bound yet.
	outcome, handled, err := svc.HandleMessage(ctx, 100, 300, 201, "1")
	require.NoError(t, err)
	assert.False(t, handled)
	assert.Nil(t, outcome)

	require.NoError(t, svc.SetChannel(ctx, 100, 300))

	// A number in some other channel is ordinary chatter.
	_, handled, err = svc.HandleMessage(ctx, 100, 999, 201, "1")
	require.NoError(t, err)
	assert.False(t, handled)

	state, _, err := svc.Status(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(0), state.Count)
}

func TestCountingIgnoresNonNumericMessages(t *testing.T) {
	svc, _, _ := testCounting(t)
	ctx := context.Background()

	require.NoError(t, svc.SetChannel(ctx, 100, 300))
	_, handled, err := svc.HandleMessage(ctx, 100, 300, 201, "1")
	require.NoError(t, err)
	require.True(t, handled)

	for _, content := range []string{"hello", "1 2", "3.5", "", "12abc", "nice 2"} {
		outcome, handled, err := svc.HandleMessage(ctx, 100, 300, 202, content)
		require.NoError(t, err)
		assert.False(t, handled, "content %q", content)
		assert.Nil(t, outcome)
	}

	// Chatter between counts never breaks the chain.
	outcome, handled, err := svc.HandleMessage(ctx, 100, 300, 202, " 2 ")
	require.NoError(t, err)
	require.True(t, handled)
	assert.True(t, outcome.Accepted)
	assert.Equal(t, int64(2), outcome.Count)
}

func TestCountingStrictRejectsSameUser(t *testing.T) {
	svc, _, _ := testCounting(t)
	ctx := context.Background()

	require.NoError(t, svc.SetChannel(ctx, 100, 300))

	_, _, err := svc.HandleMessage(ctx, 100, 300, 201, "1")
	require.NoError(t, err)

	// Default policy announces the break and resets.
	outcome, handled, err := svc.HandleMessage(ctx, 100, 300, 201, "2")
	require.NoError(t, err)
	require.True(t, handled)
	assert.False(t, outcome.Accepted)
	assert.True(t, outcome.Reset)
	assert.True(t, outcome.Announce)
	assert.Equal(t, int64(0), outcome.Count)

	require.NoError(t, svc.SetStrict(ctx, 100, false))

	_, _, err = svc.HandleMessage(ctx, 100, 300, 201, "1")
	require.NoError(t, err)
	outcome, _, err = svc.HandleMessage(ctx, 100, 300, 201, "2")
	require.NoError(t, err)
	assert.True(t, outcome.Accepted)
	assert.Equal(t, int64(2), outcome.Count)
}

func TestCountingRestartPolicyIsSilent(t *testing.T) {
	svc, _, _ := testCounting(t)
	ctx := context.Background()

	require.NoError(t, svc.SetChannel(ctx, 100, 300))
	require.NoError(t, svc.SetPolicy(ctx, 100, models.FailPolicyRestart))

	_, _, err := svc.HandleMessage(ctx, 100, 300, 201, "1")
	require.NoError(t, err)

	outcome, _, err := svc.HandleMessage(ctx, 100, 300, 202, "5")
	require.NoError(t, err)
	assert.False(t, outcome.Accepted)
	assert.True(t, outcome.Reset)
	assert.False(t, outcome.Announce)
	assert.Equal(t, int64(0), outcome.Count)
}

func TestCountingContinuePolicy(t *testing.T) {
	svc, _, _ := testCounting(t)
	ctx := context.Background()

	require.NoError(t, svc.SetChannel(ctx, 100, 300))
	require.NoError(t, svc.SetPolicy(ctx, 100, models.FailPolicyContinue))

	for i := 1; i <= 5; i++ {
		_, _, err := svc.HandleMessage(ctx, 100, 300, int64(200+i%2), fmt.Sprintf("%d", i))
		require.NoError(t, err)
	}

	// A wrong number leaves the chain exactly where it was.
	outcome, handled, err := svc.HandleMessage(ctx, 100, 300, 202, "7")
	require.NoError(t, err)
	require.True(t, handled)
	assert.False(t, outcome.Accepted)
	assert.False(t, outcome.Reset)
	assert.Equal(t, int64(5), outcome.Count)

	outcome, _, err = svc.HandleMessage(ctx, 100, 300, 202, "6")
	require.NoError(t, err)
	assert.True(t, outcome.Accepted)
	assert.Equal(t, int64(6), outcome.Count)
}

func TestCountingConcurrentSameNumber(t *testing.T) {
	svc, _, _ := testCounting(t)
	ctx := context.Background()

	require.NoError(t, svc.SetChannel(ctx, 100, 300))
	require.NoError(t, svc.SetPolicy(ctx, 100, models.FailPolicyContinue))

	const workers = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0

	for i := 0; i < workers; i++ {
		userID := int64(201 + i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, handled, err := svc.HandleMessage(ctx, 100, 300, userID, "1")
			if err != nil || !handled {
				t.Errorf("handled=%v err=%v", handled, err)
				return
			}
			if outcome.Accepted {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)

	state, _, err := svc.Status(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(1), state.Count)
}

func TestCountingMilestoneEvent(t *testing.T) {
	svc, bus, _ := testCounting(t)
	ctx := context.Background()

	received := make(chan events.Event, 1)
	bus.Subscribe(events.EventTypeCountMilestone, func(ctx context.Context, event events.Event) {
		received <- event
	})

	require.NoError(t, svc.SetChannel(ctx, 100, 300))

	for i := 1; i <= 10; i++ {
		outcome, _, err := svc.HandleMessage(ctx, 100, 300, int64(200+i%2), fmt.Sprintf("%d", i))
		require.NoError(t, err)
		require.True(t, outcome.Accepted)
		assert.Equal(t, i == 10, outcome.Milestone)
	}

	select {
	case event := <-received:
		milestone, ok := event.(events.CountMilestoneEvent)
		require.True(t, ok)
		assert.Equal(t, int64(100), milestone.GuildID)
		assert.Equal(t, int64(300), milestone.ChannelID)
		assert.Equal(t, int64(10), milestone.Count)
		assert.True(t, milestone.NewHighScore)
	case <-time.After(time.Second):
		t.Fatal("expected a count_milestone event")
	}
}

func TestCountingHighScoreSurvivesReset(t *testing.T) {
	svc, _, _ := testCounting(t)
	ctx := context.Background()

	require.NoError(t, svc.SetChannel(ctx, 100, 300))

	for i := 1; i <= 3; i++ {
		_, _, err := svc.HandleMessage(ctx, 100, 300, int64(200+i%2), fmt.Sprintf("%d", i))
		require.NoError(t, err)
	}
	// Break the chain.
	_, _, err := svc.HandleMessage(ctx, 100, 300, 201, "9")
	require.NoError(t, err)

	state, _, err := svc.Status(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(0), state.Count)
	assert.Equal(t, int64(3), state.HighScore)

	// Climbing back does not re-celebrate old ground.
	for i := 1; i <= 3; i++ {
		outcome, _, err := svc.HandleMessage(ctx, 100, 300, int64(200+i%2), fmt.Sprintf("%d", i))
		require.NoError(t, err)
		assert.False(t, outcome.NewHighScore)
	}
	outcome, _, err := svc.HandleMessage(ctx, 100, 300, 202, "4")
	require.NoError(t, err)
	assert.True(t, outcome.NewHighScore)
}

func TestCountingRebindResetsChain(t *testing.T) {
	svc, _, _ := testCounting(t)
	ctx := context.Background()

	require.NoError(t, svc.SetChannel(ctx, 100, 300))
	_, _, err := svc.HandleMessage(ctx, 100, 300, 201, "1")
	require.NoError(t, err)
	_, _, err = svc.HandleMessage(ctx, 100, 300, 202, "2")
	require.NoError(t, err)

	require.NoError(t, svc.SetChannel(ctx, 100, 301))

	state, bound, err := svc.Status(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(301), bound)
	assert.Equal(t, int64(0), state.Count)

	// The last-counter restriction resets with the chain.
	outcome, handled, err := svc.HandleMessage(ctx, 100, 301, 202, "1")
	require.NoError(t, err)
	require.True(t, handled)
	assert.True(t, outcome.Accepted)

	// Unbinding turns counting off entirely.
	require.NoError(t, svc.SetChannel(ctx, 100, 0))
	_, handled, err = svc.HandleMessage(ctx, 100, 301, 201, "2")
	require.NoError(t, err)
	assert.False(t, handled)
}

func TestCountingSetPolicyValidation(t *testing.T) {
	svc, _, _ := testCounting(t)
	ctx := context.Background()

	err := svc.SetPolicy(ctx, 100, models.FailPolicy("explode"))
	assert.ErrorIs(t, err, models.ErrIllegalAction)
}

func TestCountingStatusDefaults(t *testing.T) {
	svc, _, _ := testCounting(t)
	ctx := context.Background()

	state, bound, err := svc.Status(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(0), bound)
	assert.Equal(t, int64(0), state.Count)
	assert.True(t, state.Strict)
	assert.Equal(t, models.FailPolicyResetMessage, state.Policy)
}
