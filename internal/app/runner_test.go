package app

import (
	"context"
	"testing"
	"time"

	"barrierBot/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startRunner(t *testing.T, r *Runner) (context.Context, func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	return ctx, func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Error("runner did not stop")
		}
	}
}

func TestNewRunner_Validation(t *testing.T) {
	env := newTestEnv(t)
	_, err := NewRunner(nil, env.ex.events, RunnerConfig{}, env.logger)
	assert.Error(t, err)
	_, err = NewRunner(env.c, nil, RunnerConfig{}, env.logger)
	assert.Error(t, err)

	r, err := NewRunner(env.c, env.ex.events, RunnerConfig{}, env.logger)
	require.NoError(t, err)
	assert.Equal(t, defaultCheckInterval, r.cfg.CheckInterval)
}

func TestRunner_EventsAndTasksShareOneQueue(t *testing.T) {
	env := newTestEnv(t)
	r, err := NewRunner(env.c, env.ex.events, RunnerConfig{CheckInterval: time.Hour}, env.logger)
	require.NoError(t, err)
	ctx, stop := startRunner(t, r)
	defer stop()

	var order *domain.TrackedOrder
	var createErr error
	require.NoError(t, r.Do(ctx, func(c *Controller) {
		order, createErr = c.CreateOrder(ctx, domain.Buy, d("100"), barrierWith("", "0.03", 0), d("100"), "R")
	}))
	require.NoError(t, createErr)

	env.ex.events <- domain.EntryFillEvent{OrderID: order.OrderID, Amount: d("1"), Price: d("100"), Timestamp: testStart}

	var filled bool
	var tpCount int
	require.NoError(t, r.Do(ctx, func(c *Controller) {
		filled = order.IsFilled()
		tpCount = len(c.Book().UnfilledTakeProfitOrdersFor(order))
	}))
	assert.True(t, filled)
	assert.Equal(t, 1, tpCount)
}

func TestRunner_TickEntersAndChecks(t *testing.T) {
	env := newTestEnv(t)
	planner := FixedEntryPlanner{
		Side:           domain.Buy,
		QuoteAmount:    d("50"),
		PriceOffsetBps: d("10"),
		Barrier:        domain.DefaultTripleBarrier(),
		Ref:            "R",
	}
	r, err := NewRunner(env.c, env.ex.events, RunnerConfig{CheckInterval: 5 * time.Millisecond, Planner: planner}, env.logger)
	require.NoError(t, err)
	ctx, stop := startRunner(t, r)
	defer stop()

	trackedCount := func() int {
		var n int
		_ = r.Do(ctx, func(c *Controller) { n = len(c.Book().TrackedOrders()) })
		return n
	}
	assert.Eventually(t, func() bool { return trackedCount() == 1 }, time.Second, 5*time.Millisecond)

	// Further ticks see the active order and do not enter again.
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, trackedCount())
}

func TestRunner_ClosedEventChannel(t *testing.T) {
	env := newTestEnv(t)
	events := make(chan domain.Event)
	close(events)
	r, err := NewRunner(env.c, events, RunnerConfig{CheckInterval: time.Hour}, env.logger)
	require.NoError(t, err)
	ctx, stop := startRunner(t, r)
	defer stop()

	ran := false
	require.NoError(t, r.Do(ctx, func(*Controller) { ran = true }))
	assert.True(t, ran)
}

func TestRunner_DoRespectsContext(t *testing.T) {
	env := newTestEnv(t)
	r, err := NewRunner(env.c, env.ex.events, RunnerConfig{}, env.logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.Do(ctx, func(*Controller) {}), context.Canceled)
}
