package replay

import (
	"context"
	"testing"
	"time"

	"barrierBot/internal/app"
	"barrierBot/internal/domain"
	"barrierBot/internal/ports"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func series(ohlc ...[4]string) []*domain.Kline {
	klines := make([]*domain.Kline, 0, len(ohlc))
	for i, v := range ohlc {
		klines = append(klines, &domain.Kline{
			OpenTime:  t0.Add(time.Duration(i) * time.Minute),
			CloseTime: t0.Add(time.Duration(i+1)*time.Minute - time.Millisecond),
			Symbol:    "BTCUSDT",
			Interval:  "1m",
			Open:      d(v[0]),
			High:      d(v[1]),
			Low:       d(v[2]),
			Close:     d(v[3]),
			IsFinal:   true,
		})
	}
	return klines
}

func baseConfig(planner ports.EntryPlanner) Config {
	return Config{
		Controller: app.ControllerConfig{
			ConnectorName: "paper",
			TradingPair:   "BTC-USDT",
		},
		Planner: planner,
	}
}

func barrier(stopLoss, takeProfit string) domain.TripleBarrier {
	b := domain.DefaultTripleBarrier()
	if stopLoss != "" {
		b.StopLossDelta = d(stopLoss)
	}
	if takeProfit != "" {
		b.TakeProfitDelta = d(takeProfit)
	}
	return b
}

func TestRun_TakeProfitRoundTrip(t *testing.T) {
	klines := series(
		[4]string{"100", "100.5", "99.5", "100"},
		[4]string{"100", "101", "99.8", "100.5"},
		[4]string{"100.5", "103.5", "100.2", "103"},
	)
	planner := app.FixedEntryPlanner{
		Side:        domain.Buy,
		QuoteAmount: d("100"),
		Barrier:     barrier("0.02", "0.03"),
		Ref:         "R",
		Cooldown:    time.Hour,
	}

	res, err := Run(context.Background(), klines, baseConfig(planner), ports.NopLogger{})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Klines)
	assert.Equal(t, 1, res.OrdersOpened)
	assert.Equal(t, 1, res.OrdersFilled)
	assert.Equal(t, map[domain.CloseType]int{domain.CloseTypeTakeProfit: 1}, res.ClosedByType)
	assert.Equal(t, 1, res.TakeProfitOrders)
	assert.Equal(t, 2, res.Fills)
	assert.True(t, d("3").Equal(res.NetPnL), "got %s", res.NetPnL)
	assert.True(t, res.FinalPosition.IsZero())
	assert.True(t, res.MaxDrawdown.IsZero())
	assert.Zero(t, res.OpenBuys)
	assert.Equal(t, 3*time.Minute-time.Millisecond, res.Duration)
}

func TestRun_StopLoss(t *testing.T) {
	klines := series(
		[4]string{"100", "100.2", "99.8", "100"},
		[4]string{"100", "100.5", "99.9", "100.2"},
		[4]string{"100.2", "102.6", "100", "102.5"},
	)
	planner := app.FixedEntryPlanner{
		Side:        domain.Sell,
		QuoteAmount: d("100"),
		Barrier:     barrier("0.02", ""),
		Ref:         "R",
		Cooldown:    time.Hour,
	}

	res, err := Run(context.Background(), klines, baseConfig(planner), ports.NopLogger{})
	require.NoError(t, err)

	assert.Equal(t, map[domain.CloseType]int{domain.CloseTypeStopLoss: 1}, res.ClosedByType)
	assert.Zero(t, res.TakeProfitOrders)
	assert.True(t, d("-2.5").Equal(res.NetPnL), "got %s", res.NetPnL)
	assert.True(t, d("2.5").Equal(res.MaxDrawdown), "got %s", res.MaxDrawdown)
	assert.True(t, res.FinalPosition.IsZero())
}

func TestRun_OpenPositionAtEnd(t *testing.T) {
	klines := series(
		[4]string{"100", "100.2", "99.8", "100"},
		[4]string{"100", "100.5", "99.9", "100.2"},
		[4]string{"100.2", "105.5", "100", "105"},
	)
	planner := app.FixedEntryPlanner{
		Side:        domain.Buy,
		QuoteAmount: d("100"),
		Barrier:     domain.DefaultTripleBarrier(),
		Ref:         "R",
	}

	res, err := Run(context.Background(), klines, baseConfig(planner), ports.NopLogger{})
	require.NoError(t, err)

	assert.Empty(t, res.ClosedByType)
	assert.Equal(t, 1, res.OpenBuys)
	assert.Zero(t, res.OpenSells)
	assert.True(t, d("5").Equal(res.OpenBuyPnLPct), "got %s", res.OpenBuyPnLPct)
	assert.True(t, d("100").Equal(res.AverageBuyPrice))
	assert.True(t, d("1").Equal(res.FinalPosition))
	assert.True(t, d("5").Equal(res.NetPnL))
}

func TestRun_WithoutPlanner(t *testing.T) {
	res, err := Run(context.Background(), series([4]string{"1", "1", "1", "1"}), baseConfig(nil), ports.NopLogger{})
	require.NoError(t, err)
	assert.Zero(t, res.OrdersOpened)
	assert.True(t, res.NetPnL.IsZero())
}

func TestRun_Errors(t *testing.T) {
	ctx := context.Background()
	one := series([4]string{"1", "1", "1", "1"})

	_, err := Run(ctx, nil, baseConfig(nil), ports.NopLogger{})
	assert.Error(t, err)

	_, err = Run(ctx, one, baseConfig(nil), nil)
	assert.Error(t, err)

	_, err = Run(ctx, one, Config{}, ports.NopLogger{})
	assert.Error(t, err, "connector and pair are required")

	unsorted := series([4]string{"1", "1", "1", "1"}, [4]string{"1", "1", "1", "1"})
	unsorted[0], unsorted[1] = unsorted[1], unsorted[0]
	_, err = Run(ctx, unsorted, baseConfig(nil), ports.NopLogger{})
	assert.ErrorContains(t, err, "not sorted")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = Run(cancelled, one, baseConfig(nil), ports.NopLogger{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEntryGuard(t *testing.T) {
	calm := series(
		[4]string{"100", "100.5", "99.5", "100"},
		[4]string{"100", "100.5", "99.5", "100"},
		[4]string{"100", "110", "90", "100"},
	)
	now := t0.Add(10 * time.Minute)
	recent := []*domain.TrackedOrder{{OrderID: "a", CreatedAt: now.Add(-time.Minute)}}

	tests := []struct {
		name    string
		guard   EntryGuard
		history []*domain.Kline
		orders  []*domain.TrackedOrder
		want    bool
	}{
		{name: "disabled", guard: EntryGuard{}, history: calm, orders: recent, want: true},
		{name: "calm window", guard: EntryGuard{MaxRecentMovePct: d("2"), Window: 2, ExcludedRecent: 1}, history: calm, want: true},
		{name: "volatile window", guard: EntryGuard{MaxRecentMovePct: d("2"), Window: 2}, history: calm, want: false},
		{name: "not enough history", guard: EntryGuard{MaxRecentMovePct: d("2"), Window: 5}, history: calm, want: false},
		{name: "recent entry", guard: EntryGuard{MinSpacing: 5 * time.Minute}, history: calm, orders: recent, want: false},
		{name: "spaced entry", guard: EntryGuard{MinSpacing: time.Minute}, history: calm, orders: recent, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.guard.allows(tt.history, tt.orders, now))
		})
	}
}
