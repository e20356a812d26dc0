package paper

import (
	"context"
	"testing"
	"time"

	"barrierBot/internal/domain"
	"barrierBot/internal/ports"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func kline(i int, open, high, low, close string) *domain.Kline {
	return &domain.Kline{
		OpenTime:  t0.Add(time.Duration(i) * time.Minute),
		CloseTime: t0.Add(time.Duration(i+1)*time.Minute - time.Millisecond),
		Open:      dec(open),
		High:      dec(high),
		Low:       dec(low),
		Close:     dec(close),
		IsFinal:   true,
	}
}

func newExchange(t *testing.T) *Exchange {
	t.Helper()
	e, err := New(Config{ConnectorName: "paper", TradingPair: "BTC-USDT", HalfSpread: dec("0.001")}, ports.NopLogger{})
	require.NoError(t, err)
	return e
}

func request(side domain.TradeSide, orderType domain.OrderType, price string, action domain.PositionAction) ports.OrderRequest {
	return ports.OrderRequest{
		ConnectorName:  "paper",
		TradingPair:    "BTC-USDT",
		Side:           side,
		Amount:         dec("2"),
		OrderType:      orderType,
		Price:          dec(price),
		PositionAction: action,
	}
}

func TestExchange_LimitOrderFillsWhenCrossed(t *testing.T) {
	e := newExchange(t)
	ctx := context.Background()
	e.Advance(kline(0, "100", "101", "99", "100"))

	id, err := e.SubmitOrder(ctx, request(domain.Buy, domain.Limit, "98", domain.PositionActionOpen))
	require.NoError(t, err)

	events := e.Drain()
	require.Len(t, events, 1)
	confirmed := events[0].(domain.CreationConfirmedEvent)
	assert.Equal(t, id, confirmed.OrderID)

	e.Advance(kline(1, "100", "100.5", "98.5", "99"))
	assert.Empty(t, e.Drain())
	assert.Equal(t, 1, e.OpenOrders())

	k := kline(2, "99", "99", "97.5", "98")
	e.Advance(k)
	events = e.Drain()
	require.Len(t, events, 1)
	fill, ok := events[0].(domain.EntryFillEvent)
	require.True(t, ok)
	assert.True(t, dec("98").Equal(fill.Price), "limit orders fill at their own price")
	assert.True(t, dec("2").Equal(fill.Amount))
	assert.Equal(t, k.CloseTime, fill.Timestamp)
	assert.Equal(t, k.CloseTime, e.Clock().Now())
	assert.Zero(t, e.OpenOrders())
	assert.Len(t, e.Fills(), 1)
}

func TestExchange_SellLimitCloseFillsAsExit(t *testing.T) {
	e := newExchange(t)
	e.Advance(kline(0, "100", "101", "99", "100"))
	_, err := e.SubmitOrder(context.Background(), request(domain.Sell, domain.Limit, "103", domain.PositionActionClose))
	require.NoError(t, err)
	e.Drain()

	e.Advance(kline(1, "100", "103", "100", "102"))
	events := e.Drain()
	require.Len(t, events, 1)
	assert.IsType(t, domain.ExitFillEvent{}, events[0])
}

func TestExchange_MarketOrderFillsAtTouch(t *testing.T) {
	e := newExchange(t)
	ctx := context.Background()

	_, err := e.SubmitOrder(ctx, request(domain.Buy, domain.Market, "0", domain.PositionActionOpen))
	require.NoError(t, err)
	events := e.Drain()
	require.Len(t, events, 2)
	assert.IsType(t, domain.CancellationEvent{}, events[1], "no price yet")

	e.Advance(kline(0, "100", "100", "100", "100"))
	_, err = e.SubmitOrder(ctx, request(domain.Buy, domain.Market, "0", domain.PositionActionOpen))
	require.NoError(t, err)
	_, err = e.SubmitOrder(ctx, request(domain.Sell, domain.Market, "0", domain.PositionActionClose))
	require.NoError(t, err)

	events = e.Drain()
	require.Len(t, events, 4)
	buy := events[1].(domain.EntryFillEvent)
	sell := events[3].(domain.ExitFillEvent)
	assert.True(t, dec("100.1").Equal(buy.Price), "buys pay the ask")
	assert.True(t, dec("99.9").Equal(sell.Price), "sells hit the bid")
}

func TestExchange_CancelOrder(t *testing.T) {
	e := newExchange(t)
	ctx := context.Background()
	e.Advance(kline(0, "100", "101", "99", "100"))
	id, err := e.SubmitOrder(ctx, request(domain.Sell, domain.Limit, "150", domain.PositionActionOpen))
	require.NoError(t, err)
	e.Drain()

	require.NoError(t, e.CancelOrder(ctx, "paper", "BTC-USDT", id))
	events := e.Drain()
	require.Len(t, events, 1)
	assert.Equal(t, domain.CancellationEvent{OrderID: id, Reason: "cancelled"}, events[0])

	assert.ErrorIs(t, e.CancelOrder(ctx, "paper", "BTC-USDT", id), ports.ErrOrderNotFound)
	assert.ErrorIs(t, e.CancelOrder(ctx, "other", "BTC-USDT", id), ports.ErrUnknownTradingPair)
}

func TestExchange_Price(t *testing.T) {
	e := newExchange(t)
	ctx := context.Background()

	_, err := e.Price(ctx, "paper", "BTC-USDT", domain.PriceTypeMid)
	assert.ErrorIs(t, err, ports.ErrNoMarketPrice)

	e.Advance(kline(0, "200", "210", "190", "200"))
	for priceType, want := range map[domain.PriceType]string{
		domain.PriceTypeMid:     "200",
		domain.PriceTypeBestBid: "199.8",
		domain.PriceTypeBestAsk: "200.2",
	} {
		got, err := e.Price(ctx, "paper", "BTC-USDT", priceType)
		require.NoError(t, err)
		assert.True(t, dec(want).Equal(got), "%s: got %s", priceType, got)
	}
}

func TestExchange_RunDeliversEvents(t *testing.T) {
	e := newExchange(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = e.Run(ctx) }()

	e.Advance(kline(0, "100", "101", "99", "100"))
	id, err := e.SubmitOrder(ctx, request(domain.Buy, domain.Market, "0", domain.PositionActionOpen))
	require.NoError(t, err)

	for _, want := range []string{"confirmed", "fill"} {
		select {
		case ev := <-e.Events():
			assert.Equal(t, id, ev.EventOrderID(), want)
		case <-time.After(time.Second):
			t.Fatalf("no %s event", want)
		}
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{TradingPair: "BTC-USDT"}, ports.NopLogger{})
	assert.Error(t, err)
	_, err = New(Config{ConnectorName: "paper", TradingPair: "BTC-USDT"}, nil)
	assert.Error(t, err)
}
