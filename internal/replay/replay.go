// Package replay drives the order lifecycle controller over a historical kline
// series against the paper exchange and summarizes the outcome.
package replay

import (
	"context"
	"fmt"
	"time"

	"barrierBot/internal/adapters/paper"
	"barrierBot/internal/app"
	"barrierBot/internal/domain"
	"barrierBot/internal/ports"
	"barrierBot/internal/risk"

	"github.com/shopspring/decimal"
)

// EntryGuard holds back entries after sharp moves or too soon after the last
// entry. Zero values disable each check.
type EntryGuard struct {
	// MaxRecentMovePct refuses entries while the high-low range of the last
	// Window candles (skipping the newest ExcludedRecent) exceeds it.
	MaxRecentMovePct decimal.Decimal
	Window           int
	ExcludedRecent   int
	// MinSpacing refuses entries while an order was created within it.
	MinSpacing time.Duration
}

func (g EntryGuard) allows(history []*domain.Kline, orders []*domain.TrackedOrder, now time.Time) bool {
	if g.MaxRecentMovePct.IsPositive() && g.Window > 0 {
		if len(history) < g.Window+g.ExcludedRecent {
			return false
		}
		if risk.RecentPriceDeltaPct(history, g.Window, g.ExcludedRecent).GreaterThan(g.MaxRecentMovePct) {
			return false
		}
	}
	if g.MinSpacing > 0 && risk.WasAnOrderRecentlyOpened(orders, g.MinSpacing, now) {
		return false
	}
	return true
}

// Config holds replay settings.
type Config struct {
	Controller app.ControllerConfig
	// Planner proposes entries each candle. Nil replays without entries.
	Planner ports.EntryPlanner
	Guard   EntryGuard
	// HalfSpread is passed to the paper exchange.
	HalfSpread decimal.Decimal
	// Journal receives order snapshots. Optional.
	Journal ports.OrderJournal
}

// Result summarizes a replay. Cash flows are in quote currency.
type Result struct {
	Klines           int
	OrdersOpened     int
	OrdersFilled     int
	ClosedByType     map[domain.CloseType]int
	TakeProfitOrders int
	Fills            int
	// NetPnL marks any remaining position at the last close.
	NetPnL        decimal.Decimal
	FinalPosition decimal.Decimal
	// MaxDrawdown is the largest fall of marked equity from its running peak.
	MaxDrawdown decimal.Decimal
	// Open filled orders at the end, with their unrealized pnl in percent
	// against the worst fill.
	OpenBuys         int
	OpenSells        int
	OpenBuyPnLPct    decimal.Decimal
	OpenSellPnLPct   decimal.Decimal
	AverageBuyPrice  decimal.Decimal
	AverageSellPrice decimal.Decimal
	Duration         time.Duration
}

// Run replays klines in order. For each candle the paper market advances,
// resulting events are handled, the planner may enter and the barriers are
// checked. Events produced along the way are handled before the next candle.
func Run(ctx context.Context, klines []*domain.Kline, cfg Config, logger ports.Logger) (*Result, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for replay")
	}
	if len(klines) == 0 {
		return nil, fmt.Errorf("no klines to replay")
	}

	exchange, err := paper.New(paper.Config{
		ConnectorName: cfg.Controller.ConnectorName,
		TradingPair:   cfg.Controller.TradingPair,
		HalfSpread:    cfg.HalfSpread,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create paper exchange: %w", err)
	}
	controller, err := app.NewController(cfg.Controller, logger, exchange, exchange, exchange.Clock(), cfg.Journal)
	if err != nil {
		return nil, fmt.Errorf("failed to create controller: %w", err)
	}

	pump := func() {
		for {
			events := exchange.Drain()
			if len(events) == 0 {
				return
			}
			for _, ev := range events {
				controller.HandleEvent(ctx, ev)
			}
		}
	}

	var (
		equity   = newEquityTracker()
		position decimal.Decimal
		cash     decimal.Decimal
		seen     int
	)
	for i, k := range klines {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if i > 0 && k.OpenTime.Before(klines[i-1].OpenTime) {
			return nil, fmt.Errorf("klines are not sorted by open time at index %d", i)
		}

		exchange.Advance(k)
		pump()

		if cfg.Planner != nil && cfg.Guard.allows(klines[:i+1], controller.Book().TrackedOrders(), exchange.Clock().Now()) {
			controller.TryEnter(ctx, cfg.Planner)
			pump()
		}

		controller.CheckOrders(ctx)
		pump()

		fills := exchange.Fills()
		for _, f := range fills[seen:] {
			notional := f.Amount.Mul(f.Price)
			if f.Side == domain.Buy {
				position = position.Add(f.Amount)
				cash = cash.Sub(notional)
			} else {
				position = position.Sub(f.Amount)
				cash = cash.Add(notional)
			}
		}
		seen = len(fills)
		equity.mark(cash.Add(position.Mul(k.Close)))
	}

	last := klines[len(klines)-1]
	res := &Result{
		Klines:           len(klines),
		ClosedByType:     make(map[domain.CloseType]int),
		TakeProfitOrders: len(controller.Book().TakeProfitOrders()),
		Fills:            seen,
		NetPnL:           cash.Add(position.Mul(last.Close)),
		FinalPosition:    position,
		MaxDrawdown:      equity.maxDrawdown,
		Duration:         last.CloseTime.Sub(klines[0].OpenTime),
	}
	for _, o := range controller.Book().TrackedOrders() {
		res.OrdersOpened++
		if o.IsFilled() {
			res.OrdersFilled++
		}
		if o.IsTerminated() {
			res.ClosedByType[o.CloseType]++
		}
	}

	sells, buys := controller.OpenPositions("")
	res.OpenBuys, res.OpenSells = len(buys), len(sells)
	res.OpenBuyPnLPct = risk.FilledOrdersPnLPct(buys, domain.Buy, last.Close)
	res.OpenSellPnLPct = risk.FilledOrdersPnLPct(sells, domain.Sell, last.Close)
	res.AverageBuyPrice = risk.AveragePositionPrice(buys)
	res.AverageSellPrice = risk.AveragePositionPrice(sells)

	logger.Info(ctx, "Replay finished", map[string]interface{}{
		"klines":       res.Klines,
		"ordersOpened": res.OrdersOpened,
		"ordersFilled": res.OrdersFilled,
		"fills":        res.Fills,
		"netPnL":       res.NetPnL.String(),
		"maxDrawdown":  res.MaxDrawdown.String(),
		"position":     res.FinalPosition.String(),
	})
	return res, nil
}

type equityTracker struct {
	peak        decimal.Decimal
	started     bool
	maxDrawdown decimal.Decimal
}

func newEquityTracker() *equityTracker {
	return &equityTracker{}
}

func (t *equityTracker) mark(equity decimal.Decimal) {
	if !t.started || equity.GreaterThan(t.peak) {
		t.peak = equity
		t.started = true
		return
	}
	if dd := t.peak.Sub(equity); dd.GreaterThan(t.maxDrawdown) {
		t.maxDrawdown = dd
	}
}
