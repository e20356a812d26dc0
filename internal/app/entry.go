package app

import (
	"context"
	"time"

	"barrierBot/internal/domain"
	"barrierBot/internal/ports"

	"github.com/shopspring/decimal"
)

// FixedEntryPlanner always wants the same position: one side, one quote
// amount and one barrier, priced at an offset from the mid.
type FixedEntryPlanner struct {
	Side           domain.TradeSide
	QuoteAmount    decimal.Decimal
	PriceOffsetBps decimal.Decimal // Buys below mid, sells above
	Barrier        domain.TripleBarrier
	Ref            string
	Cooldown       time.Duration
}

// PlanEntry implements ports.EntryPlanner.
func (p FixedEntryPlanner) PlanEntry(_ context.Context, midPrice decimal.Decimal) (domain.EntryIntent, bool) {
	if !midPrice.IsPositive() || !p.QuoteAmount.IsPositive() {
		return domain.EntryIntent{}, false
	}
	offset := p.PriceOffsetBps.Div(bpsScale)
	price := midPrice.Mul(one.Sub(offset))
	if p.Side == domain.Sell {
		price = midPrice.Mul(one.Add(offset))
	}
	return domain.EntryIntent{
		Side:        p.Side,
		QuoteAmount: p.QuoteAmount,
		EntryPrice:  price,
		Barrier:     p.Barrier,
		Ref:         p.Ref,
		Cooldown:    p.Cooldown,
	}, true
}

// TryEnter asks planner for an entry at the current mid price and creates it
// when the ref has no active order and the creation guard allows it.
func (c *Controller) TryEnter(ctx context.Context, planner ports.EntryPlanner) bool {
	mid, err := c.market.Price(ctx, c.cfg.ConnectorName, c.cfg.TradingPair, domain.PriceTypeMid)
	if err != nil {
		c.logger.Warn(ctx, "TryEnter: Failed to get mid price", map[string]interface{}{"error": err.Error()})
		return false
	}
	intent, ok := planner.PlanEntry(ctx, mid)
	if !ok {
		return false
	}
	if len(c.book.ActiveTrackedOrders(intent.Ref)) > 0 {
		return false
	}
	if !c.CanCreateOrder(ctx, intent.Side, intent.QuoteAmount, intent.Ref, intent.Cooldown) {
		return false
	}
	_, err = c.CreateOrder(ctx, intent.Side, intent.EntryPrice, intent.Barrier, intent.QuoteAmount, intent.Ref)
	return err == nil
}
