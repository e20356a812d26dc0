package app

import (
	"context"

	"barrierBot/internal/domain"
	"barrierBot/internal/risk"
)

// CheckOrders runs one tick: it expires stale unfilled orders, then
// evaluates the triple barrier of every filled order.
func (c *Controller) CheckOrders(ctx context.Context) {
	c.checkUnfilledOrders(ctx)
	c.checkTradingOrders(ctx)
}

func (c *Controller) checkUnfilledOrders(ctx context.Context) {
	if c.cfg.UnfilledOrderExpiration <= 0 {
		return
	}
	now := c.clock.Now()
	for _, o := range c.book.UnfilledTrackedOrders("") {
		if risk.HasUnfilledOrderExpired(o.CreatedAt, c.cfg.UnfilledOrderExpiration, now) {
			_ = c.CancelUnfilledOrder(ctx, o)
		}
	}
}

// checkTradingOrders applies at most one exit per order per tick, in the
// order stop-loss, take-profit, time limit.
func (c *Controller) checkTradingOrders(ctx context.Context) {
	filled := c.book.FilledTrackedOrders("")
	if len(filled) == 0 {
		return
	}

	price, err := c.market.Price(ctx, c.cfg.ConnectorName, c.cfg.TradingPair, domain.PriceTypeMid)
	if err != nil {
		c.logger.Error(ctx, err, "checkTradingOrders: Failed to get mid price, skipping exits this tick")
		return
	}
	now := c.clock.Now()

	for _, o := range filled {
		if risk.HasReachedStopLoss(o, price) {
			c.logger.Info(ctx, "checkTradingOrders: Stop loss reached", map[string]interface{}{"orderID": o.OrderID, "price": price.String()})
			c.CloseFilledOrders(ctx, []*domain.TrackedOrder{o}, domain.Market, domain.CloseTypeStopLoss)
			continue
		}

		if len(c.book.UnfilledTakeProfitOrdersFor(o)) == 0 && risk.HasReachedTakeProfit(o, price) {
			c.logger.Info(ctx, "checkTradingOrders: Take profit reached", map[string]interface{}{"orderID": o.OrderID, "price": price.String()})
			_ = c.CloseFilledOrder(ctx, o, o.Barrier.TakeProfitOrderType, domain.CloseTypeTakeProfit)
			continue
		}

		if risk.HasFilledOrderReachedTimeLimit(o, now) {
			c.logger.Info(ctx, "checkTradingOrders: Time limit reached", map[string]interface{}{"orderID": o.OrderID})
			c.CloseFilledOrders(ctx, []*domain.TrackedOrder{o}, o.Barrier.TimeLimitOrderType, domain.CloseTypeTimeLimit)
		}
	}
}
