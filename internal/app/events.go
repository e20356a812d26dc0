package app

import (
	"context"
	"fmt"

	"barrierBot/internal/domain"
	"barrierBot/internal/risk"
)

// HandleEvent applies one exchange notification to the order book. Events
// for unknown order ids are ignored.
func (c *Controller) HandleEvent(ctx context.Context, event domain.Event) {
	switch e := event.(type) {
	case domain.CreationConfirmedEvent:
		c.didCreateOrder(ctx, e)
	case domain.EntryFillEvent:
		c.didFillEntryOrder(ctx, e)
	case domain.ExitFillEvent:
		c.didFillExitOrder(ctx, e)
	case domain.CancellationEvent:
		c.didCancelOrder(ctx, e)
	default:
		c.logger.Warn(ctx, "HandleEvent: Unsupported event", map[string]interface{}{"type": fmt.Sprintf("%T", event)})
	}
}

func (c *Controller) didCreateOrder(ctx context.Context, e domain.CreationConfirmedEvent) {
	// Close orders are take-profits or exits; only entries record the exchange id.
	if e.PositionAction == domain.PositionActionClose || e.PositionAction == domain.PositionActionNil {
		return
	}
	order := c.book.FindTrackedOrder(e.OrderID)
	if order == nil {
		c.logger.Debug(ctx, "didCreateOrder: Unknown order", map[string]interface{}{"orderID": e.OrderID})
		return
	}
	order.ExchangeOrderID = e.ExchangeOrderID
	c.journal.Record(order.Record())
	c.logger.Debug(ctx, "didCreateOrder: Exchange order id recorded", map[string]interface{}{"orderID": e.OrderID, "exchangeOrderID": e.ExchangeOrderID})
}

func (c *Controller) didFillEntryOrder(ctx context.Context, e domain.EntryFillEvent) {
	op := "didFillEntryOrder"
	order := c.book.FindTrackedOrder(e.OrderID)
	if order == nil {
		c.logger.Debug(ctx, op+": Unknown order", map[string]interface{}{"orderID": e.OrderID})
		return
	}
	if order.IsTerminated() {
		c.logger.Warn(ctx, op+": Fill received for a terminated order", map[string]interface{}{"orderID": e.OrderID, "closeType": order.CloseType})
	}

	order.ApplyFill(e.Amount, e.Price, e.Timestamp)
	c.journal.Record(order.Record())
	c.logger.Info(ctx, op+": Entry order filled", map[string]interface{}{
		"orderID":      e.OrderID,
		"amount":       e.Amount.String(),
		"price":        e.Price.String(),
		"filledAmount": order.FilledAmount.String(),
	})

	if order.Barrier.HasTakeProfit() && order.Barrier.TakeProfitOrderType == domain.Limit {
		tpPrice := risk.TakeProfitPrice(order.Side, e.Price, order.Barrier.TakeProfitDelta)
		_ = c.createTakeProfitLimitOrder(ctx, order, e.Amount, tpPrice)
	}
}

func (c *Controller) didFillExitOrder(ctx context.Context, e domain.ExitFillEvent) {
	op := "didFillExitOrder"
	tp := c.book.FindTakeProfitOrder(e.OrderID)
	if tp == nil {
		c.logger.Debug(ctx, op+": Not a take profit order", map[string]interface{}{"orderID": e.OrderID})
		return
	}

	tp.ApplyFill(e.Amount, e.Price, e.Timestamp)
	fields := map[string]interface{}{
		"orderID":       e.OrderID,
		"parentOrderID": tp.Parent.OrderID,
		"amount":        e.Amount.String(),
		"requested":     tp.Amount.String(),
	}
	if !e.Amount.Equal(tp.Amount) {
		c.logger.Warn(ctx, op+": Take profit partially filled", fields)
	}

	parent := tp.Parent
	if clamped := parent.ReduceFilledAmount(e.Amount); clamped {
		c.logger.Error(ctx, fmt.Errorf("take profit %s overfilled parent %s", tp.OrderID, parent.OrderID),
			"Invariant violation: negative filled amount clamped to zero", fields)
	}
	c.journal.Record(tp.Record())
	c.journal.Record(parent.Record())

	fields["parentFilledAmount"] = parent.FilledAmount.String()
	c.logger.Info(ctx, op+": Take profit order filled", fields)

	if parent.FilledAmount.IsZero() && !parent.IsTerminated() {
		c.terminate(ctx, parent, e.Timestamp, domain.CloseTypeTakeProfit)
	}
}

func (c *Controller) didCancelOrder(ctx context.Context, e domain.CancellationEvent) {
	fields := map[string]interface{}{"orderID": e.OrderID}
	if e.Reason != "" {
		fields["reason"] = e.Reason
	}

	if order := c.book.FindTrackedOrder(e.OrderID); order != nil {
		if order.IsTerminated() {
			c.logger.Debug(ctx, "didCancelOrder: Order already terminated", fields)
		} else {
			c.logger.Info(ctx, "didCancelOrder: Order cancelled", fields)
			c.terminate(ctx, order, c.clock.Now(), domain.CloseTypeExpired)
		}
	}

	if tp := c.book.RemoveTakeProfitOrder(e.OrderID); tp != nil {
		rec := tp.Record()
		rec.Removed = true
		c.journal.Record(rec)
		c.logger.Info(ctx, "didCancelOrder: Take profit order removed", fields)
	}
}
