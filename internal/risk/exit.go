// Package risk evaluates triple-barrier exits. Every function is pure: the
// caller supplies the order, the current price and the current time.
package risk

import (
	"time"

	"barrierBot/internal/domain"

	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// StopLossPrice returns the price beyond which a position opened on side
// should be cut.
func StopLossPrice(side domain.TradeSide, refPrice, delta decimal.Decimal) decimal.Decimal {
	if side == domain.Sell {
		return refPrice.Mul(one.Add(delta))
	}
	return refPrice.Mul(one.Sub(delta))
}

// TakeProfitPrice returns the target price for a position opened on side.
func TakeProfitPrice(side domain.TradeSide, refPrice, delta decimal.Decimal) decimal.Decimal {
	if side == domain.Sell {
		return refPrice.Mul(one.Sub(delta))
	}
	return refPrice.Mul(one.Add(delta))
}

// HasReachedStopLoss reports whether currentPrice crossed the order's stop-loss.
func HasReachedStopLoss(order *domain.TrackedOrder, currentPrice decimal.Decimal) bool {
	if !order.Barrier.HasStopLoss() {
		return false
	}
	sl := StopLossPrice(order.Side, order.ReferencePrice(), order.Barrier.StopLossDelta)
	if order.Side == domain.Sell {
		return currentPrice.GreaterThan(sl)
	}
	return currentPrice.LessThan(sl)
}

// HasReachedTakeProfit reports whether currentPrice crossed the order's take-profit.
func HasReachedTakeProfit(order *domain.TrackedOrder, currentPrice decimal.Decimal) bool {
	if !order.Barrier.HasTakeProfit() {
		return false
	}
	tp := TakeProfitPrice(order.Side, order.ReferencePrice(), order.Barrier.TakeProfitDelta)
	if order.Side == domain.Sell {
		return currentPrice.LessThan(tp)
	}
	return currentPrice.GreaterThan(tp)
}

// HasUnfilledOrderExpired reports whether an order created at createdAt has
// outlived expiration.
func HasUnfilledOrderExpired(createdAt time.Time, expiration time.Duration, now time.Time) bool {
	return createdAt.Add(expiration).Before(now)
}

// HasFilledOrderReachedTimeLimit reports whether the order was held past its
// time limit, counted from the last fill.
func HasFilledOrderReachedTimeLimit(order *domain.TrackedOrder, now time.Time) bool {
	if !order.Barrier.HasTimeLimit() || !order.IsFilled() {
		return false
	}
	return order.LastFilledAt.Add(order.Barrier.TimeLimit).Before(now)
}
