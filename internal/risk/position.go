package risk

import (
	"time"

	"barrierBot/internal/domain"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// FilledOrdersPnLPct returns the unrealized result, in percent, of the
// filled orders on side measured from the worst fill: the lowest sell or the
// highest buy. Returns zero when nothing on that side is filled.
func FilledOrdersPnLPct(orders []*domain.TrackedOrder, side domain.TradeSide, currentPrice decimal.Decimal) decimal.Decimal {
	var worst decimal.Decimal
	found := false
	for _, o := range orders {
		if o.Side != side || !o.IsFilled() {
			continue
		}
		p := o.LastFilledPrice
		switch {
		case !found:
			worst = p
		case side == domain.Sell && p.LessThan(worst):
			worst = p
		case side == domain.Buy && p.GreaterThan(worst):
			worst = p
		}
		found = true
	}
	if !found || worst.IsZero() {
		return decimal.Zero
	}
	if side == domain.Sell {
		return worst.Sub(currentPrice).Div(worst).Mul(hundred)
	}
	return currentPrice.Sub(worst).Div(worst).Mul(hundred)
}

// AveragePositionPrice is the filled-amount weighted mean of the orders'
// reference prices. Orders with nothing filled are ignored.
func AveragePositionPrice(orders []*domain.TrackedOrder) decimal.Decimal {
	total := decimal.Zero
	notional := decimal.Zero
	for _, o := range orders {
		if !o.FilledAmount.IsPositive() {
			continue
		}
		total = total.Add(o.FilledAmount)
		notional = notional.Add(o.FilledAmount.Mul(o.ReferencePrice()))
	}
	if total.IsZero() {
		return decimal.Zero
	}
	return notional.Div(total)
}

// WasAnOrderRecentlyOpened reports whether any order was created within
// window before now.
func WasAnOrderRecentlyOpened(orders []*domain.TrackedOrder, window time.Duration, now time.Time) bool {
	for _, o := range orders {
		if !o.CreatedAt.IsZero() && o.CreatedAt.Add(window).After(now) {
			return true
		}
	}
	return false
}

// RecentPriceDeltaPct returns the high-to-low range, in percent of the
// high, over the window candles that precede the excludedRecent most recent
// ones. Returns zero when there is not enough data.
func RecentPriceDeltaPct(klines []*domain.Kline, window, excludedRecent int) decimal.Decimal {
	if window <= 0 || excludedRecent < 0 || len(klines) < window+excludedRecent {
		return decimal.Zero
	}
	end := len(klines) - excludedRecent
	span := klines[end-window : end]
	low, high := span[0].Low, span[0].High
	for _, k := range span[1:] {
		if k.Low.LessThan(low) {
			low = k.Low
		}
		if k.High.GreaterThan(high) {
			high = k.High
		}
	}
	if high.IsZero() {
		return decimal.Zero
	}
	return high.Sub(low).Div(high).Mul(hundred)
}
