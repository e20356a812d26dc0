package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TripleBarrier is the exit policy attached to one tracked order.
// A zero delta or a zero time limit disables that barrier.
type TripleBarrier struct {
	StopLossDelta       decimal.Decimal // Fraction of the reference price, e.g. 0.02
	TakeProfitDelta     decimal.Decimal // Fraction of the reference price, e.g. 0.03
	TimeLimit           time.Duration   // Max holding time after the last fill
	OpenOrderType       OrderType
	TakeProfitOrderType OrderType
	TimeLimitOrderType  OrderType
}

// DefaultTripleBarrier returns a barrier with no exits enabled and the
// usual order types: limit entries, limit take-profits, market time-limit exits.
func DefaultTripleBarrier() TripleBarrier {
	return TripleBarrier{
		OpenOrderType:       Limit,
		TakeProfitOrderType: Limit,
		TimeLimitOrderType:  Market,
	}
}

func (b TripleBarrier) HasStopLoss() bool   { return b.StopLossDelta.IsPositive() }
func (b TripleBarrier) HasTakeProfit() bool { return b.TakeProfitDelta.IsPositive() }
func (b TripleBarrier) HasTimeLimit() bool  { return b.TimeLimit > 0 }

// Validate checks that configured deltas are fractions in (0,1) and that
// every order type is known.
func (b TripleBarrier) Validate() error {
	one := decimal.NewFromInt(1)
	deltas := []struct {
		name  string
		value decimal.Decimal
	}{
		{"stop loss", b.StopLossDelta},
		{"take profit", b.TakeProfitDelta},
	}
	for _, d := range deltas {
		if d.value.IsNegative() || d.value.GreaterThanOrEqual(one) {
			return fmt.Errorf("%w: %s delta %s must be in (0,1)", ErrInvalidBarrier, d.name, d.value)
		}
	}
	if b.TimeLimit < 0 {
		return fmt.Errorf("%w: negative time limit %s", ErrInvalidBarrier, b.TimeLimit)
	}
	orderTypes := []struct {
		name  string
		value OrderType
	}{
		{"open", b.OpenOrderType},
		{"take profit", b.TakeProfitOrderType},
		{"time limit", b.TimeLimitOrderType},
	}
	for _, t := range orderTypes {
		if t.value != Market && t.value != Limit {
			return fmt.Errorf("%w: %s order type %q", ErrInvalidBarrier, t.name, t.value)
		}
	}
	return nil
}
