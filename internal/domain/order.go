package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TrackedOrder is one entry order plus its fill and close lifecycle.
type TrackedOrder struct {
	Seq             uint64 // Assigned by the order book on append
	OrderID         string // Locally assigned id returned by the gateway
	ExchangeOrderID string // Set once the exchange confirms creation
	ConnectorName   string
	TradingPair     string
	Side            TradeSide
	Amount          decimal.Decimal // Base amount requested
	EntryPrice      decimal.Decimal
	Barrier         TripleBarrier
	Ref             string // Strategy tag used for grouping and cooldowns
	CreatedAt       time.Time

	FilledAmount    decimal.Decimal
	LastFilledAt    time.Time
	LastFilledPrice decimal.Decimal

	TerminatedAt time.Time
	CloseType    CloseType
}

// IsFilled reports whether at least one fill was received.
func (o *TrackedOrder) IsFilled() bool { return !o.LastFilledAt.IsZero() }

// IsTerminated reports whether the order reached a terminal state.
func (o *TrackedOrder) IsTerminated() bool { return !o.TerminatedAt.IsZero() }

// IsActive reports whether the order was created and not yet terminated.
func (o *TrackedOrder) IsActive() bool { return !o.CreatedAt.IsZero() && !o.IsTerminated() }

// ReferencePrice is the price barriers are measured from: the last fill
// price when known, the requested entry price otherwise.
func (o *TrackedOrder) ReferencePrice() decimal.Decimal {
	if !o.LastFilledPrice.IsZero() {
		return o.LastFilledPrice
	}
	return o.EntryPrice
}

// ApplyFill accumulates one entry fill.
func (o *TrackedOrder) ApplyFill(amount, price decimal.Decimal, at time.Time) {
	o.FilledAmount = o.FilledAmount.Add(amount)
	o.LastFilledAt = at
	o.LastFilledPrice = price
}

// ReduceFilledAmount removes amount from the open position. The result is
// clamped at zero; clamped is true when amount exceeded what was left.
func (o *TrackedOrder) ReduceFilledAmount(amount decimal.Decimal) (clamped bool) {
	left := o.FilledAmount.Sub(amount)
	if left.IsNegative() {
		o.FilledAmount = decimal.Zero
		return true
	}
	o.FilledAmount = left
	return false
}

// Terminate sets the terminal fields. It fails if they were already set.
func (o *TrackedOrder) Terminate(at time.Time, closeType CloseType) error {
	if o.IsTerminated() {
		return fmt.Errorf("order %s closed as %s at %s: %w", o.OrderID, o.CloseType, o.TerminatedAt.Format(time.RFC3339), ErrAlreadyTerminated)
	}
	o.TerminatedAt = at
	o.CloseType = closeType
	return nil
}

// Record returns a flat snapshot of the order for the journal.
func (o *TrackedOrder) Record() OrderRecord {
	return OrderRecord{
		OrderID:         o.OrderID,
		ExchangeOrderID: o.ExchangeOrderID,
		Kind:            OrderKindEntry,
		ConnectorName:   o.ConnectorName,
		TradingPair:     o.TradingPair,
		Side:            o.Side,
		Ref:             o.Ref,
		Amount:          o.Amount,
		EntryPrice:      o.EntryPrice,
		FilledAmount:    o.FilledAmount,
		LastFilledPrice: o.LastFilledPrice,
		CreatedAt:       o.CreatedAt,
		LastFilledAt:    o.LastFilledAt,
		TerminatedAt:    o.TerminatedAt,
		CloseType:       o.CloseType,
	}
}

// TakeProfitLimitOrder is a resting close order realizing a take-profit for
// its parent. It never opens exposure.
type TakeProfitLimitOrder struct {
	Seq        uint64
	OrderID    string
	Parent     *TrackedOrder
	Amount     decimal.Decimal
	EntryPrice decimal.Decimal // The take-profit price
	CreatedAt  time.Time

	FilledAmount    decimal.Decimal
	LastFilledAt    time.Time
	LastFilledPrice decimal.Decimal
}

// Side is always the inverse of the parent's side.
func (o *TakeProfitLimitOrder) Side() TradeSide { return o.Parent.Side.Opposite() }

// PositionAction is always close.
func (o *TakeProfitLimitOrder) PositionAction() PositionAction { return PositionActionClose }

func (o *TakeProfitLimitOrder) IsFilled() bool { return !o.LastFilledAt.IsZero() }

func (o *TakeProfitLimitOrder) ApplyFill(amount, price decimal.Decimal, at time.Time) {
	o.FilledAmount = o.FilledAmount.Add(amount)
	o.LastFilledAt = at
	o.LastFilledPrice = price
}

// Record returns a flat snapshot of the take-profit order for the journal.
func (o *TakeProfitLimitOrder) Record() OrderRecord {
	return OrderRecord{
		OrderID:         o.OrderID,
		ParentOrderID:   o.Parent.OrderID,
		Kind:            OrderKindTakeProfit,
		ConnectorName:   o.Parent.ConnectorName,
		TradingPair:     o.Parent.TradingPair,
		Side:            o.Side(),
		Ref:             o.Parent.Ref,
		Amount:          o.Amount,
		EntryPrice:      o.EntryPrice,
		FilledAmount:    o.FilledAmount,
		LastFilledPrice: o.LastFilledPrice,
		CreatedAt:       o.CreatedAt,
		LastFilledAt:    o.LastFilledAt,
	}
}

// OrderKind distinguishes journal records.
type OrderKind string

const (
	OrderKindEntry      OrderKind = "ENTRY"
	OrderKindTakeProfit OrderKind = "TAKE_PROFIT"
)

// OrderRecord is a point-in-time snapshot of an order, detached from the
// live registry so it can be persisted from another goroutine.
type OrderRecord struct {
	OrderID         string
	ParentOrderID   string // Empty for entry orders
	ExchangeOrderID string
	Kind            OrderKind
	ConnectorName   string
	TradingPair     string
	Side            TradeSide
	Ref             string
	Amount          decimal.Decimal
	EntryPrice      decimal.Decimal
	FilledAmount    decimal.Decimal
	LastFilledPrice decimal.Decimal
	CreatedAt       time.Time
	LastFilledAt    time.Time // Zero if never filled
	TerminatedAt    time.Time // Zero if still active
	CloseType       CloseType
	Removed         bool // Take-profit dropped from the registry after cancellation
}
