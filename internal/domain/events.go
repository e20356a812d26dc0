package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event is a notification from an exchange gateway. The set of variants is
// closed: CreationConfirmedEvent, EntryFillEvent, ExitFillEvent and
// CancellationEvent.
type Event interface {
	EventOrderID() string
	isEvent()
}

// CreationConfirmedEvent reports that the exchange accepted an order.
type CreationConfirmedEvent struct {
	OrderID         string
	ExchangeOrderID string
	PositionAction  PositionAction
}

// EntryFillEvent is a fill on an order that opens exposure.
type EntryFillEvent struct {
	OrderID   string
	Amount    decimal.Decimal
	Price     decimal.Decimal
	Timestamp time.Time
}

// ExitFillEvent is a fill on a close (reduce-only) order.
type ExitFillEvent struct {
	OrderID   string
	Amount    decimal.Decimal
	Price     decimal.Decimal
	Timestamp time.Time
}

// CancellationEvent reports that an order is no longer live on the exchange
// without having filled completely.
type CancellationEvent struct {
	OrderID string
	Reason  string // Optional, e.g. a rejected submission
}

func (e CreationConfirmedEvent) EventOrderID() string { return e.OrderID }
func (e EntryFillEvent) EventOrderID() string         { return e.OrderID }
func (e ExitFillEvent) EventOrderID() string          { return e.OrderID }
func (e CancellationEvent) EventOrderID() string      { return e.OrderID }

func (CreationConfirmedEvent) isEvent() {}
func (EntryFillEvent) isEvent()         {}
func (ExitFillEvent) isEvent()          {}
func (CancellationEvent) isEvent()      {}

// NewFillEvent builds the fill variant matching the order's position action.
func NewFillEvent(orderID string, action PositionAction, amount, price decimal.Decimal, at time.Time) Event {
	if action == PositionActionClose {
		return ExitFillEvent{OrderID: orderID, Amount: amount, Price: price, Timestamp: at}
	}
	return EntryFillEvent{OrderID: orderID, Amount: amount, Price: price, Timestamp: at}
}
