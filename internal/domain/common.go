package domain

import "fmt"

// TradeSide represents the side of an order (BUY or SELL).
type TradeSide string

const (
	Buy  TradeSide = "BUY"
	Sell TradeSide = "SELL"
)

// Opposite returns the side that closes exposure opened on s.
func (s TradeSide) Opposite() TradeSide {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Valid reports whether s is one of the known sides.
func (s TradeSide) Valid() bool {
	return s == Buy || s == Sell
}

// ParseTradeSide converts a config/user value into a TradeSide.
func ParseTradeSide(v string) (TradeSide, error) {
	switch TradeSide(v) {
	case Buy, "buy":
		return Buy, nil
	case Sell, "sell":
		return Sell, nil
	}
	return "", fmt.Errorf("unknown trade side %q", v)
}

// OrderType is the execution style of an order.
type OrderType string

const (
	Market OrderType = "MARKET"
	Limit  OrderType = "LIMIT"
)

// ParseOrderType converts a config/user value into an OrderType.
func ParseOrderType(v string) (OrderType, error) {
	switch OrderType(v) {
	case Market, "market":
		return Market, nil
	case Limit, "limit":
		return Limit, nil
	}
	return "", fmt.Errorf("unknown order type %q", v)
}

// PositionAction tells the exchange whether an order opens or reduces exposure.
type PositionAction string

const (
	PositionActionNil   PositionAction = ""
	PositionActionOpen  PositionAction = "OPEN"
	PositionActionClose PositionAction = "CLOSE"
)

// PriceType selects which quote a market data provider returns.
type PriceType string

const (
	PriceTypeMid     PriceType = "MID"
	PriceTypeBestBid PriceType = "BEST_BID"
	PriceTypeBestAsk PriceType = "BEST_ASK"
)

// CloseType indicates why a tracked order was terminated.
type CloseType string

const (
	CloseTypeNone       CloseType = ""
	CloseTypeStopLoss   CloseType = "STOP_LOSS"
	CloseTypeTakeProfit CloseType = "TAKE_PROFIT"
	CloseTypeTimeLimit  CloseType = "TIME_LIMIT"
	CloseTypeExpired    CloseType = "EXPIRED"    // Unfilled order cancelled
	CloseTypeEarlyStop  CloseType = "EARLY_STOP" // Stopped on request of the driver
)
