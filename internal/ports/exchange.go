package ports

import (
	"context"

	"barrierBot/internal/domain"

	"github.com/shopspring/decimal"
)

// OrderRequest describes one order to submit.
type OrderRequest struct {
	ConnectorName  string
	TradingPair    string // Dash separated, e.g. BTC-USDT
	Side           domain.TradeSide
	Amount         decimal.Decimal // Base amount
	OrderType      domain.OrderType
	Price          decimal.Decimal // Ignored by market orders on most venues
	PositionAction domain.PositionAction
}

// ExchangeGateway places and cancels orders. Both commands are fire-and-forget:
// the outcome arrives later on the Events channel.
type ExchangeGateway interface {
	// SubmitOrder assigns a local order id and returns it before the exchange
	// has acknowledged the order. Errors are limited to requests that could
	// not be dispatched at all.
	SubmitOrder(ctx context.Context, req OrderRequest) (string, error)

	// CancelOrder requests cancellation of a previously submitted order by
	// its local id. Returns ErrOrderNotFound for ids the gateway never issued
	// or that are no longer live.
	CancelOrder(ctx context.Context, connectorName, tradingPair, orderID string) error

	// Events delivers creation, fill and cancellation notifications.
	Events() <-chan domain.Event
}

// MarketDataProvider returns current quotes.
type MarketDataProvider interface {
	Price(ctx context.Context, connectorName, tradingPair string, priceType domain.PriceType) (decimal.Decimal, error)
}
