package binanceclient

import (
	"context"
	"fmt"

	"barrierBot/internal/domain"
	"barrierBot/internal/ports"

	"github.com/shopspring/decimal"
)

var two = decimal.NewFromInt(2)

// Price implements ports.MarketDataProvider from the book ticker.
func (g *Gateway) Price(ctx context.Context, connectorName, tradingPair string, priceType domain.PriceType) (decimal.Decimal, error) {
	if err := g.checkScope(connectorName, tradingPair); err != nil {
		return decimal.Zero, err
	}
	bid, ask, err := g.api.bookTicker(ctx, g.symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return priceFromBookTicker(bid, ask, priceType)
}

func priceFromBookTicker(bidStr, askStr string, priceType domain.PriceType) (decimal.Decimal, error) {
	bid, err := decimal.NewFromString(bidStr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("could not parse bid '%s': %w", bidStr, err)
	}
	ask, err := decimal.NewFromString(askStr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("could not parse ask '%s': %w", askStr, err)
	}
	if !bid.IsPositive() || !ask.IsPositive() {
		return decimal.Zero, ports.ErrNoMarketPrice
	}

	switch priceType {
	case domain.PriceTypeBestBid:
		return bid, nil
	case domain.PriceTypeBestAsk:
		return ask, nil
	case domain.PriceTypeMid:
		return bid.Add(ask).Div(two), nil
	default:
		return decimal.Zero, fmt.Errorf("%w: unsupported price type %q", ports.ErrInvalidRequest, priceType)
	}
}
