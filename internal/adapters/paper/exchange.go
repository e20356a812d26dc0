// Package paper simulates an exchange from a kline series. Limit orders rest
// until a candle trades through their price; market orders fill at the touch
// on submission.
package paper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"barrierBot/internal/domain"
	"barrierBot/internal/ports"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// Clock is a settable ports.Clock advanced by the exchange as klines arrive.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Config scopes the simulated venue.
type Config struct {
	ConnectorName string
	TradingPair   string
	// HalfSpread places bid and ask around the last close as a fraction,
	// e.g. 0.0001 for one basis point each side.
	HalfSpread decimal.Decimal
}

// Fill is one simulated execution.
type Fill struct {
	OrderID        string
	Side           domain.TradeSide
	PositionAction domain.PositionAction
	Amount         decimal.Decimal
	Price          decimal.Decimal
	Timestamp      time.Time
}

type restingOrder struct {
	id  string
	req ports.OrderRequest
}

// Exchange implements ports.ExchangeGateway and ports.MarketDataProvider.
type Exchange struct {
	cfg    Config
	clock  *Clock
	logger ports.Logger

	mu      sync.Mutex
	last    *domain.Kline
	open    []*restingOrder
	pending []domain.Event
	fills   []Fill

	events chan domain.Event
	notify chan struct{}
}

// New creates a paper exchange. The returned clock follows Advance.
func New(cfg Config, logger ports.Logger) (*Exchange, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for paper exchange")
	}
	if cfg.ConnectorName == "" || cfg.TradingPair == "" {
		return nil, fmt.Errorf("connector name and trading pair are required")
	}
	if cfg.HalfSpread.IsNegative() {
		return nil, fmt.Errorf("half spread cannot be negative")
	}
	return &Exchange{
		cfg:    cfg,
		clock:  &Clock{},
		logger: logger,
		events: make(chan domain.Event),
		notify: make(chan struct{}, 1),
	}, nil
}

// Clock returns the simulated clock.
func (e *Exchange) Clock() *Clock {
	return e.clock
}

// SubmitOrder implements ports.ExchangeGateway.
func (e *Exchange) SubmitOrder(ctx context.Context, req ports.OrderRequest) (string, error) {
	if err := e.checkScope(req.ConnectorName, req.TradingPair); err != nil {
		return "", err
	}
	if !req.Amount.IsPositive() {
		return "", fmt.Errorf("SubmitOrder: %w: amount must be positive", ports.ErrInvalidRequest)
	}

	id := uuid.NewString()
	e.mu.Lock()
	defer e.mu.Unlock()

	e.queue(domain.CreationConfirmedEvent{OrderID: id, ExchangeOrderID: "paper-" + id[:8], PositionAction: req.PositionAction})

	if req.OrderType == domain.Market {
		if e.last == nil {
			e.queue(domain.CancellationEvent{OrderID: id, Reason: "no market price"})
			return id, nil
		}
		price := e.touch(req.Side)
		e.fill(id, req, price, e.clock.Now())
		return id, nil
	}

	e.open = append(e.open, &restingOrder{id: id, req: req})
	e.logger.Debug(ctx, "Paper limit order resting", map[string]interface{}{"orderID": id, "side": req.Side, "price": req.Price.String()})
	return id, nil
}

// CancelOrder implements ports.ExchangeGateway.
func (e *Exchange) CancelOrder(ctx context.Context, connectorName, tradingPair, orderID string) error {
	if err := e.checkScope(connectorName, tradingPair); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, o := range e.open {
		if o.id == orderID {
			e.open = append(e.open[:i], e.open[i+1:]...)
			e.queue(domain.CancellationEvent{OrderID: orderID, Reason: "cancelled"})
			return nil
		}
	}
	return fmt.Errorf("CancelOrder %s: %w", orderID, ports.ErrOrderNotFound)
}

// Price implements ports.MarketDataProvider from the last close.
func (e *Exchange) Price(ctx context.Context, connectorName, tradingPair string, priceType domain.PriceType) (decimal.Decimal, error) {
	if err := e.checkScope(connectorName, tradingPair); err != nil {
		return decimal.Zero, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last == nil {
		return decimal.Zero, ports.ErrNoMarketPrice
	}
	switch priceType {
	case domain.PriceTypeBestBid:
		return e.touch(domain.Sell), nil
	case domain.PriceTypeBestAsk:
		return e.touch(domain.Buy), nil
	case domain.PriceTypeMid:
		return e.last.Close, nil
	default:
		return decimal.Zero, fmt.Errorf("%w: unsupported price type %q", ports.ErrInvalidRequest, priceType)
	}
}

// Advance moves the market to kline k: the clock jumps to its close time and
// resting limit orders the candle traded through are filled at their price.
func (e *Exchange) Advance(k *domain.Kline) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.last = k
	e.clock.Set(k.CloseTime)

	remaining := e.open[:0]
	for _, o := range e.open {
		if crossed(o.req, k) {
			e.fill(o.id, o.req, o.req.Price, k.CloseTime)
			continue
		}
		remaining = append(remaining, o)
	}
	e.open = remaining
}

// Drain returns and clears the queued events, oldest first.
func (e *Exchange) Drain() []domain.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.pending
	e.pending = nil
	return out
}

// Events implements ports.ExchangeGateway. Events are only delivered while
// Run is active; use either Run or Drain, not both.
func (e *Exchange) Events() <-chan domain.Event {
	return e.events
}

// Run forwards queued events to the Events channel until ctx is cancelled.
func (e *Exchange) Run(ctx context.Context) error {
	for {
		for _, ev := range e.Drain() {
			select {
			case e.events <- ev:
			case <-ctx.Done():
				return nil
			}
		}
		select {
		case <-e.notify:
		case <-ctx.Done():
			return nil
		}
	}
}

// Fills returns every simulated execution so far.
func (e *Exchange) Fills() []Fill {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Fill(nil), e.fills...)
}

// OpenOrders returns the number of resting limit orders.
func (e *Exchange) OpenOrders() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.open)
}

// touch returns the price a side trades at now. Callers hold mu.
func (e *Exchange) touch(side domain.TradeSide) decimal.Decimal {
	if side == domain.Buy {
		return e.last.Close.Mul(one.Add(e.cfg.HalfSpread))
	}
	return e.last.Close.Mul(one.Sub(e.cfg.HalfSpread))
}

// fill records an execution of the whole order. Callers hold mu.
func (e *Exchange) fill(id string, req ports.OrderRequest, price decimal.Decimal, at time.Time) {
	e.fills = append(e.fills, Fill{
		OrderID:        id,
		Side:           req.Side,
		PositionAction: req.PositionAction,
		Amount:         req.Amount,
		Price:          price,
		Timestamp:      at,
	})
	e.queue(domain.NewFillEvent(id, req.PositionAction, req.Amount, price, at))
}

// queue appends an event and wakes Run. Callers hold mu.
func (e *Exchange) queue(ev domain.Event) {
	e.pending = append(e.pending, ev)
	select {
	case e.notify <- struct{}{}:
	default:
	}
}

func (e *Exchange) checkScope(connectorName, tradingPair string) error {
	if connectorName != e.cfg.ConnectorName || tradingPair != e.cfg.TradingPair {
		return fmt.Errorf("%w: %s %s", ports.ErrUnknownTradingPair, connectorName, tradingPair)
	}
	return nil
}

func crossed(req ports.OrderRequest, k *domain.Kline) bool {
	if req.Side == domain.Buy {
		return k.Low.LessThanOrEqual(req.Price)
	}
	return k.High.GreaterThanOrEqual(req.Price)
}
