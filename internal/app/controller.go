package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"barrierBot/internal/domain"
	"barrierBot/internal/orderbook"
	"barrierBot/internal/ports"

	"github.com/shopspring/decimal"
)

var (
	one      = decimal.NewFromInt(1)
	bpsScale = decimal.NewFromInt(10000)
)

// ControllerConfig holds the tunables of the order lifecycle.
type ControllerConfig struct {
	ConnectorName string
	TradingPair   string
	// UnfilledOrderExpiration cancels entry orders still unfilled after this
	// long. Zero disables the check.
	UnfilledOrderExpiration time.Duration
	// LimitTakeProfitPriceDeltaBps moves close prices away from the touch.
	LimitTakeProfitPriceDeltaBps decimal.Decimal
}

// Controller drives the lifecycle of tracked orders: creation guards,
// creation, take-profit attachment, closing, cancellation, event ingestion
// and the periodic barrier check.
//
// A Controller is not safe for concurrent use. Run it from a single
// goroutine, normally through a Runner.
type Controller struct {
	cfg      ControllerConfig
	logger   ports.Logger
	exchange ports.ExchangeGateway
	market   ports.MarketDataProvider
	clock    ports.Clock
	journal  ports.OrderJournal
	book     *orderbook.Book

	isASellOrderBeingCreated bool
	isABuyOrderBeingCreated  bool
}

// NewController creates a controller with an empty order book. clock and
// journal are optional and default to the wall clock and a discarding journal.
func NewController(
	cfg ControllerConfig,
	logger ports.Logger,
	exchange ports.ExchangeGateway,
	market ports.MarketDataProvider,
	clock ports.Clock,
	journal ports.OrderJournal,
) (*Controller, error) {
	if logger == nil || exchange == nil || market == nil {
		return nil, fmt.Errorf("missing required dependencies for Controller")
	}
	if cfg.ConnectorName == "" || cfg.TradingPair == "" {
		return nil, fmt.Errorf("connector name and trading pair are required")
	}
	if cfg.UnfilledOrderExpiration < 0 {
		return nil, fmt.Errorf("unfilled order expiration cannot be negative")
	}
	if cfg.LimitTakeProfitPriceDeltaBps.IsNegative() {
		return nil, fmt.Errorf("limit take profit price delta cannot be negative")
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if journal == nil {
		journal = ports.NopJournal{}
	}

	return &Controller{
		cfg:      cfg,
		logger:   logger,
		exchange: exchange,
		market:   market,
		clock:    clock,
		journal:  journal,
		book:     orderbook.New(),
	}, nil
}

// Book exposes the registry for read-only queries.
func (c *Controller) Book() *orderbook.Book {
	return c.book
}

// OpenPositions returns the filled, active orders for ref split by side.
func (c *Controller) OpenPositions(ref string) (sells, buys []*domain.TrackedOrder) {
	return c.book.FilledTrackedOrdersBySide(ref)
}

// CanCreateOrder reports whether a new order for side and ref may be created
// now. It refuses a non-positive amount, a creation already in flight on the
// same side and an active cooldown after the last filled and terminated order.
func (c *Controller) CanCreateOrder(ctx context.Context, side domain.TradeSide, quoteAmount decimal.Decimal, ref string, cooldown time.Duration) bool {
	fields := map[string]interface{}{"side": side, "ref": ref, "quoteAmount": quoteAmount.String()}

	if !quoteAmount.IsPositive() {
		c.logger.Debug(ctx, "CanCreateOrder: refused, amount is not positive", fields)
		return false
	}
	if c.isBeingCreated(side) {
		c.logger.Debug(ctx, "CanCreateOrder: refused, creation already in flight", fields)
		return false
	}

	last := c.book.FindLastTerminatedFilledOrder(side, ref)
	if last == nil {
		return true
	}
	cooldownEnd := last.TerminatedAt.Add(cooldown)
	if cooldownEnd.After(c.clock.Now()) {
		fields["cooldownEnd"] = cooldownEnd
		fields["lastOrderID"] = last.OrderID
		c.logger.Debug(ctx, "CanCreateOrder: refused, cooldown active", fields)
		return false
	}
	return true
}

// CreateOrder submits an entry order worth quoteAmount at entryPrice and
// starts tracking it under the id returned by the gateway.
func (c *Controller) CreateOrder(ctx context.Context, side domain.TradeSide, entryPrice decimal.Decimal, barrier domain.TripleBarrier, quoteAmount decimal.Decimal, ref string) (*domain.TrackedOrder, error) {
	op := "CreateOrder"

	if !side.Valid() {
		return nil, fmt.Errorf("%s: %w: %q", op, ErrInvalidSide, side)
	}
	if !quoteAmount.IsPositive() {
		return nil, fmt.Errorf("%s: %w", op, ErrZeroAmount)
	}
	if !entryPrice.IsPositive() {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidPrice)
	}
	if err := barrier.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	release, ok := c.acquireCreation(side)
	if !ok {
		return nil, fmt.Errorf("%s: %w: %s", op, ErrCreationInFlight, side)
	}
	defer release()

	amount := quoteAmount.Div(entryPrice)
	orderID, err := c.exchange.SubmitOrder(ctx, ports.OrderRequest{
		ConnectorName:  c.cfg.ConnectorName,
		TradingPair:    c.cfg.TradingPair,
		Side:           side,
		Amount:         amount,
		OrderType:      barrier.OpenOrderType,
		Price:          entryPrice,
		PositionAction: domain.PositionActionOpen,
	})
	if err != nil {
		c.logger.Error(ctx, err, op+": Failed to submit entry order", map[string]interface{}{"side": side, "ref": ref})
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	order := &domain.TrackedOrder{
		OrderID:       orderID,
		ConnectorName: c.cfg.ConnectorName,
		TradingPair:   c.cfg.TradingPair,
		Side:          side,
		Amount:        amount,
		EntryPrice:    entryPrice,
		Barrier:       barrier,
		Ref:           ref,
		CreatedAt:     c.clock.Now(),
	}
	c.book.AppendTrackedOrder(order)
	c.journal.Record(order.Record())

	c.logger.Info(ctx, op+": Entry order submitted", map[string]interface{}{
		"orderID":    orderID,
		"side":       side,
		"ref":        ref,
		"amount":     amount.String(),
		"entryPrice": entryPrice.String(),
		"orderType":  barrier.OpenOrderType,
	})
	return order, nil
}

// createTakeProfitLimitOrder attaches a close-side limit order to parent. It
// is only called from the entry fill handler so that amount always matches a
// real fill.
func (c *Controller) createTakeProfitLimitOrder(ctx context.Context, parent *domain.TrackedOrder, amount, price decimal.Decimal) error {
	op := "createTakeProfitLimitOrder"

	orderID, err := c.exchange.SubmitOrder(ctx, ports.OrderRequest{
		ConnectorName:  parent.ConnectorName,
		TradingPair:    parent.TradingPair,
		Side:           parent.Side.Opposite(),
		Amount:         amount,
		OrderType:      domain.Limit,
		Price:          price,
		PositionAction: domain.PositionActionClose,
	})
	if err != nil {
		c.logger.Error(ctx, err, op+": Failed to submit take profit order", map[string]interface{}{"parentOrderID": parent.OrderID})
		return fmt.Errorf("%s: %w", op, err)
	}

	tp := &domain.TakeProfitLimitOrder{
		OrderID:    orderID,
		Parent:     parent,
		Amount:     amount,
		EntryPrice: price,
		CreatedAt:  c.clock.Now(),
	}
	c.book.AppendTakeProfitOrder(tp)
	c.journal.Record(tp.Record())

	c.logger.Info(ctx, op+": Take profit order submitted", map[string]interface{}{
		"orderID":       orderID,
		"parentOrderID": parent.OrderID,
		"side":          tp.Side(),
		"amount":        amount.String(),
		"price":         price.String(),
	})
	return nil
}

// CloseFilledOrder submits a close for the order's whole filled amount and
// terminates it with closeType. The order stays active if the close could
// not be submitted.
func (c *Controller) CloseFilledOrder(ctx context.Context, order *domain.TrackedOrder, orderType domain.OrderType, closeType domain.CloseType) error {
	op := "CloseFilledOrder"
	fields := map[string]interface{}{"orderID": order.OrderID, "closeType": closeType, "orderType": orderType}

	if !order.IsActive() {
		return fmt.Errorf("%s %s: %w", op, order.OrderID, ErrOrderNotActive)
	}
	if !order.IsFilled() {
		return fmt.Errorf("%s %s: %w", op, order.OrderID, ErrOrderNotFilled)
	}

	price, err := c.closePrice(ctx, order.Side)
	if err != nil {
		c.logger.Error(ctx, err, op+": Failed to get close price", fields)
		return fmt.Errorf("%s: %w", op, err)
	}

	_, err = c.exchange.SubmitOrder(ctx, ports.OrderRequest{
		ConnectorName:  order.ConnectorName,
		TradingPair:    order.TradingPair,
		Side:           order.Side.Opposite(),
		Amount:         order.FilledAmount,
		OrderType:      orderType,
		Price:          price,
		PositionAction: domain.PositionActionClose,
	})
	if err != nil {
		c.logger.Error(ctx, err, op+": Failed to submit close order", fields)
		return fmt.Errorf("%s: %w", op, err)
	}

	fields["amount"] = order.FilledAmount.String()
	fields["price"] = price.String()
	c.logger.Info(ctx, op+": Close order submitted", fields)

	c.terminate(ctx, order, c.clock.Now(), closeType)
	return nil
}

// CloseFilledOrders closes each order and then cancels its resting
// take-profit orders.
func (c *Controller) CloseFilledOrders(ctx context.Context, orders []*domain.TrackedOrder, orderType domain.OrderType, closeType domain.CloseType) {
	for _, o := range orders {
		if err := c.CloseFilledOrder(ctx, o, orderType, closeType); err != nil {
			continue
		}
		c.CancelTakeProfitForOrder(ctx, o)
	}
}

// CancelUnfilledOrder asks the exchange to cancel an order that has no fills.
// The order is terminated when the cancellation is confirmed.
func (c *Controller) CancelUnfilledOrder(ctx context.Context, order *domain.TrackedOrder) error {
	op := "CancelUnfilledOrder"
	if order.IsFilled() {
		return fmt.Errorf("%s %s: %w", op, order.OrderID, ErrOrderFilled)
	}
	c.logger.Info(ctx, op+": Cancelling unfilled order", map[string]interface{}{"orderID": order.OrderID})
	return c.cancelOrderWarn(ctx, order.ConnectorName, order.TradingPair, order.OrderID)
}

// CancelTakeProfitForOrder cancels every unfilled take-profit order of order.
func (c *Controller) CancelTakeProfitForOrder(ctx context.Context, order *domain.TrackedOrder) {
	for _, tp := range c.book.UnfilledTakeProfitOrdersFor(order) {
		c.logger.Info(ctx, "CancelTakeProfitForOrder: Cancelling take profit order", map[string]interface{}{"orderID": tp.OrderID, "parentOrderID": order.OrderID})
		_ = c.cancelOrderWarn(ctx, order.ConnectorName, order.TradingPair, tp.OrderID)
	}
}

// CancelTrackedOrder stops an order early: a filled order is closed at market
// and its take-profits cancelled, an unfilled one is cancelled.
func (c *Controller) CancelTrackedOrder(ctx context.Context, order *domain.TrackedOrder) error {
	if !order.IsActive() {
		return fmt.Errorf("CancelTrackedOrder %s: %w", order.OrderID, ErrOrderNotActive)
	}
	if !order.IsFilled() {
		return c.CancelUnfilledOrder(ctx, order)
	}
	if err := c.CloseFilledOrder(ctx, order, domain.Market, domain.CloseTypeEarlyStop); err != nil {
		return err
	}
	c.CancelTakeProfitForOrder(ctx, order)
	return nil
}

// closePrice returns the price for closing a position opened on side: a sell
// is bought back above the best ask, a buy is sold below the best bid.
func (c *Controller) closePrice(ctx context.Context, side domain.TradeSide) (decimal.Decimal, error) {
	delta := c.cfg.LimitTakeProfitPriceDeltaBps.Div(bpsScale)
	if side == domain.Sell {
		ask, err := c.market.Price(ctx, c.cfg.ConnectorName, c.cfg.TradingPair, domain.PriceTypeBestAsk)
		if err != nil {
			return decimal.Zero, err
		}
		return ask.Mul(one.Add(delta)), nil
	}
	bid, err := c.market.Price(ctx, c.cfg.ConnectorName, c.cfg.TradingPair, domain.PriceTypeBestBid)
	if err != nil {
		return decimal.Zero, err
	}
	return bid.Mul(one.Sub(delta)), nil
}

// cancelOrderWarn cancels an order, treating "not found" as already gone.
func (c *Controller) cancelOrderWarn(ctx context.Context, connectorName, tradingPair, orderID string) error {
	err := c.exchange.CancelOrder(ctx, connectorName, tradingPair, orderID)
	if err == nil {
		return nil
	}
	if errors.Is(err, ports.ErrOrderNotFound) {
		c.logger.Warn(ctx, "Order to cancel was not found, ignoring", map[string]interface{}{"orderID": orderID})
		return nil
	}
	c.logger.Error(ctx, err, "Failed to cancel order", map[string]interface{}{"orderID": orderID})
	return err
}

// terminate sets the terminal state once; a second attempt is an invariant
// violation and is logged.
func (c *Controller) terminate(ctx context.Context, order *domain.TrackedOrder, at time.Time, closeType domain.CloseType) {
	if err := order.Terminate(at, closeType); err != nil {
		c.logger.Error(ctx, err, "Invariant violation: order terminated twice", map[string]interface{}{"orderID": order.OrderID, "closeType": closeType})
		return
	}
	c.journal.Record(order.Record())
	c.logger.Info(ctx, "Order terminated", map[string]interface{}{"orderID": order.OrderID, "closeType": closeType, "ref": order.Ref})
}

func (c *Controller) isBeingCreated(side domain.TradeSide) bool {
	if side == domain.Sell {
		return c.isASellOrderBeingCreated
	}
	return c.isABuyOrderBeingCreated
}

// acquireCreation sets the in-flight latch for side. The returned release
// must be deferred so the latch is cleared on every exit path.
func (c *Controller) acquireCreation(side domain.TradeSide) (release func(), ok bool) {
	latch := &c.isABuyOrderBeingCreated
	if side == domain.Sell {
		latch = &c.isASellOrderBeingCreated
	}
	if *latch {
		return func() {}, false
	}
	*latch = true
	return func() { *latch = false }, true
}
