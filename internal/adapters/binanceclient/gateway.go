package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"

	"barrierBot/internal/domain"
	"barrierBot/internal/ports"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	defaultSubmitWorkers = 4
	defaultQueueSize     = 64
	eventBufferSize      = 256
)

// orderAPI is the part of the REST client the gateway drives.
type orderAPI interface {
	createOrder(ctx context.Context, symbol string, req ports.OrderRequest, clientOrderID string, qtyPrecision, pricePrecision int32) (int64, error)
	cancelOrder(ctx context.Context, symbol, clientOrderID string) error
	bookTicker(ctx context.Context, symbol string) (bid, ask string, err error)
}

// userStream delivers raw user-data events until ctx ends.
type userStream interface {
	StreamUserData(ctx context.Context, handler func(*futures.WsUserDataEvent)) error
}

// GatewayConfig scopes a gateway to one connector and trading pair.
type GatewayConfig struct {
	ConnectorName     string
	TradingPair       string
	QuantityPrecision int32
	PricePrecision    int32
	SubmitWorkers     int
	QueueSize         int
}

type jobKind int

const (
	jobSubmit jobKind = iota
	jobCancel
)

type job struct {
	kind    jobKind
	orderID string
	req     ports.OrderRequest
}

// Gateway implements ports.ExchangeGateway and ports.MarketDataProvider for
// Binance USDⓈ-M futures. Orders get a locally generated client order id;
// REST calls run on a worker pool and their outcome is reported on Events.
// Every job for one client order id goes to the same worker, so a cancel
// never overtakes the create it targets.
type Gateway struct {
	api    orderAPI
	stream userStream
	cfg    GatewayConfig
	symbol string
	logger ports.Logger

	queues []chan job // one per worker
	events chan domain.Event

	mu     sync.Mutex
	orders map[string]domain.PositionAction // live local ids
}

// NewGateway creates a gateway on top of client.
func NewGateway(client *Client, cfg GatewayConfig, logger ports.Logger) (*Gateway, error) {
	if client == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for Gateway")
	}
	return newGateway(client, client, cfg, logger)
}

func newGateway(api orderAPI, stream userStream, cfg GatewayConfig, logger ports.Logger) (*Gateway, error) {
	if cfg.ConnectorName == "" || cfg.TradingPair == "" {
		return nil, fmt.Errorf("connector name and trading pair are required")
	}
	if cfg.SubmitWorkers <= 0 {
		cfg.SubmitWorkers = defaultSubmitWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	queues := make([]chan job, cfg.SubmitWorkers)
	for i := range queues {
		queues[i] = make(chan job, cfg.QueueSize)
	}
	return &Gateway{
		api:    api,
		stream: stream,
		cfg:    cfg,
		symbol: ToSymbol(cfg.TradingPair),
		logger: logger,
		queues: queues,
		events: make(chan domain.Event, eventBufferSize),
		orders: make(map[string]domain.PositionAction),
	}, nil
}

// queueFor picks the worker queue that owns orderID.
func (g *Gateway) queueFor(orderID string) chan job {
	h := fnv.New32a()
	_, _ = h.Write([]byte(orderID))
	return g.queues[h.Sum32()%uint32(len(g.queues))]
}

// Events implements ports.ExchangeGateway.
func (g *Gateway) Events() <-chan domain.Event {
	return g.events
}

// SubmitOrder implements ports.ExchangeGateway. The returned id is the
// Binance client order id.
func (g *Gateway) SubmitOrder(ctx context.Context, req ports.OrderRequest) (string, error) {
	if err := g.checkScope(req.ConnectorName, req.TradingPair); err != nil {
		return "", err
	}
	if !req.Amount.IsPositive() {
		return "", fmt.Errorf("SubmitOrder: %w: amount must be positive", ports.ErrInvalidRequest)
	}

	orderID := uuid.NewString()
	g.mu.Lock()
	g.orders[orderID] = req.PositionAction
	g.mu.Unlock()

	select {
	case g.queueFor(orderID) <- job{kind: jobSubmit, orderID: orderID, req: req}:
		return orderID, nil
	default:
		g.forget(orderID)
		g.logger.Warn(ctx, "SubmitOrder: Queue full, order not dispatched", map[string]interface{}{"side": req.Side, "positionAction": req.PositionAction})
		return "", fmt.Errorf("SubmitOrder: %w", ports.ErrSubmitQueueFull)
	}
}

// CancelOrder implements ports.ExchangeGateway.
func (g *Gateway) CancelOrder(ctx context.Context, connectorName, tradingPair, orderID string) error {
	if err := g.checkScope(connectorName, tradingPair); err != nil {
		return err
	}
	if _, ok := g.positionAction(orderID); !ok {
		return fmt.Errorf("CancelOrder %s: %w", orderID, ports.ErrOrderNotFound)
	}
	select {
	case g.queueFor(orderID) <- job{kind: jobCancel, orderID: orderID}:
		return nil
	default:
		return fmt.Errorf("CancelOrder %s: %w", orderID, ports.ErrSubmitQueueFull)
	}
}

// Run starts the REST workers and the user-data stream. It returns when ctx
// is cancelled or the stream gives up.
func (g *Gateway) Run(ctx context.Context) error {
	g.logger.Info(ctx, "Binance gateway started", map[string]interface{}{"symbol": g.symbol, "workers": g.cfg.SubmitWorkers})
	eg, egCtx := errgroup.WithContext(ctx)
	for _, queue := range g.queues {
		queue := queue
		eg.Go(func() error {
			g.worker(egCtx, queue)
			return nil
		})
	}
	eg.Go(func() error {
		return g.stream.StreamUserData(egCtx, func(ev *futures.WsUserDataEvent) {
			g.handleUserData(egCtx, ev)
		})
	})
	return eg.Wait()
}

func (g *Gateway) worker(ctx context.Context, queue <-chan job) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-queue:
			g.process(ctx, j)
		}
	}
}

func (g *Gateway) process(ctx context.Context, j job) {
	switch j.kind {
	case jobSubmit:
		exchangeID, err := g.api.createOrder(ctx, g.symbol, j.req, j.orderID, g.cfg.QuantityPrecision, g.cfg.PricePrecision)
		if err != nil {
			g.forget(j.orderID)
			g.emit(ctx, domain.CancellationEvent{OrderID: j.orderID, Reason: err.Error()})
			return
		}
		g.emit(ctx, domain.CreationConfirmedEvent{
			OrderID:         j.orderID,
			ExchangeOrderID: formatExchangeOrderID(exchangeID),
			PositionAction:  j.req.PositionAction,
		})
	case jobCancel:
		if _, ok := g.positionAction(j.orderID); !ok {
			return // Create failed or the order already finished
		}
		err := g.api.cancelOrder(ctx, g.symbol, j.orderID)
		if err != nil && errors.Is(err, ports.ErrOrderNotFound) {
			g.logger.Warn(ctx, "CancelOrder: Order already gone on the exchange", map[string]interface{}{"orderID": j.orderID})
		}
	}
}

// handleUserData turns order updates for this gateway's orders into events.
func (g *Gateway) handleUserData(ctx context.Context, ev *futures.WsUserDataEvent) {
	if ev == nil || string(ev.Event) != "ORDER_TRADE_UPDATE" {
		return
	}
	u := ev.OrderTradeUpdate
	if u.Symbol != g.symbol {
		return
	}
	action, ok := g.positionAction(u.ClientOrderID)
	if !ok {
		return // Not ours
	}

	event, terminal, err := translateOrderTradeUpdate(u, action)
	if err != nil {
		g.logger.Error(ctx, err, "Failed to translate order update", map[string]interface{}{"orderID": u.ClientOrderID})
		return
	}
	if terminal {
		g.forget(u.ClientOrderID)
	}
	if event != nil {
		g.emit(ctx, event)
	}
}

func (g *Gateway) emit(ctx context.Context, event domain.Event) {
	select {
	case g.events <- event:
	case <-ctx.Done():
	}
}

func (g *Gateway) checkScope(connectorName, tradingPair string) error {
	if connectorName != g.cfg.ConnectorName || tradingPair != g.cfg.TradingPair {
		return fmt.Errorf("%w: %s %s", ports.ErrUnknownTradingPair, connectorName, tradingPair)
	}
	return nil
}

func (g *Gateway) positionAction(orderID string) (domain.PositionAction, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	a, ok := g.orders[orderID]
	return a, ok
}

func (g *Gateway) forget(orderID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.orders, orderID)
}
