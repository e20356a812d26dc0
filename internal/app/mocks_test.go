package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"barrierBot/internal/domain"
	"barrierBot/internal/ports"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// Mock implementations
type mockLogger struct {
	mu        sync.Mutex
	debugMsgs []string
	infoMsgs  []string
	warnMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debugMsgs = append(m.debugMsgs, msg)
}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infoMsgs = append(m.infoMsgs, msg)
}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnMsgs = append(m.warnMsgs, msg)
}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorMsgs = append(m.errorMsgs, msg)
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type mockExchange struct {
	calls      []string // "submit:<id>" and "cancel:<id>" in call order
	submitted  []ports.OrderRequest
	cancelled  []string
	submitErr  error
	cancelErrs map[string]error
	onSubmit   func(req ports.OrderRequest)
	nextID     int
	events     chan domain.Event
}

func newMockExchange() *mockExchange {
	return &mockExchange{cancelErrs: map[string]error{}, events: make(chan domain.Event)}
}

func (m *mockExchange) SubmitOrder(ctx context.Context, req ports.OrderRequest) (string, error) {
	if m.onSubmit != nil {
		m.onSubmit(req)
	}
	if m.submitErr != nil {
		return "", m.submitErr
	}
	m.nextID++
	id := fmt.Sprintf("order-%d", m.nextID)
	m.calls = append(m.calls, "submit:"+id)
	m.submitted = append(m.submitted, req)
	return id, nil
}

func (m *mockExchange) CancelOrder(ctx context.Context, connectorName, tradingPair, orderID string) error {
	m.calls = append(m.calls, "cancel:"+orderID)
	m.cancelled = append(m.cancelled, orderID)
	return m.cancelErrs[orderID]
}

func (m *mockExchange) Events() <-chan domain.Event {
	return m.events
}

func (m *mockExchange) lastSubmitted(t *testing.T) ports.OrderRequest {
	t.Helper()
	require.NotEmpty(t, m.submitted)
	return m.submitted[len(m.submitted)-1]
}

type mockMarket struct {
	prices  map[domain.PriceType]decimal.Decimal
	err     error
	queries int
}

func newMockMarket(mid, bid, ask string) *mockMarket {
	return &mockMarket{prices: map[domain.PriceType]decimal.Decimal{
		domain.PriceTypeMid:     d(mid),
		domain.PriceTypeBestBid: d(bid),
		domain.PriceTypeBestAsk: d(ask),
	}}
}

func (m *mockMarket) Price(ctx context.Context, connectorName, tradingPair string, priceType domain.PriceType) (decimal.Decimal, error) {
	m.queries++
	if m.err != nil {
		return decimal.Zero, m.err
	}
	p, ok := m.prices[priceType]
	if !ok {
		return decimal.Zero, errors.New("no price")
	}
	return p, nil
}

type mockJournal struct {
	records []domain.OrderRecord
}

func (m *mockJournal) Record(rec domain.OrderRecord) {
	m.records = append(m.records, rec)
}

// testEnv bundles a controller with its collaborators.
type testEnv struct {
	c       *Controller
	ex      *mockExchange
	market  *mockMarket
	clock   *fakeClock
	journal *mockJournal
	logger  *mockLogger
}

var testStart = time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T, mutate ...func(*ControllerConfig)) *testEnv {
	t.Helper()
	cfg := ControllerConfig{
		ConnectorName:           "binance_perpetual",
		TradingPair:             "BTC-USDT",
		UnfilledOrderExpiration: time.Minute,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	env := &testEnv{
		ex:      newMockExchange(),
		market:  newMockMarket("100", "99.9", "100.1"),
		clock:   &fakeClock{now: testStart},
		journal: &mockJournal{},
		logger:  &mockLogger{},
	}
	c, err := NewController(cfg, env.logger, env.ex, env.market, env.clock, env.journal)
	require.NoError(t, err)
	env.c = c
	return env
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func barrierWith(stopLoss, takeProfit string, timeLimit time.Duration) domain.TripleBarrier {
	b := domain.DefaultTripleBarrier()
	if stopLoss != "" {
		b.StopLossDelta = d(stopLoss)
	}
	if takeProfit != "" {
		b.TakeProfitDelta = d(takeProfit)
	}
	b.TimeLimit = timeLimit
	return b
}

// openFilled creates an order through the controller and fills it completely.
func (e *testEnv) openFilled(t *testing.T, side domain.TradeSide, price string, barrier domain.TripleBarrier) *domain.TrackedOrder {
	t.Helper()
	o, err := e.c.CreateOrder(context.Background(), side, d(price), barrier, d(price), "R")
	require.NoError(t, err)
	e.c.HandleEvent(context.Background(), domain.EntryFillEvent{OrderID: o.OrderID, Amount: o.Amount, Price: d(price), Timestamp: e.clock.Now()})
	return o
}
