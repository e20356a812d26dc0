package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"barrierBot/internal/domain"
	"barrierBot/internal/ports"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
)

const (
	// Base URLs
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"
)

// Client wraps the go-binance futures client with error translation and
// domain conversions.
type Client struct {
	futuresClient        *futures.Client
	logger               ports.Logger
	reconnectDelay       time.Duration
	maxReconnectAttempts int
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey               string
	SecretKey            string
	UseTestnet           bool
	Logger               ports.Logger
	ReconnectDelay       time.Duration // Base delay between user stream reconnects
	MaxReconnectAttempts int           // Consecutive failures before giving up
}

// New creates a new Binance client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		cfg.Logger.Warn(context.Background(), "APIKey or SecretKey is empty. Client will only work for public endpoints.")
	}

	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.UseTestnet {
		client.BaseURL = baseURLTestnet
		// The websocket endpoints are only switchable through the package flag.
		futures.UseTestnet = true
		cfg.Logger.Info(context.Background(), "Binance client configured for Testnet", map[string]interface{}{"baseURL": client.BaseURL})
	} else {
		client.BaseURL = baseURLProduction
		cfg.Logger.Info(context.Background(), "Binance client configured for Production", map[string]interface{}{"baseURL": client.BaseURL})
	}

	reconnectDelay := cfg.ReconnectDelay
	if reconnectDelay <= 0 {
		reconnectDelay = 1 * time.Second
	}
	maxAttempts := cfg.MaxReconnectAttempts
	if maxAttempts <= 0 {
		maxAttempts = 10
	}

	return &Client{
		futuresClient:        client,
		logger:               cfg.Logger,
		reconnectDelay:       reconnectDelay,
		maxReconnectAttempts: maxAttempts,
	}, nil
}

// ToSymbol converts a dash separated trading pair (BTC-USDT) to a Binance
// symbol (BTCUSDT).
func ToSymbol(tradingPair string) string {
	return strings.ReplaceAll(strings.ToUpper(tradingPair), "-", "")
}

// mapAPIErrorCode maps Binance error codes to the standard port errors.
func mapAPIErrorCode(code int64) error {
	switch code {
	case -1003: // Too many requests
		return ports.ErrRateLimited
	case -1021: // Timestamp outside of the recvWindow
		return ports.ErrTimeout
	case -1022: // Invalid signature
		return ports.ErrAuthenticationFailed
	case -1101, -1102, -1103, -1104, -1105, -1106, -1111, -1115, -1116, -1117, -1120, -1121, -1125, -1127, -1128, -1130:
		return ports.ErrInvalidRequest
	case -2010, -2022: // New order rejected, ReduceOnly rejected
		return ports.ErrOrderPlacementFailed
	case -2011: // Cancel rejected
		return ports.ErrOrderCancelFailed
	case -2013: // Order does not exist
		return ports.ErrOrderNotFound
	case -2014, -2015: // API-key format, key/IP/permissions
		return ports.ErrInvalidAPIKeys
	case -2019, -3005, -3041, -4047: // Margin, balance, position limits
		return ports.ErrInsufficientFunds
	case -4003, -4014, -4015: // Qty, price, leverage out of range
		return ports.ErrInvalidRequest
	case -4044: // Position not found
		return ports.ErrNotFound
	default:
		return ports.ErrUnknown
	}
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return fmt.Errorf("%s failed: %w: %w", operation, mapAPIErrorCode(apiErr.Code), err)
	}

	var finalErr error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		finalErr = fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	case strings.Contains(err.Error(), "use of closed network connection"),
		strings.Contains(err.Error(), "connection refused"),
		strings.Contains(err.Error(), "connection reset by peer"):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	default:
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrUnknown, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

// Ping checks the connectivity to the exchange API.
func (c *Client) Ping(ctx context.Context) error {
	op := "Ping"
	if err := c.futuresClient.NewPingService().Do(ctx); err != nil {
		return c.handleError(ctx, fmt.Errorf("ping failed: %w", err), op)
	}
	c.logger.Debug(ctx, op+" successful")
	return nil
}

// SetServerTime synchronizes the client's time offset with the server.
func (c *Client) SetServerTime(ctx context.Context) error {
	op := "SetServerTime"
	if _, err := c.futuresClient.NewSetServerTimeService().Do(ctx); err != nil {
		return c.handleError(ctx, err, op)
	}
	c.logger.Debug(ctx, op+" successful")
	return nil
}

// SetLeverage sets the leverage for a trading pair.
func (c *Client) SetLeverage(ctx context.Context, tradingPair string, leverage int) error {
	op := "SetLeverage"
	symbol := ToSymbol(tradingPair)
	_, err := c.futuresClient.NewChangeLeverageService().
		Symbol(symbol).
		Leverage(leverage).
		Do(ctx)
	if err != nil {
		return c.handleError(ctx, err, op)
	}
	c.logger.Info(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "leverage": leverage})
	return nil
}

// createOrder places one order under clientOrderID and returns the
// exchange-assigned id.
func (c *Client) createOrder(ctx context.Context, symbol string, req ports.OrderRequest, clientOrderID string, qtyPrecision, pricePrecision int32) (int64, error) {
	op := "CreateOrder"

	svc := c.futuresClient.NewCreateOrderService().
		Symbol(symbol).
		Side(futures.SideType(req.Side)).
		Quantity(formatQuantity(req.Amount, qtyPrecision)).
		NewClientOrderID(clientOrderID)
	if req.PositionAction == domain.PositionActionClose {
		svc = svc.ReduceOnly(true)
	}
	if req.OrderType == domain.Limit {
		svc = svc.Type(futures.OrderTypeLimit).
			TimeInForce(futures.TimeInForceTypeGTC).
			Price(formatPrice(req.Price, pricePrecision))
	} else {
		svc = svc.Type(futures.OrderTypeMarket)
	}

	res, err := svc.Do(ctx)
	if err != nil {
		return 0, c.handleError(ctx, err, op)
	}
	c.logger.Info(ctx, op+" successful", map[string]interface{}{
		"symbol":        symbol,
		"clientOrderID": clientOrderID,
		"orderID":       res.OrderID,
		"side":          req.Side,
		"type":          req.OrderType,
		"status":        res.Status,
	})
	return res.OrderID, nil
}

// cancelOrder cancels an order by its client order id.
func (c *Client) cancelOrder(ctx context.Context, symbol, clientOrderID string) error {
	op := "CancelOrder"
	c.logger.Debug(ctx, "Attempting to cancel order", map[string]interface{}{"symbol": symbol, "clientOrderID": clientOrderID})

	res, err := c.futuresClient.NewCancelOrderService().
		Symbol(symbol).
		OrigClientOrderID(clientOrderID).
		Do(ctx)
	if err != nil {
		return c.handleError(ctx, err, op)
	}
	c.logger.Info(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "clientOrderID": clientOrderID, "status": res.Status})
	return nil
}

// bookTicker returns the best bid and ask for symbol.
func (c *Client) bookTicker(ctx context.Context, symbol string) (bid, ask string, err error) {
	op := "GetBookTicker"
	tickers, err := c.futuresClient.NewListBookTickersService().Symbol(symbol).Do(ctx)
	if err != nil {
		return "", "", c.handleError(ctx, err, op)
	}
	if len(tickers) == 0 {
		return "", "", c.handleError(ctx, fmt.Errorf("no book ticker returned for symbol %s: %w", symbol, ports.ErrNoMarketPrice), op)
	}
	return tickers[0].BidPrice, tickers[0].AskPrice, nil
}

// GetKlinesRange fetches all klines for a trading pair and interval between start and end.
func (c *Client) GetKlinesRange(ctx context.Context, tradingPair, interval string, start, end time.Time) ([]*domain.Kline, error) {
	op := "GetKlinesRange"
	symbol := ToSymbol(tradingPair)
	var allKlines []*domain.Kline
	const maxLimit = 1500
	from := start

	for {
		klines, err := c.futuresClient.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(from.UnixMilli()).
			EndTime(end.UnixMilli()).
			Limit(maxLimit).
			Do(ctx)
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		if len(klines) == 0 {
			break
		}
		for _, bk := range klines {
			dk, err := translateBinanceKline(bk, symbol, interval)
			if err != nil {
				return nil, c.handleError(ctx, fmt.Errorf("failed to translate historical kline range: %w", err), op)
			}
			allKlines = append(allKlines, dk)
		}
		last := klines[len(klines)-1]
		from = time.UnixMilli(last.CloseTime + 1)
		if from.After(end) || len(klines) < maxLimit {
			break
		}
	}

	c.logger.Info(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "interval": interval, "count": len(allKlines)})
	return allKlines, nil
}

// --- Translation Helpers ---

func formatQuantity(amount decimal.Decimal, precision int32) string {
	return amount.Truncate(precision).StringFixed(precision)
}

func formatPrice(price decimal.Decimal, precision int32) string {
	return price.Round(precision).StringFixed(precision)
}

func translateBinanceKline(bk *futures.Kline, symbol, interval string) (*domain.Kline, error) {
	if bk == nil {
		return nil, errors.New("received nil historical kline")
	}
	values := make([]decimal.Decimal, 5)
	for i, raw := range []string{bk.Open, bk.High, bk.Low, bk.Close, bk.Volume} {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing kline value '%s': %w", raw, err)
		}
		values[i] = v
	}

	return &domain.Kline{
		OpenTime:  time.UnixMilli(bk.OpenTime),
		CloseTime: time.UnixMilli(bk.CloseTime),
		Symbol:    symbol,
		Interval:  interval,
		Open:      values[0],
		High:      values[1],
		Low:       values[2],
		Close:     values[3],
		Volume:    values[4],
		IsFinal:   true, // Historical klines are always final
	}, nil
}

func formatExchangeOrderID(id int64) string {
	return strconv.FormatInt(id, 10)
}
