package binanceclient

import (
	"context"
	"fmt"
	"time"

	"barrierBot/internal/domain"
	"barrierBot/internal/ports"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
)

const (
	listenKeyKeepalive = 30 * time.Minute
	maxReconnectDelay  = time.Minute
)

// StreamUserData keeps a user-data websocket open and passes every event to
// handler. It reconnects with exponential backoff and returns nil when ctx is
// cancelled, or an error after too many consecutive failures.
func (c *Client) StreamUserData(ctx context.Context, handler func(*futures.WsUserDataEvent)) error {
	op := "StreamUserData"
	errHandler := func(err error) {
		c.logger.Warn(ctx, op+": WebSocket error reported", map[string]interface{}{"error": err.Error()})
	}

	attempt := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		c.logger.Info(ctx, op+": Attempting WebSocket connection...", map[string]interface{}{"attempt": attempt + 1})
		listenKey, err := c.futuresClient.NewStartUserStreamService().Do(ctx)
		var doneC, stopC chan struct{}
		if err == nil {
			doneC, stopC, err = futures.WsUserDataServe(listenKey, handler, errHandler)
		}
		if err != nil {
			_ = c.handleError(ctx, err, op+" connection attempt")
			attempt++
			if attempt >= c.maxReconnectAttempts {
				c.logger.Error(ctx, err, op+": Max reconnection attempts exceeded, giving up.", map[string]interface{}{"maxAttempts": c.maxReconnectAttempts})
				return fmt.Errorf("%s: %w: %w", op, ports.ErrConnectionFailed, err)
			}
			delay := backoffDelay(c.reconnectDelay, attempt)
			c.logger.Info(ctx, op+": Connection failed, retrying...", map[string]interface{}{"attempt": attempt + 1, "delay": delay.String()})
			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return nil
			}
		}

		c.logger.Info(ctx, op+": WebSocket connection established.")
		attempt = 0

		if !c.keepAlive(ctx, listenKey, doneC) {
			close(stopC)
			c.closeListenKey(listenKey)
			c.logger.Info(ctx, op+": Context cancelled, WebSocket stopped.")
			return nil
		}
		c.logger.Warn(ctx, op+": WebSocket connection closed unexpectedly. Reconnecting...")
	}
}

// keepAlive extends the listen key until the socket closes (true) or ctx
// ends (false).
func (c *Client) keepAlive(ctx context.Context, listenKey string, doneC <-chan struct{}) bool {
	ticker := time.NewTicker(listenKeyKeepalive)
	defer ticker.Stop()
	for {
		select {
		case <-doneC:
			return true
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if err := c.futuresClient.NewKeepaliveUserStreamService().ListenKey(listenKey).Do(ctx); err != nil {
				_ = c.handleError(ctx, err, "KeepaliveUserStream")
			}
		}
	}
}

func (c *Client) closeListenKey(listenKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.futuresClient.NewCloseUserStreamService().ListenKey(listenKey).Do(ctx); err != nil {
		_ = c.handleError(ctx, err, "CloseUserStream")
	}
}

func backoffDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt && delay < maxReconnectDelay; i++ {
		delay *= 2
	}
	if delay > maxReconnectDelay {
		delay = maxReconnectDelay
	}
	return delay
}

// translateOrderTradeUpdate maps an order update to a domain event. terminal
// reports that the order is no longer live. Updates that carry no lifecycle
// change yield a nil event.
func translateOrderTradeUpdate(u futures.WsOrderTradeUpdate, action domain.PositionAction) (event domain.Event, terminal bool, err error) {
	switch string(u.ExecutionType) {
	case "TRADE":
		qty, err := decimal.NewFromString(u.LastFilledQty)
		if err != nil {
			return nil, false, fmt.Errorf("parsing last filled qty '%s': %w", u.LastFilledQty, err)
		}
		price, err := decimal.NewFromString(u.LastFilledPrice)
		if err != nil {
			return nil, false, fmt.Errorf("parsing last filled price '%s': %w", u.LastFilledPrice, err)
		}
		if u.IsReduceOnly {
			action = domain.PositionActionClose
		}
		fill := domain.NewFillEvent(u.ClientOrderID, action, qty, price, time.UnixMilli(u.TradeTime))
		return fill, string(u.Status) == "FILLED", nil
	case "CANCELED", "EXPIRED":
		return domain.CancellationEvent{OrderID: u.ClientOrderID, Reason: string(u.ExecutionType)}, true, nil
	default:
		return nil, false, nil
	}
}
