package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kline represents a single candlestick data point.
type Kline struct {
	OpenTime  time.Time // Start time of the interval
	CloseTime time.Time // End time of the interval
	Symbol    string    // Exchange symbol, e.g. BTCUSDT
	Interval  string    // Kline interval (e.g., "1m", "1h")
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
	IsFinal   bool // Whether this kline is the final one for the interval
}
