package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryIntent is a request from a driver to open one position.
type EntryIntent struct {
	Side        TradeSide
	QuoteAmount decimal.Decimal
	EntryPrice  decimal.Decimal
	Barrier     TripleBarrier
	Ref         string
	Cooldown    time.Duration
}
