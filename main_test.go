package main

import (
	"testing"
	"time"

	"barrierBot/config"
	"barrierBot/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControllerConfig(t *testing.T) {
	cfg := &config.Config{
		ConnectorName:                "binance_perpetual",
		TradingPair:                  "BTC-USDT",
		UnfilledOrderExpiration:      time.Minute,
		LimitTakeProfitPriceDeltaBps: decimal.NewFromInt(3),
	}
	cc := controllerConfig(cfg)
	assert.Equal(t, "binance_perpetual", cc.ConnectorName)
	assert.Equal(t, "BTC-USDT", cc.TradingPair)
	assert.Equal(t, time.Minute, cc.UnfilledOrderExpiration)
	assert.True(t, decimal.NewFromInt(3).Equal(cc.LimitTakeProfitPriceDeltaBps))
}

func TestEntryPlanner(t *testing.T) {
	cfg := &config.Config{}
	_, ok := entryPlanner(cfg)
	assert.False(t, ok, "no ENTRY_SIDE means no automatic entries")

	cfg.EntrySide = domain.Sell
	cfg.EntryQuoteAmount = decimal.NewFromInt(250)
	cfg.EntryPriceOffsetBps = decimal.NewFromInt(5)
	cfg.EntryRef = "grid-1"
	cfg.EntryCooldown = 15 * time.Minute
	cfg.TakeProfitDelta = decimal.RequireFromString("0.03")
	cfg.OpenOrderType = domain.Limit
	cfg.TakeProfitOrderType = domain.Market
	cfg.TimeLimitOrderType = domain.Market

	planner, ok := entryPlanner(cfg)
	require.True(t, ok)
	assert.Equal(t, domain.Sell, planner.Side)
	assert.True(t, decimal.NewFromInt(250).Equal(planner.QuoteAmount))
	assert.True(t, decimal.NewFromInt(5).Equal(planner.PriceOffsetBps))
	assert.Equal(t, "grid-1", planner.Ref)
	assert.Equal(t, 15*time.Minute, planner.Cooldown)
	assert.Equal(t, cfg.Barrier(), planner.Barrier)
}
