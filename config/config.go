package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"barrierBot/internal/adapters/logger"
	"barrierBot/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	// Binance API
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Market
	ConnectorName     string
	TradingPair       string
	Leverage          int
	QuantityPrecision int32
	PricePrecision    int32

	// Order lifecycle
	UnfilledOrderExpiration      time.Duration // 0 disables expiry
	LimitTakeProfitPriceDeltaBps decimal.Decimal
	CheckInterval                time.Duration

	// Entry plan. An empty EntrySide disables automatic entries.
	EntrySide           domain.TradeSide
	EntryQuoteAmount    decimal.Decimal
	EntryRef            string
	EntryCooldown       time.Duration
	EntryPriceOffsetBps decimal.Decimal

	// Entry guard, replay only
	EntryMaxRecentMovePct decimal.Decimal
	EntryMoveWindow       int
	EntryMoveExcluded     int
	EntryMinSpacing       time.Duration

	// Triple barrier
	StopLossDelta       decimal.Decimal
	TakeProfitDelta     decimal.Decimal
	TimeLimit           time.Duration
	OpenOrderType       domain.OrderType
	TakeProfitOrderType domain.OrderType
	TimeLimitOrderType  domain.OrderType

	// Storage
	DBPath        string
	JournalBuffer int

	// Logging
	Log logger.Config

	// Connection Settings
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
	SubmitWorkers        int

	// Klines and replay
	KlineInterval    string
	KlineLookback    time.Duration
	ReplayKlinesFile string
	ReplayHalfSpread decimal.Decimal
}

// LoadConfig loads configuration from the environment. A .env file is loaded
// first when present, and CONFIG_FILE may name a YAML, TOML or JSON file whose
// keys (same names, any case) sit below environment variables.
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	if file := strings.TrimSpace(v.GetString("CONFIG_FILE")); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	r := &reader{v: v}
	cfg := &Config{}

	// Binance API
	cfg.APIKey = r.str("BINANCE_API_KEY", "")
	cfg.SecretKey = r.str("BINANCE_API_SECRET", "")
	cfg.IsTestnet = r.boolean("IS_TESTNET", true) // Default to testnet for safety

	// Market
	cfg.ConnectorName = r.str("CONNECTOR_NAME", "binance_perpetual")
	cfg.TradingPair = r.str("TRADING_PAIR", "BTC-USDT")
	if parts := strings.Split(cfg.TradingPair, "-"); len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		r.fail("TRADING_PAIR must look like BASE-QUOTE, got %q", cfg.TradingPair)
	}
	cfg.Leverage = r.integer("LEVERAGE", 2)
	if cfg.Leverage <= 0 {
		r.fail("LEVERAGE must be positive")
	}
	cfg.QuantityPrecision = int32(r.integer("QUANTITY_PRECISION", 3))
	cfg.PricePrecision = int32(r.integer("PRICE_PRECISION", 2))
	if cfg.QuantityPrecision < 0 || cfg.PricePrecision < 0 {
		r.fail("QUANTITY_PRECISION and PRICE_PRECISION cannot be negative")
	}

	// Order lifecycle
	cfg.UnfilledOrderExpiration = r.seconds("UNFILLED_ORDER_EXPIRATION_SECONDS", 60)
	cfg.LimitTakeProfitPriceDeltaBps = r.dec("LIMIT_TAKE_PROFIT_PRICE_DELTA_BPS", decimal.Zero)
	if cfg.LimitTakeProfitPriceDeltaBps.IsNegative() {
		r.fail("LIMIT_TAKE_PROFIT_PRICE_DELTA_BPS cannot be negative")
	}
	cfg.CheckInterval = time.Duration(r.integer("CHECK_INTERVAL_MS", 1000)) * time.Millisecond
	if cfg.CheckInterval <= 0 {
		r.fail("CHECK_INTERVAL_MS must be positive")
	}

	// Entry plan
	if side := r.str("ENTRY_SIDE", ""); side != "" {
		parsed, err := domain.ParseTradeSide(side)
		if err != nil {
			r.fail("invalid ENTRY_SIDE: %v", err)
		}
		cfg.EntrySide = parsed
	}
	cfg.EntryQuoteAmount = r.dec("ENTRY_QUOTE_AMOUNT", decimal.Zero)
	if cfg.EntrySide != "" && !cfg.EntryQuoteAmount.IsPositive() {
		r.fail("ENTRY_QUOTE_AMOUNT must be positive when ENTRY_SIDE is set")
	}
	cfg.EntryRef = r.str("ENTRY_REF", "Manual")
	cfg.EntryCooldown = r.minutes("ENTRY_COOLDOWN_MINUTES", 0)
	cfg.EntryPriceOffsetBps = r.dec("ENTRY_PRICE_OFFSET_BPS", decimal.Zero)
	if cfg.EntryPriceOffsetBps.IsNegative() {
		r.fail("ENTRY_PRICE_OFFSET_BPS cannot be negative")
	}
	cfg.EntryMaxRecentMovePct = r.dec("ENTRY_MAX_RECENT_MOVE_PCT", decimal.Zero)
	cfg.EntryMoveWindow = r.integer("ENTRY_MOVE_WINDOW", 0)
	cfg.EntryMoveExcluded = r.integer("ENTRY_MOVE_EXCLUDED", 0)
	if cfg.EntryMoveWindow < 0 || cfg.EntryMoveExcluded < 0 {
		r.fail("ENTRY_MOVE_WINDOW and ENTRY_MOVE_EXCLUDED cannot be negative")
	}
	cfg.EntryMinSpacing = r.minutes("ENTRY_MIN_SPACING_MINUTES", 0)

	// Triple barrier
	cfg.StopLossDelta = r.dec("STOP_LOSS_DELTA", decimal.Zero)
	cfg.TakeProfitDelta = r.dec("TAKE_PROFIT_DELTA", decimal.Zero)
	cfg.TimeLimit = r.seconds("TIME_LIMIT_SECONDS", 0)
	cfg.OpenOrderType = r.orderType("OPEN_ORDER_TYPE", domain.Limit)
	cfg.TakeProfitOrderType = r.orderType("TAKE_PROFIT_ORDER_TYPE", domain.Limit)
	cfg.TimeLimitOrderType = r.orderType("TIME_LIMIT_ORDER_TYPE", domain.Market)
	if err := cfg.Barrier().Validate(); err != nil {
		r.fail("%v", err)
	}

	// Database
	cfg.DBPath = r.str("DB_PATH", "./data/barrier_bot.db")
	if cfg.DBPath == "" {
		r.fail("DB_PATH must be set")
	}
	cfg.JournalBuffer = r.integer("JOURNAL_BUFFER", 256)
	if cfg.JournalBuffer <= 0 {
		r.fail("JOURNAL_BUFFER must be positive")
	}

	// Logging
	cfg.Log = logger.Config{
		Level:      r.str("LOG_LEVEL", "INFO"),
		Format:     r.str("LOG_FORMAT", "text"),
		Output:     r.str("LOG_OUTPUT", "stdout"),
		MaxSize:    r.integer("LOG_MAX_SIZE_MB", 50),
		MaxBackups: r.integer("LOG_MAX_BACKUPS", 5),
		MaxAge:     r.integer("LOG_MAX_AGE_DAYS", 30),
		Compress:   r.boolean("LOG_COMPRESS", true),
	}
	if f := strings.ToLower(cfg.Log.Format); f != "text" && f != "json" {
		r.fail("LOG_FORMAT must be text or json")
	}

	// Connection Settings
	cfg.ReconnectDelay = r.seconds("RECONNECT_DELAY_SECONDS", 5)
	if cfg.ReconnectDelay <= 0 {
		r.fail("RECONNECT_DELAY_SECONDS must be positive")
	}
	cfg.MaxReconnectAttempts = r.integer("MAX_RECONNECT_ATTEMPTS", 10)
	if cfg.MaxReconnectAttempts < 0 {
		r.fail("MAX_RECONNECT_ATTEMPTS cannot be negative")
	}
	cfg.SubmitWorkers = r.integer("SUBMIT_WORKERS", 4)
	if cfg.SubmitWorkers <= 0 {
		r.fail("SUBMIT_WORKERS must be positive")
	}

	// Klines and replay
	cfg.KlineInterval = r.str("KLINE_INTERVAL", "1m")
	cfg.KlineLookback = time.Duration(r.integer("KLINE_LOOKBACK_DAYS", 30)) * 24 * time.Hour
	if cfg.KlineLookback <= 0 {
		r.fail("KLINE_LOOKBACK_DAYS must be positive")
	}
	cfg.ReplayKlinesFile = r.str("REPLAY_KLINES_FILE", "")
	cfg.ReplayHalfSpread = r.dec("REPLAY_HALF_SPREAD", decimal.RequireFromString("0.0001"))
	if cfg.ReplayHalfSpread.IsNegative() {
		r.fail("REPLAY_HALF_SPREAD cannot be negative")
	}

	// Combine validation errors
	if len(r.errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(r.errs, "; "))
	}
	return cfg, nil
}

// ValidateLiveCredentials reports missing API credentials. Only the live
// binary needs them; kline downloads use public endpoints.
func (c *Config) ValidateLiveCredentials() error {
	var errs []string
	if c.APIKey == "" {
		errs = append(errs, "BINANCE_API_KEY must be set")
	}
	if c.SecretKey == "" {
		errs = append(errs, "BINANCE_API_SECRET must be set")
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Barrier builds the triple barrier attached to every entry.
func (c *Config) Barrier() domain.TripleBarrier {
	return domain.TripleBarrier{
		StopLossDelta:       c.StopLossDelta,
		TakeProfitDelta:     c.TakeProfitDelta,
		TimeLimit:           c.TimeLimit,
		OpenOrderType:       c.OpenOrderType,
		TakeProfitOrderType: c.TakeProfitOrderType,
		TimeLimitOrderType:  c.TimeLimitOrderType,
	}
}

// --- Typed getters ---

// reader resolves keys through viper and collects "set but invalid" errors.
// Unset keys fall back to their default.
type reader struct {
	v    *viper.Viper
	errs []string
}

func (r *reader) fail(format string, args ...interface{}) {
	r.errs = append(r.errs, fmt.Sprintf(format, args...))
}

func (r *reader) raw(key string) string {
	return strings.TrimSpace(r.v.GetString(key))
}

func (r *reader) str(key, defaultValue string) string {
	if value := r.raw(key); value != "" {
		return value
	}
	return defaultValue
}

func (r *reader) integer(key string, defaultValue int) int {
	valueStr := r.raw(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		r.fail("invalid integer value '%s' for key %s", valueStr, key)
		return defaultValue
	}
	return value
}

func (r *reader) boolean(key string, defaultValue bool) bool {
	valueStr := r.raw(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		r.fail("invalid boolean value '%s' for key %s", valueStr, key)
		return defaultValue
	}
	return value
}

func (r *reader) dec(key string, defaultValue decimal.Decimal) decimal.Decimal {
	valueStr := r.raw(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := decimal.NewFromString(valueStr)
	if err != nil {
		r.fail("invalid decimal value '%s' for key %s", valueStr, key)
		return defaultValue
	}
	return value
}

func (r *reader) seconds(key string, defaultValue int) time.Duration {
	n := r.integer(key, defaultValue)
	if n < 0 {
		r.fail("%s cannot be negative", key)
		return 0
	}
	return time.Duration(n) * time.Second
}

func (r *reader) minutes(key string, defaultValue int) time.Duration {
	n := r.integer(key, defaultValue)
	if n < 0 {
		r.fail("%s cannot be negative", key)
		return 0
	}
	return time.Duration(n) * time.Minute
}

func (r *reader) orderType(key string, defaultValue domain.OrderType) domain.OrderType {
	valueStr := r.raw(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := domain.ParseOrderType(valueStr)
	if err != nil {
		r.fail("invalid %s: %v", key, err)
		return defaultValue
	}
	return value
}
