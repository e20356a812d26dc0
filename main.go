package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"barrierBot/config"
	"barrierBot/internal/adapters/binanceclient"
	"barrierBot/internal/adapters/logger"
	"barrierBot/internal/adapters/sqlite"
	"barrierBot/internal/app"
	"barrierBot/internal/journal"
	"barrierBot/internal/ports"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}
	if err := cfg.ValidateLiveCredentials(); err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	// 2. Initialize Logger
	appLogger := logger.New(cfg.Log)
	defer appLogger.Close()
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": logger.ParseLevel(cfg.Log.Level).String()})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Initialize Repository and Journal
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger.WithComponent("sqlite"),
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing database repository")
		}
	}()
	if counts, err := repo.CountClosedByType(ctx); err == nil {
		appLogger.Info(ctx, "Order journal loaded", map[string]interface{}{"closedByType": counts})
	}

	recorder, err := journal.NewRecorder(repo, cfg.JournalBuffer, appLogger.WithComponent("journal"))
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize order journal: %v", err)
	}

	// 4. Initialize Exchange Client and Gateway (Binance Adapter)
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:               cfg.APIKey,
		SecretKey:            cfg.SecretKey,
		UseTestnet:           cfg.IsTestnet,
		Logger:               appLogger.WithComponent("binance"),
		ReconnectDelay:       cfg.ReconnectDelay,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}
	if err := binanceClient.SetServerTime(ctx); err != nil {
		appLogger.Warn(ctx, "Failed to sync server time", map[string]interface{}{"error": err.Error()})
	}
	if err := binanceClient.SetLeverage(ctx, cfg.TradingPair, cfg.Leverage); err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to apply leverage")
		log.Fatalf("FATAL: Failed to apply leverage: %v", err)
	}

	gateway, err := binanceclient.NewGateway(binanceClient, binanceclient.GatewayConfig{
		ConnectorName:     cfg.ConnectorName,
		TradingPair:       cfg.TradingPair,
		QuantityPrecision: cfg.QuantityPrecision,
		PricePrecision:    cfg.PricePrecision,
		SubmitWorkers:     cfg.SubmitWorkers,
	}, appLogger.WithComponent("gateway"))
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize Binance gateway: %v", err)
	}

	// 5. Initialize Controller and Runner
	controller, err := app.NewController(controllerConfig(cfg), appLogger.WithComponent("controller"), gateway, gateway, ports.SystemClock{}, recorder)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize controller: %v", err)
	}

	runnerCfg := app.RunnerConfig{CheckInterval: cfg.CheckInterval}
	if planner, ok := entryPlanner(cfg); ok {
		runnerCfg.Planner = planner
		appLogger.Info(ctx, "Automatic entries enabled", map[string]interface{}{
			"side":        planner.Side,
			"quoteAmount": planner.QuoteAmount.String(),
			"ref":         planner.Ref,
		})
	}
	runner, err := app.NewRunner(controller, gateway.Events(), runnerCfg, appLogger.WithComponent("runner"))
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize runner: %v", err)
	}

	// 6. Run until SIGINT/SIGTERM
	appLogger.Info(ctx, "Starting barrier bot", map[string]interface{}{
		"connector":   cfg.ConnectorName,
		"tradingPair": cfg.TradingPair,
		"testnet":     cfg.IsTestnet,
	})
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return recorder.Run(gctx) })
	g.Go(func() error { return gateway.Run(gctx) })
	g.Go(func() error { return runner.Run(gctx) })

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		appLogger.Error(context.Background(), err, "Barrier bot exited with error")
		log.Fatalf("FATAL: Barrier bot exited with error: %v", err)
	}

	if dropped := recorder.Dropped(); dropped > 0 {
		appLogger.Warn(context.Background(), "Journal records were dropped", map[string]interface{}{"dropped": dropped})
	}
	appLogger.Info(context.Background(), "Application finished gracefully.")
}

func controllerConfig(cfg *config.Config) app.ControllerConfig {
	return app.ControllerConfig{
		ConnectorName:                cfg.ConnectorName,
		TradingPair:                  cfg.TradingPair,
		UnfilledOrderExpiration:      cfg.UnfilledOrderExpiration,
		LimitTakeProfitPriceDeltaBps: cfg.LimitTakeProfitPriceDeltaBps,
	}
}

// entryPlanner returns the configured entry plan, or false when ENTRY_SIDE
// is not set.
func entryPlanner(cfg *config.Config) (app.FixedEntryPlanner, bool) {
	if cfg.EntrySide == "" {
		return app.FixedEntryPlanner{}, false
	}
	return app.FixedEntryPlanner{
		Side:           cfg.EntrySide,
		QuoteAmount:    cfg.EntryQuoteAmount,
		PriceOffsetBps: cfg.EntryPriceOffsetBps,
		Barrier:        cfg.Barrier(),
		Ref:            cfg.EntryRef,
		Cooldown:       cfg.EntryCooldown,
	}, true
}
