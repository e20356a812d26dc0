package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"barrierBot/config"
	"barrierBot/internal/adapters/binanceclient"
	"barrierBot/internal/adapters/logger"
	"barrierBot/internal/utils"
)

var output = flag.String("out", "", "CSV file to write (defaults to data/<SYMBOL>_<interval>_<from>_to_<to>.csv)")

func main() {
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.New(cfg.Log)
	defer appLogger.Close()
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": logger.ParseLevel(cfg.Log.Level).String()})

	// 3. Initialize Exchange Client (Binance Adapter)
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:               cfg.APIKey,
		SecretKey:            cfg.SecretKey,
		UseTestnet:           cfg.IsTestnet,
		Logger:               appLogger.WithComponent("binance"),
		ReconnectDelay:       cfg.ReconnectDelay,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}
	if err := binanceClient.Ping(context.Background()); err != nil {
		log.Fatalf("FATAL: Binance is not reachable: %v", err)
	}

	end := time.Now()
	start := end.Add(-cfg.KlineLookback)

	appLogger.Info(context.Background(), "Fetching klines", map[string]interface{}{
		"tradingPair": cfg.TradingPair,
		"interval":    cfg.KlineInterval,
		"start":       start,
		"end":         end,
	})
	klines, err := binanceClient.GetKlinesRange(context.Background(), cfg.TradingPair, cfg.KlineInterval, start, end)
	if err != nil {
		appLogger.Error(context.Background(), err, "Error fetching klines")
		log.Fatalf("Error fetching klines: %v", err)
	}
	appLogger.Info(context.Background(), "Fetched klines", map[string]interface{}{"count": len(klines)})

	filename := *output
	if filename == "" {
		filename = fmt.Sprintf("data/%s_%s_%s_to_%s.csv", binanceclient.ToSymbol(cfg.TradingPair), cfg.KlineInterval, start.Format("20060102"), end.Format("20060102"))
	}
	if err := utils.WriteKlinesToCSV(klines, filename); err != nil {
		appLogger.Error(context.Background(), err, "Error writing CSV")
		log.Fatalf("Error writing CSV: %v", err)
	}
	appLogger.Info(context.Background(), "Saved to", map[string]interface{}{"filename": filename})
}
