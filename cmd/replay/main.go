package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"barrierBot/config"
	"barrierBot/internal/adapters/logger"
	"barrierBot/internal/adapters/sqlite"
	"barrierBot/internal/app"
	"barrierBot/internal/domain"
	"barrierBot/internal/journal"
	"barrierBot/internal/ports"
	"barrierBot/internal/replay"
	"barrierBot/internal/utils"
)

var (
	klinesFile  = flag.String("file", "", "kline CSV to replay (defaults to REPLAY_KLINES_FILE)")
	takeProfits = flag.String("tp", "", "comma separated take profit deltas to sweep, e.g. 0.015,0.02,0.03")
	journalDB   = flag.String("journal", "", "sqlite file to journal replayed orders into")
)

func main() {
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	appLogger := logger.New(cfg.Log)
	defer appLogger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	planner, ok := entryPlanner(cfg)
	if !ok {
		log.Fatalf("FATAL: ENTRY_SIDE and ENTRY_QUOTE_AMOUNT must be set for a replay")
	}

	// 2. Load klines from CSV
	filename := *klinesFile
	if filename == "" {
		filename = cfg.ReplayKlinesFile
	}
	if filename == "" {
		log.Fatalf("FATAL: no kline file given, use -file or REPLAY_KLINES_FILE")
	}
	klines, err := utils.ReadKlinesFromCSV(filename)
	if err != nil {
		appLogger.Error(ctx, err, "Error loading klines", map[string]interface{}{"filename": filename})
		log.Fatalf("Error loading klines: %v", err)
	}
	appLogger.Info(ctx, "Loaded klines", map[string]interface{}{"filename": filename, "count": len(klines)})

	// 3. Take profit levels to replay
	levels := []decimal.Decimal{planner.Barrier.TakeProfitDelta}
	if *takeProfits != "" {
		levels = levels[:0]
		for _, s := range strings.Split(*takeProfits, ",") {
			tp, err := decimal.NewFromString(strings.TrimSpace(s))
			if err != nil {
				log.Fatalf("FATAL: invalid take profit %q: %v", s, err)
			}
			levels = append(levels, tp)
		}
	}

	// 4. Optional journal
	g, gctx := errgroup.WithContext(ctx)
	var orderJournal ports.OrderJournal = ports.NopJournal{}
	stopJournal := func() {}
	if *journalDB != "" {
		repo, err := sqlite.NewRepository(sqlite.Config{DBPath: *journalDB, Logger: appLogger.WithComponent("sqlite")})
		if err != nil {
			log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
		}
		defer repo.Close()
		recorder, err := journal.NewRecorder(repo, cfg.JournalBuffer, appLogger.WithComponent("journal"))
		if err != nil {
			log.Fatalf("FATAL: Failed to initialize order journal: %v", err)
		}
		orderJournal = recorder
		journalCtx, cancel := context.WithCancel(gctx)
		stopJournal = cancel
		g.Go(func() error { return recorder.Run(journalCtx) })
	}

	// 5. Replay each level
	results := make([]*replay.Result, 0, len(levels))
	g.Go(func() error {
		defer stopJournal()
		for _, tp := range levels {
			p := planner
			p.Barrier.TakeProfitDelta = tp
			res, err := replay.Run(gctx, klines, replay.Config{
				Controller: controllerConfig(cfg),
				Planner:    p,
				Guard:      entryGuard(cfg),
				HalfSpread: cfg.ReplayHalfSpread,
				Journal:    orderJournal,
			}, appLogger.WithComponent("replay"))
			if err != nil {
				return fmt.Errorf("replay with take profit %s: %w", tp, err)
			}
			results = append(results, res)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		appLogger.Error(context.Background(), err, "Replay failed")
		log.Fatalf("Replay failed: %v", err)
	}

	// 6. Summary
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "TP\tOrders\tFilled\tClosed\tNetPnL\tMaxDD\tPosition\t")
	for i, res := range results {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\t%s\t%s\t\n",
			levels[i].String(),
			res.OrdersOpened,
			res.OrdersFilled,
			formatClosed(res.ClosedByType),
			res.NetPnL.StringFixed(4),
			res.MaxDrawdown.StringFixed(4),
			res.FinalPosition.String(),
		)
	}
	w.Flush()
}

func controllerConfig(cfg *config.Config) app.ControllerConfig {
	return app.ControllerConfig{
		ConnectorName:                cfg.ConnectorName,
		TradingPair:                  cfg.TradingPair,
		UnfilledOrderExpiration:      cfg.UnfilledOrderExpiration,
		LimitTakeProfitPriceDeltaBps: cfg.LimitTakeProfitPriceDeltaBps,
	}
}

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

// entryGuard is the filter that keeps replayed entries away from sharp moves.
func entryGuard(cfg *config.Config) replay.EntryGuard {
	return replay.EntryGuard{
		MaxRecentMovePct: cfg.EntryMaxRecentMovePct,
		Window:           cfg.EntryMoveWindow,
		ExcludedRecent:   cfg.EntryMoveExcluded,
		MinSpacing:       cfg.EntryMinSpacing,
	}
}

func formatClosed(counts map[domain.CloseType]int) string {
	if len(counts) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(counts))
	for ct, n := range counts {
		parts = append(parts, fmt.Sprintf("%s=%d", ct, n))
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}
