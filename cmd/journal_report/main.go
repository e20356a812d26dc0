package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"barrierBot/config"
	"barrierBot/internal/adapters/sqlite"
	"barrierBot/internal/domain"
	"barrierBot/internal/ports"
)

var (
	dbPath = flag.String("db", "", "journal database (defaults to DB_PATH)")
	ref    = flag.String("ref", "", "only show orders with this ref")
	limit  = flag.Int("limit", 50, "number of recent records to show, 0 for all")
)

func main() {
	flag.Parse()

	path := *dbPath
	if path == "" {
		cfg, err := config.LoadConfig()
		if err != nil {
			log.Fatalf("FATAL: Failed to load configuration: %v", err)
		}
		path = cfg.DBPath
	}

	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: path, Logger: ports.NopLogger{}})
	if err != nil {
		log.Fatalf("Error opening journal %s: %v", path, err)
	}
	defer repo.Close()

	ctx := context.Background()
	counts, err := repo.CountClosedByType(ctx)
	if err != nil {
		log.Fatalf("Error counting closed orders: %v", err)
	}
	records, err := repo.FindOrderRecords(ctx, *ref, *limit)
	if err != nil {
		log.Fatalf("Error reading order records: %v", err)
	}

	fmt.Println("## Closed entry orders")
	printCloseTypes(counts)

	fmt.Println("\n## Recent orders")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	fmt.Fprintln(w, "Created\tKind\tSide\tRef\tAmount\tPrice\tFilled\tStatus\tHeld\t")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			rec.CreatedAt.Format(time.DateTime),
			rec.Kind,
			rec.Side,
			rec.Ref,
			rec.Amount.String(),
			rec.EntryPrice.String(),
			rec.FilledAmount.String(),
			status(rec),
			held(rec),
		)
	}
	w.Flush()
}

func printCloseTypes(counts map[domain.CloseType]int) {
	if len(counts) == 0 {
		fmt.Println("none")
		return
	}
	types := make([]domain.CloseType, 0, len(counts))
	total := 0
	for ct, n := range counts {
		types = append(types, ct)
		total += n
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "Close Type\tCount\tShare\t")
	for _, ct := range types {
		fmt.Fprintf(w, "%s\t%d\t%.1f%%\t\n", ct, counts[ct], float64(counts[ct])*100/float64(total))
	}
	w.Flush()
}

func status(rec domain.OrderRecord) string {
	switch {
	case rec.Removed:
		return "REMOVED"
	case !rec.TerminatedAt.IsZero():
		return string(rec.CloseType)
	case !rec.LastFilledAt.IsZero():
		return "FILLED"
	default:
		return "OPEN"
	}
}

// held is the time from first tracking to termination, or to now while active.
func held(rec domain.OrderRecord) string {
	end := rec.TerminatedAt
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(rec.CreatedAt).Truncate(time.Second).String()
}
