package ports

import (
	"context"

	"barrierBot/internal/domain"

	"github.com/shopspring/decimal"
)

// EntryPlanner decides whether a position should be opened now. It is the
// seam for the entry signal, which lives outside this module.
type EntryPlanner interface {
	// PlanEntry returns the entry to attempt at the given mid price, or false
	// when nothing should be opened this tick.
	PlanEntry(ctx context.Context, midPrice decimal.Decimal) (domain.EntryIntent, bool)
}
