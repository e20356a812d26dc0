package ports

import (
	"context"

	"barrierBot/internal/domain"
)

// OrderRecordRepository persists order snapshots for history and audit.
type OrderRecordRepository interface {
	// SaveOrderRecord inserts or replaces the record keyed by its order id.
	SaveOrderRecord(ctx context.Context, rec domain.OrderRecord) error
	// FindOrderRecord retrieves one record. Returns nil, nil if not found.
	FindOrderRecord(ctx context.Context, orderID string) (*domain.OrderRecord, error)
	// FindOrderRecords returns the newest records first. An empty ref matches all.
	FindOrderRecords(ctx context.Context, ref string, limit int) ([]domain.OrderRecord, error)
	// CountClosedByType counts terminated entry orders per close type.
	CountClosedByType(ctx context.Context) (map[domain.CloseType]int, error)
}

// OrderJournal receives order snapshots from the controller. Record must not block.
type OrderJournal interface {
	Record(rec domain.OrderRecord)
}

// NopJournal drops every record.
type NopJournal struct{}

func (NopJournal) Record(domain.OrderRecord) {}
