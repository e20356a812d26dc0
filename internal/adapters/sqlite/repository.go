package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"barrierBot/internal/domain"
	"barrierBot/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements ports.OrderRecordRepository using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/barrier_bot.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// A single writer; the journal worker is the only caller on the hot path.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "SQLite order journal ready", map[string]interface{}{"path": dbPath})

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
// Decimal columns are TEXT so values round-trip exactly.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS order_records (
		order_id TEXT PRIMARY KEY,
		parent_order_id TEXT NOT NULL DEFAULT '',
		exchange_order_id TEXT NOT NULL DEFAULT '',
		kind TEXT NOT NULL,
		connector_name TEXT NOT NULL,
		trading_pair TEXT NOT NULL,
		side TEXT NOT NULL,
		ref TEXT NOT NULL DEFAULT '',
		amount TEXT NOT NULL,
		entry_price TEXT NOT NULL,
		filled_amount TEXT NOT NULL,
		last_filled_price TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		last_filled_at TIMESTAMP NULL,
		terminated_at TIMESTAMP NULL,
		close_type TEXT NOT NULL DEFAULT '',
		removed INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_order_records_ref_created ON order_records (ref, created_at);
	CREATE INDEX IF NOT EXISTS idx_order_records_close_type ON order_records (kind, close_type);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// SaveOrderRecord inserts the record or replaces the stored snapshot of the same order.
func (r *Repository) SaveOrderRecord(ctx context.Context, rec domain.OrderRecord) error {
	const query = `
	INSERT INTO order_records (
		order_id, parent_order_id, exchange_order_id, kind, connector_name, trading_pair, side, ref,
		amount, entry_price, filled_amount, last_filled_price,
		created_at, last_filled_at, terminated_at, close_type, removed, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(order_id) DO UPDATE SET
		exchange_order_id = excluded.exchange_order_id,
		amount = excluded.amount,
		entry_price = excluded.entry_price,
		filled_amount = excluded.filled_amount,
		last_filled_price = excluded.last_filled_price,
		last_filled_at = excluded.last_filled_at,
		terminated_at = excluded.terminated_at,
		close_type = excluded.close_type,
		removed = excluded.removed,
		updated_at = excluded.updated_at`

	if rec.OrderID == "" {
		return fmt.Errorf("save order record: %w: empty order id", ports.ErrInvalidRequest)
	}

	_, err := r.db.ExecContext(ctx, query,
		rec.OrderID, rec.ParentOrderID, rec.ExchangeOrderID, string(rec.Kind), rec.ConnectorName, rec.TradingPair,
		string(rec.Side), rec.Ref,
		rec.Amount, rec.EntryPrice, rec.FilledAmount, rec.LastFilledPrice,
		rec.CreatedAt, nullTime(rec.LastFilledAt), nullTime(rec.TerminatedAt), string(rec.CloseType), rec.Removed,
		time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save order record %s: %w: %w", rec.OrderID, ports.ErrUpdateFailed, err)
	}
	r.logger.Debug(ctx, "Order record saved", map[string]interface{}{"orderID": rec.OrderID, "kind": rec.Kind, "closeType": rec.CloseType})
	return nil
}

const selectColumns = `
	SELECT order_id, parent_order_id, exchange_order_id, kind, connector_name, trading_pair, side, ref,
	       amount, entry_price, filled_amount, last_filled_price,
	       created_at, last_filled_at, terminated_at, close_type, removed
	FROM order_records`

// FindOrderRecord retrieves one record by order id. Returns nil, nil if not found.
func (r *Repository) FindOrderRecord(ctx context.Context, orderID string) (*domain.OrderRecord, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE order_id = ?`, orderID)
	rec, err := scanOrderRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Debug(ctx, "Order record not found", map[string]interface{}{"orderID": orderID})
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query order record %s: %w: %w", orderID, ports.ErrQueryFailed, err)
	}
	return rec, nil
}

// FindOrderRecords returns the newest records first, up to limit. An empty ref matches all.
func (r *Repository) FindOrderRecords(ctx context.Context, ref string, limit int) ([]domain.OrderRecord, error) {
	query := selectColumns + ` WHERE (? = '' OR ref = ?) ORDER BY created_at DESC, rowid DESC LIMIT ?`
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := r.db.QueryContext(ctx, query, ref, ref, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query order records for ref %q: %w: %w", ref, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	records := make([]domain.OrderRecord, 0)
	for rows.Next() {
		rec, err := scanOrderRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order record: %w", err)
		}
		records = append(records, *rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order record rows: %w", err)
	}
	return records, nil
}

// CountClosedByType counts terminated entry orders per close type.
func (r *Repository) CountClosedByType(ctx context.Context) (map[domain.CloseType]int, error) {
	const query = `
	SELECT close_type, COUNT(*) FROM order_records
	WHERE kind = ? AND terminated_at IS NOT NULL
	GROUP BY close_type`

	rows, err := r.db.QueryContext(ctx, query, string(domain.OrderKindEntry))
	if err != nil {
		return nil, fmt.Errorf("failed to count closed orders: %w: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	counts := make(map[domain.CloseType]int)
	for rows.Next() {
		var closeType string
		var n int
		if err := rows.Scan(&closeType, &n); err != nil {
			return nil, fmt.Errorf("failed to scan close type count: %w", err)
		}
		counts[domain.CloseType(closeType)] = n
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating close type rows: %w", err)
	}
	return counts, nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanOrderRecord(s scanner) (*domain.OrderRecord, error) {
	rec := &domain.OrderRecord{}
	var kind, side, closeType string
	var lastFilledAt, terminatedAt sql.NullTime
	err := s.Scan(
		&rec.OrderID, &rec.ParentOrderID, &rec.ExchangeOrderID, &kind, &rec.ConnectorName, &rec.TradingPair, &side, &rec.Ref,
		&rec.Amount, &rec.EntryPrice, &rec.FilledAmount, &rec.LastFilledPrice,
		&rec.CreatedAt, &lastFilledAt, &terminatedAt, &closeType, &rec.Removed)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	rec.Kind = domain.OrderKind(kind)
	rec.Side = domain.TradeSide(side)
	rec.CloseType = domain.CloseType(closeType)
	if lastFilledAt.Valid {
		rec.LastFilledAt = lastFilledAt.Time
	}
	if terminatedAt.Valid {
		rec.TerminatedAt = terminatedAt.Time
	}
	return rec, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
