package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"barrierBot/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// setupTestDB creates a temporary database for testing
func setupTestDB(t *testing.T) (*Repository, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "barrier-bot-test-*")
	require.NoError(t, err)

	repo, err := NewRepository(Config{
		DBPath: filepath.Join(tmpDir, "test.db"),
		Logger: &mockLogger{},
	})
	require.NoError(t, err)

	cleanup := func() {
		repo.Close()
		os.RemoveAll(tmpDir)
	}
	return repo, cleanup
}

var base = time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

func entryRecord(id, ref string, createdAt time.Time) domain.OrderRecord {
	return domain.OrderRecord{
		OrderID:       id,
		Kind:          domain.OrderKindEntry,
		ConnectorName: "binance_perpetual",
		TradingPair:   "BTC-USDT",
		Side:          domain.Buy,
		Ref:           ref,
		Amount:        decimal.RequireFromString("0.123456789"),
		EntryPrice:    decimal.RequireFromString("64123.45"),
		CreatedAt:     createdAt,
	}
}

func TestNewRepository_RequiresLogger(t *testing.T) {
	_, err := NewRepository(Config{DBPath: filepath.Join(t.TempDir(), "x.db")})
	assert.Error(t, err)
}

func TestRepository_SaveAndFindOrderRecord(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	rec := entryRecord("o-1", "R", base)
	require.NoError(t, repo.SaveOrderRecord(ctx, rec))

	got, err := repo.FindOrderRecord(ctx, "o-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.OrderKindEntry, got.Kind)
	assert.Equal(t, domain.Buy, got.Side)
	assert.True(t, rec.Amount.Equal(got.Amount), "decimals round-trip exactly, got %s", got.Amount)
	assert.True(t, rec.EntryPrice.Equal(got.EntryPrice))
	assert.WithinDuration(t, base, got.CreatedAt, time.Millisecond)
	assert.True(t, got.LastFilledAt.IsZero())
	assert.True(t, got.TerminatedAt.IsZero())
	assert.Equal(t, domain.CloseTypeNone, got.CloseType)

	missing, err := repo.FindOrderRecord(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepository_SaveOrderRecordUpserts(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	rec := entryRecord("o-1", "R", base)
	require.NoError(t, repo.SaveOrderRecord(ctx, rec))

	rec.ExchangeOrderID = "778899"
	rec.FilledAmount = rec.Amount
	rec.LastFilledPrice = decimal.RequireFromString("64120")
	rec.LastFilledAt = base.Add(time.Minute)
	rec.TerminatedAt = base.Add(time.Hour)
	rec.CloseType = domain.CloseTypeStopLoss
	require.NoError(t, repo.SaveOrderRecord(ctx, rec))

	all, err := repo.FindOrderRecords(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 1)

	got := all[0]
	assert.Equal(t, "778899", got.ExchangeOrderID)
	assert.True(t, rec.FilledAmount.Equal(got.FilledAmount))
	assert.WithinDuration(t, base.Add(time.Minute), got.LastFilledAt, time.Millisecond)
	assert.WithinDuration(t, base.Add(time.Hour), got.TerminatedAt, time.Millisecond)
	assert.Equal(t, domain.CloseTypeStopLoss, got.CloseType)
}

func TestRepository_SaveOrderRecordRejectsEmptyID(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	assert.Error(t, repo.SaveOrderRecord(context.Background(), domain.OrderRecord{}))
}

func TestRepository_FindOrderRecords(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.SaveOrderRecord(ctx, entryRecord("a", "R", base)))
	require.NoError(t, repo.SaveOrderRecord(ctx, entryRecord("b", "X", base.Add(time.Minute))))
	require.NoError(t, repo.SaveOrderRecord(ctx, entryRecord("c", "R", base.Add(2*time.Minute))))

	tp := domain.OrderRecord{
		OrderID:       "tp",
		ParentOrderID: "c",
		Kind:          domain.OrderKindTakeProfit,
		ConnectorName: "binance_perpetual",
		TradingPair:   "BTC-USDT",
		Side:          domain.Sell,
		Ref:           "R",
		Amount:        decimal.NewFromInt(1),
		EntryPrice:    decimal.NewFromInt(103),
		CreatedAt:     base.Add(3 * time.Minute),
		Removed:       true,
	}
	require.NoError(t, repo.SaveOrderRecord(ctx, tp))

	tests := []struct {
		name  string
		ref   string
		limit int
		want  []string
	}{
		{name: "all newest first", ref: "", limit: 0, want: []string{"tp", "c", "b", "a"}},
		{name: "by ref", ref: "R", limit: 10, want: []string{"tp", "c", "a"}},
		{name: "limited", ref: "R", limit: 2, want: []string{"tp", "c"}},
		{name: "unknown ref", ref: "Z", limit: 10, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.FindOrderRecords(ctx, tt.ref, tt.limit)
			require.NoError(t, err)
			ids := make([]string, 0, len(got))
			for _, r := range got {
				ids = append(ids, r.OrderID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	got, err := repo.FindOrderRecord(ctx, "tp")
	require.NoError(t, err)
	assert.Equal(t, "c", got.ParentOrderID)
	assert.True(t, got.Removed)
}

func TestRepository_CountClosedByType(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	closed := []domain.CloseType{domain.CloseTypeStopLoss, domain.CloseTypeStopLoss, domain.CloseTypeTakeProfit, domain.CloseTypeExpired}
	for i, ct := range closed {
		rec := entryRecord(string(rune('a'+i)), "R", base)
		rec.TerminatedAt = base.Add(time.Hour)
		rec.CloseType = ct
		require.NoError(t, repo.SaveOrderRecord(ctx, rec))
	}
	require.NoError(t, repo.SaveOrderRecord(ctx, entryRecord("open", "R", base)))

	counts, err := repo.CountClosedByType(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[domain.CloseType]int{
		domain.CloseTypeStopLoss:   2,
		domain.CloseTypeTakeProfit: 1,
		domain.CloseTypeExpired:    1,
	}, counts)
}
