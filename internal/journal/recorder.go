// Package journal persists order snapshots behind the controller's back.
package journal

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"barrierBot/internal/domain"
	"barrierBot/internal/ports"
)

const (
	defaultBufferSize = 256
	flushTimeout      = 5 * time.Second
)

// Recorder implements ports.OrderJournal with a buffered channel drained by
// Run. Record never blocks; when the buffer is full the record is dropped
// and counted.
type Recorder struct {
	repo    ports.OrderRecordRepository
	logger  ports.Logger
	records chan domain.OrderRecord
	dropped atomic.Int64
}

// NewRecorder creates a recorder writing to repo.
func NewRecorder(repo ports.OrderRecordRepository, bufferSize int, logger ports.Logger) (*Recorder, error) {
	if repo == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for Recorder")
	}
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Recorder{
		repo:    repo,
		logger:  logger,
		records: make(chan domain.OrderRecord, bufferSize),
	}, nil
}

// Record queues rec for persistence.
func (r *Recorder) Record(rec domain.OrderRecord) {
	select {
	case r.records <- rec:
	default:
		n := r.dropped.Add(1)
		r.logger.Warn(context.Background(), "Journal buffer full, order record dropped", map[string]interface{}{"orderID": rec.OrderID, "dropped": n})
	}
}

// Dropped returns how many records were discarded because the buffer was full.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Run saves queued records until ctx is cancelled, then flushes what is
// still buffered.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case rec := <-r.records:
			r.save(ctx, rec)
		case <-ctx.Done():
			r.flush()
			return nil
		}
	}
}

func (r *Recorder) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	for {
		select {
		case rec := <-r.records:
			r.save(ctx, rec)
		default:
			return
		}
	}
}

func (r *Recorder) save(ctx context.Context, rec domain.OrderRecord) {
	if err := r.repo.SaveOrderRecord(ctx, rec); err != nil {
		r.logger.Error(ctx, err, "Failed to persist order record", map[string]interface{}{"orderID": rec.OrderID})
	}
}
