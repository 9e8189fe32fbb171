// Package load writes built frames into the warehouse in committed batches.
package load

import (
	"context"
	"fmt"
	"time"

	"salesdw/internal/frame"
	"salesdw/internal/metrics"
	"salesdw/internal/storage"
)

// DefaultBatchSize matches the chunk size the warehouse schema was tuned for.
const DefaultBatchSize = 1000

// Logger is the minimal logging interface used by the loader.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

// BulkLoader chunks a frame into batches and inserts each batch through the
// repository. Each batch is one committed transaction: a failure mid-load
// leaves earlier batches in place, and the next run rebuilds the warehouse
// from scratch.
type BulkLoader struct {
	Repo      storage.Repository
	BatchSize int
	Logger    Logger
}

// Load inserts all rows of f into table, preserving row order.
//
// It stops at the first failing batch and reports how many rows were
// committed before the failure.
func (l *BulkLoader) Load(ctx context.Context, table string, f *frame.Frame) (int64, error) {
	if l.Repo == nil {
		return 0, fmt.Errorf("load: repository is nil")
	}
	if f == nil || f.Len() == 0 {
		l.logf("table=%s rows=0 skipped", table)
		return 0, nil
	}

	batch := l.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}

	start := time.Now()
	var total int64

	for lo := 0; lo < f.Len(); lo += batch {
		hi := lo + batch
		if hi > f.Len() {
			hi = f.Len()
		}

		n, err := l.Repo.InsertBatch(ctx, table, f.Columns, f.Rows[lo:hi])
		total += n
		if err != nil {
			metrics.IncCounter("etl_batches_total", metrics.Labels{"table": table, "status": "error"})
			return total, fmt.Errorf("load %s rows %d..%d: %w", table, lo, hi, err)
		}
		metrics.IncCounter("etl_batches_total", metrics.Labels{"table": table, "status": "ok"})
	}

	l.logf("table=%s rows=%d batches=%d duration=%s",
		table, total, (f.Len()+batch-1)/batch, time.Since(start).Round(time.Millisecond))
	return total, nil
}

func (l *BulkLoader) logf(format string, v ...any) {
	if l.Logger == nil {
		return
	}
	l.Logger.Printf(format, v...)
}
