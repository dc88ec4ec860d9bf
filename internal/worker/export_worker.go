package worker

import (
	"context"
	"fmt"
	"time"

	"finbot/internal/amqp"
	"finbot/internal/cache"
	"finbot/internal/core"
	applog "finbot/internal/log"
	"finbot/internal/sheets"

	"github.com/google/uuid"
)

const (
	defaultBatchSize = 100
	progressTTL      = 24 * time.Hour
	progressEntries  = 1024
)

// ExpenseSource reads the expenses an export request covers.
// storage.SQLiteRepository implements it.
type ExpenseSource interface {
	ExpensesSince(ctx context.Context, uid int64, since time.Time) ([]core.ExpenseLine, error)
}

// ExportWorker copies a user's expenses from the database into an
// exporter. A request that fails half way is retried by the broker; the
// worker remembers how many rows of each request were already written so a
// redelivery continues where the previous attempt stopped.
type ExportWorker struct {
	source    ExpenseSource
	sink      sheets.ExpenseExporter
	batchSize int
	progress  *cache.LRUCache[uuid.UUID, int]
}

func NewExportWorker(source ExpenseSource, sink sheets.ExpenseExporter, batchSize int) *ExportWorker {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &ExportWorker{
		source:    source,
		sink:      sink,
		batchSize: batchSize,
		progress:  cache.NewLRUCache[uuid.UUID, int](progressEntries, progressTTL),
	}
}

// Progress exposes the per-request progress cache for periodic cleanup.
func (w *ExportWorker) Progress() *cache.LRUCache[uuid.UUID, int] {
	return w.progress
}

// HandleExportRequest processes a single export request from AMQP
func (w *ExportWorker) HandleExportRequest(ctx context.Context, msg *amqp.ExportRequestMessage) error {
	lines, err := w.source.ExpensesSince(ctx, msg.UserID, msg.Since)
	if err != nil {
		return fmt.Errorf("load expenses: %w", err)
	}

	logger := applog.FromContext(ctx).WithComponent(applog.ComponentWorker)

	done, _ := w.progress.Get(msg.RequestID)
	if done >= len(lines) {
		logger.InfoContext(ctx, "Nothing left to export", "expenses", len(lines))
		return nil
	}
	if done > 0 {
		logger.InfoContext(ctx, "Resuming export", "already_written", done)
	}

	for start := done; start < len(lines); start += w.batchSize {
		end := min(start+w.batchSize, len(lines))
		if _, err := w.sink.AppendExpenses(ctx, msg.UserID, lines[start:end]); err != nil {
			logger.WarnContext(ctx, "Export batch failed", applog.NewFields().
				WithOperation(applog.OpAppend).
				WithError(err).
				WithErrorType(applog.ErrorTypeNetwork).
				ToSlice()...)
			return fmt.Errorf("append expenses %d-%d: %w", start, end, err)
		}
		w.progress.Set(msg.RequestID, end)
	}

	logger.InfoContext(ctx, "Export completed",
		applog.FieldOperation, applog.OpExport,
		"since", msg.Since.Format(time.RFC3339),
		applog.FieldRows, len(lines)-done)
	return nil
}
