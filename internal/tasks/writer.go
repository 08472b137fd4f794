package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"

	"github.com/albumvault/albumsheets/internal/models"
	"github.com/albumvault/albumsheets/internal/services"
	"github.com/albumvault/albumsheets/internal/shared"
)

const (
	DefaultChunkSize    = 50
	DefaultRetryBackoff = 5 * time.Second
)

// WriterOptions configures a [Writer].
type WriterOptions struct {
	ChunkSize    int
	RetryBackoff time.Duration
	// Recreate deletes and recreates tables instead of clearing their data rows.
	Recreate bool
	// Timer waits out the retry backoff; nil uses a real timer.
	Timer backoff.Timer
}

// WriteStats counts the outcome of [Writer.WriteRows].
type WriteStats struct {
	Written      int
	Failed       int
	Chunks       int
	FailedChunks int
}

// Writer owns destination table lifecycle and positional chunk writes.
type Writer struct {
	dest   services.Destination
	gov    *Governor
	opts   WriterOptions
	logger *log.Logger
}

func NewWriter(dest services.Destination, gov *Governor, opts WriterOptions, logger *log.Logger) *Writer {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.RetryBackoff < 0 {
		opts.RetryBackoff = 0
	}
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Writer{dest: dest, gov: gov, opts: opts, logger: logger}
}

// ResetSchema leaves the named table holding only header as row 1.
//
// In recreate mode an existing table is deleted and created again with the given row capacity.
// Otherwise the table is reused (created if missing) and its data rows are cleared in place.
// Every failure wraps [shared.ErrSchemaPreparation].
func (w *Writer) ResetSchema(ctx context.Context, name string, header models.Row, capacity int) (*services.Table, error) {
	if w.opts.Recreate {
		return w.recreate(ctx, name, header, capacity)
	}

	t, err := w.dest.GetOrCreateTable(ctx, name, len(header), capacity)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", shared.ErrSchemaPreparation, name, err)
	}
	if err := w.dest.ClearDataRows(ctx, t, header); err != nil {
		return nil, fmt.Errorf("%w: clear %s: %v", shared.ErrSchemaPreparation, name, err)
	}

	w.logger.Info("table reset", "table", name, "created", t.Created, "columns", len(header))
	return t, nil
}

func (w *Writer) recreate(ctx context.Context, name string, header models.Row, capacity int) (*services.Table, error) {
	existing, err := w.dest.FindTable(ctx, name)
	switch {
	case err == nil:
		if err := w.dest.DeleteTable(ctx, existing); err != nil {
			return nil, fmt.Errorf("%w: delete %s: %v", shared.ErrSchemaPreparation, name, err)
		}
	case !errors.Is(err, shared.ErrTableNotFound):
		return nil, fmt.Errorf("%w: %s: %v", shared.ErrSchemaPreparation, name, err)
	}

	t, err := w.dest.GetOrCreateTable(ctx, name, len(header), capacity)
	if err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", shared.ErrSchemaPreparation, name, err)
	}
	if err := w.dest.WriteRange(ctx, t, 1, 1, []models.Row{header}); err != nil {
		return nil, fmt.Errorf("%w: header %s: %v", shared.ErrSchemaPreparation, name, err)
	}

	w.logger.Info("table recreated", "table", name, "capacity", capacity, "columns", len(header))
	return t, nil
}

// WriteChunk overwrites the destination rows holding data rows startRowIndex..startRowIndex+len-1
// (1-based, so data row 1 is destination row 2).
//
// A failed write is retried exactly once after the backoff. The call runs to completion even if
// ctx is cancelled. A second failure returns an error wrapping [shared.ErrChunkWrite].
func (w *Writer) WriteChunk(ctx context.Context, t *services.Table, startRowIndex int, rows []models.Row) error {
	if len(rows) == 0 {
		return nil
	}

	ctx = context.WithoutCancel(ctx)
	start := startRowIndex + 1
	end := start + len(rows) - 1

	attempts := 0
	write := func() error {
		attempts++
		return w.dest.WriteRange(ctx, t, start, end, rows)
	}
	notify := func(err error, wait time.Duration) {
		w.logger.Warn("chunk write failed, retrying", "table", t.Name, "start_row", start, "rows", len(rows),
			"backoff", wait, "error", err)
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(w.opts.RetryBackoff), 1)
	if err := backoff.RetryNotifyWithTimer(write, policy, notify, w.opts.Timer); err != nil {
		w.logger.Error("chunk write failed after retry", "table", t.Name, "start_row", start, "rows", len(rows), "error", err)
		return fmt.Errorf("%w: %s rows %d..%d: %v", shared.ErrChunkWrite, t.Name, start, end, err)
	}

	if attempts > 1 {
		w.logger.Info("chunk write succeeded on retry", "table", t.Name, "start_row", start)
	}
	return nil
}

// WriteRows writes rows as one page group, starting at data row startRowIndex, in chunks.
//
// The group waits on [DestinationPage] and each chunk on [DestinationWrite]. A chunk that fails
// twice is counted and skipped. The only error returned is ctx's, observed between chunks;
// stats then cover the chunks already written.
func (w *Writer) WriteRows(ctx context.Context, t *services.Table, startRowIndex int, rows []models.Row) (WriteStats, error) {
	var stats WriteStats
	if len(rows) == 0 {
		return stats, nil
	}

	if err := w.gov.Wait(ctx, DestinationPage); err != nil {
		return stats, err
	}

	for lo := 0; lo < len(rows); lo += w.opts.ChunkSize {
		if err := w.gov.Wait(ctx, DestinationWrite); err != nil {
			return stats, err
		}

		chunk := rows[lo:min(lo+w.opts.ChunkSize, len(rows))]
		stats.Chunks++
		if err := w.WriteChunk(ctx, t, startRowIndex+lo, chunk); err != nil {
			stats.Failed += len(chunk)
			stats.FailedChunks++
			continue
		}
		stats.Written += len(chunk)
	}

	return stats, nil
}
