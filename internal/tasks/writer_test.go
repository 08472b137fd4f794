package tasks

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/albumvault/albumsheets/internal/models"
	"github.com/albumvault/albumsheets/internal/services"
	"github.com/albumvault/albumsheets/internal/shared"
	tu "github.com/albumvault/albumsheets/internal/testing"
)

var testHeader = models.Row{"id", "title"}

func testRows(from, n int) []models.Row {
	rows := make([]models.Row, n)
	for i := range rows {
		rows[i] = models.Row{fmt.Sprint(from + i), fmt.Sprintf("Album %d", from+i)}
	}
	return rows
}

func newTestWriter(dest services.Destination, opts WriterOptions) (*Writer, *tu.InstantTimer) {
	timer := tu.NewInstantTimer()
	opts.Timer = timer
	return NewWriter(dest, nil, opts, nil), timer
}

func TestWriterResetSchema(t *testing.T) {
	ctx := context.Background()

	t.Run("reuse clears data rows and keeps the table", func(t *testing.T) {
		dest := tu.NewMemoryDestination()
		dest.Seed("Albums", models.Row{"old", "header"}, models.Row{"1", "stale"}, models.Row{"2", "stale"})
		w, _ := newTestWriter(dest, WriterOptions{})

		table, err := w.ResetSchema(ctx, "Albums", testHeader, 100)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if table.Created {
			t.Error("expected existing table to be reused")
		}

		rows := dest.Rows("Albums")
		if len(rows) != 1 || rows[0].Cell(0) != "id" {
			t.Errorf("expected header only, got %v", rows)
		}
		if len(dest.Deleted()) != 0 {
			t.Errorf("expected no deletions, got %v", dest.Deleted())
		}
	})

	t.Run("reuse creates a missing table", func(t *testing.T) {
		dest := tu.NewMemoryDestination()
		w, _ := newTestWriter(dest, WriterOptions{})

		table, err := w.ResetSchema(ctx, "Albums", testHeader, 100)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !table.Created {
			t.Error("expected a new table")
		}
		if rows := dest.Rows("Albums"); len(rows) != 1 {
			t.Errorf("expected header only, got %v", rows)
		}
	})

	t.Run("recreate deletes then writes the header", func(t *testing.T) {
		dest := tu.NewMemoryDestination()
		dest.Seed("Albums", testHeader, models.Row{"1", "stale"})
		w, _ := newTestWriter(dest, WriterOptions{Recreate: true})

		table, err := w.ResetSchema(ctx, "Albums", testHeader, 100)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !table.Created {
			t.Error("expected a fresh table")
		}
		if got := dest.Deleted(); len(got) != 1 || got[0] != "Albums" {
			t.Errorf("expected Albums deleted, got %v", got)
		}
		if rows := dest.Rows("Albums"); len(rows) != 1 || rows[0].Cell(1) != "title" {
			t.Errorf("expected header only, got %v", rows)
		}
	})

	t.Run("failures wrap ErrSchemaPreparation", func(t *testing.T) {
		dest := tu.NewMemoryDestination()
		dest.CreateErr = errors.New("quota exceeded")
		w, _ := newTestWriter(dest, WriterOptions{})

		_, err := w.ResetSchema(ctx, "Albums", testHeader, 100)
		if !errors.Is(err, shared.ErrSchemaPreparation) {
			t.Errorf("expected ErrSchemaPreparation, got %v", err)
		}

		dest = tu.NewMemoryDestination()
		dest.ClearErr = errors.New("permission denied")
		w, _ = newTestWriter(dest, WriterOptions{})
		if _, err := w.ResetSchema(ctx, "Albums", testHeader, 100); !errors.Is(err, shared.ErrSchemaPreparation) {
			t.Errorf("expected ErrSchemaPreparation, got %v", err)
		}
	})
}

func TestWriterWriteChunk(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*tu.MemoryDestination, *services.Table) {
		t.Helper()
		dest := tu.NewMemoryDestination()
		table, err := dest.GetOrCreateTable(ctx, "Albums", 2, 10)
		if err != nil {
			t.Fatalf("failed to create table: %v", err)
		}
		dest.ClearDataRows(ctx, table, testHeader)
		return dest, table
	}

	t.Run("offsets by the header row", func(t *testing.T) {
		dest, table := setup(t)
		w, timer := newTestWriter(dest, WriterOptions{RetryBackoff: time.Second})

		if err := w.WriteChunk(ctx, table, 1, testRows(1, 3)); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		calls := dest.WriteCalls()
		if len(calls) != 1 || calls[0].StartRow != 2 || calls[0].EndRow != 4 {
			t.Errorf("expected rows 2..4, got %+v", calls)
		}
		if rows := dest.Rows("Albums"); len(rows) != 4 || rows[1].Cell(0) != "1" {
			t.Errorf("unexpected rows %v", rows)
		}
		if waits := timer.Waits(); len(waits) != 0 {
			t.Errorf("expected no backoff on a clean write, got %v", waits)
		}
	})

	t.Run("single transient failure recovers", func(t *testing.T) {
		dest, table := setup(t)
		dest.FailWrites("Albums", 2, 1)
		w, timer := newTestWriter(dest, WriterOptions{RetryBackoff: 5 * time.Second})

		if err := w.WriteChunk(ctx, table, 1, testRows(1, 3)); err != nil {
			t.Fatalf("expected retry to succeed, got %v", err)
		}
		if n := dest.Attempts("Albums", 2); n != 2 {
			t.Errorf("expected 2 attempts, got %d", n)
		}
		if waits := timer.Waits(); len(waits) != 1 || waits[0] != 5*time.Second {
			t.Errorf("expected one 5s backoff, got %v", waits)
		}
		if rows := dest.Rows("Albums"); len(rows) != 4 {
			t.Errorf("expected chunk rows present, got %v", rows)
		}
	})

	t.Run("never a third attempt", func(t *testing.T) {
		dest, table := setup(t)
		dest.FailWrites("Albums", 2, 5)
		w, timer := newTestWriter(dest, WriterOptions{RetryBackoff: time.Second})

		err := w.WriteChunk(ctx, table, 1, testRows(1, 3))
		if !errors.Is(err, shared.ErrChunkWrite) {
			t.Fatalf("expected ErrChunkWrite, got %v", err)
		}
		if n := dest.Attempts("Albums", 2); n != 2 {
			t.Errorf("expected exactly 2 attempts, got %d", n)
		}
		if waits := timer.Waits(); len(waits) != 1 {
			t.Errorf("expected a single backoff, got %v", waits)
		}
	})

	t.Run("runs to completion after cancellation", func(t *testing.T) {
		dest, table := setup(t)
		dest.FailWrites("Albums", 2, 1)
		w, _ := newTestWriter(dest, WriterOptions{})

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if err := w.WriteChunk(cctx, table, 1, testRows(1, 2)); err != nil {
			t.Fatalf("expected the chunk to complete, got %v", err)
		}
		if rows := dest.Rows("Albums"); len(rows) != 3 {
			t.Errorf("expected chunk rows present, got %v", rows)
		}
	})

	t.Run("rewriting is idempotent", func(t *testing.T) {
		dest, table := setup(t)
		w, _ := newTestWriter(dest, WriterOptions{})

		w.WriteChunk(ctx, table, 1, testRows(1, 3))
		first := dest.Rows("Albums")
		w.WriteChunk(ctx, table, 1, testRows(1, 3))
		second := dest.Rows("Albums")

		if len(first) != len(second) {
			t.Fatalf("expected same row count, got %d and %d", len(first), len(second))
		}
		for i := range first {
			if fmt.Sprint(first[i]) != fmt.Sprint(second[i]) {
				t.Errorf("row %d differs: %v vs %v", i, first[i], second[i])
			}
		}
	})
}

func TestWriterWriteRows(t *testing.T) {
	ctx := context.Background()

	t.Run("splits into chunks", func(t *testing.T) {
		dest := tu.NewMemoryDestination()
		w, _ := newTestWriter(dest, WriterOptions{ChunkSize: 50})
		table, _ := w.ResetSchema(ctx, "Albums", testHeader, 0)

		stats, err := w.WriteRows(ctx, table, 1, testRows(1, 120))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if stats.Chunks != 3 || stats.Written != 120 || stats.Failed != 0 {
			t.Errorf("unexpected stats %+v", stats)
		}

		var starts []int
		for _, c := range dest.WriteCalls() {
			starts = append(starts, c.StartRow)
		}
		if fmt.Sprint(starts) != "[2 52 102]" {
			t.Errorf("unexpected chunk starts %v", starts)
		}
	})

	t.Run("failed chunk is skipped", func(t *testing.T) {
		dest := tu.NewMemoryDestination()
		w, _ := newTestWriter(dest, WriterOptions{ChunkSize: 50})
		table, _ := w.ResetSchema(ctx, "Albums", testHeader, 0)
		dest.FailWrites("Albums", 52, 2)

		stats, err := w.WriteRows(ctx, table, 1, testRows(1, 120))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if stats.Written != 70 || stats.Failed != 50 || stats.FailedChunks != 1 {
			t.Errorf("unexpected stats %+v", stats)
		}
		if rows := dest.Rows("Albums"); len(rows) != 121 || rows[120].Cell(0) != "120" {
			t.Errorf("expected later chunks written, got %d rows", len(rows))
		}
	})

	t.Run("cancellation between chunks", func(t *testing.T) {
		dest := tu.NewMemoryDestination()
		w, _ := newTestWriter(dest, WriterOptions{ChunkSize: 10})
		table, _ := w.ResetSchema(ctx, "Albums", testHeader, 0)

		cctx, cancel := context.WithCancel(ctx)
		dest.OnWrite = func(c tu.WriteCall) {
			if c.StartRow == 12 {
				cancel()
			}
		}

		stats, err := w.WriteRows(cctx, table, 1, testRows(1, 50))
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if stats.Written != 20 {
			t.Errorf("expected the in-flight chunk to finish, got %+v", stats)
		}
		if rows := dest.Rows("Albums"); len(rows) != 21 {
			t.Errorf("expected header plus 20 full rows, got %d", len(rows))
		}
	})
}
