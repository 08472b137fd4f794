package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/albumvault/albumsheets/internal/models"
	"github.com/albumvault/albumsheets/internal/shared"
	tu "github.com/albumvault/albumsheets/internal/testing"
)

func seedTables(dest *tu.MemoryDestination, primary, aux int) {
	dest.Seed("Albums", append([]models.Row{testHeader}, testRows(1, primary)...)...)
	dest.Seed("History", append([]models.Row{{"id", "artist_name"}}, testRows(1, aux)...)...)
}

func TestReconciler(t *testing.T) {
	ctx := context.Background()
	schema := models.Schema{Name: "test", Columns: []models.Column{
		{Name: "id", Field: "id"},
		{Name: "title", Field: "title"},
	}}
	opts := ReconcilerOptions{PrimaryTable: "Albums", AuxTable: "History", Schema: schema, SampleSize: 5}

	t.Run("exact counts match", func(t *testing.T) {
		dest := tu.NewMemoryDestination()
		seedTables(dest, 12, 3)

		rec := NewReconciler(dest, opts, nil).Verify(ctx, 12, 3, testRows(1, 5))
		if !rec.Match {
			t.Fatalf("expected match, got %+v", rec)
		}
		if rec.ActualPrimary != 12 || rec.ActualAux != 3 || rec.SampleChecked != 5 {
			t.Errorf("unexpected reconciliation %+v", rec)
		}
	})

	t.Run("count mismatch", func(t *testing.T) {
		dest := tu.NewMemoryDestination()
		seedTables(dest, 12, 3)

		rec := NewReconciler(dest, opts, nil).Verify(ctx, 13, 3, nil)
		if rec.Match {
			t.Error("expected mismatch")
		}
		if rec.Err != nil {
			t.Errorf("a mismatch is a verdict, not an error: %v", rec.Err)
		}
	})

	t.Run("blank rows are not counted", func(t *testing.T) {
		dest := tu.NewMemoryDestination()
		rows := append([]models.Row{testHeader}, testRows(1, 4)...)
		rows[2] = models.Row{"", ""}
		dest.Seed("Albums", rows...)
		dest.Seed("History", models.Row{"id"})

		rec := NewReconciler(dest, opts, nil).Verify(ctx, 4, 0, nil)
		if rec.Match || rec.ActualPrimary != 3 {
			t.Errorf("expected 3 counted rows and a mismatch, got %+v", rec)
		}
	})

	t.Run("sample mismatch fails fast", func(t *testing.T) {
		dest := tu.NewMemoryDestination()
		seedTables(dest, 10, 1)

		sample := testRows(1, 5)
		sample[1] = models.Row{"2", "Different Title"}
		sample[3] = models.Row{"99", "Also Wrong"}

		rec := NewReconciler(dest, opts, nil).Verify(ctx, 10, 1, sample)
		if rec.Match {
			t.Fatal("expected sample mismatch")
		}
		if len(rec.Mismatches) != 1 || rec.Mismatches[0].RowIndex != 2 {
			t.Errorf("expected first mismatch at row 2 only, got %+v", rec.Mismatches)
		}
		if rec.SampleChecked != 2 {
			t.Errorf("expected to stop after 2 rows, got %d", rec.SampleChecked)
		}
	})

	t.Run("read failure is a failed verdict", func(t *testing.T) {
		dest := tu.NewMemoryDestination()
		seedTables(dest, 2, 1)
		dest.ReadErr = errors.New("503 backend")

		rec := NewReconciler(dest, opts, nil).Verify(ctx, 2, 1, nil)
		if rec.Match {
			t.Error("expected failed verdict")
		}
		if !errors.Is(rec.Err, shared.ErrReconciliation) {
			t.Errorf("expected ErrReconciliation, got %v", rec.Err)
		}
	})

	t.Run("missing table is a failed verdict", func(t *testing.T) {
		dest := tu.NewMemoryDestination()

		rec := NewReconciler(dest, opts, nil).Verify(ctx, 0, 0, nil)
		if rec.Match || rec.Err == nil {
			t.Errorf("expected failure with error, got %+v", rec)
		}
	})
}
