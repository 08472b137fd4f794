package repositories

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/albumvault/albumsheets/internal/models"
	"github.com/albumvault/albumsheets/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func newCompletedRun(verified bool) *models.Run {
	started := time.Now().Add(-time.Minute)
	completed := time.Now()

	run := models.NewRun("postgrest", "sheets")
	run.SetStartedAt(&started)
	run.SetCompletedAt(&completed)
	run.SetExpected(1234, 11)
	run.SetActual(1234, 11)
	run.SetCounters(1245, 1245, 3, 0, 0)
	run.SetVerified(verified)
	if verified {
		run.SetStatus(models.RunSucceeded)
		run.SetFinalState("succeeded")
	} else {
		run.SetStatus(models.RunFailed)
		run.SetFinalState("failed")
	}
	return run
}

func TestNextSequence(t *testing.T) {
	t.Run("increments per table", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		for want := 1; want <= 3; want++ {
			got, err := NextSequence(db, "runs")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got != want {
				t.Errorf("expected sequence %d, got %d", want, got)
			}
		}
	})

	t.Run("missing sequence table", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		if _, err := NextSequence(db, "albums"); err == nil {
			t.Fatal("expected error for missing sequence table")
		}
	})
}

func TestRunRepository(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewRunRepository(db)
		run := newCompletedRun(true)

		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}
		if run.ID() == "" {
			t.Error("run ID should be set after creation")
		}
		if run.Sequence() != 1 {
			t.Errorf("expected sequence 1, got %d", run.Sequence())
		}
	})

	t.Run("Create keeps an assigned ID", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewRunRepository(db)
		run := models.NewRun("postgres", "csv")
		run.SetID("run-fixed")

		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}
		if run.ID() != "run-fixed" {
			t.Errorf("expected ID run-fixed, got %s", run.ID())
		}
	})

	t.Run("Get", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewRunRepository(db)
		run := newCompletedRun(true)
		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		got, err := repo.Get(run.ID())
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}

		if got.Source() != "postgrest" || got.Destination() != "sheets" {
			t.Errorf("unexpected endpoints %s -> %s", got.Source(), got.Destination())
		}
		if got.ExpectedPrimary() != 1234 || got.ExpectedAux() != 11 {
			t.Errorf("unexpected expected counts %d/%d", got.ExpectedPrimary(), got.ExpectedAux())
		}
		if got.Fetched() != 1245 || got.Truncated() != 3 {
			t.Errorf("unexpected counters fetched=%d truncated=%d", got.Fetched(), got.Truncated())
		}
		if !got.Verified() || got.Status() != models.RunSucceeded {
			t.Errorf("expected verified success, got %s verified=%v", got.Status(), got.Verified())
		}
		if got.StartedAt() == nil || got.CompletedAt() == nil {
			t.Error("expected timestamps to round trip")
		}
		if got.Duration() <= 0 {
			t.Errorf("expected positive duration, got %v", got.Duration())
		}
	})

	t.Run("Get not found", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		if _, err := NewRunRepository(db).Get("nonexistent-id"); !errors.Is(err, shared.ErrRunNotFound) {
			t.Fatalf("expected ErrRunNotFound, got %v", err)
		}
	})

	t.Run("Update", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewRunRepository(db)
		run := models.NewRun("postgrest", "sheets")
		run.SetStatus(models.RunRunning)
		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		run.SetStatus(models.RunFailed)
		run.SetFinalState("failed")
		run.SetErrorMessage("reconciliation failed: count mismatch")
		run.SetActual(1200, 11)
		if err := repo.Update(run); err != nil {
			t.Fatalf("failed to update run: %v", err)
		}

		got, err := repo.Get(run.ID())
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if got.Status() != models.RunFailed || got.ActualPrimary() != 1200 {
			t.Errorf("update not persisted: status=%s actual=%d", got.Status(), got.ActualPrimary())
		}
		if got.ErrorMessage() != "reconciliation failed: count mismatch" {
			t.Errorf("unexpected error message %q", got.ErrorMessage())
		}
	})

	t.Run("Update replaces mismatches", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewRunRepository(db)
		run := newCompletedRun(false)
		run.SetMismatches([]models.Mismatch{{RowIndex: 4, ExpectedID: "4", ActualID: "5", ExpectedTitle: "Blue", ActualTitle: "Red"}})
		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		run.SetMismatches([]models.Mismatch{{RowIndex: 2, ExpectedID: "2", ActualID: "2", ExpectedTitle: "Kid A", ActualTitle: "Kid B"}})
		if err := repo.Update(run); err != nil {
			t.Fatalf("failed to update run: %v", err)
		}

		got, err := repo.Get(run.ID())
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		m := got.Mismatches()
		if len(m) != 1 || m[0].RowIndex != 2 || m[0].ActualTitle != "Kid B" {
			t.Errorf("unexpected mismatches %+v", m)
		}
	})

	t.Run("Update not found", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		run := newCompletedRun(true)
		run.SetID("missing")
		if err := NewRunRepository(db).Update(run); !errors.Is(err, shared.ErrRunNotFound) {
			t.Fatalf("expected ErrRunNotFound, got %v", err)
		}
	})

	t.Run("Update validation", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewRunRepository(db)
		run := newCompletedRun(true)
		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		run.SetStatus("exploded")
		if err := repo.Update(run); err == nil {
			t.Fatal("expected validation error for unknown status")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewRunRepository(db)
		run := newCompletedRun(true)
		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		if err := repo.Delete(run.ID()); err != nil {
			t.Fatalf("failed to delete run: %v", err)
		}
		if _, err := repo.Get(run.ID()); err == nil {
			t.Error("expected deleted run to be hidden")
		}
		if err := repo.Delete(run.ID()); err == nil {
			t.Error("expected error deleting twice")
		}
	})

	t.Run("List", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewRunRepository(db)
		for _, verified := range []bool{true, false, true} {
			if err := repo.Create(newCompletedRun(verified)); err != nil {
				t.Fatalf("failed to create run: %v", err)
			}
		}

		all, err := repo.List(map[string]any{})
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("expected 3 runs, got %d", len(all))
		}
		if all[0].Sequence() != 3 || all[2].Sequence() != 1 {
			t.Errorf("expected newest first, got sequences %d..%d", all[0].Sequence(), all[2].Sequence())
		}

		failed, err := repo.List(map[string]any{"status": models.RunFailed})
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(failed) != 1 {
			t.Errorf("expected 1 failed run, got %d", len(failed))
		}

		verified, _ := repo.List(map[string]any{"verified": true})
		if len(verified) != 2 {
			t.Errorf("expected 2 verified runs, got %d", len(verified))
		}

		limited, _ := repo.List(map[string]any{"limit": 2})
		if len(limited) != 2 {
			t.Errorf("expected 2 runs with limit, got %d", len(limited))
		}
	})

	t.Run("Latest", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewRunRepository(db)
		if _, err := repo.Latest(); err == nil {
			t.Error("expected error with no runs")
		}

		first := newCompletedRun(true)
		second := newCompletedRun(false)
		second.SetMismatches([]models.Mismatch{{RowIndex: 3, ExpectedID: "3", ActualID: "9"}})
		repo.Create(first)
		repo.Create(second)

		got, err := repo.Latest()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got.ID() != second.ID() {
			t.Errorf("expected latest run %s, got %s", second.ID(), got.ID())
		}
		if len(got.Mismatches()) != 1 {
			t.Errorf("expected mismatches loaded, got %+v", got.Mismatches())
		}
	})
}
