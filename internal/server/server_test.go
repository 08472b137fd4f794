package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/albumvault/albumsheets/internal/models"
	"github.com/albumvault/albumsheets/internal/repositories"
	"github.com/albumvault/albumsheets/internal/shared"
)

func setupStore(t *testing.T) *repositories.RunRepository {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return repositories.NewRunRepository(db)
}

func recordRun(t *testing.T, store *repositories.RunRepository, verified bool) *models.Run {
	t.Helper()

	completed := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	started := completed.Add(-90 * time.Second)
	run := models.NewRun("postgrest", "sheets")
	run.SetStartedAt(&started)
	run.SetCompletedAt(&completed)
	run.SetExpected(1234, 11)
	run.SetCounters(1245, 1245, 2, 0, 0)
	run.SetVerified(verified)
	if verified {
		run.SetActual(1234, 11)
		run.SetStatus(models.RunSucceeded)
		run.SetFinalState("succeeded")
	} else {
		run.SetActual(1200, 11)
		run.SetStatus(models.RunFailed)
		run.SetFinalState("failed")
		run.SetMismatches([]models.Mismatch{{RowIndex: 3, ExpectedID: "3", ActualID: "3", ExpectedTitle: "Kid A", ActualTitle: "Amnesiac"}})
	}

	if err := store.Create(run); err != nil {
		t.Fatalf("failed to record run: %v", err)
	}
	return run
}

type brokenStore struct{}

var errDisk = errors.New("disk I/O error")

func (brokenStore) Get(string) (*models.Run, error)            { return nil, errDisk }
func (brokenStore) Latest() (*models.Run, error)               { return nil, errDisk }
func (brokenStore) List(map[string]any) ([]*models.Run, error) { return nil, errDisk }

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestBasicRouter(t *testing.T) {
	t.Run("middleware order", func(t *testing.T) {
		var calls []string
		tag := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					calls = append(calls, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		r := NewBasicRouter()
		r.Use(tag("outer"), tag("inner"))
		r.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls = append(calls, "handler")
		}))

		get(t, r, "/ping")
		if strings.Join(calls, ",") != "outer,inner,handler" {
			t.Errorf("unexpected call order %v", calls)
		}
	})

	t.Run("method mismatch", func(t *testing.T) {
		r := NewBasicRouter()
		r.Handle("get", "/ping", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/ping", nil))
		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", w.Code)
		}
	})

	t.Run("recoverer", func(t *testing.T) {
		r := NewBasicRouter()
		r.Use(Recoverer(shared.DiscardLogger()), RequestLogger(shared.DiscardLogger()))
		r.Handle("", "/boom", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}))

		if w := get(t, r, "/boom"); w.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", w.Code)
		}
	})
}

func TestStatusRouter(t *testing.T) {
	t.Run("healthz", func(t *testing.T) {
		w := get(t, NewStatusRouter(setupStore(t), nil), "/healthz")
		if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
			t.Errorf("unexpected response %d %s", w.Code, w.Body.String())
		}
	})

	t.Run("list runs newest first", func(t *testing.T) {
		store := setupStore(t)
		recordRun(t, store, true)
		recordRun(t, store, false)
		router := NewStatusRouter(store, nil)

		w := get(t, router, "/runs")
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		var views []RunView
		if err := json.Unmarshal(w.Body.Bytes(), &views); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(views) != 2 || views[0].Sequence != 2 || views[1].Sequence != 1 {
			t.Errorf("unexpected runs %+v", views)
		}
	})

	t.Run("list filters", func(t *testing.T) {
		store := setupStore(t)
		recordRun(t, store, true)
		recordRun(t, store, false)
		recordRun(t, store, true)
		router := NewStatusRouter(store, nil)

		tc := []struct {
			query string
			want  int
		}{
			{query: "?status=failed", want: 1},
			{query: "?verified=true", want: 2},
			{query: "?limit=1", want: 1},
			{query: "?status=running", want: 0},
		}
		for _, tt := range tc {
			var views []RunView
			w := get(t, router, "/runs"+tt.query)
			if err := json.Unmarshal(w.Body.Bytes(), &views); err != nil {
				t.Fatalf("%s: invalid JSON: %v", tt.query, err)
			}
			if len(views) != tt.want {
				t.Errorf("%s: expected %d runs, got %d", tt.query, tt.want, len(views))
			}
		}
	})

	t.Run("bad filters", func(t *testing.T) {
		router := NewStatusRouter(setupStore(t), nil)
		for _, q := range []string{"?verified=maybe", "?limit=0", "?limit=ten"} {
			if w := get(t, router, "/runs"+q); w.Code != http.StatusBadRequest {
				t.Errorf("%s: expected 400, got %d", q, w.Code)
			}
		}
	})

	t.Run("get by id with mismatches", func(t *testing.T) {
		store := setupStore(t)
		run := recordRun(t, store, false)

		w := get(t, NewStatusRouter(store, nil), "/runs/"+run.ID())
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		var view RunView
		json.Unmarshal(w.Body.Bytes(), &view)
		if view.ID != run.ID() || view.Verified || len(view.Mismatches) != 1 {
			t.Errorf("unexpected view %+v", view)
		}
		if view.Mismatches[0].ExpectedTitle != "Kid A" {
			t.Errorf("unexpected mismatch %+v", view.Mismatches[0])
		}
	})

	t.Run("latest", func(t *testing.T) {
		store := setupStore(t)
		recordRun(t, store, false)
		last := recordRun(t, store, true)

		var view RunView
		w := get(t, NewStatusRouter(store, nil), "/runs/latest")
		json.Unmarshal(w.Body.Bytes(), &view)
		if view.ID != last.ID() || !view.Verified {
			t.Errorf("expected latest run %s, got %+v", last.ID(), view)
		}
	})

	t.Run("not found", func(t *testing.T) {
		router := NewStatusRouter(setupStore(t), nil)
		for _, target := range []string{"/runs/missing", "/runs/latest"} {
			if w := get(t, router, target); w.Code != http.StatusNotFound {
				t.Errorf("%s: expected 404, got %d", target, w.Code)
			}
		}
	})

	t.Run("store failure", func(t *testing.T) {
		router := NewStatusRouter(brokenStore{}, nil)
		for _, target := range []string{"/runs", "/runs/abc", "/metrics"} {
			if w := get(t, router, target); w.Code != http.StatusInternalServerError {
				t.Errorf("%s: expected 500, got %d", target, w.Code)
			}
		}
	})

	t.Run("wrong method", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewStatusRouter(setupStore(t), nil).ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/runs/abc", nil))
		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", w.Code)
		}
	})
}

func TestMetricsHandler(t *testing.T) {
	t.Run("no runs", func(t *testing.T) {
		if w := get(t, NewStatusRouter(setupStore(t), nil), "/metrics"); w.Code != http.StatusNoContent {
			t.Errorf("expected 204, got %d", w.Code)
		}
	})

	t.Run("latest run gauges", func(t *testing.T) {
		store := setupStore(t)
		recordRun(t, store, true)

		w := get(t, NewStatusRouter(store, nil), "/metrics")
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		body := w.Body.String()
		for _, want := range []string{
			"albumsheets_run_verified 1",
			`albumsheets_records{outcome="written"} 1245`,
			`albumsheets_expected_rows{table="primary"} 1234`,
			"albumsheets_run_duration_seconds 90",
		} {
			if !strings.Contains(body, want) {
				t.Errorf("expected %q in metrics output:\n%s", want, body)
			}
		}
	})

	t.Run("result from run", func(t *testing.T) {
		store := setupStore(t)
		run := recordRun(t, store, false)

		result := ResultFromRun(run)
		if result.State.String() != "failed" || result.Verified {
			t.Errorf("unexpected result %+v", result)
		}
		if result.Counters.Truncated != 2 || result.ExpectedAux != 11 {
			t.Errorf("unexpected counters %+v", result.Counters)
		}
	})
}
