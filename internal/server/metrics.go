package server

import (
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/albumvault/albumsheets/internal/models"
	"github.com/albumvault/albumsheets/internal/shared"
	"github.com/albumvault/albumsheets/internal/tasks"
)

// MetricsHandler exposes the gauges of the latest recorded run in the Prometheus text format.
//
// The registry is rebuilt from the store on every scrape, so a run finished by another process
// shows up without a restart.
type MetricsHandler struct {
	store  RunStore
	logger *log.Logger
}

func NewMetricsHandler(store RunStore, logger *log.Logger) *MetricsHandler {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &MetricsHandler{store: store, logger: logger}
}

func (h *MetricsHandler) Routes() []string { return []string{"GET /metrics"} }

func (h *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	run, err := h.store.Latest()
	if errors.Is(err, shared.ErrRunNotFound) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		h.logger.Error("metrics", "error", err)
		http.Error(w, "failed to read run history", http.StatusInternalServerError)
		return
	}

	reg := tasks.NewMetricsRegistry(ResultFromRun(run))
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{ErrorLog: h.logger.StandardLog()}).ServeHTTP(w, r)
}

// ResultFromRun rebuilds the counters of a recorded run as a [tasks.Result].
func ResultFromRun(run *models.Run) *tasks.Result {
	state := tasks.Failed
	if run.Status() == models.RunSucceeded {
		state = tasks.Succeeded
	}
	return &tasks.Result{
		RunID:           run.ID(),
		State:           state,
		Verified:        run.Verified(),
		ExpectedPrimary: run.ExpectedPrimary(),
		ExpectedAux:     run.ExpectedAux(),
		Counters: tasks.CounterSnapshot{
			Fetched:      run.Fetched(),
			Written:      run.Written(),
			Truncated:    run.Truncated(),
			Failed:       run.Failed(),
			PagesSkipped: run.PagesSkipped(),
			Unfetched:    run.Unfetched(),
		},
		Duration: run.Duration(),
		Error:    run.ErrorMessage(),
	}
}
