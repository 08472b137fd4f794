package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"

	"github.com/albumvault/albumsheets/internal/models"
	"github.com/albumvault/albumsheets/internal/shared"
)

// RunStore is the read side of the run history. Implemented by repositories.RunRepository.
type RunStore interface {
	Get(id string) (*models.Run, error)
	Latest() (*models.Run, error)
	List(criteria map[string]any) ([]*models.Run, error)
}

// RunView is the JSON shape of a recorded run.
type RunView struct {
	ID              string            `json:"id"`
	Sequence        int               `json:"sequence"`
	Status          string            `json:"status"`
	FinalState      string            `json:"final_state"`
	Source          string            `json:"source"`
	Destination     string            `json:"destination"`
	ExpectedPrimary int               `json:"expected_primary"`
	ExpectedAux     int               `json:"expected_aux"`
	ActualPrimary   int               `json:"actual_primary"`
	ActualAux       int               `json:"actual_aux"`
	Fetched         int64             `json:"fetched"`
	Written         int64             `json:"written"`
	Truncated       int64             `json:"truncated"`
	Failed          int64             `json:"failed"`
	PagesSkipped    int64             `json:"pages_skipped"`
	Unfetched       int64             `json:"unfetched"`
	Verified        bool              `json:"verified"`
	Error           string            `json:"error,omitempty"`
	Mismatches      []models.Mismatch `json:"mismatches,omitempty"`
	StartedAt       *time.Time        `json:"started_at,omitempty"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
}

func NewRunView(run *models.Run) RunView {
	return RunView{
		ID:              run.ID(),
		Sequence:        run.Sequence(),
		Status:          run.Status(),
		FinalState:      run.FinalState(),
		Source:          run.Source(),
		Destination:     run.Destination(),
		ExpectedPrimary: run.ExpectedPrimary(),
		ExpectedAux:     run.ExpectedAux(),
		ActualPrimary:   run.ActualPrimary(),
		ActualAux:       run.ActualAux(),
		Fetched:         run.Fetched(),
		Written:         run.Written(),
		Truncated:       run.Truncated(),
		Failed:          run.Failed(),
		PagesSkipped:    run.PagesSkipped(),
		Unfetched:       run.Unfetched(),
		Verified:        run.Verified(),
		Error:           run.ErrorMessage(),
		Mismatches:      run.Mismatches(),
		StartedAt:       run.StartedAt(),
		CompletedAt:     run.CompletedAt(),
	}
}

const defaultListLimit = 20

// RunsHandler serves the run history as JSON.
type RunsHandler struct {
	store  RunStore
	logger *log.Logger
	mux    *http.ServeMux
}

func NewRunsHandler(store RunStore, logger *log.Logger) *RunsHandler {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	h := &RunsHandler{store: store, logger: logger, mux: http.NewServeMux()}
	h.mux.HandleFunc("GET /runs", h.list)
	h.mux.HandleFunc("GET /runs/latest", h.latest)
	h.mux.HandleFunc("GET /runs/{id}", h.get)
	return h
}

func (h *RunsHandler) Routes() []string {
	return []string{"GET /runs", "GET /runs/latest", "GET /runs/{id}"}
}

func (h *RunsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// list accepts ?status=, ?verified= and ?limit= filters.
func (h *RunsHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	criteria := map[string]any{"limit": defaultListLimit}

	if status := q.Get("status"); status != "" {
		criteria["status"] = status
	}
	if v := q.Get("verified"); v != "" {
		verified, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "verified must be a boolean")
			return
		}
		criteria["verified"] = verified
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		criteria["limit"] = limit
	}

	runs, err := h.store.List(criteria)
	if err != nil {
		h.fail(w, err)
		return
	}

	views := make([]RunView, len(runs))
	for i, run := range runs {
		views[i] = NewRunView(run)
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *RunsHandler) latest(w http.ResponseWriter, r *http.Request) {
	run, err := h.store.Latest()
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewRunView(run))
}

func (h *RunsHandler) get(w http.ResponseWriter, r *http.Request) {
	run, err := h.store.Get(r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewRunView(run))
}

func (h *RunsHandler) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, shared.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	h.logger.Error("run store", "error", err)
	writeError(w, http.StatusInternalServerError, "failed to read run history")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
