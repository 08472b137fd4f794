package server

import (
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/albumvault/albumsheets/internal/shared"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler is an [http.Handler] that knows the route patterns it serves.
type Handler interface {
	http.Handler
	Routes() []string // method-qualified [http.ServeMux] patterns, e.g. "GET /runs/{id}"
}

// Router registers handlers behind a shared middleware stack.
type Router interface {
	Use(middleware ...Middleware)
	Handle(method, path string, handler http.Handler)
	Handler(handler Handler)
	ServeHTTP(w http.ResponseWriter, r *http.Request)
}

// NewStatusRouter assembles the read-only status service: health, run history and metrics.
func NewStatusRouter(store RunStore, logger *log.Logger) *BasicRouter {
	if logger == nil {
		logger = shared.DiscardLogger()
	}

	r := NewBasicRouter()
	r.Use(Recoverer(logger), RequestLogger(logger))
	r.Handle(http.MethodGet, "/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}))
	r.Handler(NewRunsHandler(store, logger))
	r.Handler(NewMetricsHandler(store, logger))
	return r
}
