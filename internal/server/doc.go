// Package server provides HTTP routing, middleware and the read-only status service.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [BasicRouter] registers
// method-qualified [http.ServeMux] patterns, so a request with the wrong method gets a 405 from
// the mux itself.
//
// [Middleware] wraps handlers in reverse order (last added executes first). [Recoverer] and
// [RequestLogger] are the stack used by the status service.
//
// # Handler Interface
//
// Custom handlers implement [Handler], which adds Routes to [http.Handler] so a handler keeps its
// own route definitions.
//
// # Status Service
//
// [NewStatusRouter] serves:
//   - GET /healthz
//   - GET /runs (filters: status, verified, limit)
//   - GET /runs/latest and GET /runs/{id}
//   - GET /metrics, the gauges of the latest run rebuilt from the run store on each scrape
//
// The service never starts a migration; it reads whatever the CLI and TUI recorded.
package server
