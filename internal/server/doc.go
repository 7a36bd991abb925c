// Package server exposes a running daemon's state over HTTP.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # Status Endpoints
//
// [StatusHandler] serves two read-only JSON routes:
//   - /healthz reports whether syncing is enabled, the job count and the scheduler's tick counter
//   - /jobs lists every job in registry order with its persisted hash, last error and live pipeline state
//
// It also implements the scheduler's observer interface so /jobs can show the most recent
// completion status of each job.
//
// [NewStatusRouter] combines the handler with a Prometheus /metrics endpoint and the
// [Logging] and [Recover] middleware.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
