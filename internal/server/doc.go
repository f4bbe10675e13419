// Package server exposes the conversion service over HTTP.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
// Routes may use ServeMux path wildcards such as {filename}.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
// [HealthHandler] is registered this way.
//
// # Routes
//
//	POST /create-job                 create a job and queue it (202, 400, 503)
//	GET  /status/{filename}          job projection, or {"phase":"pending"} when unknown
//	GET  /stream/temp/{filename}     transient file only
//	GET  /stream/permanent/{filename} blob store only
//	GET  /stream/{filename}          picked by [Resolver.Resolve]
//	GET  /library                    library entries, newest first
//	GET  /healthz                    liveness and worker pool depth
//
// The /api/convert-mp3, /api/status, /api/temp, /api/files and /api/songs routes alias the above for older clients.
//
// # Errors
//
// Errors are written as {"error": "..."}:
//   - [shared.ErrInvalidInput] and [shared.ErrMissingArgument] : 400
//   - [shared.ErrNotFound] : 404
//   - [shared.ErrQueueFull] and [shared.ErrServiceUnavailable] : 503
//   - anything else : 500
package server
