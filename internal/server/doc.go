// Package server serves run progress over HTTP and STOMP.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method-qualified patterns.
//
// # Endpoints
//
//	GET    /api/progress/{runId}          progress snapshot, 404 when untracked
//	GET    /api/progress/all              every tracked run keyed by id
//	GET    /api/progress/statistics       counts by status
//	GET    /api/progress/{runId}/exists   {"exists": bool}
//	DELETE /api/progress/{runId}          stop tracking a run
//	PUT    /api/progress/{runId}/message  replace the status message
//	POST   /runs/{runId}/execute          start a run on the executor
//	GET    /ws                            STOMP over WebSocket
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
// The STOMP broker is mounted this way.
package server
