// Package models defines the wire types shared by the evalwatch client and progress server.
//
// The package contains two categories of types:
//
// 1. Progress events: the JSON payload pushed over the progress topics and returned by the REST fallback
//   - [ProgressEvent] : Snapshot of a run's progress, keyed by run id
//   - [Status] : Lifecycle state of a run (STARTING, RUNNING, COMPLETED, FAILED, CANCELLED)
//   - [Timestamp] : Second-precision local timestamp in "yyyy-MM-dd HH:mm:ss" form
//
// 2. Run execution bodies: request/response shapes of the execute endpoint
//   - [ExecuteResponse] : Success body returned by POST /runs/{runId}/execute
//   - [ErrorBody] : Error body, including the TOKEN_EXPIRED variant
//   - [Statistics] : Aggregated counts across tracked runs
//
// [IsTokenError] is the predicate used by the presenter to decide whether a failed
// event should be shown as an authentication problem instead of a generic failure.
package models
