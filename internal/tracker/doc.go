// Package tracker keeps the server-side progress of evaluation runs.
//
// A [Tracker] holds one [models.ProgressEvent] per run in memory. Every mutation publishes
// the new snapshot to the run's topic and to the broadcast topic; finished runs are removed
// after a cleanup delay.
package tracker
