// Package app wires the progress presenter, the connection manager and the run service into the
// user-facing actions: execute a run and watch it, or just watch.
package app
