package shared

import "time"

// Timer is a pending scheduled callback.
type Timer interface {
	// Stop prevents the callback from firing, reporting whether it was still pending.
	Stop() bool
}

// Scheduler runs callbacks after a delay.
//
// Reconnect retries and the presenter's auto-dismiss go through a Scheduler
// so tests can fire them deterministically.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// RealScheduler schedules on the runtime timer via [time.AfterFunc].
type RealScheduler struct{}

func (RealScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
