package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a demo run.
//
// Used to send real-time updates to the CLI for display.
type ProgressUpdate struct {
	RunID   string // Run being executed
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
}

// Operation phase enumeration
type Phase int

const (
	Queued Phase = iota
	Evaluate
	Finished
	Aborted
)

func (p Phase) String() string {
	switch p {
	case Queued:
		return "queued"
	case Evaluate:
		return "evaluate"
	case Finished:
		return "finished"
	case Aborted:
		return "aborted"
	default:
		return ""
	}
}

func queuedUpdate(runID string, total int) ProgressUpdate {
	return ProgressUpdate{
		RunID:   runID,
		Phase:   Queued,
		Total:   total,
		Message: fmt.Sprintf("Queued %d questions", total),
	}
}

func evaluateUpdate(runID string, step, total int, question string) ProgressUpdate {
	return ProgressUpdate{
		RunID:   runID,
		Phase:   Evaluate,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s", step, total, question),
	}
}

func finishedUpdate(runID string, total int) ProgressUpdate {
	return ProgressUpdate{
		RunID:   runID,
		Phase:   Finished,
		Step:    total,
		Total:   total,
		Message: fmt.Sprintf("✓ %s", completionMessage(total)),
	}
}

func abortedUpdate(runID string, step, total int, err error) ProgressUpdate {
	return ProgressUpdate{
		RunID:   runID,
		Phase:   Aborted,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("✗ %v", err),
	}
}

func completionMessage(n int) string {
	return fmt.Sprintf("Successfully processed %d of %d questions", n, n)
}
