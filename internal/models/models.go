package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of an evaluation run.
type Status string

const (
	StatusStarting  Status = "STARTING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// Terminal reports whether no further progress events are expected for the run.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

func (s Status) String() string { return string(s) }

// TimestampLayout is the wire layout of [Timestamp] values.
const TimestampLayout = "2006-01-02 15:04:05"

// Timestamp wraps [time.Time] to marshal as "yyyy-MM-dd HH:mm:ss" in local time.
type Timestamp struct {
	time.Time
}

// NewTimestamp truncates t to whole seconds.
func NewTimestamp(t time.Time) *Timestamp {
	return &Timestamp{Time: t.Truncate(time.Second)}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Local().Format(TimestampLayout))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if s == "" {
		return nil
	}

	parsed, err := time.ParseInLocation(TimestampLayout, s, time.Local)
	if err != nil {
		// Some producers send ISO-8601 local date-times instead.
		parsed, err = time.ParseInLocation("2006-01-02T15:04:05", s, time.Local)
		if err != nil {
			return fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
	}
	t.Time = parsed
	return nil
}

// ProgressEvent is one progress snapshot for a run.
//
// EstimatedTimeRemaining is in seconds and nil when unknown.
type ProgressEvent struct {
	RunID                  string     `json:"runId"`
	Status                 Status     `json:"status"`
	CurrentStep            int        `json:"currentStep"`
	TotalSteps             int        `json:"totalSteps"`
	Percentage             float64    `json:"percentage"`
	CurrentQuestion        string     `json:"currentQuestion,omitempty"`
	Message                string     `json:"message"`
	StartTime              *Timestamp `json:"startTime,omitempty"`
	LastUpdate             *Timestamp `json:"lastUpdate,omitempty"`
	EstimatedTimeRemaining *int64     `json:"estimatedTimeRemaining"`
}

// UnmarshalJSON accepts both "estimatedTimeRemaining" and "estimatedTimeRemainingSeconds".
func (e *ProgressEvent) UnmarshalJSON(data []byte) error {
	type plain ProgressEvent
	aux := struct {
		*plain
		Seconds *float64 `json:"estimatedTimeRemainingSeconds"`
		ETA     *float64 `json:"estimatedTimeRemaining"`
	}{plain: (*plain)(e)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	e.EstimatedTimeRemaining = nil
	switch {
	case aux.ETA != nil:
		e.EstimatedTimeRemaining = Seconds(*aux.ETA)
	case aux.Seconds != nil:
		e.EstimatedTimeRemaining = Seconds(*aux.Seconds)
	}
	return nil
}

// Seconds returns a pointer to v truncated to whole seconds.
func Seconds(v float64) *int64 {
	s := int64(v)
	return &s
}

// DecodeProgressEvent decodes a message body into a [ProgressEvent].
func DecodeProgressEvent(body []byte) (ProgressEvent, error) {
	var ev ProgressEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return ProgressEvent{}, fmt.Errorf("decode progress event: %w", err)
	}
	return ev, nil
}

// Clone returns a deep copy so callers may hand events across goroutines.
func (e ProgressEvent) Clone() ProgressEvent {
	c := e
	if e.StartTime != nil {
		st := *e.StartTime
		c.StartTime = &st
	}
	if e.LastUpdate != nil {
		lu := *e.LastUpdate
		c.LastUpdate = &lu
	}
	if e.EstimatedTimeRemaining != nil {
		eta := *e.EstimatedTimeRemaining
		c.EstimatedTimeRemaining = &eta
	}
	return c
}

// Summary renders a one-line description used by the plain CLI output.
func (e ProgressEvent) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %.0f%%", e.RunID, e.Status, e.Percentage)
	if e.TotalSteps > 0 {
		fmt.Fprintf(&b, " (%d/%d)", e.CurrentStep, e.TotalSteps)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, " - %s", e.Message)
	}
	return b.String()
}
