package tracker

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/evalwatch/internal/models"
	"github.com/desertthunder/evalwatch/internal/shared"
)

const (
	DefaultCleanupAfter = 5 * time.Minute
	DefaultTopicPrefix  = "/topic/progress/"

	initialMessage   = "Initializing execution..."
	completedMessage = "Execution completed successfully"
	failedMessage    = "Execution failed"
	maxQuestionLen   = 60
)

// Publisher delivers a message body to every subscriber of destination and
// returns the number of deliveries.
type Publisher interface {
	Publish(destination string, body []byte) int
}

// Options configures a [Tracker]. Zero values select defaults.
type Options struct {
	Publisher    Publisher
	Scheduler    shared.Scheduler
	Logger       *log.Logger
	TopicPrefix  string
	CleanupAfter time.Duration
	Now          func() time.Time
}

type entry struct {
	event   models.ProgressEvent
	started time.Time
	cleanup shared.Timer
}

// Tracker is an in-memory, concurrency-safe store of run progress.
type Tracker struct {
	mu   sync.RWMutex
	runs map[string]*entry

	publisher    Publisher
	scheduler    shared.Scheduler
	logger       *log.Logger
	topicPrefix  string
	cleanupAfter time.Duration
	now          func() time.Time
}

// New creates a tracker.
func New(opts Options) *Tracker {
	t := &Tracker{
		runs:         make(map[string]*entry),
		publisher:    opts.Publisher,
		scheduler:    opts.Scheduler,
		topicPrefix:  opts.TopicPrefix,
		cleanupAfter: opts.CleanupAfter,
		now:          opts.Now,
	}
	if t.scheduler == nil {
		t.scheduler = shared.RealScheduler{}
	}
	if t.topicPrefix == "" {
		t.topicPrefix = DefaultTopicPrefix
	}
	if t.cleanupAfter <= 0 {
		t.cleanupAfter = DefaultCleanupAfter
	}
	if t.now == nil {
		t.now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	t.logger = shared.WithLogger(logger, "component", "tracker")
	return t
}

// Start begins tracking runID with total steps, replacing any previous state for it.
func (t *Tracker) Start(runID string, total int) models.ProgressEvent {
	now := t.now()

	t.mu.Lock()
	if old, ok := t.runs[runID]; ok && old.cleanup != nil {
		old.cleanup.Stop()
	}
	e := &entry{
		started: now,
		event: models.ProgressEvent{
			RunID:      runID,
			Status:     models.StatusStarting,
			TotalSteps: total,
			Message:    initialMessage,
			StartTime:  models.NewTimestamp(now),
			LastUpdate: models.NewTimestamp(now),
		},
	}
	t.runs[runID] = e
	snapshot := e.event.Clone()
	t.mu.Unlock()

	t.logger.Info("tracking run", "run", runID, "total", total)
	t.broadcast(snapshot)
	return snapshot
}

// Update moves runID to step while it processes question.
func (t *Tracker) Update(runID string, step int, question string) (models.ProgressEvent, error) {
	return t.mutate(runID, func(e *entry, now time.Time) {
		t.advance(e, step, question, now)
	})
}

// Increment advances runID by one step.
func (t *Tracker) Increment(runID string, question string) (models.ProgressEvent, error) {
	return t.mutate(runID, func(e *entry, now time.Time) {
		t.advance(e, e.event.CurrentStep+1, question, now)
	})
}

// Complete marks runID as completed. An empty message selects the default.
func (t *Tracker) Complete(runID, message string) (models.ProgressEvent, error) {
	if message == "" {
		message = completedMessage
	}
	return t.mutate(runID, func(e *entry, now time.Time) {
		e.event.Status = models.StatusCompleted
		e.event.CurrentStep = e.event.TotalSteps
		e.event.Percentage = 100
		e.event.Message = message
		e.event.EstimatedTimeRemaining = models.Seconds(0)
		t.scheduleCleanup(e)
	})
}

// Fail marks runID as failed. An empty message selects the default.
func (t *Tracker) Fail(runID, message string) (models.ProgressEvent, error) {
	if message == "" {
		message = failedMessage
	}
	return t.mutate(runID, func(e *entry, now time.Time) {
		e.event.Status = models.StatusFailed
		e.event.Message = message
		e.event.EstimatedTimeRemaining = nil
		t.scheduleCleanup(e)
	})
}

// UpdateMessage replaces the status message of runID.
func (t *Tracker) UpdateMessage(runID, message string) (models.ProgressEvent, error) {
	return t.mutate(runID, func(e *entry, now time.Time) {
		e.event.Message = message
	})
}

// Get returns a copy of the progress of runID.
func (t *Tracker) Get(runID string) (models.ProgressEvent, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.runs[runID]
	if !ok {
		return models.ProgressEvent{}, false
	}
	return e.event.Clone(), true
}

// Has reports whether runID is tracked.
func (t *Tracker) Has(runID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.runs[runID]
	return ok
}

// Remove stops tracking runID, reporting whether it was tracked.
func (t *Tracker) Remove(runID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.runs[runID]
	if !ok {
		return false
	}
	if e.cleanup != nil {
		e.cleanup.Stop()
	}
	delete(t.runs, runID)
	return true
}

// All returns copies of every tracked run keyed by run id.
func (t *Tracker) All() map[string]models.ProgressEvent {
	t.mu.RLock()
	defer t.mu.RUnlock()

	all := make(map[string]models.ProgressEvent, len(t.runs))
	for id, e := range t.runs {
		all[id] = e.event.Clone()
	}
	return all
}

// Statistics counts tracked runs by status. Starting runs count toward the total only.
func (t *Tracker) Statistics() models.Statistics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := models.Statistics{Total: len(t.runs)}
	for _, e := range t.runs {
		switch e.event.Status {
		case models.StatusRunning:
			stats.Running++
		case models.StatusCompleted:
			stats.Completed++
		case models.StatusFailed:
			stats.Failed++
		}
	}
	return stats
}

func (t *Tracker) mutate(runID string, fn func(e *entry, now time.Time)) (models.ProgressEvent, error) {
	now := t.now()

	t.mu.Lock()
	e, ok := t.runs[runID]
	if !ok {
		t.mu.Unlock()
		t.logger.Warn("no progress tracked", "run", runID)
		return models.ProgressEvent{}, fmt.Errorf("%w: %s", shared.ErrRunNotFound, runID)
	}
	fn(e, now)
	e.event.LastUpdate = models.NewTimestamp(now)
	snapshot := e.event.Clone()
	t.mu.Unlock()

	t.broadcast(snapshot)
	return snapshot, nil
}

func (t *Tracker) advance(e *entry, step int, question string, now time.Time) {
	ev := &e.event
	ev.Status = models.StatusRunning
	ev.CurrentStep = step
	ev.CurrentQuestion = question
	ev.Percentage = Percentage(step, ev.TotalSteps)
	ev.Message = fmt.Sprintf("Processing question %d of %d: %s", step, ev.TotalSteps, Truncate(question, maxQuestionLen))
	ev.EstimatedTimeRemaining = EstimateRemaining(now.Sub(e.started), step, ev.TotalSteps)
}

// scheduleCleanup must be called with the lock held.
func (t *Tracker) scheduleCleanup(e *entry) {
	if e.cleanup != nil {
		e.cleanup.Stop()
	}
	runID := e.event.RunID
	e.cleanup = t.scheduler.AfterFunc(t.cleanupAfter, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if cur, ok := t.runs[runID]; ok && cur == e {
			delete(t.runs, runID)
			t.logger.Debug("cleaned up run", "run", runID)
		}
	})
}

func (t *Tracker) broadcast(ev models.ProgressEvent) {
	if t.publisher == nil {
		return
	}

	body, err := json.Marshal(ev)
	if err != nil {
		t.logger.Error("failed to encode progress", "run", ev.RunID, "error", err)
		return
	}

	n := t.publisher.Publish(t.topicPrefix+ev.RunID, body)
	n += t.publisher.Publish(strings.TrimSuffix(t.topicPrefix, "/"), body)
	t.logger.Debug("broadcast progress", "run", ev.RunID, "status", ev.Status, "deliveries", n)
}

// Percentage returns current/total as a percentage, 0 when total is not positive.
func Percentage(current, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(current) / float64(total) * 100
}

// EstimateRemaining extrapolates the average step time over the remaining steps.
// It is nil until a step has completed.
func EstimateRemaining(elapsed time.Duration, current, total int) *int64 {
	if current <= 0 || elapsed <= 0 {
		return nil
	}
	remaining := max(total-current, 0)
	perStep := elapsed.Seconds() / float64(current)
	return models.Seconds(math.Round(perStep * float64(remaining)))
}

// Truncate shortens s to at most n runes, ending in "..." when cut.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
