package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/desertthunder/evalwatch/internal/models"
	"github.com/desertthunder/evalwatch/internal/shared"
)

const (
	DefaultSteps     = 10
	DefaultStepDelay = 1500 * time.Millisecond

	cancelledMessage = "Execution cancelled"
)

// TokenExpiredMessage is the failure message of a run whose token expired mid-run.
var TokenExpiredMessage = "🔐 Token expired during execution. Please refresh your token and try again.\n\n" +
	models.DefaultTokenInstructions.String()

// ErrRunActive is returned when starting a run that is already executing.
var ErrRunActive = errors.New("run is already executing")

var defaultQuestions = []string{
	"What is the capital of France?",
	"Summarize the main argument of the attached article in two sentences.",
	"Which HTTP status code indicates that the client must authenticate?",
	"Translate 'good morning' into Spanish.",
	"What is the time complexity of binary search?",
}

// ProgressSink records run progress. [tracker.Tracker] implements it.
type ProgressSink interface {
	Start(runID string, total int) models.ProgressEvent
	Increment(runID string, question string) (models.ProgressEvent, error)
	Complete(runID, message string) (models.ProgressEvent, error)
	Fail(runID, message string) (models.ProgressEvent, error)
}

// DemoOpts configures a [DemoRunner].
type DemoOpts struct {
	Steps     int                   // Questions per run (default: 10)
	StepDelay time.Duration         // Simulated evaluation time per question (default: 1.5s)
	Questions []string              // Question texts, cycled (default: built-in samples)
	Tokens    oauth2.TokenSource    // Backend token; nil disables the expiry check
	Updates   chan<- ProgressUpdate // Optional progress updates for the CLI
}

// DemoRunner simulates evaluation runs, one goroutine per run.
type DemoRunner struct {
	sink   ProgressSink
	opts   DemoOpts
	logger *log.Logger

	ctx     context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewDemoRunner creates a runner reporting to sink.
func NewDemoRunner(sink ProgressSink, opts DemoOpts, logger *log.Logger) *DemoRunner {
	if opts.Steps <= 0 {
		opts.Steps = DefaultSteps
	}
	if opts.StepDelay <= 0 {
		opts.StepDelay = DefaultStepDelay
	}
	if len(opts.Questions) == 0 {
		opts.Questions = defaultQuestions
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	ctx, stop := context.WithCancel(context.Background())
	return &DemoRunner{
		sink:    sink,
		opts:    opts,
		logger:  shared.WithLogger(logger, "component", "demo"),
		ctx:     ctx,
		stop:    stop,
		cancels: make(map[string]context.CancelFunc),
	}
}

// CheckToken reports [shared.ErrTokenExpired] when the configured token is no longer valid.
func (r *DemoRunner) CheckToken() error {
	if r.opts.Tokens == nil {
		return nil
	}
	tok, err := r.opts.Tokens.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrTokenExpired, err)
	}
	if !tok.Valid() {
		return shared.ErrTokenExpired
	}
	return nil
}

// Start validates the token and launches runID in the background.
//
// The run outlives the request that started it; use [DemoRunner.Cancel] or
// [DemoRunner.Close] to stop it.
func (r *DemoRunner) Start(runID string) error {
	if runID == "" {
		return fmt.Errorf("%w: run id is required", shared.ErrMissingArgument)
	}
	if err := r.CheckToken(); err != nil {
		return err
	}

	r.mu.Lock()
	if _, ok := r.cancels[runID]; ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRunActive, runID)
	}
	if r.ctx.Err() != nil {
		r.mu.Unlock()
		return r.ctx.Err()
	}
	ctx, cancel := context.WithCancel(r.ctx)
	r.cancels[runID] = cancel
	r.wg.Add(1)
	r.mu.Unlock()

	r.sink.Start(runID, r.opts.Steps)
	go func() {
		defer r.wg.Done()
		defer r.finish(runID)
		if err := r.Run(ctx, runID); err != nil {
			r.logger.Warn("run ended early", "run", runID, "error", err)
		}
	}()
	return nil
}

// Run walks an already started runID through every question, failing it on
// cancellation or token expiry.
func (r *DemoRunner) Run(ctx context.Context, runID string) error {
	total := r.opts.Steps
	limiter := rate.NewLimiter(rate.Every(r.opts.StepDelay), 1)
	limiter.Allow()

	r.sendProgress(queuedUpdate(runID, total))
	for step := 1; step <= total; step++ {
		if err := r.CheckToken(); err != nil {
			r.fail(runID, step-1, TokenExpiredMessage, err)
			return err
		}

		question := r.opts.Questions[(step-1)%len(r.opts.Questions)]
		if _, err := r.sink.Increment(runID, question); err != nil {
			r.sendProgress(abortedUpdate(runID, step-1, total, err))
			return err
		}
		r.sendProgress(evaluateUpdate(runID, step, total, question))

		if err := limiter.Wait(ctx); err != nil {
			r.fail(runID, step, cancelledMessage, err)
			return err
		}
	}

	if _, err := r.sink.Complete(runID, completionMessage(total)); err != nil {
		return err
	}
	r.sendProgress(finishedUpdate(runID, total))
	r.logger.Info("run completed", "run", runID, "questions", total)
	return nil
}

// Cancel stops runID, reporting whether it was executing.
func (r *DemoRunner) Cancel(runID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cancel, ok := r.cancels[runID]
	if ok {
		cancel()
	}
	return ok
}

// Active reports whether runID is executing.
func (r *DemoRunner) Active(runID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.cancels[runID]
	return ok
}

// Close cancels every run and waits for them to exit.
func (r *DemoRunner) Close() {
	r.stop()
	r.wg.Wait()
}

func (r *DemoRunner) fail(runID string, step int, message string, err error) {
	if _, ferr := r.sink.Fail(runID, message); ferr != nil {
		r.logger.Error("failed to record failure", "run", runID, "error", ferr)
	}
	r.sendProgress(abortedUpdate(runID, step, r.opts.Steps, err))
}

func (r *DemoRunner) finish(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cancel, ok := r.cancels[runID]; ok {
		cancel()
		delete(r.cancels, runID)
	}
}

// sendProgress sends a progress update to the channel if provided.
// Non-blocking: skips update if channel is full.
func (r *DemoRunner) sendProgress(update ProgressUpdate) {
	if r.opts.Updates == nil {
		return
	}

	select {
	case r.opts.Updates <- update:
	default:
	}
}
