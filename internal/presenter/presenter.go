package presenter

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/evalwatch/internal/models"
	"github.com/desertthunder/evalwatch/internal/progress"
	"github.com/desertthunder/evalwatch/internal/shared"
)

const (
	DefaultCompleteDelay = 2500 * time.Millisecond
	DefaultFailedDelay   = 4 * time.Second
)

// State is the presenter's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateShowing
	StateCompleting
	StateFailing
	StateTokenError
)

func (s State) String() string {
	switch s {
	case StateShowing:
		return "showing"
	case StateCompleting:
		return "completing"
	case StateFailing:
		return "failing"
	case StateTokenError:
		return "token-error"
	default:
		return "idle"
	}
}

// View displays the progress of one run.
//
// Calls arrive with the presenter's lock held and must not call back into the presenter synchronously.
type View interface {
	Show()
	Hide()
	Render(Frame)
	RenderTokenError(TokenNotice)
}

// Subscriber is the slice of [progress.Manager] the presenter depends on.
type Subscriber interface {
	Connect(ctx context.Context, onReady func()) error
	Subscribe(runID string, onMessage func(models.ProgressEvent)) (progress.Subscription, error)
	Unsubscribe(runID string)
}

// Options configures a [Presenter]. View and Subscriber are required.
type Options struct {
	View          View
	Subscriber    Subscriber
	Scheduler     shared.Scheduler
	Logger        *log.Logger
	CompleteDelay time.Duration
	FailedDelay   time.Duration
	ManagementURL string
	// OnDismiss runs after an automatic dismissal, outside the presenter's lock,
	// with the run id and the status that triggered it.
	OnDismiss func(runID string, status models.Status)
}

// Presenter renders progress events for the current run.
type Presenter struct {
	view          View
	sub           Subscriber
	scheduler     shared.Scheduler
	logger        *log.Logger
	completeDelay time.Duration
	failedDelay   time.Duration
	managementURL string
	onDismiss     func(string, models.Status)

	mu    sync.Mutex
	runID string
	state State
	timer shared.Timer
}

func New(opts Options) *Presenter {
	p := &Presenter{
		view:          opts.View,
		sub:           opts.Subscriber,
		scheduler:     opts.Scheduler,
		logger:        opts.Logger,
		completeDelay: opts.CompleteDelay,
		failedDelay:   opts.FailedDelay,
		managementURL: opts.ManagementURL,
		onDismiss:     opts.OnDismiss,
	}
	if p.scheduler == nil {
		p.scheduler = shared.RealScheduler{}
	}
	if p.logger == nil {
		p.logger = shared.NewLogger(nil)
	}
	p.logger = shared.WithLogger(p.logger, "component", "presenter")
	if p.completeDelay <= 0 {
		p.completeDelay = DefaultCompleteDelay
	}
	if p.failedDelay <= 0 {
		p.failedDelay = DefaultFailedDelay
	}
	return p
}

// ShowProgress makes runID current, shows the initial frame and subscribes to
// the run's topic once the connection is ready.
//
// A connection failure is returned but leaves the view showing; the
// subscription is made when a later retry succeeds.
func (p *Presenter) ShowProgress(ctx context.Context, runID string) error {
	p.mu.Lock()
	p.stopTimerLocked()
	prev := p.runID
	p.runID = runID
	p.state = StateShowing
	p.view.Render(InitialFrame(runID))
	p.view.Show()
	p.mu.Unlock()

	if prev != "" && prev != runID {
		p.sub.Unsubscribe(prev)
	}

	p.logger.Debug("showing progress", "run", runID)
	err := p.sub.Connect(ctx, func() { p.subscribe(runID) })
	if err != nil {
		p.logger.Warn("progress connection unavailable", "run", runID, "error", err)
	}
	return err
}

func (p *Presenter) subscribe(runID string) {
	p.mu.Lock()
	current := p.runID == runID && p.state != StateIdle
	p.mu.Unlock()
	if !current {
		return
	}

	if _, err := p.sub.Subscribe(runID, p.UpdateProgress); err != nil {
		p.logger.Warn("subscribe failed", "run", runID, "error", err)
	}
}

// UpdateProgress applies an event for the current run.
func (p *Presenter) UpdateProgress(ev models.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.runID == "" || ev.RunID != p.runID {
		p.logger.Debug("discarding event", "run", ev.RunID, "current", p.runID)
		return
	}

	if models.IsTokenError(ev) {
		p.showTokenErrorLocked(ev)
		return
	}
	if p.state == StateTokenError {
		return
	}

	p.view.Render(BuildFrame(ev))

	switch ev.Status {
	case models.StatusCompleted:
		p.enterLocked(StateCompleting, p.completeDelay, ev.Status)
	case models.StatusFailed:
		p.enterLocked(StateFailing, p.failedDelay, ev.Status)
	}
}

// enterLocked moves to a dismissing state; the first terminal event owns the timer.
func (p *Presenter) enterLocked(s State, delay time.Duration, status models.Status) {
	if p.timer != nil {
		return
	}
	p.state = s
	runID := p.runID
	p.logger.Info("run finished", "run", runID, "status", status, "dismiss_in", delay)
	p.timer = p.scheduler.AfterFunc(delay, func() { p.dismiss(runID, status) })
}

func (p *Presenter) dismiss(runID string, status models.Status) {
	p.mu.Lock()
	current := p.runID == runID
	p.timer = nil
	p.mu.Unlock()
	if !current {
		return
	}

	p.HideProgress()
	if p.onDismiss != nil {
		p.onDismiss(runID, status)
	}
}

func (p *Presenter) showTokenErrorLocked(ev models.ProgressEvent) {
	p.stopTimerLocked()
	p.state = StateTokenError
	p.logger.Warn("run failed on authentication", "run", ev.RunID, "message", ev.Message)
	p.view.RenderTokenError(NewTokenNotice(ev, p.managementURL))
}

// HideProgress hides the view, releases the run's subscription and cancels any pending dismissal.
func (p *Presenter) HideProgress() {
	p.mu.Lock()
	p.stopTimerLocked()
	runID := p.runID
	p.runID = ""
	p.state = StateIdle
	p.view.Hide()
	p.mu.Unlock()

	if runID != "" {
		p.sub.Unsubscribe(runID)
	}
}

func (p *Presenter) stopTimerLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// CurrentRunID returns the run being shown, or "" when idle.
func (p *Presenter) CurrentRunID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runID
}

func (p *Presenter) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}
