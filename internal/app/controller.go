package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/evalwatch/internal/models"
	"github.com/desertthunder/evalwatch/internal/presenter"
	"github.com/desertthunder/evalwatch/internal/services"
	"github.com/desertthunder/evalwatch/internal/shared"
)

const refreshTimeout = 10 * time.Second

// Page is the surface a run is shown on: the presenter's view plus the
// notices raised outside the progress stream.
type Page interface {
	presenter.View
	ShowTokenBanner(message string, instructions models.Instructions, managementURL string)
	Alert(text string)
	Refresh(ev models.ProgressEvent)
}

// Connection is the push channel the presenter subscribes through.
type Connection interface {
	presenter.Subscriber
	Disconnect()
}

// Runs triggers runs and reads their state over REST.
type Runs interface {
	ExecuteRun(ctx context.Context, runID, executeURL string) error
	FetchProgress(ctx context.Context, runID string) (*models.ProgressEvent, error)
}

// Outcome is how the shown run ended.
type Outcome struct {
	RunID      string
	Status     models.Status
	TokenError bool
}

// Options configures a [Controller].
type Options struct {
	Page          Page
	Connection    Connection
	Runs          Runs
	Scheduler     shared.Scheduler
	Logger        *log.Logger
	CompleteDelay time.Duration
	FailedDelay   time.Duration
	ManagementURL string
}

// Controller runs the execute and watch actions against one page.
type Controller struct {
	page          Page
	conn          Connection
	runs          Runs
	presenter     *presenter.Presenter
	managementURL string
	logger        *log.Logger
	done          chan Outcome

	mu    sync.Mutex
	runID string
}

// New creates a controller and its presenter.
func New(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	c := &Controller{
		page:          opts.Page,
		conn:          opts.Connection,
		runs:          opts.Runs,
		managementURL: opts.ManagementURL,
		logger:        shared.WithLogger(logger, "component", "controller"),
		done:          make(chan Outcome, 1),
	}
	c.presenter = presenter.New(presenter.Options{
		View:          &tokenWatch{Page: opts.Page, c: c},
		Subscriber:    opts.Connection,
		Scheduler:     opts.Scheduler,
		Logger:        logger,
		CompleteDelay: opts.CompleteDelay,
		FailedDelay:   opts.FailedDelay,
		ManagementURL: opts.ManagementURL,
		OnDismiss:     c.refresh,
	})
	return c
}

// Presenter returns the controller's presenter.
func (c *Controller) Presenter() *presenter.Presenter { return c.presenter }

// Done delivers the outcome of the shown run once it is dismissed or fails on authentication.
func (c *Controller) Done() <-chan Outcome { return c.done }

// ExecuteRun shows progress for runID, then triggers it.
//
// Progress is shown before the request so no early event is missed. On a token
// error the page shows the token banner; on any other error it alerts. Either
// way the progress view is hidden and the error returned.
func (c *Controller) ExecuteRun(ctx context.Context, runID, executeURL string) error {
	if runID == "" {
		return shared.ErrMissingArgument
	}

	_ = c.show(ctx, runID)

	err := c.runs.ExecuteRun(ctx, runID, executeURL)
	if err == nil {
		return nil
	}

	c.presenter.HideProgress()

	var tokErr *services.TokenExpiredError
	if errors.As(err, &tokErr) {
		c.logger.Warn("run rejected: token expired", "run", runID)
		c.page.ShowTokenBanner(tokErr.Error(), tokErr.Instructions, c.managementURL)
		c.finish(Outcome{RunID: runID, Status: models.StatusFailed, TokenError: true})
		return err
	}

	c.logger.Error("run execution failed", "run", runID, "error", err)
	c.page.Alert(services.FailureMessage(err))
	c.finish(Outcome{RunID: runID, Status: models.StatusFailed})
	return err
}

// Watch shows progress for a run that is already executing.
func (c *Controller) Watch(ctx context.Context, runID string) error {
	if runID == "" {
		return shared.ErrMissingArgument
	}
	return c.show(ctx, runID)
}

func (c *Controller) show(ctx context.Context, runID string) error {
	c.mu.Lock()
	c.runID = runID
	c.mu.Unlock()
	return c.presenter.ShowProgress(ctx, runID)
}

func (c *Controller) shownRun() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runID
}

// Hide dismisses the progress view without waiting for the run.
func (c *Controller) Hide() {
	c.presenter.HideProgress()
}

// Close hides the view and drops the connection.
func (c *Controller) Close() {
	c.presenter.HideProgress()
	c.conn.Disconnect()
}

// refresh re-reads the dismissed run over REST so the page shows its final state.
func (c *Controller) refresh(runID string, status models.Status) {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	ev, err := c.runs.FetchProgress(ctx, runID)
	switch {
	case err == nil:
		c.page.Refresh(*ev)
	case errors.Is(err, shared.ErrRunNotFound):
		c.logger.Debug("run no longer tracked", "run", runID)
	default:
		c.logger.Warn("refresh failed", "run", runID, "error", err)
	}
	c.finish(Outcome{RunID: runID, Status: status})
}

func (c *Controller) finish(o Outcome) {
	select {
	case c.done <- o:
	default:
	}
}

// tokenWatch reports the sticky token-error state as an outcome.
// Its methods run under the presenter's lock, so finish never blocks.
type tokenWatch struct {
	Page
	c *Controller
}

func (w *tokenWatch) RenderTokenError(n presenter.TokenNotice) {
	w.Page.RenderTokenError(n)
	w.c.finish(Outcome{RunID: w.c.shownRun(), Status: models.StatusFailed, TokenError: true})
}
