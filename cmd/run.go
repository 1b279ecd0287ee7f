package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/evalwatch/internal/app"
	"github.com/desertthunder/evalwatch/internal/models"
	"github.com/desertthunder/evalwatch/internal/progress"
	"github.com/desertthunder/evalwatch/internal/services"
	"github.com/desertthunder/evalwatch/internal/shared"
	"github.com/desertthunder/evalwatch/internal/stomp"
	"github.com/desertthunder/evalwatch/internal/ui"
)

// RunExec triggers a run and follows it until the progress view is dismissed.
func (r *Runner) RunExec(ctx context.Context, cmd *cli.Command) error {
	runID := cmd.StringArg("runId")
	if runID == "" {
		return fmt.Errorf("%w: runId", shared.ErrMissingArgument)
	}

	executeURL := cmd.String("url")
	if executeURL == "" {
		executeURL = r.runs.ExecuteURL(runID)
	}

	return r.follow(ctx, cmd.Bool("plain"), runID, func(ctx context.Context, c *app.Controller) error {
		return c.ExecuteRun(ctx, runID, executeURL)
	})
}

// RunWatch follows a run that is already executing.
func (r *Runner) RunWatch(ctx context.Context, cmd *cli.Command) error {
	runID := cmd.StringArg("runId")
	if runID == "" {
		return fmt.Errorf("%w: runId", shared.ErrMissingArgument)
	}

	if ev, err := r.runs.FetchProgress(ctx, runID); err == nil && ev.Status.Terminal() {
		r.writeEvent(*ev)
		return statusErr(runID, ev.Status)
	}

	return r.follow(ctx, cmd.Bool("plain"), runID, func(ctx context.Context, c *app.Controller) error {
		if err := c.Watch(ctx, runID); err != nil {
			r.logger.Warn("progress connection unavailable, retrying", "error", err)
		}
		return nil
	})
}

// RunStatus prints the current progress of a run.
func (r *Runner) RunStatus(ctx context.Context, cmd *cli.Command) error {
	runID := cmd.StringArg("runId")
	if runID == "" {
		return fmt.Errorf("%w: runId", shared.ErrMissingArgument)
	}

	ev, err := r.runs.FetchProgress(ctx, runID)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(ev, true)
	}
	r.writeEvent(*ev)
	return nil
}

// RunPoll follows a run over REST, printing each change, until it finishes.
func (r *Runner) RunPoll(ctx context.Context, cmd *cli.Command) error {
	runID := cmd.StringArg("runId")
	if runID == "" {
		return fmt.Errorf("%w: runId", shared.ErrMissingArgument)
	}

	interval := cmd.Duration("interval")
	if interval <= 0 {
		interval = r.config.Presenter.PollInterval()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	poller := services.NewPoller(r.runs, interval, r.logger)
	last, err := poller.Poll(ctx, runID, r.writeEvent)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	return statusErr(runID, last.Status)
}

// follow wires the push connection, a page and a controller, runs action and
// waits for the shown run to end.
func (r *Runner) follow(ctx context.Context, plain bool, runID string, action func(context.Context, *app.Controller) error) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if plain || !ui.IsTerminal(r.output) {
		return r.followPlain(ctx, runID, action)
	}
	return r.followTerminal(ctx, runID, action)
}

func (r *Runner) followPlain(ctx context.Context, runID string, action func(context.Context, *app.Controller) error) error {
	var page *ui.PlainPage
	if r.output == os.Stdout {
		page = ui.NewPlainPage(nil)
	} else {
		page = ui.NewPlainPage(r.output)
	}

	ctrl := r.newController(page)
	defer ctrl.Close()

	if err := action(ctx, ctrl); err != nil {
		return err
	}

	select {
	case o := <-ctrl.Done():
		return outcomeErr(o)
	case <-ctx.Done():
		r.logger.Info("interrupted", "run", runID)
		return nil
	}
}

// followTerminal runs the bubbletea page; the terminal owns stdout so logs go to a file meanwhile.
func (r *Runner) followTerminal(ctx context.Context, runID string, action func(context.Context, *app.Controller) error) error {
	fileLogger, closer, err := shared.NewFileLogger(r.config.Log.File)
	if err != nil {
		return err
	}
	defer closer.Close()
	shared.SetLogLevel(fileLogger, r.logger.GetLevel())

	prev := r.logger
	r.SetLogger(fileLogger)
	defer r.SetLogger(prev)

	var ctrl *app.Controller
	page := ui.NewTerminalPage(ui.TerminalOptions{
		OnHide: func() { ctrl.Hide() },
		OnOpen: r.openBrowser,
	})
	ctrl = r.newController(page)
	defer ctrl.Close()

	uiDone := make(chan error, 1)
	go func() { uiDone <- page.Run() }()

	go func() {
		if err := action(ctx, ctrl); err != nil {
			fileLogger.Error("run action failed", "run", runID, "error", err)
		}
	}()

	select {
	case o := <-ctrl.Done():
		// The token notice stays up until the user quits so its link can be opened.
		if !o.TokenError {
			page.Quit()
		}
		select {
		case err := <-uiDone:
			if err != nil {
				return err
			}
		case <-ctx.Done():
			page.Quit()
			<-uiDone
		}
		return outcomeErr(o)
	case err := <-uiDone:
		return err
	case <-ctx.Done():
		page.Quit()
		return <-uiDone
	}
}

func (r *Runner) newController(page app.Page) *app.Controller {
	header := http.Header{}
	if r.config.Auth.Token != "" {
		header.Set("Authorization", "Bearer "+r.config.Auth.Token)
	}

	client := stomp.NewClient(r.config.Backend.WSURL(), stomp.ClientOptions{Header: header, Logger: r.logger})
	conn := progress.NewManager(progress.Options{
		Transport:   progress.NewStompTransport(client),
		Logger:      r.logger,
		TopicPrefix: r.config.Backend.TopicPrefix,
		RetryDelay:  r.config.Transport.ReconnectDelay(),
	})

	return app.New(app.Options{
		Page:          page,
		Connection:    conn,
		Runs:          r.runs,
		Logger:        r.logger,
		CompleteDelay: r.config.Presenter.CompleteDelay(),
		FailedDelay:   r.config.Presenter.FailedDelay(),
		ManagementURL: r.config.Auth.ManagementURL,
	})
}

func (r *Runner) writeEvent(ev models.ProgressEvent) {
	r.writePlain("%s\n", ev.Summary())
}

func outcomeErr(o app.Outcome) error {
	if o.TokenError {
		return shared.ErrTokenExpired
	}
	return statusErr(o.RunID, o.Status)
}

func statusErr(runID string, status models.Status) error {
	switch status {
	case models.StatusFailed, models.StatusCancelled:
		return fmt.Errorf("%w: %s %s", shared.ErrRunFailed, runID, status)
	default:
		return nil
	}
}
