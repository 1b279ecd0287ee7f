package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"

	"github.com/desertthunder/evalwatch/internal/server"
	"github.com/desertthunder/evalwatch/internal/stomp"
	"github.com/desertthunder/evalwatch/internal/tasks"
	"github.com/desertthunder/evalwatch/internal/tracker"
)

// Serve runs the progress server until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := r.config.Server
	if cmd.IsSet("host") {
		cfg.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Port = int(cmd.Int("port"))
	}

	tok, err := r.config.Auth.OAuthToken()
	if err != nil {
		return err
	}
	var tokens oauth2.TokenSource
	if tok != nil {
		tokens = oauth2.StaticTokenSource(tok)
	}

	broker := stomp.NewBroker(r.logger)
	tracked := tracker.New(tracker.Options{
		Publisher:    broker,
		Logger:       r.logger,
		TopicPrefix:  r.config.Backend.TopicPrefix,
		CleanupAfter: cfg.CleanupAfter(),
	})

	updates := make(chan tasks.ProgressUpdate, 64)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for u := range updates {
			r.logger.Debug("run progress", "run", u.RunID, "phase", u.Phase, "step", u.Step, "total", u.Total, "message", u.Message)
		}
	}()

	runner := tasks.NewDemoRunner(tracked, tasks.DemoOpts{
		Steps:     cfg.DemoSteps,
		StepDelay: cfg.StepDelay(),
		Tokens:    tokens,
		Updates:   updates,
	}, r.logger)
	defer func() {
		runner.Close()
		close(updates)
		wg.Wait()
	}()

	srv := server.New(server.Options{
		Addr:     cfg.Addr(),
		Store:    tracked,
		Executor: runner,
		Broker:   broker,
		WSPath:   r.config.Backend.WSPath,
		Logger:   r.logger,
	})

	r.logger.Info("progress server starting", "addr", cfg.Addr(), "ws", r.config.Backend.WSPath)
	return srv.Serve(ctx)
}
