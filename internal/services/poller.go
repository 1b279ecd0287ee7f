package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/evalwatch/internal/models"
	"github.com/desertthunder/evalwatch/internal/shared"
)

const (
	DefaultPollInterval = 2 * time.Second
	maxPollFailures     = 5
)

// ProgressFetcher reads a run's current progress.
type ProgressFetcher interface {
	FetchProgress(ctx context.Context, runID string) (*models.ProgressEvent, error)
}

// Poller follows a run over REST when the push connection is unavailable.
type Poller struct {
	fetcher  ProgressFetcher
	interval time.Duration
	logger   *log.Logger
}

// NewPoller creates a poller issuing at most one request per interval.
func NewPoller(fetcher ProgressFetcher, interval time.Duration, logger *log.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Poller{fetcher: fetcher, interval: interval, logger: shared.WithLogger(logger, "component", "poller")}
}

// Poll fetches runID until it reaches a terminal status, calling onEvent
// whenever the snapshot changes, and returns the last snapshot.
//
// A run that disappears after being seen (expired from the tracker) ends the
// poll with its last snapshot; a run never seen is [shared.ErrRunNotFound].
// Consecutive request failures abort after a small fixed budget.
func (p *Poller) Poll(ctx context.Context, runID string, onEvent func(models.ProgressEvent)) (*models.ProgressEvent, error) {
	limiter := rate.NewLimiter(rate.Every(p.interval), 1)

	var last *models.ProgressEvent
	failures := 0
	for {
		if err := limiter.Wait(ctx); err != nil {
			return last, err
		}

		ev, err := p.fetcher.FetchProgress(ctx, runID)
		switch {
		case errors.Is(err, shared.ErrRunNotFound):
			if last != nil {
				p.logger.Debug("run no longer tracked", "run", runID)
				return last, nil
			}
			return nil, err
		case err != nil:
			if ctx.Err() != nil {
				return last, ctx.Err()
			}
			failures++
			p.logger.Warn("poll failed", "run", runID, "attempt", failures, "error", err)
			if failures >= maxPollFailures {
				return last, fmt.Errorf("giving up after %d failed polls: %w", failures, err)
			}
			continue
		}

		failures = 0
		if last == nil || changed(*last, *ev) {
			if onEvent != nil {
				onEvent(*ev)
			}
		}
		last = ev

		if ev.Status.Terminal() {
			return last, nil
		}
	}
}

func changed(a, b models.ProgressEvent) bool {
	if a.Status != b.Status || a.CurrentStep != b.CurrentStep || a.Percentage != b.Percentage || a.Message != b.Message {
		return true
	}
	if (a.EstimatedTimeRemaining == nil) != (b.EstimatedTimeRemaining == nil) {
		return true
	}
	return a.EstimatedTimeRemaining != nil && *a.EstimatedTimeRemaining != *b.EstimatedTimeRemaining
}
