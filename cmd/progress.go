package main

import (
	"context"
	"sort"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/evalwatch/internal/formatter"
)

// ProgressList prints every run the server is tracking, ordered by run id.
func (r *Runner) ProgressList(ctx context.Context, cmd *cli.Command) error {
	runs, err := r.runs.ListProgress(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(runs, true)
	}

	if len(runs) == 0 {
		r.writePlain("No tracked runs\n")
		return nil
	}

	ids := make([]string, 0, len(runs))
	for id := range runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	r.writePlainHeader("Tracked runs")
	for _, id := range ids {
		r.writeEvent(runs[id])
	}
	return nil
}

// ProgressStats prints run counts by status.
func (r *Runner) ProgressStats(ctx context.Context, cmd *cli.Command) error {
	stats, err := r.runs.Statistics(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(stats, true)
	}

	r.writePlainHeader("Run statistics")
	r.writePlain("Total:     %d\n", stats.Total)
	r.writePlain("Running:   %d\n", stats.Running)
	r.writePlain("Completed: %d\n", stats.Completed)
	r.writePlain("Failed:    %d\n", stats.Failed)
	return nil
}

// ProgressExport writes a report of every tracked run to a file.
func (r *Runner) ProgressExport(ctx context.Context, cmd *cli.Command) error {
	runs, err := r.runs.ListProgress(ctx)
	if err != nil {
		return err
	}
	stats, err := r.runs.Statistics(ctx)
	if err != nil {
		return err
	}

	report := formatter.NewReport(runs, *stats, time.Now())
	path, err := formatter.WriteExport(report, cmd.String("format"), cmd.String("output"))
	if err != nil {
		return err
	}

	r.logger.Info("exported runs", "count", len(report.Runs), "path", path)
	r.writePlain("✓ Exported %d runs to %s\n", len(report.Runs), path)
	return nil
}
