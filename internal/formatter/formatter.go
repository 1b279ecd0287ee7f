// package formatter exports tracked run reports to various formats (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/desertthunder/evalwatch/internal/models"
	"github.com/desertthunder/evalwatch/internal/shared"
)

// Report is a snapshot of every tracked run.
type Report struct {
	Generated  time.Time
	Runs       []models.ProgressEvent
	Statistics models.Statistics
}

// NewReport orders runs by run id.
func NewReport(runs map[string]models.ProgressEvent, stats models.Statistics, generated time.Time) *Report {
	r := &Report{Generated: generated, Statistics: stats, Runs: make([]models.ProgressEvent, 0, len(runs))}
	for _, ev := range runs {
		r.Runs = append(r.Runs, ev)
	}
	sort.Slice(r.Runs, func(i, j int) bool { return r.Runs[i].RunID < r.Runs[j].RunID })
	return r
}

// ExportToCSV converts a Report to CSV format with columns: Run, Status, Step, Total, Percentage, ETA, Started, Updated, Message
func ExportToCSV(report *Report) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Run", "Status", "Step", "Total", "Percentage", "ETA", "Started", "Updated", "Message"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, ev := range report.Runs {
		eta := ""
		if ev.EstimatedTimeRemaining != nil {
			eta = strconv.FormatInt(*ev.EstimatedTimeRemaining, 10)
		}
		record := []string{
			ev.RunID,
			ev.Status.String(),
			strconv.Itoa(ev.CurrentStep),
			strconv.Itoa(ev.TotalSteps),
			strconv.FormatFloat(ev.Percentage, 'f', 1, 64),
			eta,
			formatTimestamp(ev.StartTime),
			formatTimestamp(ev.LastUpdate),
			ev.Message,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a Report to Markdown with a statistics summary and a run table
func ExportToMarkdown(report *Report) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Evaluation runs\n\n")
	if !report.Generated.IsZero() {
		buf.WriteString(fmt.Sprintf("**Generated**: %s\n\n", report.Generated.Format(models.TimestampLayout)))
	}

	s := report.Statistics
	buf.WriteString(fmt.Sprintf("**Total**: %d | **Running**: %d | **Completed**: %d | **Failed**: %d\n\n",
		s.Total, s.Running, s.Completed, s.Failed))

	buf.WriteString("## Runs\n\n")
	if len(report.Runs) == 0 {
		buf.WriteString("_No tracked runs._\n")
		return buf.Bytes(), nil
	}

	buf.WriteString("| Run | Status | Progress | Remaining | Message |\n")
	buf.WriteString("|-----|--------|----------|-----------|---------|\n")
	for _, ev := range report.Runs {
		buf.WriteString(fmt.Sprintf("| %s | %s | %d/%d (%.0f%%) | %s | %s |\n",
			ev.RunID, ev.Status, ev.CurrentStep, ev.TotalSteps, ev.Percentage,
			remaining(ev.EstimatedTimeRemaining), escapePipes(ev.Message)))
	}

	return buf.Bytes(), nil
}

// ExportToText converts a Report to plain text format
func ExportToText(report *Report) ([]byte, error) {
	var buf bytes.Buffer

	s := report.Statistics
	buf.WriteString(fmt.Sprintf("Runs: %d (running %d, completed %d, failed %d)\n\n", s.Total, s.Running, s.Completed, s.Failed))

	for i, ev := range report.Runs {
		buf.WriteString(fmt.Sprintf("%d. %s\n", i+1, ev.Summary()))
	}

	return buf.Bytes(), nil
}

// Export renders report in format: csv, md (or markdown), txt (or text).
func Export(report *Report, format string) ([]byte, error) {
	switch format {
	case "csv":
		return ExportToCSV(report)
	case "md", "markdown":
		return ExportToMarkdown(report)
	case "txt", "text", "":
		return ExportToText(report)
	default:
		return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, format)
	}
}

// WriteExport renders report and writes it to path.
//
// Defaults to runs_report.{ext} as the filename.
func WriteExport(report *Report, format, path string) (string, error) {
	data, err := Export(report, format)
	if err != nil {
		return "", err
	}

	if path == "" {
		path = "runs_report." + extension(format)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}

	return path, nil
}

func extension(format string) string {
	switch format {
	case "csv":
		return "csv"
	case "md", "markdown":
		return "md"
	default:
		return "txt"
	}
}

func formatTimestamp(ts *models.Timestamp) string {
	if ts == nil || ts.IsZero() {
		return ""
	}
	return ts.Format(models.TimestampLayout)
}

func remaining(seconds *int64) string {
	if seconds == nil {
		return "-"
	}
	return (time.Duration(*seconds) * time.Second).String()
}

func escapePipes(s string) string {
	var buf bytes.Buffer
	for _, r := range s {
		switch r {
		case '|':
			buf.WriteString(`\|`)
		case '\n':
			buf.WriteByte(' ')
		default:
			buf.WriteRune(r)
		}
	}
	return buf.String()
}
