package presenter

import (
	"fmt"
	"math"

	"github.com/desertthunder/evalwatch/internal/models"
)

// Tone is the color intent of the progress bar.
type Tone int

const (
	TonePrimary Tone = iota
	ToneSuccess
	ToneDanger
	ToneWarning
)

func (t Tone) String() string {
	switch t {
	case ToneSuccess:
		return "success"
	case ToneDanger:
		return "danger"
	case ToneWarning:
		return "warning"
	default:
		return "primary"
	}
}

const (
	DefaultTitle   = "Execution Progress"
	InitialMessage = "Initializing execution..."

	processingText   = "Processing..."
	calculatingText  = "Calculating time remaining..."
	completedText    = "Execution completed! Page will refresh shortly..."
	failedText       = "Execution failed. Page will refresh shortly..."
	tokenTitle       = "Authentication Required"
	tokenStatusTitle = "Token Expired"
	tokenDetail      = "Your authentication token has expired. Please refresh it to continue."
)

// Frame is one rendering of the progress view.
type Frame struct {
	Title        string
	Percent      int
	Tone         Tone
	Animated     bool
	ProgressText string
	StatusText   string
	TimeText     string
}

// TokenNotice replaces the progress frame when the run failed on authentication.
type TokenNotice struct {
	Title         string
	ProgressText  string
	StatusTitle   string
	Detail        string
	Message       string
	ManagementURL string
}

// BuildFrame maps an event to its rendering.
func BuildFrame(ev models.ProgressEvent) Frame {
	pct := ClampPercent(ev.Percentage)

	f := Frame{
		Title:        DefaultTitle,
		Percent:      pct,
		Tone:         TonePrimary,
		Animated:     true,
		ProgressText: fmt.Sprintf("%d%%", pct),
		StatusText:   ev.Message,
	}

	switch ev.Status {
	case models.StatusCompleted:
		f.Tone = ToneSuccess
		f.Animated = false
	case models.StatusFailed:
		f.Tone = ToneDanger
	}

	if ev.TotalSteps > 0 {
		f.ProgressText += fmt.Sprintf(" (%d/%d)", ev.CurrentStep, ev.TotalSteps)
	}
	if f.StatusText == "" {
		f.StatusText = processingText
	}

	// Terminal statuses win over the ETA; the tracker reports 0 on completion.
	switch {
	case ev.Status == models.StatusCompleted:
		f.TimeText = completedText
	case ev.Status == models.StatusFailed:
		f.TimeText = failedText
	case ev.EstimatedTimeRemaining != nil:
		f.TimeText = FormatRemaining(*ev.EstimatedTimeRemaining)
	default:
		f.TimeText = calculatingText
	}
	return f
}

// InitialFrame is rendered when a run starts showing, before any event arrives.
func InitialFrame(runID string) Frame {
	return BuildFrame(models.ProgressEvent{
		RunID:   runID,
		Status:  models.StatusRunning,
		Message: InitialMessage,
	})
}

// NewTokenNotice builds the authentication notice for a failed event.
func NewTokenNotice(ev models.ProgressEvent, managementURL string) TokenNotice {
	return TokenNotice{
		Title:         tokenTitle,
		ProgressText:  tokenTitle,
		StatusTitle:   tokenStatusTitle,
		Detail:        tokenDetail,
		Message:       ev.Message,
		ManagementURL: managementURL,
	}
}

// ClampPercent clamps p to [0,100] and rounds it half away from zero.
func ClampPercent(p float64) int {
	if math.IsNaN(p) {
		return 0
	}
	return int(math.Round(math.Max(0, math.Min(100, p))))
}

// FormatRemaining renders seconds as "{m}m {s}s", or "{s}s" under a minute.
func FormatRemaining(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	m, s := seconds/60, seconds%60
	if m > 0 {
		return fmt.Sprintf("Estimated time remaining: %dm %ds", m, s)
	}
	return fmt.Sprintf("Estimated time remaining: %ds", s)
}
