package ui

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/k0kubun/go-ansi"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/desertthunder/evalwatch/internal/models"
	"github.com/desertthunder/evalwatch/internal/presenter"
)

var toneColors = map[presenter.Tone]string{
	presenter.TonePrimary: "cyan",
	presenter.ToneSuccess: "green",
	presenter.ToneDanger:  "red",
	presenter.ToneWarning: "yellow",
}

// PlainPage renders progress as a single-line progress bar for pipes and dumb terminals.
type PlainPage struct {
	mu       sync.Mutex
	w        io.Writer
	bar      *progressbar.ProgressBar
	lastTime string
	complete bool
}

// NewPlainPage writes to w, or to an ANSI-aware stdout when w is nil.
func NewPlainPage(w io.Writer) *PlainPage {
	if w == nil {
		w = ansi.NewAnsiStdout()
	}
	return &PlainPage{w: w}
}

func (p *PlainPage) newBar() *progressbar.ProgressBar {
	return progressbar.NewOptions(100,
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription(presenter.DefaultTitle),
	)
}

// Show starts a fresh bar.
func (p *PlainPage) Show() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finishLocked()
	p.bar = p.newBar()
	p.lastTime = ""
	p.complete = false
}

// Hide finishes the bar, leaving it where the last frame put it.
func (p *PlainPage) Hide() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finishLocked()
}

// Render moves the bar and prints the time line whenever it changes.
func (p *PlainPage) Render(f presenter.Frame) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar == nil {
		p.bar = p.newBar()
	}
	p.bar.Describe(fmt.Sprintf("[%s]%s[reset] %s", toneColors[f.Tone], f.ProgressText, f.StatusText))
	_ = p.bar.Set(f.Percent)
	p.complete = f.Tone == presenter.ToneSuccess

	if f.TimeText != p.lastTime {
		p.lastTime = f.TimeText
		fmt.Fprintf(p.w, "\n  %s\n", f.TimeText)
	}
}

// RenderTokenError replaces the bar with the authentication notice.
func (p *PlainPage) RenderTokenError(n presenter.TokenNotice) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar != nil {
		_ = p.bar.Clear()
	}
	fmt.Fprintf(p.w, "\n🔐 %s\n%s: %s\n", n.Title, n.StatusTitle, n.Detail)
	if n.Message != "" {
		fmt.Fprintf(p.w, "%s\n", n.Message)
	}
	if n.ManagementURL != "" {
		fmt.Fprintf(p.w, "Refresh your token at %s\n", n.ManagementURL)
	}
}

// ShowTokenBanner prints the token-expired notice of a rejected execute request.
func (p *PlainPage) ShowTokenBanner(message string, instructions models.Instructions, managementURL string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.w, "🔐 %s\n", message)
	if len(instructions) > 0 {
		fmt.Fprintf(p.w, "%s\n", instructions)
	}
	if managementURL != "" {
		fmt.Fprintf(p.w, "Token management: %s\n", managementURL)
	}
}

// Alert prints a one-line error.
func (p *PlainPage) Alert(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "\n%s\n", text)
}

// Refresh prints the run's state as fetched after dismissal.
func (p *PlainPage) Refresh(ev models.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "%s\n", ev.Summary())
}

func (p *PlainPage) finishLocked() {
	if p.bar == nil {
		return
	}
	// Only a completed run is drawn full.
	if p.complete {
		_ = p.bar.Finish()
	} else {
		_ = p.bar.Exit()
	}
	fmt.Fprintln(p.w)
	p.bar = nil
}

// isTerminal reports whether a writer is a TTY.
var isTerminal = defaultIsTerminal

// IsTerminal reports whether w is attached to a terminal.
func IsTerminal(w io.Writer) bool {
	return isTerminal(w)
}

func defaultIsTerminal(w io.Writer) bool {
	if w == nil {
		return false
	}
	if file, ok := w.(*os.File); ok {
		return term.IsTerminal(int(file.Fd()))
	}
	if fder, ok := w.(interface{ Fd() uintptr }); ok {
		return term.IsTerminal(int(fder.Fd()))
	}
	return false
}
