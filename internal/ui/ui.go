package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/evalwatch/internal/models"
	"github.com/desertthunder/evalwatch/internal/presenter"
)

const maxBarWidth = 60

// Model represents the TUI state of the progress page.
type Model struct {
	visible bool
	frame   presenter.Frame
	notice  *presenter.TokenNotice
	banner  *Banner
	alert   string
	final   *models.ProgressEvent

	bar     progress.Model
	spinner spinner.Model
	help    help.Model
	keys    keyMap

	onHide func()
	onOpen func(url string) error
}

// NewModel creates the progress model. onHide runs when the user dismisses the
// progress panel and onOpen when they ask for the token management page.
func NewModel(onHide func(), onOpen func(url string) error) *Model {
	return &Model{
		bar:     progress.New(progress.WithSolidFill(styles.Color(presenter.TonePrimary)), progress.WithWidth(40)),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		help:    help.New(),
		keys:    newKeyMap(),
		onHide:  onHide,
		onOpen:  onOpen,
	}
}

// Init starts the spinner.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = max(10, min(msg.Width-8, maxBarWidth))
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}
	return m, nil
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.hide):
		if !m.visible || m.onHide == nil {
			return m, nil
		}
		hide := m.onHide
		return m, func() tea.Msg {
			hide()
			return nil
		}

	case key.Matches(msg, m.keys.open):
		url := m.managementURL()
		if url == "" || m.onOpen == nil {
			return m, nil
		}
		open := m.onOpen
		return m, func() tea.Msg {
			if err := open(url); err != nil {
				return alertMsg(fmt.Sprintf("Could not open %s: %v", url, err))
			}
			return nil
		}

	case key.Matches(msg, m.keys.help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgShow:
		m.visible = true
		m.notice = nil
		m.banner = nil
		m.alert = ""
		m.final = nil
	case MsgHide:
		m.visible = false
	case MsgFrame:
		m.frame = msg.data.(presenter.Frame)
		m.notice = nil
		m.bar.FullColor = styles.Color(m.frame.Tone)
	case MsgTokenError:
		n := msg.data.(presenter.TokenNotice)
		m.notice = &n
	case MsgTokenBanner:
		b := msg.data.(Banner)
		m.banner = &b
	case MsgAlert:
		m.alert = msg.data.(string)
	case MsgRefresh:
		ev := msg.data.(models.ProgressEvent)
		m.final = &ev
	case MsgDone:
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) managementURL() string {
	switch {
	case m.notice != nil:
		return m.notice.ManagementURL
	case m.banner != nil:
		return m.banner.ManagementURL
	default:
		return ""
	}
}

// View renders the current state.
func (m *Model) View() string {
	var sections []string

	if m.visible {
		if m.notice != nil {
			sections = append(sections, styles.panel.Render(m.noticeView()))
		} else {
			sections = append(sections, styles.panel.Render(m.frameView()))
		}
	}
	if m.banner != nil {
		sections = append(sections, m.bannerView())
	}
	if m.final != nil {
		sections = append(sections, styles.help.Render("Last update: ")+m.final.Summary())
	}
	if m.alert != "" {
		sections = append(sections, styles.err.Render(m.alert))
	}

	sections = append(sections, m.help.View(m.keys))
	return strings.Join(sections, "\n\n") + "\n"
}

func (m *Model) frameView() string {
	f := m.frame
	title := styles.title.Render(f.Title)
	if f.Animated {
		title = m.spinner.View() + " " + title
	}

	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(m.bar.ViewAs(float64(f.Percent) / 100))
	b.WriteString("\n")
	b.WriteString(styles.Tone(f.Tone).Render(f.ProgressText))
	b.WriteString("\n\n")
	b.WriteString(f.StatusText)
	b.WriteString("\n")
	b.WriteString(styles.help.Render(f.TimeText))
	return b.String()
}

func (m *Model) noticeView() string {
	n := m.notice

	var b strings.Builder
	b.WriteString(styles.title.Render("🔐 " + n.Title))
	b.WriteString("\n")
	b.WriteString(styles.warn.Render(n.ProgressText))
	b.WriteString("\n\n")
	b.WriteString(styles.err.Render(n.StatusTitle))
	b.WriteString("\n")
	b.WriteString(n.Detail)
	if n.Message != "" {
		b.WriteString("\n\n")
		b.WriteString(n.Message)
	}
	if n.ManagementURL != "" {
		fmt.Fprintf(&b, "\n\nRefresh your token at %s (press o)", n.ManagementURL)
	}
	return b.String()
}

func (m *Model) bannerView() string {
	banner := m.banner

	var b strings.Builder
	b.WriteString(styles.err.Render("🔐 " + banner.Message))
	if len(banner.Instructions) > 0 {
		b.WriteString("\n")
		b.WriteString(banner.Instructions.String())
	}
	if banner.ManagementURL != "" {
		fmt.Fprintf(&b, "\n\nToken management: %s (press o)", banner.ManagementURL)
	}
	return b.String()
}

// TerminalPage is a full-screen bubbletea rendering of the progress view.
//
// Its methods may be called from any goroutine; each one is delivered to the
// program as a message.
type TerminalPage struct {
	model   *Model
	program *tea.Program
	send    func(tea.Msg)
}

// TerminalOptions configures a [TerminalPage].
type TerminalOptions struct {
	Input  io.Reader
	Output io.Writer
	OnHide func()
	OnOpen func(url string) error
}

// NewTerminalPage creates a page; call [TerminalPage.Run] to start it.
func NewTerminalPage(opts TerminalOptions) *TerminalPage {
	model := NewModel(opts.OnHide, opts.OnOpen)

	var programOpts []tea.ProgramOption
	if opts.Input != nil {
		programOpts = append(programOpts, tea.WithInput(opts.Input))
	}
	if opts.Output != nil {
		programOpts = append(programOpts, tea.WithOutput(opts.Output))
	}

	program := tea.NewProgram(model, programOpts...)
	return &TerminalPage{model: model, program: program, send: program.Send}
}

// Run blocks until the user quits or [TerminalPage.Quit] is called.
func (p *TerminalPage) Run() error {
	_, err := p.program.Run()
	return err
}

// Quit stops the program.
func (p *TerminalPage) Quit() { p.send(doneMsg()) }

func (p *TerminalPage) Show()                                    { p.send(showMsg()) }
func (p *TerminalPage) Hide()                                    { p.send(hideMsg()) }
func (p *TerminalPage) Render(f presenter.Frame)                 { p.send(frameMsg(f)) }
func (p *TerminalPage) RenderTokenError(n presenter.TokenNotice) { p.send(tokenErrorMsg(n)) }

// ShowTokenBanner shows the token-expired notice of a rejected execute request.
func (p *TerminalPage) ShowTokenBanner(message string, instructions models.Instructions, managementURL string) {
	p.send(tokenBannerMsg(Banner{Message: message, Instructions: instructions, ManagementURL: managementURL}))
}

// Alert shows a one-line error.
func (p *TerminalPage) Alert(text string) { p.send(alertMsg(text)) }

// Refresh shows the run's state as fetched after dismissal.
func (p *TerminalPage) Refresh(ev models.ProgressEvent) { p.send(refreshMsg(ev)) }
