package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/evalwatch/internal/models"
	"github.com/desertthunder/evalwatch/internal/presenter"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgShow MsgKind = iota
	MsgHide
	MsgFrame
	MsgTokenError
	MsgTokenBanner
	MsgAlert
	MsgRefresh
	MsgDone
)

// Banner is the token-expired notice raised by a rejected execute request.
type Banner struct {
	Message       string
	Instructions  models.Instructions
	ManagementURL string
}

// showMsg is the constructor for [MsgShow]
func showMsg() Msg { return Msg{kind: MsgShow} }

// hideMsg is the constructor for [MsgHide]
func hideMsg() Msg { return Msg{kind: MsgHide} }

// frameMsg is the constructor for [MsgFrame]
func frameMsg(f presenter.Frame) Msg { return Msg{kind: MsgFrame, data: f} }

// tokenErrorMsg is the constructor for [MsgTokenError]
func tokenErrorMsg(n presenter.TokenNotice) Msg { return Msg{kind: MsgTokenError, data: n} }

// tokenBannerMsg is the constructor for [MsgTokenBanner]
func tokenBannerMsg(b Banner) Msg { return Msg{kind: MsgTokenBanner, data: b} }

// alertMsg is the constructor for [MsgAlert]
func alertMsg(text string) Msg { return Msg{kind: MsgAlert, data: text} }

// refreshMsg is the constructor for [MsgRefresh]
func refreshMsg(ev models.ProgressEvent) Msg { return Msg{kind: MsgRefresh, data: ev} }

// doneMsg is the constructor for [MsgDone]
func doneMsg() Msg { return Msg{kind: MsgDone} }
