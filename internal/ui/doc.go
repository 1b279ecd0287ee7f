// Package ui renders the progress view in the terminal.
//
// Two implementations of [presenter.View] are provided:
//   - [TerminalPage] : a bubbletea program with a bordered panel, a bubbles progress bar colored
//     by the frame's tone, a spinner while the run is animated, and contextual key help
//   - [PlainPage] : a schollz/progressbar line for pipes and dumb terminals
//
// Both also show the token banner raised by a rejected execute request, one-line alerts, and the
// run summary fetched after the view auto-dismisses.
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages
// via the Msg union type. Key bindings: esc hides the panel, o opens the token management page, q quits.
package ui
