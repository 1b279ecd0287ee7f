// Package presenter drives the progress view for a single run.
//
// [Presenter] moves through Idle → Showing → {Completing, Failing, TokenError} → Idle.
// Events for any run other than the current one are discarded. A COMPLETED event schedules
// dismissal after the completion delay and a non-token FAILED event after the failure delay;
// dismissal hides the view, releases the subscription and then calls the refresh hook.
// Token failures switch the view to an authentication notice that stays until closed.
//
// Rendering is expressed as pure [Frame] values built by [BuildFrame], so any [View]
// (terminal, plain text, test double) receives the same content.
package presenter
