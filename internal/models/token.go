package models

import "strings"

// lockMarkers are the lock emoji prefixed to token failures, plus the forms it
// takes after being decoded as Latin-1 or Mac Roman.
var lockMarkers = []string{"🔐", "ðŸ”�", "ðŸ”", "üîê"}

// IsTokenError reports whether a FAILED event describes an expired or invalid token.
//
// The check is a text heuristic over the message; events from producers that
// tag errors with [ErrorTypeTokenExpired] should be routed before reaching it.
func IsTokenError(ev ProgressEvent) bool {
	if ev.Status != StatusFailed {
		return false
	}
	return IsTokenMessage(ev.Message)
}

// IsTokenMessage applies the token heuristic to a bare message.
func IsTokenMessage(msg string) bool {
	m := strings.ToLower(msg)
	if strings.Contains(m, "token") && (strings.Contains(m, "expired") || strings.Contains(m, "invalid")) {
		return true
	}
	if strings.Contains(m, "401") || strings.Contains(m, "unauthorized") {
		return true
	}
	for _, marker := range lockMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
