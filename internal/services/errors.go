package services

import (
	"fmt"
	"strings"

	"github.com/desertthunder/evalwatch/internal/models"
	"github.com/desertthunder/evalwatch/internal/shared"
)

const (
	defaultTokenMessage  = "Authentication token has expired"
	defaultRunFailure    = "Failed to execute run"
	defaultNotSuccessful = "Run execution was not successful"
	formatErrorMessage   = "Server response format error. The endpoint may not be returning the expected JSON format."
	configErrorMessage   = "Server configuration error. Please check that the API endpoint is properly configured."
)

// TokenExpiredError reports that the backend rejected the run because its token expired.
type TokenExpiredError struct {
	Message      string
	Instructions models.Instructions
}

func (e *TokenExpiredError) Error() string {
	if e.Message == "" {
		return defaultTokenMessage
	}
	return e.Message
}

func (e *TokenExpiredError) Unwrap() error { return shared.ErrTokenExpired }

// RunError is any other execute failure.
type RunError struct {
	StatusCode int
	Message    string
	// Format marks responses whose body was not the expected JSON.
	Format bool
}

func (e *RunError) Error() string { return e.Message }

func (e *RunError) Unwrap() []error {
	if e.Format {
		return []error{shared.ErrRunFailed, shared.ErrResponseFormat}
	}
	return []error{shared.ErrRunFailed}
}

// FailureMessage renders err the way the execute action reports it to the user.
//
// Messages mentioning "pattern" come from a misrouted endpoint and are replaced
// with a configuration hint.
func FailureMessage(err error) string {
	msg := err.Error()
	if strings.Contains(msg, "pattern") {
		msg = configErrorMessage
	}
	return fmt.Sprintf("Failed to execute run: %s", msg)
}
