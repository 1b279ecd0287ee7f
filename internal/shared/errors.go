package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Transport errors
	ErrTransportFailure        = fmt.Errorf("transport failure")
	ErrNotConnected            = fmt.Errorf("not connected")
	ErrSubscriptionUnavailable = fmt.Errorf("subscription unavailable")

	// Run execution errors
	ErrRunFailed      = fmt.Errorf("run execution failed")
	ErrTokenExpired   = fmt.Errorf("authentication token expired")
	ErrResponseFormat = fmt.Errorf("unexpected response format")
	ErrRunNotFound    = fmt.Errorf("run not found")
	ErrAPIRequest     = fmt.Errorf("API request failed")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
