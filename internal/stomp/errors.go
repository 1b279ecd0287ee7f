package stomp

import "fmt"

var (
	ErrHandshake     = fmt.Errorf("STOMP handshake failed")
	ErrSessionClosed = fmt.Errorf("STOMP session closed")
	ErrServerError   = fmt.Errorf("STOMP server error")
)
