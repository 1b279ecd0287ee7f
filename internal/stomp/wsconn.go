package stomp

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/desertthunder/evalwatch/internal/shared"
)

const writeTimeout = 5 * time.Second

// Version is the protocol version the broker answers with.
const Version = "1.2"

// Subprotocols offered during the WebSocket handshake.
var Subprotocols = []string{"v12.stomp", "v11.stomp", "v10.stomp"}

// wsConn exposes a WebSocket as the byte stream go-stomp reads and writes.
//
// Outgoing bytes are held until they end a frame (a NUL octet) or form a
// heart-beat, then sent as one text message. Incoming messages are read back
// to back, so a frame may span messages.
type wsConn struct {
	conn *websocket.Conn

	reader io.Reader

	writeMu sync.Mutex
	pending []byte

	mu     sync.Mutex
	err    error
	closed bool
	done   chan struct{}
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{conn: conn, done: make(chan struct{})}
}

func (c *wsConn) Read(p []byte) (int, error) {
	for {
		if c.reader == nil {
			_, r, err := c.conn.NextReader()
			if err != nil {
				return 0, c.fail(err)
			}
			c.reader = r
		}

		n, err := c.reader.Read(p)
		if err == io.EOF {
			c.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		if err != nil {
			return n, c.fail(err)
		}
		return n, nil
	}
}

func (c *wsConn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.pending = append(c.pending, p...)
	if !frameEnds(c.pending) {
		return len(p), nil
	}

	msg := c.pending
	c.pending = nil
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return 0, c.fail(err)
	}
	return len(p), nil
}

// frameEnds reports whether b is a complete frame or a heart-beat.
func frameEnds(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	return b[len(b)-1] == 0 || len(bytes.Trim(b, "\r\n")) == 0
}

// Close sends a normal closure and drops the connection. Repeated calls are no-ops.
func (c *wsConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return c.conn.Close()
}

// fail records the first transport error and closes the connection.
// Errors after Close are reported as io.EOF and not recorded.
func (c *wsConn) fail(err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return io.EOF
	}
	c.closed = true
	c.err = fmt.Errorf("%w: %w", shared.ErrTransportFailure, err)
	close(c.done)
	c.conn.Close()
	return c.err
}

// Done is closed once the connection is closed or has failed.
func (c *wsConn) Done() <-chan struct{} { return c.done }

// Err returns the transport error that ended the connection, if any.
func (c *wsConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// SetDeadline bounds both directions; the zero time clears it.
func (c *wsConn) SetDeadline(t time.Time) {
	_ = c.conn.SetReadDeadline(t)
	_ = c.conn.SetWriteDeadline(t)
}
