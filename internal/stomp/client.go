package stomp

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	gostomp "github.com/go-stomp/stomp/v3"
	"github.com/gorilla/websocket"

	"github.com/desertthunder/evalwatch/internal/shared"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	receiptTimeout          = 5 * time.Second
)

// Client dials STOMP sessions over WebSocket.
type Client struct {
	url              string
	header           http.Header
	dialer           *websocket.Dialer
	handshakeTimeout time.Duration
	logger           *log.Logger
}

// ClientOptions configures a [Client]. Zero values select defaults.
type ClientOptions struct {
	// Header is sent with the WebSocket upgrade request, e.g. Authorization.
	Header           http.Header
	Dialer           *websocket.Dialer
	HandshakeTimeout time.Duration
	Logger           *log.Logger
}

// NewClient creates a client for the ws:// or wss:// endpoint rawURL.
func NewClient(rawURL string, opts ClientOptions) *Client {
	c := &Client{
		url:              rawURL,
		header:           opts.Header,
		dialer:           opts.Dialer,
		handshakeTimeout: opts.HandshakeTimeout,
		logger:           opts.Logger,
	}
	if c.dialer == nil {
		d := *websocket.DefaultDialer
		d.Subprotocols = Subprotocols
		c.dialer = &d
	}
	if c.handshakeTimeout <= 0 {
		c.handshakeTimeout = defaultHandshakeTimeout
	}
	if c.logger == nil {
		c.logger = shared.NewLogger(nil)
	}
	c.logger = shared.WithLogger(c.logger, "component", "stomp-client")
	return c
}

// URL returns the endpoint the client dials.
func (c *Client) URL() string { return c.url }

// Dial opens the WebSocket and performs the CONNECT handshake.
func (c *Client) Dial(ctx context.Context) (*Session, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid url %q: %v", shared.ErrTransportFailure, c.url, err)
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.url, c.header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", shared.ErrTransportFailure, c.url, err)
	}
	ws := newWSConn(conn)

	deadline := time.Now().Add(c.handshakeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	ws.SetDeadline(deadline)
	stop := context.AfterFunc(ctx, func() { ws.Close() })

	sc, err := gostomp.Connect(ws,
		gostomp.ConnOpt.Host(u.Hostname()),
		gostomp.ConnOpt.HeartBeat(0, 0),
		gostomp.ConnOpt.Logger(stompLogger{c.logger}),
	)
	if !stop() && err == nil {
		err = ctx.Err()
	}
	if err != nil {
		ws.Close()
		return nil, fmt.Errorf("%w: %v", ErrHandshake, err)
	}
	ws.SetDeadline(time.Time{})

	s := &Session{
		conn:   sc,
		ws:     ws,
		logger: c.logger,
	}
	c.logger.Debug("connected", "url", c.url, "version", sc.Version(), "session", sc.Session())
	return s, nil
}

// Session is an established STOMP connection.
type Session struct {
	conn    *gostomp.Conn
	ws      *wsConn
	logger  *log.Logger
	closing atomic.Bool
}

// Subscription is an active SUBSCRIBE on a [Session].
type Subscription struct {
	session *Session
	sub     *gostomp.Subscription
	once    sync.Once
}

// ID returns the subscription id sent to the server.
func (s *Subscription) ID() string { return s.sub.Id() }

// Destination returns the subscribed destination.
func (s *Subscription) Destination() string { return s.sub.Destination() }

// Unsubscribe stops delivery and waits for the server's receipt. Repeated calls are no-ops.
func (s *Subscription) Unsubscribe() error {
	var err error
	s.once.Do(func() {
		if s.session.ended() {
			return
		}
		err = s.session.await("unsubscribe "+s.sub.Id(), func() error { return s.sub.Unsubscribe() })
	})
	return err
}

// ID returns the server-assigned session id, if any.
func (s *Session) ID() string { return s.conn.Session() }

// Done is closed when the session ends, either by [Session.Close] or by the transport.
func (s *Session) Done() <-chan struct{} { return s.ws.Done() }

// Err returns the reason the session ended; nil after a clean [Session.Close] or while open.
//
// A session the server hung up on after an ERROR frame reports [ErrServerError].
func (s *Session) Err() error {
	if !s.ended() {
		return nil
	}
	if s.closing.Load() {
		return nil
	}
	if err := s.ws.Err(); err != nil {
		return err
	}
	return ErrServerError
}

func (s *Session) ended() bool {
	select {
	case <-s.ws.Done():
		return true
	default:
		return false
	}
}

// Subscribe registers handler for MESSAGE frames sent to destination.
//
// Each subscription delivers on its own goroutine in arrival order.
func (s *Session) Subscribe(destination string, handler func(body []byte)) (*Subscription, error) {
	if s.closing.Load() || s.ended() {
		return nil, ErrSessionClosed
	}

	sub, err := s.conn.Subscribe(destination, gostomp.AckAuto)
	if err != nil {
		return nil, fmt.Errorf("%w: subscribe %s: %v", shared.ErrTransportFailure, destination, err)
	}

	go func() {
		for msg := range sub.C {
			if msg.Err != nil {
				s.logger.Debug("subscription ended", "destination", destination, "error", msg.Err)
				continue
			}
			handler(msg.Body)
		}
	}()
	return &Subscription{session: s, sub: sub}, nil
}

// Send publishes body to destination as a SEND frame.
func (s *Session) Send(destination, contentType string, body []byte) error {
	if s.closing.Load() || s.ended() {
		return ErrSessionClosed
	}
	if err := s.conn.Send(destination, contentType, body); err != nil {
		return fmt.Errorf("%w: send to %s: %v", shared.ErrTransportFailure, destination, err)
	}
	return nil
}

// Close sends DISCONNECT, waits briefly for the receipt and closes the WebSocket.
func (s *Session) Close() error {
	if s.closing.Swap(true) {
		return nil
	}
	if s.ended() {
		_ = s.conn.MustDisconnect()
		return nil
	}

	err := s.await("disconnect", s.conn.Disconnect)
	if err != nil {
		_ = s.conn.MustDisconnect()
	}
	s.ws.Close()
	return err
}

// await runs a receipt-bound exchange, giving up when the session ends or the
// server stays silent.
func (s *Session) await(what string, exchange func() error) error {
	errc := make(chan error, 1)
	go func() { errc <- exchange() }()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("%w: %s: %v", shared.ErrTransportFailure, what, err)
		}
		return nil
	case <-s.ws.Done():
		return nil
	case <-time.After(receiptTimeout):
		return fmt.Errorf("%w: %s: no receipt after %s", shared.ErrTransportFailure, what, receiptTimeout)
	}
}

// stompLogger routes go-stomp's own logging into the component logger.
type stompLogger struct {
	l *log.Logger
}

func (s stompLogger) Debugf(format string, v ...interface{})   { s.l.Debugf(format, v...) }
func (s stompLogger) Infof(format string, v ...interface{})    { s.l.Debugf(format, v...) }
func (s stompLogger) Warningf(format string, v ...interface{}) { s.l.Warnf(format, v...) }
func (s stompLogger) Errorf(format string, v ...interface{})   { s.l.Errorf(format, v...) }
func (s stompLogger) Debug(msg string)                         { s.l.Debug(msg) }
func (s stompLogger) Info(msg string)                          { s.l.Debug(msg) }
func (s stompLogger) Warning(msg string)                       { s.l.Warn(msg) }
func (s stompLogger) Error(msg string)                         { s.l.Error(msg) }
