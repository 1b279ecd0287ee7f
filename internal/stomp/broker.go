package stomp

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-stomp/stomp/v3/frame"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/desertthunder/evalwatch/internal/shared"
)

// Broker is an in-memory STOMP broker served over WebSocket.
type Broker struct {
	upgrader websocket.Upgrader
	logger   *log.Logger

	mu    sync.RWMutex
	conns map[string]*brokerConn
}

type brokerConn struct {
	id     string
	ws     *wsConn
	broker *Broker
	reader *frame.Reader

	writeMu sync.Mutex
	writer  *frame.Writer

	mu   sync.RWMutex
	subs map[string]string // subscription id -> destination
}

// NewBroker creates a broker that accepts any origin.
func NewBroker(logger *log.Logger) *Broker {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Broker{
		upgrader: websocket.Upgrader{
			Subprotocols: Subprotocols,
			CheckOrigin:  func(*http.Request) bool { return true },
		},
		logger: shared.WithLogger(logger, "component", "stomp-broker"),
		conns:  make(map[string]*brokerConn),
	}
}

// ServeHTTP upgrades the request and serves STOMP frames until the client leaves.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	ws := newWSConn(conn)
	c := &brokerConn{
		id:     uuid.NewString(),
		ws:     ws,
		broker: b,
		reader: frame.NewReader(ws),
		writer: frame.NewWriter(ws),
		subs:   make(map[string]string),
	}
	defer c.close()

	if err := c.handshake(); err != nil {
		b.logger.Warn("handshake failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	b.mu.Lock()
	b.conns[c.id] = c
	b.mu.Unlock()
	b.logger.Debug("client connected", "session", c.id, "remote", r.RemoteAddr)

	c.serve()
}

// Publish sends body as a MESSAGE to every subscription on destination and
// returns the number of deliveries.
func (b *Broker) Publish(destination string, body []byte) int {
	b.mu.RLock()
	conns := make([]*brokerConn, 0, len(b.conns))
	for _, c := range b.conns {
		conns = append(conns, c)
	}
	b.mu.RUnlock()

	delivered := 0
	for _, c := range conns {
		for _, subID := range c.subscriptionsFor(destination) {
			msg := frame.New(frame.MESSAGE,
				frame.Subscription, subID,
				frame.MessageId, uuid.NewString(),
				frame.Destination, destination,
				frame.ContentType, "application/json",
				frame.ContentLength, strconv.Itoa(len(body)),
			)
			msg.Body = body
			if err := c.write(msg); err != nil {
				b.logger.Warn("dropping subscriber", "session", c.id, "error", err)
				c.close()
				break
			}
			delivered++
		}
	}
	return delivered
}

// Subscribers counts subscriptions on destination across all connections.
func (b *Broker) Subscribers(destination string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for _, c := range b.conns {
		n += len(c.subscriptionsFor(destination))
	}
	return n
}

// Connections returns the number of connected clients.
func (b *Broker) Connections() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.conns)
}

// Close disconnects every client.
func (b *Broker) Close() {
	b.mu.Lock()
	conns := b.conns
	b.conns = make(map[string]*brokerConn)
	b.mu.Unlock()

	for _, c := range conns {
		c.close()
	}
}

func (c *brokerConn) handshake() error {
	c.ws.SetDeadline(time.Now().Add(writeTimeout))
	f, err := c.next()
	if err != nil {
		return err
	}
	c.ws.SetDeadline(time.Time{})

	if f.Command != frame.CONNECT && f.Command != frame.STOMP {
		_ = c.write(errorFrame("expected CONNECT, got " + f.Command))
		return fmt.Errorf("%w: unexpected %s frame", ErrHandshake, f.Command)
	}

	return c.write(frame.New(frame.CONNECTED,
		frame.Version, Version,
		frame.HeartBeat, "0,0",
		frame.Server, "evalwatch",
		frame.Session, c.id,
	))
}

// next reads the next frame, skipping heart-beats.
func (c *brokerConn) next() (*frame.Frame, error) {
	for {
		f, err := c.reader.Read()
		if err != nil {
			return nil, err
		}
		if f != nil {
			return f, nil
		}
	}
}

func (c *brokerConn) serve() {
	for {
		f, err := c.next()
		if err != nil {
			c.broker.logger.Debug("read ended", "session", c.id, "error", err)
			return
		}

		switch f.Command {
		case frame.SUBSCRIBE:
			id, dest := f.Header.Get(frame.Id), f.Header.Get(frame.Destination)
			if id == "" || dest == "" {
				_ = c.write(errorFrame("SUBSCRIBE requires id and destination"))
				return
			}
			c.mu.Lock()
			c.subs[id] = dest
			c.mu.Unlock()
		case frame.UNSUBSCRIBE:
			c.mu.Lock()
			delete(c.subs, f.Header.Get(frame.Id))
			c.mu.Unlock()
		case frame.SEND:
			if dest := f.Header.Get(frame.Destination); dest != "" {
				c.broker.Publish(dest, f.Body)
			}
		case frame.DISCONNECT:
			_ = c.receipt(f)
			return
		default:
			_ = c.write(errorFrame("unsupported command " + f.Command))
			return
		}

		if err := c.receipt(f); err != nil {
			c.broker.logger.Debug("receipt failed", "session", c.id, "error", err)
			return
		}
	}
}

// receipt acknowledges f when the client asked for it.
func (c *brokerConn) receipt(f *frame.Frame) error {
	id := f.Header.Get(frame.Receipt)
	if id == "" {
		return nil
	}
	return c.write(frame.New(frame.RECEIPT, frame.ReceiptId, id))
}

func (c *brokerConn) subscriptionsFor(destination string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var ids []string
	for id, dest := range c.subs {
		if dest == destination {
			ids = append(ids, id)
		}
	}
	return ids
}

func (c *brokerConn) write(f *frame.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.writer.Write(f)
}

func (c *brokerConn) close() {
	c.broker.mu.Lock()
	delete(c.broker.conns, c.id)
	c.broker.mu.Unlock()
	c.ws.Close()
}

func errorFrame(msg string) *frame.Frame {
	f := frame.New(frame.ERROR, frame.Message, msg, frame.ContentType, "text/plain")
	f.Body = []byte(msg)
	return f
}
