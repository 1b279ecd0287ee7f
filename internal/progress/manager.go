package progress

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/evalwatch/internal/models"
	"github.com/desertthunder/evalwatch/internal/shared"
)

const (
	DefaultRetryDelay  = 5 * time.Second
	DefaultTopicPrefix = "/topic/progress/"
)

// Options configures a [Manager]. Transport is required.
type Options struct {
	Transport   Transport
	Scheduler   shared.Scheduler
	Logger      *log.Logger
	TopicPrefix string
	RetryDelay  time.Duration
}

// Manager owns the broker connection and the per-run subscriptions.
type Manager struct {
	transport   Transport
	scheduler   shared.Scheduler
	logger      *log.Logger
	topicPrefix string
	retryDelay  time.Duration

	mu         sync.Mutex
	ctx        context.Context
	session    Session
	connecting bool
	stopped    bool
	onReady    func()
	retry      shared.Timer
	subs       map[string]Subscription
}

// NewManager creates a disconnected manager.
func NewManager(opts Options) *Manager {
	m := &Manager{
		transport:   opts.Transport,
		scheduler:   opts.Scheduler,
		logger:      opts.Logger,
		topicPrefix: opts.TopicPrefix,
		retryDelay:  opts.RetryDelay,
		subs:        make(map[string]Subscription),
	}
	if m.scheduler == nil {
		m.scheduler = shared.RealScheduler{}
	}
	if m.logger == nil {
		m.logger = shared.NewLogger(nil)
	}
	m.logger = shared.WithLogger(m.logger, "component", "progress")
	if m.topicPrefix == "" {
		m.topicPrefix = DefaultTopicPrefix
	}
	if !strings.HasSuffix(m.topicPrefix, "/") {
		m.topicPrefix += "/"
	}
	if m.retryDelay <= 0 {
		m.retryDelay = DefaultRetryDelay
	}
	return m
}

// Topic returns the destination carrying events for runID.
func (m *Manager) Topic(runID string) string {
	return m.topicPrefix + runID
}

// BroadcastTopic returns the destination carrying every run's events.
func (m *Manager) BroadcastTopic() string {
	return strings.TrimSuffix(m.topicPrefix, "/")
}

// Connect establishes the broker session and calls onReady once it is up.
//
// When already connected onReady runs immediately. A failed attempt schedules
// another after the retry delay, indefinitely, and the first failure is returned.
// onReady is kept and called again after every reconnect.
func (m *Manager) Connect(ctx context.Context, onReady func()) error {
	m.mu.Lock()
	if m.session != nil {
		m.onReady = onReady
		m.mu.Unlock()
		if onReady != nil {
			onReady()
		}
		return nil
	}

	m.onReady = onReady
	m.stopped = false
	if m.connecting {
		m.mu.Unlock()
		return nil
	}
	m.connecting = true
	m.ctx = ctx
	m.mu.Unlock()

	return m.dial(ctx)
}

func (m *Manager) dial(ctx context.Context) error {
	sess, err := m.transport.Dial(ctx)

	m.mu.Lock()
	if m.stopped {
		m.connecting = false
		m.mu.Unlock()
		if sess != nil {
			_ = sess.Close()
		}
		return shared.ErrNotConnected
	}

	if err != nil {
		m.logger.Warn("connection failed, retrying", "delay", m.retryDelay, "error", err)
		m.scheduleRetryLocked()
		m.mu.Unlock()
		return fmt.Errorf("%w: %w", shared.ErrTransportFailure, err)
	}

	m.session = sess
	m.connecting = false
	onReady := m.onReady
	m.mu.Unlock()

	m.logger.Info("connected to progress broker")
	go m.watch(sess)

	if onReady != nil {
		onReady()
	}
	return nil
}

func (m *Manager) scheduleRetryLocked() {
	if m.retry != nil {
		m.retry.Stop()
	}
	m.retry = m.scheduler.AfterFunc(m.retryDelay, m.reconnect)
}

func (m *Manager) reconnect() {
	m.mu.Lock()
	m.retry = nil
	if m.stopped || m.session != nil {
		m.mu.Unlock()
		return
	}
	ctx := m.ctx
	if ctx != nil && ctx.Err() != nil {
		m.connecting = false
		m.mu.Unlock()
		m.logger.Debug("abandoning reconnect", "error", ctx.Err())
		return
	}
	m.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	_ = m.dial(ctx)
}

// watch schedules a reconnect when sess ends without a Disconnect.
func (m *Manager) watch(sess Session) {
	<-sess.Done()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != sess {
		return
	}

	m.session = nil
	m.subs = make(map[string]Subscription)
	if m.stopped {
		return
	}

	m.logger.Warn("connection lost, reconnecting", "delay", m.retryDelay)
	m.connecting = true
	m.scheduleRetryLocked()
}

// Subscribe subscribes onMessage to the run's topic, replacing any existing
// subscription for the same run.
//
// It requires an established connection; otherwise it logs and returns
// [shared.ErrSubscriptionUnavailable] without queuing.
func (m *Manager) Subscribe(runID string, onMessage func(models.ProgressEvent)) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		m.logger.Warn("cannot subscribe, not connected", "run", runID)
		return nil, fmt.Errorf("%w: run %s: %w", shared.ErrSubscriptionUnavailable, runID, shared.ErrNotConnected)
	}

	if old, ok := m.subs[runID]; ok {
		delete(m.subs, runID)
		if err := old.Unsubscribe(); err != nil {
			m.logger.Debug("unsubscribe of replaced subscription failed", "run", runID, "error", err)
		}
	}

	sub, err := m.session.Subscribe(m.Topic(runID), m.decoder(onMessage))
	if err != nil {
		m.logger.Warn("subscribe failed", "run", runID, "error", err)
		return nil, fmt.Errorf("%w: run %s: %w", shared.ErrSubscriptionUnavailable, runID, err)
	}

	m.subs[runID] = sub
	m.logger.Debug("subscribed", "run", runID, "topic", m.Topic(runID))
	return sub, nil
}

// SubscribeAll subscribes onMessage to the broadcast topic. The handle is not tracked.
func (m *Manager) SubscribeAll(onMessage func(models.ProgressEvent)) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		m.logger.Warn("cannot subscribe to broadcast, not connected")
		return nil, fmt.Errorf("%w: %w", shared.ErrSubscriptionUnavailable, shared.ErrNotConnected)
	}

	sub, err := m.session.Subscribe(m.BroadcastTopic(), m.decoder(onMessage))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrSubscriptionUnavailable, err)
	}
	return sub, nil
}

func (m *Manager) decoder(onMessage func(models.ProgressEvent)) func([]byte) {
	return func(body []byte) {
		ev, err := models.DecodeProgressEvent(body)
		if err != nil {
			m.logger.Warn("dropping undecodable message", "error", err)
			return
		}
		onMessage(ev)
	}
}

// Unsubscribe releases the run's subscription; no-op when absent.
func (m *Manager) Unsubscribe(runID string) {
	m.mu.Lock()
	sub, ok := m.subs[runID]
	delete(m.subs, runID)
	m.mu.Unlock()

	if !ok {
		return
	}
	if err := sub.Unsubscribe(); err != nil {
		m.logger.Debug("unsubscribe failed", "run", runID, "error", err)
	}
}

// Subscribed reports whether a subscription is tracked for runID.
func (m *Manager) Subscribed(runID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.subs[runID]
	return ok
}

// Disconnect releases every subscription, closes the session and cancels any pending reconnect.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.stopped = true
	m.connecting = false
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
	subs := m.subs
	m.subs = make(map[string]Subscription)
	sess := m.session
	m.session = nil
	m.mu.Unlock()

	if sess == nil {
		return
	}

	for runID, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			m.logger.Debug("unsubscribe failed", "run", runID, "error", err)
		}
	}
	if err := sess.Close(); err != nil {
		m.logger.Debug("close failed", "error", err)
	}
	m.logger.Info("disconnected from progress broker")
}

// IsConnected reports whether a session is established.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil
}
