// Package connmgr enforces the one-connection-per-process rule for the
// subscriber side of the broker. UI-facing consumers subscribe and
// unsubscribe through a Manager; none of them ever touch the connection
// directly, and removing a binding never tears the connection down.
package connmgr

import (
	"context"
	"fmt"
	"sync"

	"alertmesh/internal/broker"
	"alertmesh/internal/logger"
)

// Dialer opens the underlying broker connection.
type Dialer func(ctx context.Context) (*broker.Conn, error)

// Manager owns the single shared subscriber connection. Construct one
// per process and pass it to whatever needs live events.
type Manager struct {
	dial Dialer

	mu        sync.Mutex
	conn      *broker.Conn
	topicRefs map[string]int
}

// New creates a manager that dials with pinned connection parameters.
// The cluster identifier in cfg must match the publishing side.
func New(cfg broker.Config) *Manager {
	return NewWithDialer(func(ctx context.Context) (*broker.Conn, error) {
		return broker.Dial(ctx, cfg)
	})
}

// NewWithDialer creates a manager with a custom dialer.
func NewWithDialer(dial Dialer) *Manager {
	return &Manager{
		dial:      dial,
		topicRefs: make(map[string]int),
	}
}

// SubscribeToEvent binds a handler for (topic, event) on the shared
// connection, dialing it lazily on first use. The returned func removes
// only this binding; the topic is unsubscribed once its last binding is
// gone, and the connection always stays open. Callers re-subscribing
// (e.g. on every UI render) must release their previous binding first —
// the manager does not deduplicate.
func (m *Manager) SubscribeToEvent(ctx context.Context, topic, event string, h broker.Handler) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		conn, err := m.dial(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire broker connection: %w", err)
		}
		m.conn = conn
		logger.Infof("Broker connection established")
	}

	if m.topicRefs[topic] == 0 {
		if err := m.conn.Subscribe(ctx, topic); err != nil {
			return nil, err
		}
	}
	m.topicRefs[topic]++

	b := m.conn.Bind(topic, event, h)

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() { m.release(topic, b) })
	}
	return unsubscribe, nil
}

func (m *Manager) release(topic string, b *broker.Binding) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		return
	}
	m.conn.Unbind(b)

	m.topicRefs[topic]--
	if m.topicRefs[topic] <= 0 {
		delete(m.topicRefs, topic)
		if err := m.conn.Unsubscribe(context.Background(), topic); err != nil {
			logger.Warnf("Failed to unsubscribe topic %s: %v", topic, err)
		}
	}
}

// Close tears down the shared connection. Meant for process shutdown
// only.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		return nil
	}
	err := m.conn.Close()
	m.conn = nil
	m.topicRefs = make(map[string]int)
	return err
}
