package broker

import (
	"context"
	"fmt"
	"sync"

	redis "github.com/redis/go-redis/v9"

	"alertmesh/internal/logger"
)

// Handler consumes one delivered event payload.
type Handler func(payload map[string]interface{})

// Binding is one (topic, event, handler) registration on a Conn.
type Binding struct {
	topic   string
	event   string
	handler Handler
}

// Conn is one live subscriber connection to the broker. It multiplexes
// any number of topic subscriptions and event bindings over a single
// Redis pub/sub socket.
type Conn struct {
	client  *redis.Client
	pubsub  *redis.PubSub
	cluster string

	mu       sync.Mutex
	bindings map[string]map[string][]*Binding // topic -> event -> handlers
}

// Dial opens a subscriber connection. The returned Conn delivers
// nothing until topics are subscribed and handlers bound.
func Dial(ctx context.Context, cfg Config) (*Conn, error) {
	cfg.applyDefaults()

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping broker: %w", err)
	}

	c := &Conn{
		client:   client,
		pubsub:   client.Subscribe(ctx),
		cluster:  cfg.Cluster,
		bindings: make(map[string]map[string][]*Binding),
	}

	go c.dispatchLoop()
	return c, nil
}

// Subscribe starts wire-level delivery for a topic.
func (c *Conn) Subscribe(ctx context.Context, topic string) error {
	if err := c.pubsub.Subscribe(ctx, channelName(c.cluster, topic)); err != nil {
		return fmt.Errorf("subscribe topic %s: %w", topic, err)
	}
	return nil
}

// Unsubscribe stops wire-level delivery for a topic. The connection
// itself stays open.
func (c *Conn) Unsubscribe(ctx context.Context, topic string) error {
	if err := c.pubsub.Unsubscribe(ctx, channelName(c.cluster, topic)); err != nil {
		return fmt.Errorf("unsubscribe topic %s: %w", topic, err)
	}
	return nil
}

// Bind registers a handler for an event on a topic.
func (c *Conn) Bind(topic, event string, h Handler) *Binding {
	b := &Binding{topic: topic, event: event, handler: h}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bindings[topic] == nil {
		c.bindings[topic] = make(map[string][]*Binding)
	}
	c.bindings[topic][event] = append(c.bindings[topic][event], b)
	return b
}

// Unbind removes a single binding and reports how many bindings remain
// on its topic, so the caller can decide whether to unsubscribe it.
func (c *Conn) Unbind(b *Binding) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	events := c.bindings[b.topic]
	if events == nil {
		return 0
	}
	list := events[b.event]
	for i, cand := range list {
		if cand == b {
			events[b.event] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(events[b.event]) == 0 {
		delete(events, b.event)
	}

	remaining := 0
	for _, list := range events {
		remaining += len(list)
	}
	if remaining == 0 {
		delete(c.bindings, b.topic)
	}
	return remaining
}

// Close tears the connection down. Only the owner of the Conn may call
// this; unsubscribing handlers never does.
func (c *Conn) Close() error {
	if err := c.pubsub.Close(); err != nil {
		logger.Warnf("Failed to close pubsub: %v", err)
	}
	return c.client.Close()
}

func (c *Conn) dispatchLoop() {
	for msg := range c.pubsub.Channel() {
		env, err := decodeEnvelope([]byte(msg.Payload))
		if err != nil {
			logger.Warnf("Failed to decode broker envelope: %v", err)
			continue
		}

		topic := topicFromChannel(c.cluster, msg.Channel)
		for _, h := range c.handlersFor(topic, env.Event) {
			h(env.Data)
		}
	}
}

func (c *Conn) handlersFor(topic, event string) []Handler {
	c.mu.Lock()
	defer c.mu.Unlock()

	events := c.bindings[topic]
	if events == nil {
		return nil
	}
	list := events[event]
	out := make([]Handler, len(list))
	for i, b := range list {
		out[i] = b.handler
	}
	return out
}
