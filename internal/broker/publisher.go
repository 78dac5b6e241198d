package broker

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Config configures broker access for either side.
type Config struct {
	Addr           string
	Password       string
	DB             int
	Cluster        string
	PublishTimeout time.Duration
}

func (cfg *Config) applyDefaults() {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if cfg.PublishTimeout == 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
}

// Publisher is the server-side publish capability.
type Publisher struct {
	client  *redis.Client
	cluster string
	timeout time.Duration
}

// NewPublisher creates a publisher on its own broker connection.
func NewPublisher(cfg Config) (*Publisher, error) {
	cfg.applyDefaults()

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &Publisher{
		client:  client,
		cluster: cfg.Cluster,
		timeout: cfg.PublishTimeout,
	}, nil
}

// Publish fans one event out to current subscribers of the topic.
// Fire-and-forget: success means the broker accepted the message, not
// that any subscriber received it.
func (p *Publisher) Publish(ctx context.Context, topic, event string, payload map[string]interface{}) error {
	frame, err := encodeEnvelope(event, payload)
	if err != nil {
		return fmt.Errorf("encode event envelope: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.client.Publish(ctx, channelName(p.cluster, topic), frame).Err(); err != nil {
		return fmt.Errorf("publish %s/%s: %w", topic, event, err)
	}
	return nil
}

// Close closes the publisher connection.
func (p *Publisher) Close() error {
	return p.client.Close()
}
