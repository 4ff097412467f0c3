// Package redis provides a Redis pub/sub implementation of the messaging
// interfaces. It mirrors the NATS client so the simulator and the engine's
// channel transports can swap brokers through configuration alone.
package redis

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/harrier-systems/harrierwatch/common/messaging"
)

// Client implements messaging.Client using Redis pub/sub.
//
// Redis pub/sub carries a bare payload per channel, so PublishMsg drops
// Reply and Metadata, Request is unsupported, and QueueSubscribe falls back
// to fan-out (Redis has no queue groups). The engine and simulator only
// need Publish and Subscribe.
type Client struct {
	rdb  *redis.Client
	mu   sync.Mutex
	subs []*subscription
}

// Config holds Redis client configuration.
type Config struct {
	// Addr is the Redis server address (e.g., "localhost:6379").
	Addr string

	// Password for authentication (optional).
	Password string

	// DB is the database number.
	DB int

	// DialTimeout is the connection timeout.
	DialTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:        "localhost:6379",
		DialTimeout: 5 * time.Second,
	}
}

// NewClient creates a new Redis messaging client and verifies connectivity.
func NewClient(cfg Config) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Publish sends a message to the specified channel.
func (c *Client) Publish(ctx context.Context, subject string, data []byte) error {
	return c.rdb.Publish(ctx, subject, data).Err()
}

// PublishMsg publishes msg.Data to msg.Subject. Reply and Metadata have no
// Redis pub/sub representation and are dropped.
func (c *Client) PublishMsg(ctx context.Context, msg *messaging.Message) error {
	return c.Publish(ctx, msg.Subject, msg.Data)
}

// Request is not supported by Redis pub/sub.
func (c *Client) Request(ctx context.Context, subject string, data []byte, timeout time.Duration) (*messaging.Message, error) {
	return nil, fmt.Errorf("request/reply not supported by redis pub/sub")
}

// Subscribe creates a subscription to the specified channel. The handler
// runs on the subscription's own goroutine, one message at a time.
func (c *Client) Subscribe(subject string, handler messaging.MessageHandler) (messaging.Subscription, error) {
	pubsub := c.rdb.Subscribe(context.Background(), subject)
	// Wait for the subscription to be confirmed so messages published
	// immediately after Subscribe returns are not lost.
	if _, err := pubsub.Receive(context.Background()); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}

	s := &subscription{pubsub: pubsub, subject: subject}
	s.valid.Store(true)
	go func() {
		for msg := range pubsub.Channel() {
			m := &messaging.Message{
				Subject:   msg.Channel,
				Data:      []byte(msg.Payload),
				Timestamp: time.Now(),
			}
			if err := handler(context.Background(), m); err != nil {
				fmt.Printf("Handler error for %s: %v\n", msg.Channel, err)
			}
		}
		s.valid.Store(false)
	}()

	c.mu.Lock()
	c.subs = append(c.subs, s)
	c.mu.Unlock()

	return s, nil
}

// QueueSubscribe falls back to a plain subscription: Redis pub/sub has no
// queue groups, so every subscriber sees every message.
func (c *Client) QueueSubscribe(subject, queue string, handler messaging.MessageHandler) (messaging.Subscription, error) {
	return c.Subscribe(subject, handler)
}

// Close releases all resources.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.subs = nil

	return c.rdb.Close()
}

// Drain closes the connection. Redis pub/sub delivers synchronously, so
// there is no in-flight backlog to wait for.
func (c *Client) Drain() error {
	return c.Close()
}

// IsConnected returns true if the client can reach the Redis server.
func (c *Client) IsConnected() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return c.rdb.Ping(ctx).Err() == nil
}

// subscription wraps a Redis pub/sub subscription.
type subscription struct {
	pubsub  *redis.PubSub
	subject string
	valid   atomic.Bool
}

func (s *subscription) Unsubscribe() error {
	s.valid.Store(false)
	return s.pubsub.Close()
}

func (s *subscription) Subject() string {
	return s.subject
}

func (s *subscription) IsValid() bool {
	return s.valid.Load()
}
