package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// Redis is a Bus backed by Redis pub/sub, shared by every instance that
// connects to the same server and key prefix.
type Redis struct {
	client  *redis.Client
	channel string
}

// NewRedis creates a Redis bus. The bus owns client and closes it on Close.
func NewRedis(client *redis.Client, keyPrefix string) *Redis {
	if client == nil {
		panic("redis client cannot be nil for Redis bus")
	}
	if keyPrefix == "" {
		keyPrefix = "bingo:"
	}
	return &Redis{
		client:  client,
		channel: keyPrefix + "rooms",
	}
}

// Channel returns the pub/sub channel name.
func (r *Redis) Channel() string {
	return r.channel
}

// Publish sends the room id on the shared channel.
func (r *Redis) Publish(ctx context.Context, roomID string) error {
	if err := r.client.Publish(ctx, r.channel, roomID).Err(); err != nil {
		return fmt.Errorf("redis: failed to publish change for room %s: %w", roomID, err)
	}
	return nil
}

// Subscribe waits for the subscription to be confirmed before returning so
// that no publish issued afterwards is missed.
func (r *Redis) Subscribe(ctx context.Context) (<-chan string, func(), error) {
	ps := r.client.Subscribe(ctx, r.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("redis: failed to subscribe to %s: %w", r.channel, err)
	}

	out := make(chan string, 64)
	done := make(chan struct{})
	go func() {
		in := ps.Channel()
		for {
			select {
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				case <-done:
					return
				}
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			if err := ps.Close(); err != nil {
				logrus.WithError(err).WithField("channel", r.channel).Warn("failed to close redis subscription")
			}
		})
	}
	return out, cancel, nil
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}
