package redis

import (
	"context"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/infrastructure/messaging"
)

// BusTransport adapts the Cache to the narrow transport interface of the
// Redis event bus, converting go-redis pub/sub messages into the bus's own
// message type.
type BusTransport struct {
	cache *Cache
}

// NewBusTransport creates a transport over an existing cache connection.
func NewBusTransport(cache *Cache) *BusTransport {
	return &BusTransport{cache: cache}
}

// Publish implements messaging.RedisClient.
func (t *BusTransport) Publish(ctx context.Context, channel string, message interface{}) error {
	return t.cache.Publish(ctx, channel, message)
}

// Subscribe implements messaging.RedisClient. The returned channel closes
// when the subscription's context is cancelled or the cache is closed.
func (t *BusTransport) Subscribe(ctx context.Context, channels ...string) (<-chan messaging.RedisMessage, error) {
	pubsub := t.cache.Subscribe(ctx, channels...)

	out := make(chan messaging.RedisMessage)
	go func() {
		defer close(out)
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-pubsub.Channel():
				if !ok {
					return
				}
				out <- messaging.RedisMessage{Channel: msg.Channel, Payload: msg.Payload}
			}
		}
	}()

	return out, nil
}

// Close implements messaging.RedisClient. The underlying cache connection is
// shared with the rest of the process, so closing the transport is a no-op;
// subscriptions end with their context.
func (t *BusTransport) Close() error {
	return nil
}
