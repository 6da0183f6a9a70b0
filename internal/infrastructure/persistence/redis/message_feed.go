package redis

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/messaging"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MESSAGE FEED (PUB/SUB)
// ══════════════════════════════════════════════════════════════════════════════

// feedEnvelope is the wire form of a message on the channel topic.
type feedEnvelope struct {
	ID            string    `json:"id"`
	EncadrementID string    `json:"encadrement_id"`
	SenderID      string    `json:"sender_id"`
	RecipientID   string    `json:"recipient_id"`
	Content       string    `json:"content"`
	CreatedAt     time.Time `json:"created_at"`
}

// MessageFeed implements messaging.Feed on top of Redis pub/sub, so chat
// subscribers on any process of the deployment see messages appended by any
// other. Delivery is at-most-once and after-subscribe only; history comes
// from the message repository, not the feed.
type MessageFeed struct {
	cache  *Cache
	logger *slog.Logger
}

// NewMessageFeed creates a new MessageFeed.
func NewMessageFeed(cache *Cache, logger *slog.Logger) *MessageFeed {
	return &MessageFeed{
		cache:  cache,
		logger: logger.With("component", "message_feed"),
	}
}

// Publish fans a freshly appended message out to the channel's subscribers.
// The message must already carry its store-assigned CreatedAt.
func (f *MessageFeed) Publish(ctx context.Context, m *messaging.Message) error {
	return f.cache.Publish(ctx, ChannelTopic(m.EncadrementID.String()), feedEnvelope{
		ID:            m.ID,
		EncadrementID: m.EncadrementID.String(),
		SenderID:      m.SenderID.String(),
		RecipientID:   m.RecipientID.String(),
		Content:       m.Content,
		CreatedAt:     m.CreatedAt,
	})
}

// Subscribe implements messaging.Feed. The delivery callback runs on the
// subscription's own goroutine; slow callbacks delay that subscriber only.
func (f *MessageFeed) Subscribe(encadrementID shared.EncadrementID, fn messaging.DeliveryFunc) (messaging.Subscription, error) {
	pubsub := f.cache.Subscribe(context.Background(), ChannelTopic(encadrementID.String()))

	sub := &feedSubscription{pubsub: pubsub}

	go func() {
		for msg := range pubsub.Channel() {
			var env feedEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				f.logger.Warn("dropping malformed feed payload",
					"encadrement_id", encadrementID.String(),
					"error", err,
				)
				continue
			}
			fn(&messaging.Message{
				ID:            env.ID,
				EncadrementID: shared.EncadrementID(env.EncadrementID),
				SenderID:      shared.UserID(env.SenderID),
				RecipientID:   shared.UserID(env.RecipientID),
				Content:       env.Content,
				CreatedAt:     env.CreatedAt,
			})
		}
	}()

	return sub, nil
}

type feedSubscription struct {
	pubsub interface{ Close() error }
	once   sync.Once
}

// Cancel closes the underlying pub/sub connection, which ends the delivery
// goroutine. Idempotent.
func (s *feedSubscription) Cancel() {
	s.once.Do(func() {
		_ = s.pubsub.Close()
	})
}
