package messaging

import (
	"context"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
)

// Repository defines the interface for message persistence.
// This interface is implemented by the infrastructure layer.
type Repository interface {
	// Append persists a new message. The store assigns CreatedAt; the
	// repository writes it back into the message so callers and the live
	// feed see the authoritative channel order.
	Append(ctx context.Context, m *Message) error

	// GetByID returns a message by ID, or shared.ErrNotFound.
	GetByID(ctx context.Context, id string) (*Message, error)

	// MarkRead sets the read flag, conditionally on readerID matching the
	// stored recipient. Returns shared.ErrForbidden when the reader is not
	// the recipient; marking an already-read message succeeds (idempotent).
	MarkRead(ctx context.Context, id string, readerID shared.UserID) error

	// ListByChannel returns a channel's messages in creation order
	// (CreatedAt ascending), at most limit entries; limit <= 0 means all.
	ListByChannel(ctx context.Context, encadrementID shared.EncadrementID, limit int) ([]*Message, error)

	// CountUnread returns the number of unread messages addressed to the
	// reader in a channel.
	CountUnread(ctx context.Context, encadrementID shared.EncadrementID, readerID shared.UserID) (int, error)
}

// Subscription is the handle returned by Feed.Subscribe. Its sole
// capability is Cancel, which promptly stops delivery and releases the
// listener registration. Cancel is idempotent; after it returns, the
// callback may still observe at most the deliveries already in flight.
type Subscription interface {
	Cancel()
}

// DeliveryFunc receives messages of a subscribed channel in creation order.
type DeliveryFunc func(m *Message)

// Feed is the live-delivery port for chat UIs: subscribers get every message
// appended to a channel after the moment they subscribe. The registry behind
// it is process-local state, keyed by channel, and must be cleaned up on
// cancel so listeners cannot leak.
type Feed interface {
	Subscribe(encadrementID shared.EncadrementID, fn DeliveryFunc) (Subscription, error)
}
