// Package messaging contains the per-encadrement message channel: an
// append-only, totally ordered log of messages between the student and the
// teacher, with per-message read state. This is a pure domain layer with
// zero external dependencies beyond the shared kernel.
package messaging

import (
	"strings"
	"time"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
)

// MaxContentLength bounds a single message. Long-form material goes through
// the resource registry instead.
const MaxContentLength = 4000

// Message is one entry in an encadrement's channel. Immutable once created
// except for the Read flag, which only the recipient may set.
//
// CreatedAt is assigned by the store, not the client: it defines the total
// order of the channel. Two messages sent concurrently by the two parties
// are ordered by arrival at the store, not by client clocks.
type Message struct {
	ID            string
	EncadrementID shared.EncadrementID
	SenderID      shared.UserID
	RecipientID   shared.UserID
	Content       string
	Read          bool
	CreatedAt     time.Time
}

// New creates a message addressed from the sender to the other party of the
// encadrement. CreatedAt stays zero here; the repository fills it with the
// store-assigned timestamp on append.
func New(id string, encadrementID shared.EncadrementID, senderID, recipientID shared.UserID, content string) (*Message, error) {
	if id == "" {
		return nil, shared.NewDomainError("messaging", "New", shared.ErrInvalidID, "invalid message ID")
	}
	if encadrementID.IsEmpty() {
		return nil, shared.NewDomainError("messaging", "New", shared.ErrInvalidID, "encadrement ID is required")
	}
	if !senderID.IsValid() || !recipientID.IsValid() {
		return nil, shared.NewDomainError("messaging", "New", shared.ErrInvalidID, "sender and recipient IDs are required")
	}
	if senderID == recipientID {
		return nil, shared.NewDomainError("messaging", "New", shared.ErrInvalidInput, "sender and recipient must differ")
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, shared.NewDomainError("messaging", "New", shared.ErrEmptyValue, "message content cannot be empty")
	}
	if len(content) > MaxContentLength {
		return nil, shared.NewDomainError("messaging", "New", shared.ErrValueOutOfRange, "message content too long")
	}

	return &Message{
		ID:            id,
		EncadrementID: encadrementID,
		SenderID:      senderID,
		RecipientID:   recipientID,
		Content:       content,
	}, nil
}

// MarkRead flips the read flag for the given reader. Only the recipient may
// read a message; marking an already-read message is a no-op.
func (m *Message) MarkRead(readerID shared.UserID) error {
	if readerID != m.RecipientID {
		return shared.ErrNotRecipient
	}
	m.Read = true
	return nil
}
