package query

import (
	"context"
	"time"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/messaging"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST MESSAGES QUERY
// Returns a channel's history in creation order, plus the reader's unread
// count. History stays readable after cancellation; only writing closes.
// ══════════════════════════════════════════════════════════════════════════════

// ListMessagesQuery contains the lookup parameters.
type ListMessagesQuery struct {
	// EncadrementID is the channel to read.
	EncadrementID string

	// ReaderID is the account reading the channel; it drives the unread
	// count and the IsMine flag on each message.
	ReaderID string

	// Limit caps the number of messages returned, most recent tail of the
	// channel. Zero or negative means the full history.
	Limit int
}

// Validate validates the query parameters.
func (q *ListMessagesQuery) Validate() error {
	if q.EncadrementID == "" {
		return shared.NewDomainError("query", "ListMessages", shared.ErrEmptyValue, "encadrement_id is required")
	}
	if q.ReaderID == "" {
		return shared.NewDomainError("query", "ListMessages", shared.ErrEmptyValue, "reader_id is required")
	}
	return nil
}

// MessageDTO is the read model of one message.
type MessageDTO struct {
	MessageID   string    `json:"message_id"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	Content     string    `json:"content"`
	Read        bool      `json:"read"`
	IsMine      bool      `json:"is_mine"`
	SentAt      time.Time `json:"sent_at"`
}

// ListMessagesResult contains the query result.
type ListMessagesResult struct {
	Messages    []MessageDTO `json:"messages"`
	Total       int          `json:"total"`
	UnreadCount int          `json:"unread_count"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// ListMessagesHandler handles ListMessagesQuery.
type ListMessagesHandler struct {
	messages messaging.Repository
}

// NewListMessagesHandler creates a new ListMessagesHandler.
func NewListMessagesHandler(messages messaging.Repository) *ListMessagesHandler {
	return &ListMessagesHandler{messages: messages}
}

// Handle executes the query.
func (h *ListMessagesHandler) Handle(ctx context.Context, query ListMessagesQuery) (*ListMessagesResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	id, err := shared.NewEncadrementID(query.EncadrementID)
	if err != nil {
		return nil, err
	}
	readerID, err := shared.NewUserID(query.ReaderID)
	if err != nil {
		return nil, err
	}

	msgs, err := h.messages.ListByChannel(ctx, id, query.Limit)
	if err != nil {
		return nil, err
	}

	unread, err := h.messages.CountUnread(ctx, id, readerID)
	if err != nil {
		return nil, err
	}

	dtos := make([]MessageDTO, len(msgs))
	for i, m := range msgs {
		dtos[i] = MessageDTO{
			MessageID:   m.ID,
			SenderID:    m.SenderID.String(),
			RecipientID: m.RecipientID.String(),
			Content:     m.Content,
			Read:        m.Read,
			IsMine:      m.SenderID == readerID,
			SentAt:      m.CreatedAt,
		}
	}

	return &ListMessagesResult{
		Messages:    dtos,
		Total:       len(dtos),
		UnreadCount: unread,
		GeneratedAt: time.Now().UTC(),
	}, nil
}
