package command

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/encadrement"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/messaging"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MESSAGING COMMANDS
// Append a message to an encadrement's channel and mark one read. The channel
// stays open while the encadrement is active or paused; cancellation closes
// it for writing but history remains readable.
// ══════════════════════════════════════════════════════════════════════════════

// SendMessageCommand contains the data to append a message.
type SendMessageCommand struct {
	// EncadrementID is the channel to post into.
	EncadrementID string

	// SenderID must be one of the two channel participants; the other one
	// becomes the recipient.
	SenderID string

	// Content is the message body.
	Content string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c SendMessageCommand) Validate() error {
	if c.EncadrementID == "" {
		return shared.NewDomainError("command", "SendMessage", shared.ErrEmptyValue, "encadrement_id is required")
	}
	if c.SenderID == "" {
		return shared.NewDomainError("command", "SendMessage", shared.ErrEmptyValue, "sender_id is required")
	}
	if c.Content == "" {
		return shared.NewDomainError("command", "SendMessage", shared.ErrEmptyValue, "content is required")
	}
	return nil
}

// SendMessageResult contains the appended message.
type SendMessageResult struct {
	MessageID   string
	RecipientID string
	SentAt      time.Time
	Events      []shared.Event
}

// SendMessageHandler handles the SendMessageCommand.
type SendMessageHandler struct {
	encadrements encadrement.Repository
	messages     messaging.Repository
	publisher    shared.EventPublisher
	logger       *slog.Logger
}

// NewSendMessageHandler creates a new SendMessageHandler.
func NewSendMessageHandler(encadrements encadrement.Repository, messages messaging.Repository, publisher shared.EventPublisher, logger *slog.Logger) *SendMessageHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SendMessageHandler{
		encadrements: encadrements,
		messages:     messages,
		publisher:    publisher,
		logger:       logger,
	}
}

// Handle executes the send message command.
func (h *SendMessageHandler) Handle(ctx context.Context, cmd SendMessageCommand) (*SendMessageResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	id, err := shared.NewEncadrementID(cmd.EncadrementID)
	if err != nil {
		return nil, err
	}
	senderID, err := shared.NewUserID(cmd.SenderID)
	if err != nil {
		return nil, err
	}

	enc, err := h.encadrements.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	// Paused is fine: pausing interrupts billing and sessions, not the
	// conversation. Only cancellation closes the channel.
	if !enc.AcceptsMessages() {
		return nil, shared.NewDomainError("command", "SendMessage", shared.ErrSubscriptionCancelled,
			"the channel of a cancelled encadrement is read-only")
	}

	recipientID, err := enc.OtherParty(senderID)
	if err != nil {
		return nil, err
	}

	msg, err := messaging.New(uuid.NewString(), id, senderID, recipientID, cmd.Content)
	if err != nil {
		return nil, err
	}

	// Append assigns the authoritative CreatedAt; the live feed and the
	// event below both carry the store's timestamp, not ours.
	if err := h.messages.Append(ctx, msg); err != nil {
		return nil, err
	}

	event := shared.NewMessageSentEvent(id.String(), msg.ID,
		senderID.String(), recipientID.String(), msg.CreatedAt)
	if h.publisher != nil {
		if err := h.publisher.Publish(event); err != nil {
			h.logger.Error("publish message.sent", "message_id", msg.ID, "error", err)
		}
	}

	return &SendMessageResult{
		MessageID:   msg.ID,
		RecipientID: recipientID.String(),
		SentAt:      msg.CreatedAt,
		Events:      []shared.Event{event},
	}, nil
}

// ─────────────────────────────────────────────────────────────────────────────

// MarkMessageReadCommand marks one message as read by its recipient.
type MarkMessageReadCommand struct {
	// MessageID is the message to mark.
	MessageID string

	// ReaderID must match the stored recipient.
	ReaderID string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c MarkMessageReadCommand) Validate() error {
	if c.MessageID == "" {
		return shared.NewDomainError("command", "MarkMessageRead", shared.ErrEmptyValue, "message_id is required")
	}
	if c.ReaderID == "" {
		return shared.NewDomainError("command", "MarkMessageRead", shared.ErrEmptyValue, "reader_id is required")
	}
	return nil
}

// MarkMessageReadHandler handles the MarkMessageReadCommand.
type MarkMessageReadHandler struct {
	messages  messaging.Repository
	publisher shared.EventPublisher
	logger    *slog.Logger
}

// NewMarkMessageReadHandler creates a new MarkMessageReadHandler.
func NewMarkMessageReadHandler(messages messaging.Repository, publisher shared.EventPublisher, logger *slog.Logger) *MarkMessageReadHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MarkMessageReadHandler{
		messages:  messages,
		publisher: publisher,
		logger:    logger,
	}
}

// Handle executes the mark read command. Marking an already-read message
// succeeds silently; senders marking their own message get ErrForbidden.
func (h *MarkMessageReadHandler) Handle(ctx context.Context, cmd MarkMessageReadCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	readerID, err := shared.NewUserID(cmd.ReaderID)
	if err != nil {
		return err
	}

	msg, err := h.messages.GetByID(ctx, cmd.MessageID)
	if err != nil {
		return err
	}

	if err := h.messages.MarkRead(ctx, cmd.MessageID, readerID); err != nil {
		return err
	}

	if h.publisher != nil {
		event := shared.MessageSentEvent{
			BaseEvent:   shared.NewBaseEvent(shared.EventMessageRead, msg.EncadrementID.String()),
			MessageID:   msg.ID,
			SenderID:    msg.SenderID.String(),
			RecipientID: msg.RecipientID.String(),
			SentAt:      msg.CreatedAt,
		}
		if err := h.publisher.Publish(event); err != nil {
			h.logger.Error("publish message.read", "message_id", msg.ID, "error", err)
		}
	}
	return nil
}
