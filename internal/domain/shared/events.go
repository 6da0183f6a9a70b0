// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each event represents something significant that
// happened inside the tutoring subsystem; the surrounding application
// (notifications, dashboards, the live chat feed) reacts to them.
const (
	// Encadrement lifecycle events
	EventEncadrementCreated   EventType = "encadrement.created"
	EventEncadrementPaused    EventType = "encadrement.paused"
	EventEncadrementResumed   EventType = "encadrement.resumed"
	EventEncadrementCancelled EventType = "encadrement.cancelled"

	// Billing events
	EventBillingAdvanced  EventType = "billing.advanced"
	EventBillingFailed    EventType = "billing.failed"
	EventBillingAutoPause EventType = "billing.auto_paused"

	// Session events
	EventSessionScheduled EventType = "session.scheduled"
	EventSessionConfirmed EventType = "session.confirmed"
	EventSessionCompleted EventType = "session.completed"
	EventSessionCancelled EventType = "session.cancelled"
	EventSessionReminder  EventType = "session.reminder"

	// Messaging events
	EventMessageSent EventType = "message.sent"
	EventMessageRead EventType = "message.read"

	// Progress / resource events
	EventProgressUpdated EventType = "progress.updated"
	EventResourceAdded   EventType = "resource.added"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	// For everything in this subsystem that is the encadrement ID.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Encadrement Events
// ═══════════════════════════════════════════════════════════════════════════

// EncadrementCreatedEvent is emitted when a subscription is created.
type EncadrementCreatedEvent struct {
	BaseEvent
	UserID          string    `json:"user_id"`
	TeacherID       string    `json:"teacher_id"`
	Formule         string    `json:"formule"`
	NextBillingDate time.Time `json:"next_billing_date"`
}

// Payload implements Event interface.
func (e EncadrementCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":           e.UserID,
		"teacher_id":        e.TeacherID,
		"formule":           e.Formule,
		"next_billing_date": e.NextBillingDate,
	}
}

// NewEncadrementCreatedEvent creates a new EncadrementCreatedEvent.
func NewEncadrementCreatedEvent(encadrementID, userID, teacherID, formule string, nextBilling time.Time) EncadrementCreatedEvent {
	return EncadrementCreatedEvent{
		BaseEvent:       NewBaseEvent(EventEncadrementCreated, encadrementID),
		UserID:          userID,
		TeacherID:       teacherID,
		Formule:         formule,
		NextBillingDate: nextBilling,
	}
}

// StatusChangedEvent is emitted on pause, resume and cancel.
type StatusChangedEvent struct {
	BaseEvent
	From      string `json:"from"`
	To        string `json:"to"`
	Initiator string `json:"initiator,omitempty"` // user id, or "billing" for auto-pause
}

// Payload implements Event interface.
func (e StatusChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"from":      e.From,
		"to":        e.To,
		"initiator": e.Initiator,
	}
}

// NewStatusChangedEvent creates a StatusChangedEvent of the given type.
func NewStatusChangedEvent(eventType EventType, encadrementID, from, to, initiator string) StatusChangedEvent {
	return StatusChangedEvent{
		BaseEvent: NewBaseEvent(eventType, encadrementID),
		From:      from,
		To:        to,
		Initiator: initiator,
	}
}

// BillingEvent is emitted for every billing outcome fed into the subsystem.
type BillingEvent struct {
	BaseEvent
	Outcome             string    `json:"outcome"` // "success" or "failure"
	NextBillingDate     time.Time `json:"next_billing_date"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	ProviderRef         string    `json:"provider_ref,omitempty"`
}

// Payload implements Event interface.
func (e BillingEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"outcome":              e.Outcome,
		"next_billing_date":    e.NextBillingDate,
		"consecutive_failures": e.ConsecutiveFailures,
		"provider_ref":         e.ProviderRef,
	}
}

// NewBillingEvent creates a new BillingEvent.
func NewBillingEvent(eventType EventType, encadrementID, outcome string, nextBilling time.Time, failures int, providerRef string) BillingEvent {
	return BillingEvent{
		BaseEvent:           NewBaseEvent(eventType, encadrementID),
		Outcome:             outcome,
		NextBillingDate:     nextBilling,
		ConsecutiveFailures: failures,
		ProviderRef:         providerRef,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Session Events
// ═══════════════════════════════════════════════════════════════════════════

// SessionEvent is emitted on every session state transition.
type SessionEvent struct {
	BaseEvent
	SessionID string    `json:"session_id"`
	Status    string    `json:"status"`
	Date      time.Time `json:"date"`
	Subject   string    `json:"subject,omitempty"`
}

// Payload implements Event interface.
func (e SessionEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"session_id": e.SessionID,
		"status":     e.Status,
		"date":       e.Date,
		"subject":    e.Subject,
	}
}

// NewSessionEvent creates a new SessionEvent.
func NewSessionEvent(eventType EventType, encadrementID, sessionID, status string, date time.Time, subject string) SessionEvent {
	return SessionEvent{
		BaseEvent: NewBaseEvent(eventType, encadrementID),
		SessionID: sessionID,
		Status:    status,
		Date:      date,
		Subject:   subject,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Messaging Events
// ═══════════════════════════════════════════════════════════════════════════

// MessageSentEvent is emitted when a message is appended to a channel.
// The live channel feed delivers messages to subscribers off this event.
type MessageSentEvent struct {
	BaseEvent
	MessageID   string    `json:"message_id"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	SentAt      time.Time `json:"sent_at"`
}

// Payload implements Event interface.
func (e MessageSentEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"message_id":   e.MessageID,
		"sender_id":    e.SenderID,
		"recipient_id": e.RecipientID,
		"sent_at":      e.SentAt,
	}
}

// NewMessageSentEvent creates a new MessageSentEvent.
func NewMessageSentEvent(encadrementID, messageID, senderID, recipientID string, sentAt time.Time) MessageSentEvent {
	return MessageSentEvent{
		BaseEvent:   NewBaseEvent(EventMessageSent, encadrementID),
		MessageID:   messageID,
		SenderID:    senderID,
		RecipientID: recipientID,
		SentAt:      sentAt,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress / Resource Events
// ═══════════════════════════════════════════════════════════════════════════

// ProgressUpdatedEvent is emitted when a chapter progress record changes.
type ProgressUpdatedEvent struct {
	BaseEvent
	Chapter  string  `json:"chapter"`
	Progress float64 `json:"progress"`
}

// Payload implements Event interface.
func (e ProgressUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"chapter":  e.Chapter,
		"progress": e.Progress,
	}
}

// NewProgressUpdatedEvent creates a new ProgressUpdatedEvent.
func NewProgressUpdatedEvent(encadrementID, chapter string, progress float64) ProgressUpdatedEvent {
	return ProgressUpdatedEvent{
		BaseEvent: NewBaseEvent(EventProgressUpdated, encadrementID),
		Chapter:   chapter,
		Progress:  progress,
	}
}

// ResourceAddedEvent is emitted when a resource is attached to an encadrement.
type ResourceAddedEvent struct {
	BaseEvent
	ResourceID string `json:"resource_id"`
	Title      string `json:"title"`
	Type       string `json:"type"`
}

// Payload implements Event interface.
func (e ResourceAddedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"resource_id": e.ResourceID,
		"title":       e.Title,
		"type":        e.Type,
	}
}

// NewResourceAddedEvent creates a new ResourceAddedEvent.
func NewResourceAddedEvent(encadrementID, resourceID, title, resourceType string) ResourceAddedEvent {
	return ResourceAddedEvent{
		BaseEvent:  NewBaseEvent(EventResourceAdded, encadrementID),
		ResourceID: resourceID,
		Title:      title,
		Type:       resourceType,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
