package command

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/encadrement"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/session"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULE SESSION COMMAND
// Books a session against the remaining monthly quota of an encadrement.
// The quota window is the subscription's own billing cycle, never the
// calendar month.
// ══════════════════════════════════════════════════════════════════════════════

// ScheduleSessionCommand contains the data to book a session.
type ScheduleSessionCommand struct {
	// EncadrementID is the parent subscription.
	EncadrementID string

	// Date is the scheduled start instant.
	Date time.Time

	// DurationMinutes is the session length in minutes.
	DurationMinutes int

	// Subject is the chapter or topic of the session.
	Subject string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c ScheduleSessionCommand) Validate() error {
	if c.EncadrementID == "" {
		return shared.NewDomainError("command", "ScheduleSession", shared.ErrEmptyValue, "encadrement_id is required")
	}
	if c.Date.IsZero() {
		return shared.NewDomainError("command", "ScheduleSession", shared.ErrEmptyValue, "date is required")
	}
	if c.DurationMinutes <= 0 {
		return shared.NewDomainError("command", "ScheduleSession", shared.ErrValueOutOfRange, "duration must be positive")
	}
	if c.Subject == "" {
		return shared.NewDomainError("command", "ScheduleSession", shared.ErrEmptyValue, "subject is required")
	}
	return nil
}

// ScheduleSessionResult contains the result of booking a session.
type ScheduleSessionResult struct {
	SessionID     string
	EncadrementID string
	Status        session.Status
	Date          time.Time
	// QuotaUsed is the number of sessions already counted against the
	// current billing cycle, including this one.
	QuotaUsed  int
	QuotaLimit int
	Events     []shared.Event
}

// ScheduleSessionHandler handles the ScheduleSessionCommand.
type ScheduleSessionHandler struct {
	encadrements encadrement.Repository
	sessions     session.Repository
	publisher    shared.EventPublisher
	logger       *slog.Logger
	now          func() time.Time
}

// NewScheduleSessionHandler creates a new ScheduleSessionHandler.
func NewScheduleSessionHandler(encadrements encadrement.Repository, sessions session.Repository, publisher shared.EventPublisher, logger *slog.Logger) *ScheduleSessionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScheduleSessionHandler{
		encadrements: encadrements,
		sessions:     sessions,
		publisher:    publisher,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Handle executes the schedule session command.
//
// The early reads below only shape the error messages; the authoritative
// checks (parent active, quota, teacher conflict) run inside CreateChecked
// at commit, because any of them may have changed since the read.
func (h *ScheduleSessionHandler) Handle(ctx context.Context, cmd ScheduleSessionCommand) (*ScheduleSessionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	id, err := shared.NewEncadrementID(cmd.EncadrementID)
	if err != nil {
		return nil, err
	}

	enc, err := h.encadrements.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !enc.IsActive() {
		return nil, shared.NewDomainError("command", "ScheduleSession", shared.ErrSubscriptionNotActive,
			"sessions can only be scheduled on an active encadrement")
	}

	sess, err := session.New(uuid.NewString(), enc.ID, enc.UserID, enc.TeacherID,
		cmd.Date, cmd.DurationMinutes, cmd.Subject, h.now())
	if err != nil {
		return nil, err
	}

	window := enc.CurrentBillingWindow()
	if err := h.sessions.CreateChecked(ctx, sess, window, enc.SessionsPerMonth); err != nil {
		// Quota and conflict rejections surface verbatim to the caller.
		return nil, err
	}

	used, err := h.sessions.CountCreatedInWindow(ctx, id, window)
	if err != nil {
		h.logger.Warn("count quota after booking", "encadrement_id", id, "error", err)
		used = 0
	}

	event := shared.NewSessionEvent(shared.EventSessionScheduled, id.String(), sess.ID,
		sess.Status.String(), sess.Date, sess.Subject)
	if h.publisher != nil {
		if err := h.publisher.Publish(event); err != nil {
			h.logger.Error("publish session.scheduled", "session_id", sess.ID, "error", err)
		}
	}

	return &ScheduleSessionResult{
		SessionID:     sess.ID,
		EncadrementID: id.String(),
		Status:        sess.Status,
		Date:          sess.Date,
		QuotaUsed:     used,
		QuotaLimit:    enc.SessionsPerMonth,
		Events:        []shared.Event{event},
	}, nil
}
