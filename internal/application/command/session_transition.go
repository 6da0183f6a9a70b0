package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/session"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION TRANSITION COMMANDS
// Confirm, complete and cancel a session. Cancelling frees the teacher's
// calendar slot but never refunds quota for the cycle the session was
// created in.
// ══════════════════════════════════════════════════════════════════════════════

// SessionAction names a session state transition.
type SessionAction string

const (
	ActionConfirm  SessionAction = "confirm"
	ActionComplete SessionAction = "complete"
	ActionCancelS  SessionAction = "cancel"
)

// SessionTransitionCommand requests one session transition.
type SessionTransitionCommand struct {
	// SessionID is the session to transition.
	SessionID string

	// Action is the requested transition.
	Action SessionAction

	// Notes carries the teacher's completion notes; only read on complete.
	Notes string

	// MeetingURL optionally attaches a video link on confirm.
	MeetingURL string

	// InitiatorID is the account requesting the change, for the audit event.
	InitiatorID string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c SessionTransitionCommand) Validate() error {
	if c.SessionID == "" {
		return shared.NewDomainError("command", "SessionTransition", shared.ErrEmptyValue, "session_id is required")
	}
	switch c.Action {
	case ActionConfirm, ActionComplete, ActionCancelS:
		return nil
	default:
		return shared.NewDomainError("command", "SessionTransition", shared.ErrInvalidInput,
			fmt.Sprintf("unknown session action: %s", c.Action))
	}
}

// SessionTransitionResult contains the outcome of the transition.
type SessionTransitionResult struct {
	SessionID     string
	EncadrementID string
	From          session.Status
	To            session.Status
	Events        []shared.Event
}

// SessionTransitionHandler handles SessionTransitionCommand.
type SessionTransitionHandler struct {
	sessions  session.Repository
	publisher shared.EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewSessionTransitionHandler creates a new SessionTransitionHandler.
func NewSessionTransitionHandler(sessions session.Repository, publisher shared.EventPublisher, logger *slog.Logger) *SessionTransitionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionTransitionHandler{
		sessions:  sessions,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Handle executes the session transition.
//
// Every write is conditional on the status observed at read time; a
// concurrent transition that landed first turns this one into
// shared.ErrStateTransition instead of a silent overwrite.
func (h *SessionTransitionHandler) Handle(ctx context.Context, cmd SessionTransitionCommand) (*SessionTransitionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	sess, err := h.sessions.GetByID(ctx, cmd.SessionID)
	if err != nil {
		return nil, err
	}
	from := sess.Status
	now := h.now()

	var eventType shared.EventType
	switch cmd.Action {
	case ActionConfirm:
		if err := sess.Confirm(now); err != nil {
			return nil, err
		}
		if cmd.MeetingURL != "" {
			sess.SetMeetingURL(cmd.MeetingURL)
		}
		if err := h.sessions.UpdateStatus(ctx, sess.ID, session.StatusScheduled, session.StatusConfirmed, "", now); err != nil {
			return nil, err
		}
		eventType = shared.EventSessionConfirmed

	case ActionComplete:
		if err := sess.Complete(cmd.Notes, now); err != nil {
			return nil, err
		}
		if err := h.sessions.UpdateStatus(ctx, sess.ID, session.StatusConfirmed, session.StatusCompleted, sess.Notes, now); err != nil {
			return nil, err
		}
		eventType = shared.EventSessionCompleted

	case ActionCancelS:
		if err := sess.Cancel(now); err != nil {
			return nil, err
		}
		if err := h.sessions.UpdateStatus(ctx, sess.ID, from, session.StatusCancelled, "", now); err != nil {
			return nil, err
		}
		eventType = shared.EventSessionCancelled
	}

	event := shared.NewSessionEvent(eventType, sess.EncadrementID.String(), sess.ID,
		sess.Status.String(), sess.Date, sess.Subject)
	if h.publisher != nil {
		if err := h.publisher.Publish(event); err != nil {
			h.logger.Error("publish session event", "session_id", sess.ID, "action", cmd.Action, "error", err)
		}
	}

	return &SessionTransitionResult{
		SessionID:     sess.ID,
		EncadrementID: sess.EncadrementID.String(),
		From:          from,
		To:            sess.Status,
		Events:        []shared.Event{event},
	}, nil
}
