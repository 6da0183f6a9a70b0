// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/encadrement"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE SUBSCRIPTION COMMAND
// Opens a new encadrement pairing a student with a teacher under a formule.
// ══════════════════════════════════════════════════════════════════════════════

// StatusCacheInvalidator lets lifecycle commands drop a cached encadrement
// status after a mutation. A nil invalidator is a no-op; the cache is a
// read-side optimization, never a correctness dependency.
type StatusCacheInvalidator interface {
	Invalidate(ctx context.Context, id shared.EncadrementID) error
}

// CreateSubscriptionCommand contains the data to open an encadrement.
type CreateSubscriptionCommand struct {
	// UserID is the student's account ID.
	UserID string

	// TeacherID is the teacher's account ID.
	TeacherID string

	// Formule is the plan tier; it fixes the quota and the monthly amount.
	Formule string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c CreateSubscriptionCommand) Validate() error {
	if c.UserID == "" {
		return shared.NewDomainError("command", "CreateSubscription", shared.ErrEmptyValue, "user_id is required")
	}
	if c.TeacherID == "" {
		return shared.NewDomainError("command", "CreateSubscription", shared.ErrEmptyValue, "teacher_id is required")
	}
	if _, err := encadrement.LookupPlan(encadrement.Formule(c.Formule)); err != nil {
		return err
	}
	return nil
}

// CreateSubscriptionResult contains the result of opening an encadrement.
type CreateSubscriptionResult struct {
	EncadrementID    string
	Status           encadrement.Status
	NextBillingDate  time.Time
	SessionsPerMonth int
	MonthlyAmount    shared.Cents
	Events           []shared.Event
}

// CreateSubscriptionHandler handles the CreateSubscriptionCommand.
type CreateSubscriptionHandler struct {
	repo      encadrement.Repository
	publisher shared.EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewCreateSubscriptionHandler creates a new CreateSubscriptionHandler.
func NewCreateSubscriptionHandler(repo encadrement.Repository, publisher shared.EventPublisher, logger *slog.Logger) *CreateSubscriptionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CreateSubscriptionHandler{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Handle executes the create subscription command.
func (h *CreateSubscriptionHandler) Handle(ctx context.Context, cmd CreateSubscriptionCommand) (*CreateSubscriptionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	userID, err := shared.NewUserID(cmd.UserID)
	if err != nil {
		return nil, err
	}
	teacherID, err := shared.NewUserID(cmd.TeacherID)
	if err != nil {
		return nil, err
	}

	// One live encadrement per pairing: a cancelled one may be replaced,
	// anything else is a duplicate.
	existing, err := h.repo.GetByParticipants(ctx, userID, teacherID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("create_subscription: lookup pairing: %w", err)
	}
	if existing != nil && existing.Status != encadrement.StatusCancelled {
		return nil, shared.NewDomainError("command", "CreateSubscription", shared.ErrAlreadyExists,
			"an encadrement already pairs this student and teacher")
	}

	id := shared.EncadrementID(uuid.NewString())
	enc, err := encadrement.New(id, userID, teacherID, encadrement.Formule(cmd.Formule), h.now())
	if err != nil {
		return nil, err
	}

	if err := h.repo.Create(ctx, enc); err != nil {
		return nil, fmt.Errorf("create_subscription: persist: %w", err)
	}

	event := shared.NewEncadrementCreatedEvent(
		enc.ID.String(), enc.UserID.String(), enc.TeacherID.String(),
		enc.Formule.String(), enc.NextBillingDate,
	)
	if h.publisher != nil {
		// Event delivery is best-effort; the subscription itself is committed.
		if err := h.publisher.Publish(event); err != nil {
			h.logger.Error("publish encadrement.created", "encadrement_id", enc.ID, "error", err)
		}
	}

	return &CreateSubscriptionResult{
		EncadrementID:    enc.ID.String(),
		Status:           enc.Status,
		NextBillingDate:  enc.NextBillingDate,
		SessionsPerMonth: enc.SessionsPerMonth,
		MonthlyAmount:    enc.MonthlyAmount,
		Events:           []shared.Event{event},
	}, nil
}
