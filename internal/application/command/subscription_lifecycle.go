package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/encadrement"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBSCRIPTION LIFECYCLE COMMANDS
// Pause, resume and cancel an encadrement. Each transition is written as a
// conditional update keyed on the current status: if a concurrent mutation
// got there first, the store rejects the write instead of overwriting it.
// ══════════════════════════════════════════════════════════════════════════════

// LifecycleAction names a subscription lifecycle transition.
type LifecycleAction string

const (
	ActionPause  LifecycleAction = "pause"
	ActionResume LifecycleAction = "resume"
	ActionCancel LifecycleAction = "cancel"
)

// SubscriptionLifecycleCommand requests one lifecycle transition.
type SubscriptionLifecycleCommand struct {
	// EncadrementID is the subscription to transition.
	EncadrementID string

	// Action is the requested transition.
	Action LifecycleAction

	// InitiatorID is the account requesting the change, for the audit event.
	InitiatorID string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c SubscriptionLifecycleCommand) Validate() error {
	if c.EncadrementID == "" {
		return shared.NewDomainError("command", "SubscriptionLifecycle", shared.ErrEmptyValue, "encadrement_id is required")
	}
	switch c.Action {
	case ActionPause, ActionResume, ActionCancel:
		return nil
	default:
		return shared.NewDomainError("command", "SubscriptionLifecycle", shared.ErrInvalidInput,
			fmt.Sprintf("unknown lifecycle action: %s", c.Action))
	}
}

// SubscriptionLifecycleResult contains the outcome of the transition.
type SubscriptionLifecycleResult struct {
	EncadrementID string
	From          encadrement.Status
	To            encadrement.Status
	// AlreadyApplied is true when a cancel hit an already-cancelled
	// encadrement: a no-op by design, not an error.
	AlreadyApplied bool
	Events         []shared.Event
}

// SubscriptionLifecycleHandler handles SubscriptionLifecycleCommand.
type SubscriptionLifecycleHandler struct {
	repo      encadrement.Repository
	publisher shared.EventPublisher
	cache     StatusCacheInvalidator
	logger    *slog.Logger
	now       func() time.Time
}

// NewSubscriptionLifecycleHandler creates a new SubscriptionLifecycleHandler.
func NewSubscriptionLifecycleHandler(repo encadrement.Repository, publisher shared.EventPublisher, cache StatusCacheInvalidator, logger *slog.Logger) *SubscriptionLifecycleHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionLifecycleHandler{
		repo:      repo,
		publisher: publisher,
		cache:     cache,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Handle executes the lifecycle transition.
func (h *SubscriptionLifecycleHandler) Handle(ctx context.Context, cmd SubscriptionLifecycleCommand) (*SubscriptionLifecycleResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	id, err := shared.NewEncadrementID(cmd.EncadrementID)
	if err != nil {
		return nil, err
	}

	enc, err := h.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	from := enc.Status
	var to encadrement.Status
	var fromStates []encadrement.Status
	var eventType shared.EventType

	switch cmd.Action {
	case ActionPause:
		if err := enc.Pause(h.now()); err != nil {
			return nil, err
		}
		to, fromStates, eventType = encadrement.StatusPaused,
			[]encadrement.Status{encadrement.StatusActive}, shared.EventEncadrementPaused

	case ActionResume:
		if err := enc.Resume(h.now()); err != nil {
			return nil, err
		}
		to, fromStates, eventType = encadrement.StatusActive,
			[]encadrement.Status{encadrement.StatusPaused}, shared.EventEncadrementResumed

	case ActionCancel:
		if from == encadrement.StatusCancelled {
			return &SubscriptionLifecycleResult{
				EncadrementID:  id.String(),
				From:           from,
				To:             from,
				AlreadyApplied: true,
			}, nil
		}
		if err := enc.Cancel(h.now()); err != nil {
			return nil, err
		}
		to, fromStates, eventType = encadrement.StatusCancelled,
			[]encadrement.Status{encadrement.StatusActive, encadrement.StatusPaused}, shared.EventEncadrementCancelled
	}

	// Conditional write: the transition applies only if the status read
	// above still holds at commit. A concurrent cancel that already landed
	// makes a second cancel a no-op instead of a conflict.
	if err := h.repo.UpdateStatus(ctx, id, fromStates, to); err != nil {
		if cmd.Action == ActionCancel && errors.Is(err, shared.ErrStateTransition) {
			return &SubscriptionLifecycleResult{
				EncadrementID:  id.String(),
				From:           encadrement.StatusCancelled,
				To:             encadrement.StatusCancelled,
				AlreadyApplied: true,
			}, nil
		}
		return nil, err
	}

	h.invalidateStatus(ctx, id)

	event := shared.NewStatusChangedEvent(eventType, id.String(), from.String(), to.String(), cmd.InitiatorID)
	if h.publisher != nil {
		if err := h.publisher.Publish(event); err != nil {
			h.logger.Error("publish lifecycle event", "encadrement_id", id, "action", cmd.Action, "error", err)
		}
	}

	return &SubscriptionLifecycleResult{
		EncadrementID: id.String(),
		From:          from,
		To:            to,
		Events:        []shared.Event{event},
	}, nil
}

func (h *SubscriptionLifecycleHandler) invalidateStatus(ctx context.Context, id shared.EncadrementID) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Invalidate(ctx, id); err != nil {
		h.logger.Warn("invalidate status cache", "encadrement_id", id, "error", err)
	}
}
