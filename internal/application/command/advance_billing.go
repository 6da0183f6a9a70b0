package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/encadrement"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
	"github.com/reussite-hub/reussite-tutoring-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// ADVANCE BILLING COMMAND
// Feeds a billing outcome into a subscription. Invoked from two places: the
// provider's webhook and the billing worker. Both may report the same cycle;
// the conditional write on NextBillingDate makes the outcome apply exactly
// once.
// ══════════════════════════════════════════════════════════════════════════════

// BillingOutcome is the result reported by the billing provider.
type BillingOutcome string

const (
	BillingSuccess BillingOutcome = "success"
	BillingFailure BillingOutcome = "failure"
)

// AdvanceBillingCommand contains one billing outcome.
type AdvanceBillingCommand struct {
	// EncadrementID is the subscription that was charged.
	EncadrementID string

	// Outcome is the charge result.
	Outcome BillingOutcome

	// ProviderRef is the provider-side reference of the charge attempt.
	ProviderRef string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c AdvanceBillingCommand) Validate() error {
	if c.EncadrementID == "" {
		return shared.NewDomainError("command", "AdvanceBilling", shared.ErrEmptyValue, "encadrement_id is required")
	}
	switch c.Outcome {
	case BillingSuccess, BillingFailure:
		return nil
	default:
		return shared.NewDomainError("command", "AdvanceBilling", shared.ErrInvalidInput,
			fmt.Sprintf("unknown billing outcome: %s", c.Outcome))
	}
}

// AdvanceBillingResult contains the result of applying the outcome.
type AdvanceBillingResult struct {
	EncadrementID       string
	Outcome             BillingOutcome
	NextBillingDate     time.Time
	ConsecutiveFailures int
	AutoPaused          bool
	Resumed             bool
	Events              []shared.Event
}

// AdvanceBillingHandler handles the AdvanceBillingCommand.
type AdvanceBillingHandler struct {
	repo      encadrement.Repository
	publisher shared.EventPublisher
	cache     StatusCacheInvalidator
	policy    encadrement.BillingPolicy
	retrier   *retry.Retrier
	logger    *slog.Logger
	now       func() time.Time
}

// NewAdvanceBillingHandler creates a new AdvanceBillingHandler. The policy
// carries the billing toggles resolved from configuration at boot.
func NewAdvanceBillingHandler(repo encadrement.Repository, publisher shared.EventPublisher, cache StatusCacheInvalidator, policy encadrement.BillingPolicy, logger *slog.Logger) *AdvanceBillingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdvanceBillingHandler{
		repo:      repo,
		publisher: publisher,
		cache:     cache,
		policy:    policy,
		retrier:   retry.ConflictRetrier(),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Handle executes the advance billing command.
//
// The read-decide-write sequence runs in an optimistic loop: the write is
// conditional on the NextBillingDate observed at read time, and a conflict
// (webhook and worker racing on the same cycle) re-reads and re-decides
// rather than double-applying the advancement.
func (h *AdvanceBillingHandler) Handle(ctx context.Context, cmd AdvanceBillingCommand) (*AdvanceBillingResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	id, err := shared.NewEncadrementID(cmd.EncadrementID)
	if err != nil {
		return nil, err
	}

	var result *AdvanceBillingResult
	err = h.retrier.Do(ctx, func(ctx context.Context) error {
		enc, err := h.repo.GetByID(ctx, id)
		if err != nil {
			return retry.Permanent(err)
		}

		expectedNext := enc.NextBillingDate
		statusBefore := enc.Status
		var autoPaused, resumed bool

		switch cmd.Outcome {
		case BillingSuccess:
			resumed, err = enc.RecordBillingSuccess(h.now(), h.policy)
			if err != nil {
				return retry.Permanent(err)
			}
		case BillingFailure:
			autoPaused, err = enc.RecordBillingFailure(h.now(), h.policy)
			if err != nil {
				return retry.Permanent(err)
			}
		}

		if err := h.repo.ApplyBillingOutcome(ctx, enc, expectedNext); err != nil {
			if shared.IsRetryable(err) {
				return retry.Retryable(err)
			}
			return retry.Permanent(err)
		}

		if autoPaused || resumed {
			h.invalidateStatus(ctx, id)
		}

		result = &AdvanceBillingResult{
			EncadrementID:       id.String(),
			Outcome:             cmd.Outcome,
			NextBillingDate:     enc.NextBillingDate,
			ConsecutiveFailures: enc.ConsecutiveBillingFailures,
			AutoPaused:          autoPaused,
			Resumed:             resumed,
		}
		result.Events = h.publishOutcome(enc, cmd, statusBefore, autoPaused, resumed)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (h *AdvanceBillingHandler) publishOutcome(enc *encadrement.Encadrement, cmd AdvanceBillingCommand, statusBefore encadrement.Status, autoPaused, resumed bool) []shared.Event {
	eventType := shared.EventBillingAdvanced
	if cmd.Outcome == BillingFailure {
		eventType = shared.EventBillingFailed
	}

	events := []shared.Event{
		shared.NewBillingEvent(eventType, enc.ID.String(), string(cmd.Outcome),
			enc.NextBillingDate, enc.ConsecutiveBillingFailures, cmd.ProviderRef),
	}
	if autoPaused {
		events = append(events, shared.NewStatusChangedEvent(shared.EventBillingAutoPause,
			enc.ID.String(), statusBefore.String(), enc.Status.String(), "billing"))
	}
	if resumed {
		events = append(events, shared.NewStatusChangedEvent(shared.EventEncadrementResumed,
			enc.ID.String(), statusBefore.String(), enc.Status.String(), "billing"))
	}

	if h.publisher != nil {
		for _, event := range events {
			if err := h.publisher.Publish(event); err != nil {
				h.logger.Error("publish billing event", "encadrement_id", enc.ID, "type", event.EventType(), "error", err)
			}
		}
	}
	return events
}

func (h *AdvanceBillingHandler) invalidateStatus(ctx context.Context, id shared.EncadrementID) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Invalidate(ctx, id); err != nil {
		h.logger.Warn("invalidate status cache", "encadrement_id", id, "error", err)
	}
}
