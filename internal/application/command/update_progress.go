package command

import (
	"context"
	"log/slog"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/encadrement"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/progress"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE PROGRESS COMMAND
// Writes one chapter's progression. Concurrent writers race under
// last-writer-wins on the store timestamp; a lower value than the stored one
// is a legal correction, not an error.
// ══════════════════════════════════════════════════════════════════════════════

// UpdateProgressCommand contains one chapter progression write.
type UpdateProgressCommand struct {
	// EncadrementID scopes the progression record.
	EncadrementID string

	// Chapter is the "subject-topic" chapter key.
	Chapter string

	// Progress is the completion percentage, 0 to 100.
	Progress float64

	// Notes is the teacher's free-form commentary on the chapter.
	Notes string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c UpdateProgressCommand) Validate() error {
	if c.EncadrementID == "" {
		return shared.NewDomainError("command", "UpdateProgress", shared.ErrEmptyValue, "encadrement_id is required")
	}
	if c.Chapter == "" {
		return shared.NewDomainError("command", "UpdateProgress", shared.ErrEmptyValue, "chapter is required")
	}
	return nil
}

// UpdateProgressResult contains the written progression.
type UpdateProgressResult struct {
	EncadrementID string
	Chapter       string
	Progress      float64
	Events        []shared.Event
}

// UpdateProgressHandler handles the UpdateProgressCommand. It only needs the
// parent's status for authorization, so it takes the narrow StatusReader port
// and benefits from the status cache when one is wired in.
type UpdateProgressHandler struct {
	statuses     encadrement.StatusReader
	progressions progress.Repository
	publisher    shared.EventPublisher
	logger       *slog.Logger
}

// NewUpdateProgressHandler creates a new UpdateProgressHandler.
func NewUpdateProgressHandler(statuses encadrement.StatusReader, progressions progress.Repository, publisher shared.EventPublisher, logger *slog.Logger) *UpdateProgressHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UpdateProgressHandler{
		statuses:     statuses,
		progressions: progressions,
		publisher:    publisher,
		logger:       logger,
	}
}

// Handle executes the update progress command.
func (h *UpdateProgressHandler) Handle(ctx context.Context, cmd UpdateProgressCommand) (*UpdateProgressResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	id, err := shared.NewEncadrementID(cmd.EncadrementID)
	if err != nil {
		return nil, err
	}
	chapter, err := shared.NewChapter(cmd.Chapter)
	if err != nil {
		return nil, err
	}

	status, err := h.statuses.GetStatus(ctx, id)
	if err != nil {
		return nil, err
	}
	if status == encadrement.StatusCancelled {
		return nil, shared.NewDomainError("command", "UpdateProgress", shared.ErrSubscriptionCancelled,
			"progress of a cancelled encadrement is read-only")
	}

	p, err := progress.New(id, chapter, cmd.Progress, cmd.Notes)
	if err != nil {
		return nil, err
	}

	if err := h.progressions.Upsert(ctx, p); err != nil {
		return nil, err
	}

	event := shared.NewProgressUpdatedEvent(id.String(), chapter.String(), p.Progress.Float64())
	if h.publisher != nil {
		if err := h.publisher.Publish(event); err != nil {
			h.logger.Error("publish progress.updated", "encadrement_id", id, "chapter", chapter, "error", err)
		}
	}

	return &UpdateProgressResult{
		EncadrementID: id.String(),
		Chapter:       chapter.String(),
		Progress:      p.Progress.Float64(),
		Events:        []shared.Event{event},
	}, nil
}
