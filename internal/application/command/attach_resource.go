package command

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/encadrement"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/resource"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ATTACH RESOURCE COMMAND
// Adds a resource to an encadrement's catalogue. The catalogue is append-only
// and concurrency-tolerant: two simultaneous uploads both land, duplicates
// included.
// ══════════════════════════════════════════════════════════════════════════════

// AttachResourceCommand contains the data to register a resource.
type AttachResourceCommand struct {
	// EncadrementID scopes the resource.
	EncadrementID string

	// Title is the human-readable label shown in the catalogue.
	Title string

	// Type is one of pdf, video, link, document.
	Type string

	// URL is the absolute location of the resource.
	URL string

	// UploadedBy is the account registering the resource.
	UploadedBy string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c AttachResourceCommand) Validate() error {
	if c.EncadrementID == "" {
		return shared.NewDomainError("command", "AttachResource", shared.ErrEmptyValue, "encadrement_id is required")
	}
	if c.Title == "" {
		return shared.NewDomainError("command", "AttachResource", shared.ErrEmptyValue, "title is required")
	}
	if c.URL == "" {
		return shared.NewDomainError("command", "AttachResource", shared.ErrEmptyValue, "url is required")
	}
	if c.UploadedBy == "" {
		return shared.NewDomainError("command", "AttachResource", shared.ErrEmptyValue, "uploaded_by is required")
	}
	if !resource.Type(c.Type).IsValid() {
		return shared.ErrInvalidResourceType
	}
	return nil
}

// AttachResourceResult contains the registered resource.
type AttachResourceResult struct {
	ResourceID string
	Events     []shared.Event
}

// AttachResourceHandler handles the AttachResourceCommand. Like progress
// writes, the catalogue only needs the parent's status for authorization, so
// the handler reads through the StatusReader port rather than loading the
// whole aggregate.
type AttachResourceHandler struct {
	statuses  encadrement.StatusReader
	resources resource.Repository
	publisher shared.EventPublisher
	logger    *slog.Logger
}

// NewAttachResourceHandler creates a new AttachResourceHandler.
func NewAttachResourceHandler(statuses encadrement.StatusReader, resources resource.Repository, publisher shared.EventPublisher, logger *slog.Logger) *AttachResourceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AttachResourceHandler{
		statuses:  statuses,
		resources: resources,
		publisher: publisher,
		logger:    logger,
	}
}

// Handle executes the attach resource command.
func (h *AttachResourceHandler) Handle(ctx context.Context, cmd AttachResourceCommand) (*AttachResourceResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	id, err := shared.NewEncadrementID(cmd.EncadrementID)
	if err != nil {
		return nil, err
	}
	uploadedBy, err := shared.NewUserID(cmd.UploadedBy)
	if err != nil {
		return nil, err
	}

	status, err := h.statuses.GetStatus(ctx, id)
	if err != nil {
		return nil, err
	}
	if status == encadrement.StatusCancelled {
		return nil, shared.NewDomainError("command", "AttachResource", shared.ErrSubscriptionCancelled,
			"the catalogue of a cancelled encadrement is read-only")
	}

	r, err := resource.New(uuid.NewString(), id, cmd.Title, resource.Type(cmd.Type), cmd.URL, uploadedBy)
	if err != nil {
		return nil, err
	}

	if err := h.resources.Create(ctx, r); err != nil {
		return nil, err
	}

	event := shared.NewResourceAddedEvent(id.String(), r.ID, r.Title, r.Type.String())
	if h.publisher != nil {
		if err := h.publisher.Publish(event); err != nil {
			h.logger.Error("publish resource.added", "resource_id", r.ID, "error", err)
		}
	}

	return &AttachResourceResult{
		ResourceID: r.ID,
		Events:     []shared.Event{event},
	}, nil
}
