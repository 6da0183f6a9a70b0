package query

import (
	"context"
	"time"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/resource"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST RESOURCES QUERY
// Returns an encadrement's resource catalogue, freshest first.
// ══════════════════════════════════════════════════════════════════════════════

// ListResourcesQuery contains the lookup parameters.
type ListResourcesQuery struct {
	// EncadrementID is the subscription whose catalogue to list.
	EncadrementID string

	// Type filters by resource type; empty means all.
	Type string
}

// Validate validates the query parameters.
func (q *ListResourcesQuery) Validate() error {
	if q.EncadrementID == "" {
		return shared.NewDomainError("query", "ListResources", shared.ErrEmptyValue, "encadrement_id is required")
	}
	if q.Type != "" && !resource.Type(q.Type).IsValid() {
		return shared.ErrInvalidResourceType
	}
	return nil
}

// ResourceDTO is the read model of one catalogue entry.
type ResourceDTO struct {
	ResourceID string    `json:"resource_id"`
	Title      string    `json:"title"`
	Type       string    `json:"type"`
	URL        string    `json:"url"`
	UploadedBy string    `json:"uploaded_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// ListResourcesResult contains the query result.
type ListResourcesResult struct {
	Resources   []ResourceDTO `json:"resources"`
	Total       int           `json:"total"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// ListResourcesHandler handles ListResourcesQuery.
type ListResourcesHandler struct {
	resources resource.Repository
}

// NewListResourcesHandler creates a new ListResourcesHandler.
func NewListResourcesHandler(resources resource.Repository) *ListResourcesHandler {
	return &ListResourcesHandler{resources: resources}
}

// Handle executes the query.
func (h *ListResourcesHandler) Handle(ctx context.Context, query ListResourcesQuery) (*ListResourcesResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	id, err := shared.NewEncadrementID(query.EncadrementID)
	if err != nil {
		return nil, err
	}

	all, err := h.resources.ListByEncadrement(ctx, id)
	if err != nil {
		return nil, err
	}

	dtos := make([]ResourceDTO, 0, len(all))
	for _, r := range all {
		if query.Type != "" && r.Type != resource.Type(query.Type) {
			continue
		}
		dtos = append(dtos, ResourceDTO{
			ResourceID: r.ID,
			Title:      r.Title,
			Type:       r.Type.String(),
			URL:        r.URL,
			UploadedBy: r.UploadedBy.String(),
			CreatedAt:  r.CreatedAt,
		})
	}

	return &ListResourcesResult{
		Resources:   dtos,
		Total:       len(dtos),
		GeneratedAt: time.Now().UTC(),
	}, nil
}
