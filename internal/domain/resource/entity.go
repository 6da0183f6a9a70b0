// Package resource contains the attachment catalogue scoped to one
// encadrement: documents, links and videos shared between the student and
// the teacher. Attachments are append-only with no dedup or versioning; a
// re-uploaded duplicate simply coexists with the earlier one. This is a pure
// domain layer with zero external dependencies beyond the shared kernel.
package resource

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
)

// Type classifies an attached resource.
type Type string

const (
	TypePDF      Type = "pdf"
	TypeVideo    Type = "video"
	TypeLink     Type = "link"
	TypeDocument Type = "document"
)

// IsValid checks whether the type is one of the known kinds.
func (t Type) IsValid() bool {
	switch t {
	case TypePDF, TypeVideo, TypeLink, TypeDocument:
		return true
	}
	return false
}

// String returns the string representation.
func (t Type) String() string {
	return string(t)
}

// Resource is one attachment in an encadrement's catalogue.
type Resource struct {
	ID            string
	EncadrementID shared.EncadrementID
	Title         string
	Type          Type
	URL           string
	UploadedBy    shared.UserID
	CreatedAt     time.Time
}

// New creates a resource. CreatedAt is assigned by the store on insert.
func New(id string, encadrementID shared.EncadrementID, title string, typ Type, rawURL string, uploadedBy shared.UserID) (*Resource, error) {
	if id == "" {
		return nil, shared.NewDomainError("resource", "New", shared.ErrInvalidID, "invalid resource ID")
	}
	if encadrementID.IsEmpty() {
		return nil, shared.NewDomainError("resource", "New", shared.ErrInvalidID, "encadrement ID is required")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, shared.NewDomainError("resource", "New", shared.ErrEmptyValue, "title is required")
	}
	if !typ.IsValid() {
		return nil, shared.ErrInvalidResourceType
	}
	if !uploadedBy.IsValid() {
		return nil, shared.NewDomainError("resource", "New", shared.ErrInvalidID, "uploader ID is required")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, shared.NewDomainError("resource", "New", shared.ErrInvalidInput, "resource URL must be absolute")
	}

	return &Resource{
		ID:            id,
		EncadrementID: encadrementID,
		Title:         title,
		Type:          typ,
		URL:           rawURL,
		UploadedBy:    uploadedBy,
	}, nil
}

// Repository defines the interface for resource persistence.
// This interface is implemented by the infrastructure layer.
type Repository interface {
	// Create persists a new resource with a store-assigned CreatedAt.
	Create(ctx context.Context, r *Resource) error

	// ListByEncadrement returns an encadrement's resources ordered by
	// CreatedAt descending (freshest first).
	ListByEncadrement(ctx context.Context, encadrementID shared.EncadrementID) ([]*Resource, error)
}
