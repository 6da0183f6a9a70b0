package postgres

import (
	"context"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/resource"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESOURCE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ResourceRepository implements resource.Repository for PostgreSQL.
type ResourceRepository struct {
	db Querier
}

// NewResourceRepository creates a new ResourceRepository.
func NewResourceRepository(db Querier) *ResourceRepository {
	return &ResourceRepository{db: db}
}

// Create persists a new resource with a store-assigned CreatedAt.
func (r *ResourceRepository) Create(ctx context.Context, res *resource.Resource) error {
	query := `
		INSERT INTO resources (id, encadrement_id, title, type, url, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	err := r.db.QueryRow(ctx, query,
		res.ID,
		res.EncadrementID.String(),
		res.Title,
		res.Type.String(),
		res.URL,
		res.UploadedBy.String(),
	).Scan(&res.CreatedAt)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return shared.ErrEncadrementNotFound
		}
		return storeError("resource", "Create", "insert failed", err)
	}

	return nil
}

// ListByEncadrement returns an encadrement's resources, freshest first.
func (r *ResourceRepository) ListByEncadrement(ctx context.Context, encadrementID shared.EncadrementID) ([]*resource.Resource, error) {
	query := `
		SELECT id, encadrement_id, title, type, url, uploaded_by, created_at
		FROM resources
		WHERE encadrement_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, encadrementID.String())
	if err != nil {
		return nil, storeError("resource", "ListByEncadrement", "query failed", err)
	}
	defer rows.Close()

	var out []*resource.Resource
	for rows.Next() {
		var (
			res        resource.Resource
			encID      string
			typ        string
			uploadedBy string
		)
		if err := rows.Scan(&res.ID, &encID, &res.Title, &typ, &res.URL, &uploadedBy, &res.CreatedAt); err != nil {
			return nil, storeError("resource", "ListByEncadrement", "row scan failed", err)
		}
		res.EncadrementID = shared.EncadrementID(encID)
		res.Type = resource.Type(typ)
		res.UploadedBy = shared.UserID(uploadedBy)
		out = append(out, &res)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("resource", "ListByEncadrement", "row iteration failed", err)
	}

	return out, nil
}
