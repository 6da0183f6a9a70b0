package postgres

import (
	"context"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/progress"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESSION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository implements progress.Repository for PostgreSQL.
type ProgressRepository struct {
	db Querier
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(db Querier) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// Upsert writes the record under last-writer-wins. The database assigns
// last_updated; the ON CONFLICT guard keeps a row whose timestamp is newer
// than the incoming write, and the call succeeds either way.
func (r *ProgressRepository) Upsert(ctx context.Context, p *progress.Progression) error {
	query := `
		INSERT INTO progressions (encadrement_id, chapter, progress, notes, last_updated)
		VALUES ($1, $2, $3, $4, clock_timestamp())
		ON CONFLICT (encadrement_id, chapter) DO UPDATE
		SET progress = EXCLUDED.progress,
		    notes = EXCLUDED.notes,
		    last_updated = EXCLUDED.last_updated
		WHERE progressions.last_updated <= EXCLUDED.last_updated
	`

	_, err := r.db.Exec(ctx, query,
		p.EncadrementID.String(),
		p.Chapter.String(),
		p.Progress.Float64(),
		p.Notes,
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return shared.ErrEncadrementNotFound
		}
		return storeError("progress", "Upsert", "upsert failed", err)
	}

	return nil
}

// GetByEncadrement returns the latest record per chapter.
func (r *ProgressRepository) GetByEncadrement(ctx context.Context, encadrementID shared.EncadrementID) (map[shared.Chapter]*progress.Progression, error) {
	query := `
		SELECT encadrement_id, chapter, progress, notes, last_updated
		FROM progressions
		WHERE encadrement_id = $1
	`

	rows, err := r.db.Query(ctx, query, encadrementID.String())
	if err != nil {
		return nil, storeError("progress", "GetByEncadrement", "query failed", err)
	}
	defer rows.Close()

	out := make(map[shared.Chapter]*progress.Progression)
	for rows.Next() {
		var (
			p       progress.Progression
			encID   string
			chapter string
			value   float64
		)
		if err := rows.Scan(&encID, &chapter, &value, &p.Notes, &p.LastUpdated); err != nil {
			return nil, storeError("progress", "GetByEncadrement", "row scan failed", err)
		}
		p.EncadrementID = shared.EncadrementID(encID)
		p.Chapter = shared.Chapter(chapter)
		p.Progress = shared.Percent(value)
		out[p.Chapter] = &p
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("progress", "GetByEncadrement", "row iteration failed", err)
	}

	return out, nil
}
