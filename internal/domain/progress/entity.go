// Package progress contains per-chapter progression records scoped to one
// encadrement. Updates follow a deliberate last-writer-wins policy keyed on
// the store-assigned LastUpdated timestamp; concurrent updates to the same
// chapter never average or merge, the later write simply overwrites. This is
// a pure domain layer with zero external dependencies beyond the shared kernel.
package progress

import (
	"context"
	"time"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
)

// Progression is the progress record for one chapter of one encadrement,
// keyed by (EncadrementID, Chapter).
type Progression struct {
	EncadrementID shared.EncadrementID
	Chapter       shared.Chapter
	Progress      shared.Percent
	Notes         string
	LastUpdated   time.Time
}

// New creates a progression record. LastUpdated stays zero; the store
// assigns it on upsert, and it decides which of two concurrent writes wins.
func New(encadrementID shared.EncadrementID, chapter shared.Chapter, value float64, notes string) (*Progression, error) {
	if encadrementID.IsEmpty() {
		return nil, shared.NewDomainError("progress", "New", shared.ErrInvalidID, "encadrement ID is required")
	}
	if !chapter.IsValid() {
		return nil, shared.NewDomainError("progress", "New", shared.ErrInvalidInput, "invalid chapter key")
	}
	pct, err := shared.NewPercent(value)
	if err != nil {
		return nil, err
	}

	return &Progression{
		EncadrementID: encadrementID,
		Chapter:       chapter,
		Progress:      pct,
		Notes:         notes,
	}, nil
}

// Repository defines the interface for progression persistence.
// This interface is implemented by the infrastructure layer.
type Repository interface {
	// Upsert writes the record with a store-assigned LastUpdated and
	// last-writer-wins semantics: a row already carrying a later
	// LastUpdated is left untouched and the call still succeeds. Teachers
	// may write a lower Progress value than the stored one (explicit
	// correction); the store enforces LWW only, not monotonicity.
	Upsert(ctx context.Context, p *Progression) error

	// GetByEncadrement returns the latest record per chapter.
	GetByEncadrement(ctx context.Context, encadrementID shared.EncadrementID) (map[shared.Chapter]*Progression, error)
}
