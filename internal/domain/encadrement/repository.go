package encadrement

import (
	"context"
	"time"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
)

// Repository defines the interface for encadrement persistence.
// This interface is implemented by the infrastructure layer.
//
// Mutating operations are conditional: each one re-states the precondition
// it was decided under (current status, current billing date) and the store
// applies the write only if the precondition still holds at commit. A failed
// precondition surfaces as ErrStateTransition or ErrConcurrentModification,
// never as a silent overwrite. This is how the subsystem stays correct
// without cross-entity transactions or in-process locks.
type Repository interface {
	// Create persists a new encadrement.
	Create(ctx context.Context, e *Encadrement) error

	// GetByID returns an encadrement by ID, or shared.ErrNotFound.
	GetByID(ctx context.Context, id shared.EncadrementID) (*Encadrement, error)

	// GetByParticipants returns the encadrement pairing a student and a
	// teacher, if one exists.
	GetByParticipants(ctx context.Context, userID, teacherID shared.UserID) (*Encadrement, error)

	// ListByUser returns all encadrements where the user is the student.
	ListByUser(ctx context.Context, userID shared.UserID) ([]*Encadrement, error)

	// ListByTeacher returns all encadrements where the user is the teacher.
	ListByTeacher(ctx context.Context, teacherID shared.UserID) ([]*Encadrement, error)

	// UpdateStatus transitions the status conditionally: the write applies
	// only if the stored status is one of from. Returns
	// shared.ErrStateTransition when the precondition no longer holds.
	UpdateStatus(ctx context.Context, id shared.EncadrementID, from []Status, to Status) error

	// ApplyBillingOutcome persists the billing fields produced by
	// RecordBillingSuccess / RecordBillingFailure. The write is conditional
	// on the stored NextBillingDate still matching expectedNextBilling, so a
	// concurrent outcome for the same cycle (webhook plus worker) applies
	// exactly once; the loser gets shared.ErrConcurrentModification.
	ApplyBillingOutcome(ctx context.Context, e *Encadrement, expectedNextBilling time.Time) error

	// ListBillingDue returns active encadrements whose NextBillingDate has
	// passed, oldest first, limited for batch processing by the worker.
	ListBillingDue(ctx context.Context, asOf time.Time, limit int) ([]*Encadrement, error)
}

// StatusReader is the narrow authorization port consulted by the other
// components (sessions, messaging, progress, resources) before mutating
// anything inside an encadrement's boundary. Kept separate from Repository
// so a cache can front it.
type StatusReader interface {
	// GetStatus returns the current status of an encadrement.
	GetStatus(ctx context.Context, id shared.EncadrementID) (Status, error)
}
