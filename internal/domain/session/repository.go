package session

import (
	"context"
	"time"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
	"github.com/reussite-hub/reussite-tutoring-hub/pkg/timeutil"
)

// Repository defines the interface for session persistence.
// This interface is implemented by the infrastructure layer.
//
// Like the encadrement repository, every mutation is conditional on the
// state it was decided under, re-checked at commit. CreateChecked is the one
// cross-entity write in the subsystem: it re-validates the parent's status,
// the quota count and the teacher's calendar inside a single atomic
// statement, because an earlier read of any of them may be stale by commit
// time.
type Repository interface {
	// CreateChecked inserts the session only if, at commit time:
	//   - the parent encadrement is still active
	//     (shared.ErrSubscriptionNotActive otherwise),
	//   - the count of quota-consuming sessions created inside window is
	//     still below quota (shared.ErrQuotaExceeded otherwise),
	//   - no non-cancelled session of the same teacher overlaps the
	//     session's window (shared.ErrSchedulingConflict otherwise).
	CreateChecked(ctx context.Context, s *Session, window timeutil.Window, quota int) error

	// GetByID returns a session by ID, or shared.ErrNotFound.
	GetByID(ctx context.Context, id string) (*Session, error)

	// UpdateStatus transitions the status conditionally: the write applies
	// only if the stored status equals from. Returns
	// shared.ErrStateTransition when the precondition no longer holds.
	// Notes and the updated timestamp are written alongside.
	UpdateStatus(ctx context.Context, id string, from, to Status, notes string, now time.Time) error

	// CountCreatedInWindow counts quota-consuming sessions (any status,
	// cancelled included) created inside the billing window for an
	// encadrement. Cancellation never refunds quota, so the count is over
	// creation time, not current status.
	CountCreatedInWindow(ctx context.Context, encadrementID shared.EncadrementID, window timeutil.Window) (int, error)

	// ListByEncadrement returns all sessions of an encadrement, soonest
	// first.
	ListByEncadrement(ctx context.Context, encadrementID shared.EncadrementID) ([]*Session, error)

	// ListTeacherSessionsInWindow returns a teacher's non-cancelled sessions
	// whose occupied window intersects the given one, for conflict display.
	ListTeacherSessionsInWindow(ctx context.Context, teacherID shared.UserID, window timeutil.Window) ([]*Session, error)

	// ListUpcomingConfirmed returns confirmed sessions starting inside the
	// window, for the reminder job.
	ListUpcomingConfirmed(ctx context.Context, window timeutil.Window) ([]*Session, error)
}
