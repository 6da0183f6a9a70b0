// Package encadrement contains the subscription aggregate of the tutoring
// platform: one encadrement pairs a student with a teacher under a recurring
// monthly formule. This is a pure domain layer with zero external dependencies
// beyond the shared kernel.
package encadrement

import (
	"time"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
	"github.com/reussite-hub/reussite-tutoring-hub/pkg/timeutil"
)

// Status represents the lifecycle state of an encadrement.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCancelled Status = "cancelled" // terminal, absorbing
)

// IsValid checks whether the status is one of the known states.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusCancelled:
		return true
	}
	return false
}

// String returns the string representation.
func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether no further transitions may leave this state.
func (s Status) IsTerminal() bool {
	return s == StatusCancelled
}

// Encadrement is the root aggregate of the subsystem. Sessions, messages,
// progress records and resources all live inside the boundary of one
// encadrement and consult it for authorization before mutating state.
type Encadrement struct {
	ID        shared.EncadrementID
	UserID    shared.UserID // student
	TeacherID shared.UserID
	Formule   Formule
	Status    Status

	StartDate time.Time
	// NextBillingDate advances monotonically forward in time; it never moves
	// backwards, and it is frozen while the encadrement is paused.
	NextBillingDate time.Time

	MonthlyAmount    shared.Cents
	SessionsPerMonth int

	// ConsecutiveBillingFailures counts failed charges since the last
	// success. BillingGrace is set on failure so the UI can warn the
	// student before the BillingPolicy threshold pauses the encadrement.
	ConsecutiveBillingFailures int
	BillingGrace               bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// New creates an active encadrement for the given student-teacher pairing.
// The formule must exist in the plan table; it fixes the monthly amount and
// the session quota. The first billing date is one month after the start.
func New(id shared.EncadrementID, userID, teacherID shared.UserID, formule Formule, now time.Time) (*Encadrement, error) {
	if !id.IsValid() {
		return nil, shared.NewDomainError("encadrement", "New", shared.ErrInvalidID, "invalid encadrement ID")
	}
	if !userID.IsValid() || !teacherID.IsValid() {
		return nil, shared.NewDomainError("encadrement", "New", shared.ErrInvalidID, "student and teacher IDs are required")
	}
	if userID == teacherID {
		return nil, shared.NewDomainError("encadrement", "New", shared.ErrInvalidInput, "student and teacher must be distinct accounts")
	}
	plan, err := LookupPlan(formule)
	if err != nil {
		return nil, err
	}

	now = now.UTC()
	return &Encadrement{
		ID:               id,
		UserID:           userID,
		TeacherID:        teacherID,
		Formule:          formule,
		Status:           StatusActive,
		StartDate:        now,
		NextBillingDate:  timeutil.NextBillingDate(now),
		MonthlyAmount:    plan.MonthlyAmount,
		SessionsPerMonth: plan.SessionsPerMonth,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// IsActive reports whether sessions may be scheduled on this encadrement.
func (e *Encadrement) IsActive() bool {
	return e.Status == StatusActive
}

// AcceptsMessages reports whether the messaging channel is open. Messaging
// stays available while paused; only cancellation closes the channel.
func (e *Encadrement) AcceptsMessages() bool {
	return e.Status == StatusActive || e.Status == StatusPaused
}

// Pause freezes the encadrement. Only an active encadrement can be paused;
// the billing date stops advancing until resume.
func (e *Encadrement) Pause(now time.Time) error {
	if e.Status.IsTerminal() {
		return shared.ErrEncadrementTerminal
	}
	if e.Status != StatusActive {
		return shared.ErrEncadrementNotPausable
	}
	e.Status = StatusPaused
	e.UpdatedAt = now.UTC()
	return nil
}

// Resume reactivates a paused encadrement.
func (e *Encadrement) Resume(now time.Time) error {
	if e.Status.IsTerminal() {
		return shared.ErrEncadrementTerminal
	}
	if e.Status != StatusPaused {
		return shared.ErrEncadrementNotResumed
	}
	e.Status = StatusActive
	e.UpdatedAt = now.UTC()
	return nil
}

// Cancel moves the encadrement to its terminal state. Cancelling an already
// cancelled encadrement is a no-op, not an error; callers may safely retry.
func (e *Encadrement) Cancel(now time.Time) error {
	if e.Status == StatusCancelled {
		return nil
	}
	e.Status = StatusCancelled
	e.UpdatedAt = now.UTC()
	return nil
}

// RecordBillingSuccess advances the billing date by one calendar month
// (day-of-month clamped) and clears the failure streak. No billing event may
// be recorded on a cancelled encadrement.
//
// Under the default policy a success does not reactivate a paused
// encadrement: resuming is an explicit account action, and the counter reset
// alone ensures a later failure streak starts from zero. With AutoResume set
// the recovered charge reactivates it and the call reports resumed=true.
func (e *Encadrement) RecordBillingSuccess(now time.Time, policy BillingPolicy) (resumed bool, err error) {
	if e.Status.IsTerminal() {
		return false, shared.ErrEncadrementTerminal
	}
	e.NextBillingDate = timeutil.NextBillingDate(e.NextBillingDate)
	e.ConsecutiveBillingFailures = 0
	e.BillingGrace = false
	e.UpdatedAt = now.UTC()

	if policy.AutoResume && e.Status == StatusPaused {
		e.Status = StatusActive
		return true, nil
	}
	return false, nil
}

// RecordBillingFailure increments the consecutive failure counter and sets
// the grace flag so the UI can warn the student. The policy decides how many
// failures are tolerated before the auto-pause: one grace cycle by default,
// none when the grace period is off. Returns true when the auto-pause fired.
func (e *Encadrement) RecordBillingFailure(now time.Time, policy BillingPolicy) (autoPaused bool, err error) {
	if e.Status.IsTerminal() {
		return false, shared.ErrEncadrementTerminal
	}
	e.ConsecutiveBillingFailures++
	e.BillingGrace = true
	e.UpdatedAt = now.UTC()

	if e.ConsecutiveBillingFailures >= policy.pauseThreshold() && e.Status == StatusActive {
		e.Status = StatusPaused
		return true, nil
	}
	return false, nil
}

// CurrentBillingWindow returns the billing cycle the given instant falls
// into for quota purposes: the half-open month ending at NextBillingDate.
// Quota resets are anchored to the subscription's own cycle, never to
// calendar months.
func (e *Encadrement) CurrentBillingWindow() timeutil.Window {
	return timeutil.CycleWindow(e.NextBillingDate)
}

// BillingDue reports whether a charge attempt is due at the given instant.
// Paused and cancelled encadrements are never billed.
func (e *Encadrement) BillingDue(now time.Time) bool {
	return e.Status == StatusActive && !now.Before(e.NextBillingDate)
}

// OtherParty returns the counterpart of the given participant, used to
// address messages inside the channel.
func (e *Encadrement) OtherParty(id shared.UserID) (shared.UserID, error) {
	switch id {
	case e.UserID:
		return e.TeacherID, nil
	case e.TeacherID:
		return e.UserID, nil
	default:
		return "", shared.NewDomainError("encadrement", "OtherParty", shared.ErrForbidden, "user is not a participant of this encadrement")
	}
}
