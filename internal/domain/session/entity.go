// Package session contains the tutoring session state machine. A session is
// one scheduled meeting inside an encadrement; it is created against the
// parent's monthly quota and never deleted - cancelled sessions remain as
// records. This is a pure domain layer with zero external dependencies
// beyond the shared kernel.
package session

import (
	"time"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
	"github.com/reussite-hub/reussite-tutoring-hub/pkg/timeutil"
)

// Status represents the current state of a session.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// IsValid checks whether the status is one of the known states.
func (s Status) IsValid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// String returns the string representation.
func (s Status) String() string {
	return string(s)
}

// Durations are carried in whole minutes, as booked through the calendar UI.
const (
	MinDurationMinutes = 15
	MaxDurationMinutes = 240
)

// Session represents one scheduled tutoring meeting.
//
// UserID and TeacherID are denormalized from the parent encadrement for
// query efficiency. They are write-once, copied at creation, and never
// independently mutable afterwards.
type Session struct {
	ID            string
	EncadrementID shared.EncadrementID
	UserID        shared.UserID
	TeacherID     shared.UserID

	Date            time.Time
	DurationMinutes int
	Subject         string
	Status          Status

	Notes       string
	ResourceIDs []string
	MeetingURL  string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// New creates a session in the scheduled state. Quota and conflict checks
// are not done here: they depend on sibling sessions and must be re-checked
// at commit by the repository, so the scheduler owns them.
func New(id string, encadrementID shared.EncadrementID, userID, teacherID shared.UserID, date time.Time, durationMinutes int, subject string, now time.Time) (*Session, error) {
	if id == "" {
		return nil, shared.NewDomainError("session", "New", shared.ErrInvalidID, "invalid session ID")
	}
	if encadrementID.IsEmpty() {
		return nil, shared.NewDomainError("session", "New", shared.ErrInvalidID, "encadrement ID is required")
	}
	if !userID.IsValid() || !teacherID.IsValid() {
		return nil, shared.NewDomainError("session", "New", shared.ErrInvalidID, "student and teacher IDs are required")
	}
	if durationMinutes < MinDurationMinutes || durationMinutes > MaxDurationMinutes {
		return nil, shared.NewDomainError("session", "New", shared.ErrValueOutOfRange, "duration must be between 15 and 240 minutes")
	}
	if subject == "" {
		return nil, shared.NewDomainError("session", "New", shared.ErrEmptyValue, "subject is required")
	}

	now = now.UTC()
	return &Session{
		ID:              id,
		EncadrementID:   encadrementID,
		UserID:          userID,
		TeacherID:       teacherID,
		Date:            date.UTC(),
		DurationMinutes: durationMinutes,
		Subject:         subject,
		Status:          StatusScheduled,
		// Empty, not nil: the stored column is NOT NULL and a nil slice
		// encodes as SQL NULL on the wire.
		ResourceIDs: []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Confirm moves the session from scheduled to confirmed. Semantically a
// teacher action; the caller layer enforces who may invoke it.
func (s *Session) Confirm(now time.Time) error {
	if s.Status != StatusScheduled {
		return shared.ErrSessionNotScheduled
	}
	s.Status = StatusConfirmed
	s.UpdatedAt = now.UTC()
	return nil
}

// Complete moves the session from confirmed to completed, optionally
// recording the teacher's notes. A session cannot be completed without
// having been confirmed first; this ordering is strict, not advisory.
func (s *Session) Complete(notes string, now time.Time) error {
	if s.Status != StatusConfirmed {
		return shared.ErrSessionNotConfirmed
	}
	s.Status = StatusCompleted
	if notes != "" {
		s.Notes = notes
	}
	s.UpdatedAt = now.UTC()
	return nil
}

// Cancel is allowed from scheduled or confirmed. The freed slot does not
// restore quota for the cycle the session was created in.
func (s *Session) Cancel(now time.Time) error {
	if s.Status != StatusScheduled && s.Status != StatusConfirmed {
		return shared.ErrSessionNotCancelable
	}
	s.Status = StatusCancelled
	s.UpdatedAt = now.UTC()
	return nil
}

// SetMeetingURL attaches the video-meeting link, normally once the teacher
// confirms.
func (s *Session) SetMeetingURL(url string) {
	s.MeetingURL = url
}

// AttachResource links a resource id to the session.
func (s *Session) AttachResource(resourceID string) {
	for _, id := range s.ResourceIDs {
		if id == resourceID {
			return
		}
	}
	s.ResourceIDs = append(s.ResourceIDs, resourceID)
}

// Duration returns the session length.
func (s *Session) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// Window returns the occupied time interval [Date, Date+Duration).
func (s *Session) Window() timeutil.Window {
	return timeutil.Window{From: s.Date, To: s.Date.Add(s.Duration())}
}

// Overlaps reports whether two sessions occupy intersecting time windows.
// Cancelled sessions block nothing.
func (s *Session) Overlaps(other *Session) bool {
	if s.Status == StatusCancelled || other.Status == StatusCancelled {
		return false
	}
	return s.Window().Overlaps(other.Window())
}
