package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
)

const (
	testEncadrement = shared.EncadrementID("3f0e8d1c-5b7a-4c2d-9e6f-1a2b3c4d5e6f")
	testStudent     = shared.UserID("student-1")
	testTeacher     = shared.UserID("teacher-1")
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	s, err := New("sess-1", testEncadrement, testStudent, testTeacher,
		now.AddDate(0, 0, 3), 60, "maths-suites", now)
	require.NoError(t, err)
	return s
}

func TestNew(t *testing.T) {
	s := newTestSession(t)
	assert.Equal(t, StatusScheduled, s.Status)
	assert.Equal(t, testStudent, s.UserID)
	assert.Equal(t, testTeacher, s.TeacherID)
	assert.Equal(t, time.Hour, s.Duration())

	// The attachment list starts empty, never nil: a nil slice would reach
	// the store as SQL NULL and violate the column constraint.
	assert.NotNil(t, s.ResourceIDs)
	assert.Empty(t, s.ResourceIDs)
}

func TestNew_Validation(t *testing.T) {
	now := time.Now().UTC()
	date := now.AddDate(0, 0, 1)

	_, err := New("", testEncadrement, testStudent, testTeacher, date, 60, "maths", now)
	assert.ErrorIs(t, err, shared.ErrInvalidID)

	_, err = New("sess-1", testEncadrement, testStudent, testTeacher, date, 0, "maths", now)
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)

	_, err = New("sess-1", testEncadrement, testStudent, testTeacher, date, 500, "maths", now)
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)

	_, err = New("sess-1", testEncadrement, testStudent, testTeacher, date, 60, "", now)
	assert.ErrorIs(t, err, shared.ErrEmptyValue)
}

func TestConfirm(t *testing.T) {
	now := time.Now().UTC()
	s := newTestSession(t)

	require.NoError(t, s.Confirm(now))
	assert.Equal(t, StatusConfirmed, s.Status)

	// Confirming twice is an invalid transition.
	assert.ErrorIs(t, s.Confirm(now), shared.ErrStateTransition)
}

func TestComplete_RequiresConfirmation(t *testing.T) {
	now := time.Now().UTC()
	s := newTestSession(t)

	// Cannot complete straight from scheduled.
	assert.ErrorIs(t, s.Complete("notes", now), shared.ErrStateTransition)

	require.NoError(t, s.Confirm(now))
	require.NoError(t, s.Complete("worked on convergence proofs", now))
	assert.Equal(t, StatusCompleted, s.Status)
	assert.Equal(t, "worked on convergence proofs", s.Notes)

	// Completing twice is an invalid transition.
	assert.ErrorIs(t, s.Complete("", now), shared.ErrStateTransition)
}

func TestCancel(t *testing.T) {
	now := time.Now().UTC()

	// From scheduled.
	s := newTestSession(t)
	require.NoError(t, s.Cancel(now))
	assert.Equal(t, StatusCancelled, s.Status)

	// From confirmed.
	s = newTestSession(t)
	require.NoError(t, s.Confirm(now))
	require.NoError(t, s.Cancel(now))
	assert.Equal(t, StatusCancelled, s.Status)

	// Cancelled is final.
	assert.ErrorIs(t, s.Cancel(now), shared.ErrStateTransition)
	assert.ErrorIs(t, s.Confirm(now), shared.ErrStateTransition)
}

func TestCancel_RejectedOnCompleted(t *testing.T) {
	now := time.Now().UTC()
	s := newTestSession(t)
	require.NoError(t, s.Confirm(now))
	require.NoError(t, s.Complete("", now))

	assert.ErrorIs(t, s.Cancel(now), shared.ErrStateTransition)
	assert.Equal(t, StatusCompleted, s.Status)
}

func TestOverlaps(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	base := now.AddDate(0, 0, 3)

	mk := func(id string, date time.Time, minutes int) *Session {
		s, err := New(id, testEncadrement, testStudent, testTeacher, date, minutes, "maths", now)
		require.NoError(t, err)
		return s
	}

	a := mk("a", base, 60)

	assert.True(t, a.Overlaps(mk("b", base.Add(30*time.Minute), 60)), "half-hour overlap")
	assert.True(t, a.Overlaps(mk("c", base.Add(-30*time.Minute), 60)), "overlap from before")
	assert.False(t, a.Overlaps(mk("d", base.Add(time.Hour), 60)), "back-to-back sessions do not overlap")
	assert.False(t, a.Overlaps(mk("e", base.Add(-time.Hour), 60)), "ends exactly at start")

	// Cancelled sessions block nothing.
	cancelled := mk("f", base, 60)
	require.NoError(t, cancelled.Cancel(now))
	assert.False(t, a.Overlaps(cancelled))
}

func TestAttachResource_Deduplicates(t *testing.T) {
	s := newTestSession(t)
	s.AttachResource("res-1")
	s.AttachResource("res-2")
	s.AttachResource("res-1")
	assert.Equal(t, []string{"res-1", "res-2"}, s.ResourceIDs)
}
