package encadrement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
)

const (
	testID      = shared.EncadrementID("3f0e8d1c-5b7a-4c2d-9e6f-1a2b3c4d5e6f")
	testStudent = shared.UserID("student-1")
	testTeacher = shared.UserID("teacher-1")
)

func newTestEncadrement(t *testing.T, now time.Time) *Encadrement {
	t.Helper()
	e, err := New(testID, testStudent, testTeacher, FormuleIntensive, now)
	require.NoError(t, err)
	return e
}

func TestNew(t *testing.T) {
	now := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)

	for _, formule := range KnownFormules() {
		e, err := New(testID, testStudent, testTeacher, formule, now)
		require.NoError(t, err, "formule %s", formule)

		plan, _ := LookupPlan(formule)
		assert.Equal(t, StatusActive, e.Status)
		assert.Equal(t, now, e.StartDate)
		assert.Equal(t, now.AddDate(0, 1, 0), e.NextBillingDate)
		assert.Equal(t, plan.SessionsPerMonth, e.SessionsPerMonth)
		assert.Equal(t, plan.MonthlyAmount, e.MonthlyAmount)
		assert.Zero(t, e.ConsecutiveBillingFailures)
		assert.False(t, e.BillingGrace)
	}
}

func TestNew_UnknownFormule(t *testing.T) {
	_, err := New(testID, testStudent, testTeacher, Formule("premium-gold"), time.Now())
	assert.ErrorIs(t, err, shared.ErrInvalidPlan)
}

func TestNew_SameStudentAndTeacher(t *testing.T) {
	_, err := New(testID, testStudent, testStudent, FormuleEssentielle, time.Now())
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestNew_EndOfMonthBillingAnchor(t *testing.T) {
	// A subscription opened January 31 must bill February 28, not March 3.
	now := time.Date(2025, 1, 31, 9, 0, 0, 0, time.UTC)
	e := newTestEncadrement(t, now)
	assert.Equal(t, time.Date(2025, 2, 28, 9, 0, 0, 0, time.UTC), e.NextBillingDate)
}

func TestPauseResume(t *testing.T) {
	now := time.Now().UTC()
	e := newTestEncadrement(t, now)

	require.NoError(t, e.Pause(now))
	assert.Equal(t, StatusPaused, e.Status)

	// Pausing twice is an invalid transition.
	assert.ErrorIs(t, e.Pause(now), shared.ErrStateTransition)

	require.NoError(t, e.Resume(now))
	assert.Equal(t, StatusActive, e.Status)

	// Resuming an active encadrement is an invalid transition.
	assert.ErrorIs(t, e.Resume(now), shared.ErrStateTransition)
}

func TestPause_FreezesBillingDate(t *testing.T) {
	now := time.Now().UTC()
	e := newTestEncadrement(t, now)
	billing := e.NextBillingDate

	require.NoError(t, e.Pause(now))
	assert.Equal(t, billing, e.NextBillingDate)
	assert.False(t, e.BillingDue(billing.Add(time.Hour)), "paused encadrement is never billed")
}

func TestCancel_IsIdempotentAndTerminal(t *testing.T) {
	now := time.Now().UTC()
	e := newTestEncadrement(t, now)

	require.NoError(t, e.Cancel(now))
	assert.Equal(t, StatusCancelled, e.Status)

	// Second cancel is a no-op, not an error.
	require.NoError(t, e.Cancel(now))
	assert.Equal(t, StatusCancelled, e.Status)

	// Nothing leaves the terminal state.
	assert.ErrorIs(t, e.Pause(now), shared.ErrStateTransition)
	assert.ErrorIs(t, e.Resume(now), shared.ErrStateTransition)
	_, err := e.RecordBillingSuccess(now, DefaultBillingPolicy())
	assert.ErrorIs(t, err, shared.ErrStateTransition)
	_, err = e.RecordBillingFailure(now, DefaultBillingPolicy())
	assert.ErrorIs(t, err, shared.ErrStateTransition)
}

func TestCancel_FromPaused(t *testing.T) {
	now := time.Now().UTC()
	e := newTestEncadrement(t, now)
	require.NoError(t, e.Pause(now))
	require.NoError(t, e.Cancel(now))
	assert.Equal(t, StatusCancelled, e.Status)
}

func TestRecordBillingSuccess_AdvancesOneMonth(t *testing.T) {
	now := time.Date(2025, 5, 10, 8, 0, 0, 0, time.UTC)
	e := newTestEncadrement(t, now)

	resumed, err := e.RecordBillingSuccess(now, DefaultBillingPolicy())
	require.NoError(t, err)
	assert.False(t, resumed)
	assert.Equal(t, time.Date(2025, 7, 10, 8, 0, 0, 0, time.UTC), e.NextBillingDate)
}

func TestBillingFailurePolicy(t *testing.T) {
	now := time.Now().UTC()
	e := newTestEncadrement(t, now)

	// First failure: grace flag only, still active.
	autoPaused, err := e.RecordBillingFailure(now, DefaultBillingPolicy())
	require.NoError(t, err)
	assert.False(t, autoPaused)
	assert.True(t, e.BillingGrace)
	assert.Equal(t, StatusActive, e.Status)
	assert.Equal(t, 1, e.ConsecutiveBillingFailures)

	// Second consecutive failure: auto-pause.
	autoPaused, err = e.RecordBillingFailure(now, DefaultBillingPolicy())
	require.NoError(t, err)
	assert.True(t, autoPaused)
	assert.Equal(t, StatusPaused, e.Status)
	assert.Equal(t, 2, e.ConsecutiveBillingFailures)
}

func TestBillingFailure_NoGracePausesImmediately(t *testing.T) {
	now := time.Now().UTC()
	e := newTestEncadrement(t, now)

	autoPaused, err := e.RecordBillingFailure(now, BillingPolicy{GracePeriod: false})
	require.NoError(t, err)
	assert.True(t, autoPaused)
	assert.Equal(t, StatusPaused, e.Status)
	assert.Equal(t, 1, e.ConsecutiveBillingFailures)
}

func TestBillingSuccess_ResetsCounterWithoutAutoResume(t *testing.T) {
	now := time.Now().UTC()
	e := newTestEncadrement(t, now)

	_, err := e.RecordBillingFailure(now, DefaultBillingPolicy())
	require.NoError(t, err)
	_, err = e.RecordBillingFailure(now, DefaultBillingPolicy())
	require.NoError(t, err)
	require.Equal(t, StatusPaused, e.Status)

	// A later success resets the failure streak but the encadrement stays
	// paused until an explicit resume.
	resumed, err := e.RecordBillingSuccess(now, DefaultBillingPolicy())
	require.NoError(t, err)
	assert.False(t, resumed)
	assert.Zero(t, e.ConsecutiveBillingFailures)
	assert.False(t, e.BillingGrace)
	assert.Equal(t, StatusPaused, e.Status)

	require.NoError(t, e.Resume(now))
	assert.Equal(t, StatusActive, e.Status)
}

func TestBillingSuccess_AutoResumePolicy(t *testing.T) {
	now := time.Now().UTC()
	e := newTestEncadrement(t, now)
	policy := BillingPolicy{AutoResume: true, GracePeriod: true}

	_, err := e.RecordBillingFailure(now, policy)
	require.NoError(t, err)
	_, err = e.RecordBillingFailure(now, policy)
	require.NoError(t, err)
	require.Equal(t, StatusPaused, e.Status)

	// The recovered charge reactivates the encadrement.
	resumed, err := e.RecordBillingSuccess(now, policy)
	require.NoError(t, err)
	assert.True(t, resumed)
	assert.Equal(t, StatusActive, e.Status)
	assert.Zero(t, e.ConsecutiveBillingFailures)

	// An active encadrement has nothing to resume.
	resumed, err = e.RecordBillingSuccess(now, policy)
	require.NoError(t, err)
	assert.False(t, resumed)
}

func TestBillingSuccess_ResetsGraceAfterSingleFailure(t *testing.T) {
	now := time.Now().UTC()
	e := newTestEncadrement(t, now)

	_, err := e.RecordBillingFailure(now, DefaultBillingPolicy())
	require.NoError(t, err)

	_, err = e.RecordBillingSuccess(now, DefaultBillingPolicy())
	require.NoError(t, err)
	assert.Zero(t, e.ConsecutiveBillingFailures)
	assert.False(t, e.BillingGrace)
	assert.Equal(t, StatusActive, e.Status)
}

func TestCurrentBillingWindow(t *testing.T) {
	now := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	e := newTestEncadrement(t, now)

	w := e.CurrentBillingWindow()
	assert.Equal(t, now, w.From)
	assert.Equal(t, e.NextBillingDate, w.To)
	assert.True(t, w.Contains(now))
	assert.True(t, w.Contains(now.AddDate(0, 0, 20)))
	assert.False(t, w.Contains(e.NextBillingDate), "window is half-open")
}

func TestBillingDue(t *testing.T) {
	now := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	e := newTestEncadrement(t, now)

	assert.False(t, e.BillingDue(now))
	assert.False(t, e.BillingDue(e.NextBillingDate.Add(-time.Second)))
	assert.True(t, e.BillingDue(e.NextBillingDate))
	assert.True(t, e.BillingDue(e.NextBillingDate.Add(48*time.Hour)))
}

func TestAcceptsMessages(t *testing.T) {
	now := time.Now().UTC()
	e := newTestEncadrement(t, now)
	assert.True(t, e.AcceptsMessages())

	require.NoError(t, e.Pause(now))
	assert.True(t, e.AcceptsMessages(), "messaging stays open while paused")

	require.NoError(t, e.Cancel(now))
	assert.False(t, e.AcceptsMessages())
}

func TestOtherParty(t *testing.T) {
	e := newTestEncadrement(t, time.Now().UTC())

	other, err := e.OtherParty(testStudent)
	require.NoError(t, err)
	assert.Equal(t, testTeacher, other)

	other, err = e.OtherParty(testTeacher)
	require.NoError(t, err)
	assert.Equal(t, testStudent, other)

	_, err = e.OtherParty(shared.UserID("stranger"))
	assert.ErrorIs(t, err, shared.ErrForbidden)
}
