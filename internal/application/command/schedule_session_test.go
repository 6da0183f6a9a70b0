package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/encadrement"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/session"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
)

func newSessionFixture(t *testing.T, status encadrement.Status) (*ScheduleSessionHandler, *fakeSessionRepo, *capturingPublisher) {
	t.Helper()
	encRepo := newFakeEncadrementRepo()
	seedEncadrement(t, encRepo, status)
	sessRepo := newFakeSessionRepo(encRepo)
	pub := &capturingPublisher{}
	handler := NewScheduleSessionHandler(encRepo, sessRepo, pub, nil)
	// Pin the clock inside the seeded encadrement's billing cycle
	// (2026-03-15..2026-04-15) so quota counting sees the sessions.
	handler.now = func() time.Time { return time.Date(2026, 3, 18, 10, 0, 0, 0, time.UTC) }
	return handler, sessRepo, pub
}

func scheduleAt(t *testing.T, handler *ScheduleSessionHandler, date time.Time) (*ScheduleSessionResult, error) {
	t.Helper()
	return handler.Handle(context.Background(), ScheduleSessionCommand{
		EncadrementID:   testEncID,
		Date:            date,
		DurationMinutes: 60,
		Subject:         "maths-suites",
	})
}

func TestScheduleSessionHandler(t *testing.T) {
	handler, _, pub := newSessionFixture(t, encadrement.StatusActive)

	result, err := scheduleAt(t, handler, time.Date(2026, 3, 20, 14, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, session.StatusScheduled, result.Status)
	assert.Equal(t, 1, result.QuotaUsed)
	assert.Equal(t, 4, result.QuotaLimit)
	assert.Equal(t, []shared.EventType{shared.EventSessionScheduled}, pub.typesSeen())
}

func TestScheduleSessionHandler_QuotaExhaustion(t *testing.T) {
	handler, _, _ := newSessionFixture(t, encadrement.StatusActive)

	// The intensive formule allows four sessions per cycle.
	base := time.Date(2026, 3, 20, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		_, err := scheduleAt(t, handler, base.Add(time.Duration(i)*2*time.Hour))
		require.NoError(t, err)
	}

	_, err := scheduleAt(t, handler, base.Add(10*time.Hour))
	assert.ErrorIs(t, err, shared.ErrQuotaExceeded)
}

func TestScheduleSessionHandler_CancellationDoesNotRefundQuota(t *testing.T) {
	handler, sessRepo, _ := newSessionFixture(t, encadrement.StatusActive)

	base := time.Date(2026, 3, 20, 8, 0, 0, 0, time.UTC)
	var lastID string
	for i := 0; i < 4; i++ {
		result, err := scheduleAt(t, handler, base.Add(time.Duration(i)*2*time.Hour))
		require.NoError(t, err)
		lastID = result.SessionID
	}

	// Cancelling one of the four frees the teacher's slot but not the quota.
	now := time.Now().UTC()
	require.NoError(t, sessRepo.UpdateStatus(context.Background(), lastID,
		session.StatusScheduled, session.StatusCancelled, "", now))

	_, err := scheduleAt(t, handler, base.Add(12*time.Hour))
	assert.ErrorIs(t, err, shared.ErrQuotaExceeded)
}

func TestScheduleSessionHandler_RequiresActiveSubscription(t *testing.T) {
	for _, status := range []encadrement.Status{encadrement.StatusPaused, encadrement.StatusCancelled} {
		handler, _, _ := newSessionFixture(t, status)
		_, err := scheduleAt(t, handler, time.Date(2026, 3, 20, 14, 0, 0, 0, time.UTC))
		assert.ErrorIs(t, err, shared.ErrSubscriptionNotActive, "status %s must reject scheduling", status)
	}
}

func TestScheduleSessionHandler_TeacherConflict(t *testing.T) {
	handler, _, _ := newSessionFixture(t, encadrement.StatusActive)

	slot := time.Date(2026, 3, 20, 14, 0, 0, 0, time.UTC)
	_, err := scheduleAt(t, handler, slot)
	require.NoError(t, err)

	// Same teacher, overlapping window.
	_, err = scheduleAt(t, handler, slot.Add(30*time.Minute))
	assert.ErrorIs(t, err, shared.ErrSchedulingConflict)

	// Back-to-back is fine: windows are half-open.
	_, err = scheduleAt(t, handler, slot.Add(60*time.Minute))
	assert.NoError(t, err)
}

func TestScheduleSessionHandler_Validation(t *testing.T) {
	handler, _, _ := newSessionFixture(t, encadrement.StatusActive)

	_, err := handler.Handle(context.Background(), ScheduleSessionCommand{
		EncadrementID:   testEncID,
		Date:            time.Date(2026, 3, 20, 14, 0, 0, 0, time.UTC),
		DurationMinutes: 5, // below the 15 minute floor
		Subject:         "maths-suites",
	})
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)
}
