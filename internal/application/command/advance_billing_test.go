package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/encadrement"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
	"github.com/reussite-hub/reussite-tutoring-hub/pkg/timeutil"
)

func TestAdvanceBillingHandler_Success(t *testing.T) {
	repo := newFakeEncadrementRepo()
	enc := seedEncadrement(t, repo, encadrement.StatusActive)
	pub := &capturingPublisher{}
	handler := NewAdvanceBillingHandler(repo, pub, nil, encadrement.DefaultBillingPolicy(), nil)

	result, err := handler.Handle(context.Background(), AdvanceBillingCommand{
		EncadrementID: testEncID, Outcome: BillingSuccess, ProviderRef: "ch_123",
	})
	require.NoError(t, err)

	assert.Equal(t, timeutil.AddMonths(enc.NextBillingDate, 1), result.NextBillingDate)
	assert.Equal(t, 0, result.ConsecutiveFailures)
	assert.False(t, result.AutoPaused)
	assert.Equal(t, []shared.EventType{shared.EventBillingAdvanced}, pub.typesSeen())
}

func TestAdvanceBillingHandler_FailurePolicy(t *testing.T) {
	repo := newFakeEncadrementRepo()
	seedEncadrement(t, repo, encadrement.StatusActive)
	pub := &capturingPublisher{}
	handler := NewAdvanceBillingHandler(repo, pub, nil, encadrement.DefaultBillingPolicy(), nil)

	// First failure: grace, no pause.
	result, err := handler.Handle(context.Background(), AdvanceBillingCommand{
		EncadrementID: testEncID, Outcome: BillingFailure,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.ConsecutiveFailures)
	assert.False(t, result.AutoPaused)

	stored, err := repo.GetByID(context.Background(), testEncID)
	require.NoError(t, err)
	assert.Equal(t, encadrement.StatusActive, stored.Status)
	assert.True(t, stored.BillingGrace)

	// Second consecutive failure: auto-pause.
	result, err = handler.Handle(context.Background(), AdvanceBillingCommand{
		EncadrementID: testEncID, Outcome: BillingFailure,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.ConsecutiveFailures)
	assert.True(t, result.AutoPaused)

	stored, err = repo.GetByID(context.Background(), testEncID)
	require.NoError(t, err)
	assert.Equal(t, encadrement.StatusPaused, stored.Status)

	assert.Equal(t, []shared.EventType{
		shared.EventBillingFailed,
		shared.EventBillingFailed,
		shared.EventBillingAutoPause,
	}, pub.typesSeen())
}

func TestAdvanceBillingHandler_SuccessResetsStreakWithoutResume(t *testing.T) {
	repo := newFakeEncadrementRepo()
	seedEncadrement(t, repo, encadrement.StatusActive)
	handler := NewAdvanceBillingHandler(repo, &capturingPublisher{}, nil, encadrement.DefaultBillingPolicy(), nil)

	for i := 0; i < 2; i++ {
		_, err := handler.Handle(context.Background(), AdvanceBillingCommand{
			EncadrementID: testEncID, Outcome: BillingFailure,
		})
		require.NoError(t, err)
	}

	// The retried charge eventually succeeds while paused: counter and grace
	// clear but the encadrement stays paused until an explicit resume.
	result, err := handler.Handle(context.Background(), AdvanceBillingCommand{
		EncadrementID: testEncID, Outcome: BillingSuccess,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ConsecutiveFailures)

	stored, err := repo.GetByID(context.Background(), testEncID)
	require.NoError(t, err)
	assert.Equal(t, encadrement.StatusPaused, stored.Status)
	assert.False(t, stored.BillingGrace)
}

func TestAdvanceBillingHandler_AutoResumePolicy(t *testing.T) {
	repo := newFakeEncadrementRepo()
	seedEncadrement(t, repo, encadrement.StatusPaused)
	pub := &capturingPublisher{}
	invalidator := &recordingInvalidator{}
	handler := NewAdvanceBillingHandler(repo, pub, invalidator,
		encadrement.BillingPolicy{AutoResume: true, GracePeriod: true}, nil)

	// With auto-resume on, the recovered charge reactivates the paused
	// encadrement and drops the cached status.
	result, err := handler.Handle(context.Background(), AdvanceBillingCommand{
		EncadrementID: testEncID, Outcome: BillingSuccess, ProviderRef: "ch_retry",
	})
	require.NoError(t, err)
	assert.True(t, result.Resumed)
	assert.False(t, result.AutoPaused)

	stored, err := repo.GetByID(context.Background(), testEncID)
	require.NoError(t, err)
	assert.Equal(t, encadrement.StatusActive, stored.Status)

	assert.Equal(t, []shared.EventType{
		shared.EventBillingAdvanced,
		shared.EventEncadrementResumed,
	}, pub.typesSeen())
	assert.Equal(t, []shared.EncadrementID{testEncID}, invalidator.ids)
}

func TestAdvanceBillingHandler_NoGracePausesOnFirstFailure(t *testing.T) {
	repo := newFakeEncadrementRepo()
	seedEncadrement(t, repo, encadrement.StatusActive)
	pub := &capturingPublisher{}
	handler := NewAdvanceBillingHandler(repo, pub, nil,
		encadrement.BillingPolicy{GracePeriod: false}, nil)

	result, err := handler.Handle(context.Background(), AdvanceBillingCommand{
		EncadrementID: testEncID, Outcome: BillingFailure,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.ConsecutiveFailures)
	assert.True(t, result.AutoPaused)

	stored, err := repo.GetByID(context.Background(), testEncID)
	require.NoError(t, err)
	assert.Equal(t, encadrement.StatusPaused, stored.Status)
}

func TestAdvanceBillingHandler_RetriesTransientStoreFailure(t *testing.T) {
	inner := newFakeEncadrementRepo()
	seedEncadrement(t, inner, encadrement.StatusActive)
	repo := &flakyEncadrementRepo{fakeEncadrementRepo: inner, failures: 1}
	handler := NewAdvanceBillingHandler(repo, &capturingPublisher{}, nil,
		encadrement.DefaultBillingPolicy(), nil)

	// The first write attempt hits a store outage classified as retryable;
	// the handler re-reads and lands the outcome on the second pass.
	result, err := handler.Handle(context.Background(), AdvanceBillingCommand{
		EncadrementID: testEncID, Outcome: BillingSuccess,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ConsecutiveFailures)
	assert.Equal(t, 2, repo.attempts)
}

func TestAdvanceBillingHandler_RejectedOnCancelled(t *testing.T) {
	repo := newFakeEncadrementRepo()
	seedEncadrement(t, repo, encadrement.StatusCancelled)
	handler := NewAdvanceBillingHandler(repo, &capturingPublisher{}, nil, encadrement.DefaultBillingPolicy(), nil)

	_, err := handler.Handle(context.Background(), AdvanceBillingCommand{
		EncadrementID: testEncID, Outcome: BillingSuccess,
	})
	assert.ErrorIs(t, err, shared.ErrStateTransition)
}

func TestAdvanceBillingHandler_EndOfMonthClamping(t *testing.T) {
	repo := newFakeEncadrementRepo()
	start := time.Date(2025, 12, 31, 9, 0, 0, 0, time.UTC)
	enc, err := encadrement.New(testEncID, testStudent, testTeacher, encadrement.FormuleEssentielle, start)
	require.NoError(t, err)
	repo.put(enc)
	handler := NewAdvanceBillingHandler(repo, &capturingPublisher{}, nil, encadrement.DefaultBillingPolicy(), nil)

	// Dec 31 -> Jan 31 at creation; the next advance clamps to Feb 28.
	result, err := handler.Handle(context.Background(), AdvanceBillingCommand{
		EncadrementID: testEncID, Outcome: BillingSuccess,
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 28, 9, 0, 0, 0, time.UTC), result.NextBillingDate)
}
