package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/encadrement"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
)

const (
	testEncID   = "3f0e8d1c-5b7a-4c2d-9e6f-1a2b3c4d5e6f"
	testStudent = "student-1"
	testTeacher = "teacher-1"
)

func seedEncadrement(t *testing.T, repo *fakeEncadrementRepo, status encadrement.Status) *encadrement.Encadrement {
	t.Helper()
	start := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	enc, err := encadrement.New(testEncID, testStudent, testTeacher, encadrement.FormuleIntensive, start)
	require.NoError(t, err)
	enc.Status = status
	repo.put(enc)
	return enc
}

func TestCreateSubscriptionHandler(t *testing.T) {
	repo := newFakeEncadrementRepo()
	pub := &capturingPublisher{}
	handler := NewCreateSubscriptionHandler(repo, pub, nil)

	result, err := handler.Handle(context.Background(), CreateSubscriptionCommand{
		UserID:    testStudent,
		TeacherID: testTeacher,
		Formule:   "essentielle",
	})

	require.NoError(t, err)
	assert.Equal(t, encadrement.StatusActive, result.Status)
	assert.Equal(t, 2, result.SessionsPerMonth)
	assert.Equal(t, int64(5990), result.MonthlyAmount.Int64())
	assert.False(t, result.NextBillingDate.IsZero())

	stored, err := repo.GetByID(context.Background(), shared.EncadrementID(result.EncadrementID))
	require.NoError(t, err)
	assert.Equal(t, encadrement.StatusActive, stored.Status)

	assert.Equal(t, []shared.EventType{shared.EventEncadrementCreated}, pub.typesSeen())
}

func TestCreateSubscriptionHandler_DuplicatePairing(t *testing.T) {
	repo := newFakeEncadrementRepo()
	seedEncadrement(t, repo, encadrement.StatusActive)
	handler := NewCreateSubscriptionHandler(repo, &capturingPublisher{}, nil)

	_, err := handler.Handle(context.Background(), CreateSubscriptionCommand{
		UserID:    testStudent,
		TeacherID: testTeacher,
		Formule:   "intensive",
	})
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)

	// A paused pairing still blocks a new subscription.
	repo2 := newFakeEncadrementRepo()
	seedEncadrement(t, repo2, encadrement.StatusPaused)
	handler2 := NewCreateSubscriptionHandler(repo2, &capturingPublisher{}, nil)
	_, err = handler2.Handle(context.Background(), CreateSubscriptionCommand{
		UserID: testStudent, TeacherID: testTeacher, Formule: "intensive",
	})
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)
}

func TestCreateSubscriptionHandler_ReplacesCancelledPairing(t *testing.T) {
	repo := newFakeEncadrementRepo()
	seedEncadrement(t, repo, encadrement.StatusCancelled)
	handler := NewCreateSubscriptionHandler(repo, &capturingPublisher{}, nil)

	result, err := handler.Handle(context.Background(), CreateSubscriptionCommand{
		UserID:    testStudent,
		TeacherID: testTeacher,
		Formule:   "excellence",
	})
	require.NoError(t, err)
	assert.NotEqual(t, testEncID, result.EncadrementID)
	assert.Equal(t, 8, result.SessionsPerMonth)
}

func TestCreateSubscriptionHandler_UnknownFormule(t *testing.T) {
	handler := NewCreateSubscriptionHandler(newFakeEncadrementRepo(), &capturingPublisher{}, nil)

	_, err := handler.Handle(context.Background(), CreateSubscriptionCommand{
		UserID:    testStudent,
		TeacherID: testTeacher,
		Formule:   "premium",
	})
	assert.ErrorIs(t, err, shared.ErrInvalidPlan)
}
