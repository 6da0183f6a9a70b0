package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/encadrement"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
)

func newProgressFixture(t *testing.T, status encadrement.Status) (*UpdateProgressHandler, *fakeProgressRepo) {
	t.Helper()
	encRepo := newFakeEncadrementRepo()
	seedEncadrement(t, encRepo, status)
	progRepo := newFakeProgressRepo()
	return NewUpdateProgressHandler(encRepo, progRepo, &capturingPublisher{}, nil), progRepo
}

func TestUpdateProgressHandler(t *testing.T) {
	handler, progRepo := newProgressFixture(t, encadrement.StatusActive)

	result, err := handler.Handle(context.Background(), UpdateProgressCommand{
		EncadrementID: testEncID, Chapter: "maths-suites", Progress: 45, Notes: "convergence OK",
	})
	require.NoError(t, err)
	assert.Equal(t, 45.0, result.Progress)

	stored, err := progRepo.GetByEncadrement(context.Background(), testEncID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.False(t, stored["maths-suites"].LastUpdated.IsZero())
}

func TestUpdateProgressHandler_LaterWriteWins(t *testing.T) {
	handler, progRepo := newProgressFixture(t, encadrement.StatusActive)

	_, err := handler.Handle(context.Background(), UpdateProgressCommand{
		EncadrementID: testEncID, Chapter: "maths-suites", Progress: 80,
	})
	require.NoError(t, err)

	// A lower value written later is a legal correction and overwrites.
	_, err = handler.Handle(context.Background(), UpdateProgressCommand{
		EncadrementID: testEncID, Chapter: "maths-suites", Progress: 60, Notes: "re-assessed after test",
	})
	require.NoError(t, err)

	stored, err := progRepo.GetByEncadrement(context.Background(), testEncID)
	require.NoError(t, err)
	assert.Equal(t, 60.0, stored["maths-suites"].Progress.Float64())
	assert.Equal(t, "re-assessed after test", stored["maths-suites"].Notes)
}

func TestUpdateProgressHandler_ChaptersAreIndependent(t *testing.T) {
	handler, progRepo := newProgressFixture(t, encadrement.StatusActive)

	for chapter, value := range map[string]float64{
		"maths-suites":  40,
		"maths-limites": 100,
		"physique-onde": 10,
	} {
		_, err := handler.Handle(context.Background(), UpdateProgressCommand{
			EncadrementID: testEncID, Chapter: chapter, Progress: value,
		})
		require.NoError(t, err)
	}

	stored, err := progRepo.GetByEncadrement(context.Background(), testEncID)
	require.NoError(t, err)
	assert.Len(t, stored, 3)
	assert.True(t, stored["maths-limites"].Progress.IsComplete())
}

func TestUpdateProgressHandler_Validation(t *testing.T) {
	handler, _ := newProgressFixture(t, encadrement.StatusActive)

	_, err := handler.Handle(context.Background(), UpdateProgressCommand{
		EncadrementID: testEncID, Chapter: "maths-suites", Progress: 101,
	})
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)

	_, err = handler.Handle(context.Background(), UpdateProgressCommand{
		EncadrementID: testEncID, Chapter: "Maths Suites!", Progress: 50,
	})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestUpdateProgressHandler_RejectedOnCancelled(t *testing.T) {
	handler, _ := newProgressFixture(t, encadrement.StatusCancelled)

	_, err := handler.Handle(context.Background(), UpdateProgressCommand{
		EncadrementID: testEncID, Chapter: "maths-suites", Progress: 50,
	})
	assert.ErrorIs(t, err, shared.ErrSubscriptionCancelled)
}

func TestUpdateProgressHandler_AuthorizesViaStatusReader(t *testing.T) {
	// The handler works against a status-only source, such as the Redis
	// status cache fronting the repository. Paused encadrements stay
	// writable: only cancellation makes progress read-only.
	statuses := &statusStub{status: encadrement.StatusPaused}
	handler := NewUpdateProgressHandler(statuses, newFakeProgressRepo(), &capturingPublisher{}, nil)

	_, err := handler.Handle(context.Background(), UpdateProgressCommand{
		EncadrementID: testEncID, Chapter: "maths-suites", Progress: 50,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, statuses.calls)
}
