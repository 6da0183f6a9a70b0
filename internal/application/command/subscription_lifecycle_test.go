package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/encadrement"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
)

func TestSubscriptionLifecycleHandler_PauseResume(t *testing.T) {
	repo := newFakeEncadrementRepo()
	seedEncadrement(t, repo, encadrement.StatusActive)
	pub := &capturingPublisher{}
	handler := NewSubscriptionLifecycleHandler(repo, pub, nil, nil)

	result, err := handler.Handle(context.Background(), SubscriptionLifecycleCommand{
		EncadrementID: testEncID, Action: ActionPause, InitiatorID: testStudent,
	})
	require.NoError(t, err)
	assert.Equal(t, encadrement.StatusActive, result.From)
	assert.Equal(t, encadrement.StatusPaused, result.To)

	result, err = handler.Handle(context.Background(), SubscriptionLifecycleCommand{
		EncadrementID: testEncID, Action: ActionResume, InitiatorID: testStudent,
	})
	require.NoError(t, err)
	assert.Equal(t, encadrement.StatusActive, result.To)

	assert.Equal(t, []shared.EventType{
		shared.EventEncadrementPaused,
		shared.EventEncadrementResumed,
	}, pub.typesSeen())
}

func TestSubscriptionLifecycleHandler_PauseRequiresActive(t *testing.T) {
	repo := newFakeEncadrementRepo()
	seedEncadrement(t, repo, encadrement.StatusPaused)
	handler := NewSubscriptionLifecycleHandler(repo, &capturingPublisher{}, nil, nil)

	_, err := handler.Handle(context.Background(), SubscriptionLifecycleCommand{
		EncadrementID: testEncID, Action: ActionPause,
	})
	assert.ErrorIs(t, err, shared.ErrStateTransition)
}

func TestSubscriptionLifecycleHandler_CancelIsIdempotent(t *testing.T) {
	repo := newFakeEncadrementRepo()
	seedEncadrement(t, repo, encadrement.StatusActive)
	pub := &capturingPublisher{}
	handler := NewSubscriptionLifecycleHandler(repo, pub, nil, nil)

	result, err := handler.Handle(context.Background(), SubscriptionLifecycleCommand{
		EncadrementID: testEncID, Action: ActionCancel, InitiatorID: testStudent,
	})
	require.NoError(t, err)
	assert.False(t, result.AlreadyApplied)
	assert.Equal(t, encadrement.StatusCancelled, result.To)

	// Second cancel is a silent no-op, and no second event fires.
	result, err = handler.Handle(context.Background(), SubscriptionLifecycleCommand{
		EncadrementID: testEncID, Action: ActionCancel, InitiatorID: testStudent,
	})
	require.NoError(t, err)
	assert.True(t, result.AlreadyApplied)
	assert.Equal(t, []shared.EventType{shared.EventEncadrementCancelled}, pub.typesSeen())
}

func TestSubscriptionLifecycleHandler_CancelledIsAbsorbing(t *testing.T) {
	repo := newFakeEncadrementRepo()
	seedEncadrement(t, repo, encadrement.StatusCancelled)
	handler := NewSubscriptionLifecycleHandler(repo, &capturingPublisher{}, nil, nil)

	for _, action := range []LifecycleAction{ActionPause, ActionResume} {
		_, err := handler.Handle(context.Background(), SubscriptionLifecycleCommand{
			EncadrementID: testEncID, Action: action,
		})
		assert.ErrorIs(t, err, shared.ErrStateTransition, "action %s must fail on cancelled", action)
	}
}

func TestSubscriptionLifecycleHandler_NotFound(t *testing.T) {
	handler := NewSubscriptionLifecycleHandler(newFakeEncadrementRepo(), &capturingPublisher{}, nil, nil)

	_, err := handler.Handle(context.Background(), SubscriptionLifecycleCommand{
		EncadrementID: testEncID, Action: ActionPause,
	})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
