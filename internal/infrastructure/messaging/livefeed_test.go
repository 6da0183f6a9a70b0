package messaging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/reussite-hub/reussite-tutoring-hub/internal/domain/messaging"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
)

const (
	feedChannelA = shared.EncadrementID("3f0e8d1c-5b7a-4c2d-9e6f-1a2b3c4d5e6f")
	feedChannelB = shared.EncadrementID("9a8b7c6d-5e4f-4a3b-8c2d-1e0f9a8b7c6d")
)

func feedMessage(channel shared.EncadrementID, id string) *domain.Message {
	return &domain.Message{
		ID:            id,
		EncadrementID: channel,
		SenderID:      "student-1",
		RecipientID:   "teacher-1",
		Content:       "hello",
		CreatedAt:     time.Now(),
	}
}

func TestLiveFeed_DeliversToSubscriber(t *testing.T) {
	feed := NewLiveFeed()

	var got []*domain.Message
	sub, err := feed.Subscribe(feedChannelA, func(m *domain.Message) {
		got = append(got, m)
	})
	require.NoError(t, err)
	defer sub.Cancel()

	feed.Publish(feedMessage(feedChannelA, "m-1"))
	feed.Publish(feedMessage(feedChannelA, "m-2"))

	require.Len(t, got, 2)
	assert.Equal(t, "m-1", got[0].ID)
	assert.Equal(t, "m-2", got[1].ID)
}

func TestLiveFeed_ChannelsAreIsolated(t *testing.T) {
	feed := NewLiveFeed()

	var got []*domain.Message
	sub, err := feed.Subscribe(feedChannelA, func(m *domain.Message) {
		got = append(got, m)
	})
	require.NoError(t, err)
	defer sub.Cancel()

	feed.Publish(feedMessage(feedChannelB, "other-channel"))

	assert.Empty(t, got)
}

func TestLiveFeed_CancelStopsDelivery(t *testing.T) {
	feed := NewLiveFeed()

	var got []*domain.Message
	sub, err := feed.Subscribe(feedChannelA, func(m *domain.Message) {
		got = append(got, m)
	})
	require.NoError(t, err)

	feed.Publish(feedMessage(feedChannelA, "before"))
	sub.Cancel()
	feed.Publish(feedMessage(feedChannelA, "after"))

	require.Len(t, got, 1)
	assert.Equal(t, "before", got[0].ID)
	assert.Zero(t, feed.ListenerCount(feedChannelA))
}

func TestLiveFeed_CancelIsIdempotent(t *testing.T) {
	feed := NewLiveFeed()

	sub, err := feed.Subscribe(feedChannelA, func(m *domain.Message) {})
	require.NoError(t, err)

	other, err := feed.Subscribe(feedChannelA, func(m *domain.Message) {})
	require.NoError(t, err)
	defer other.Cancel()

	sub.Cancel()
	sub.Cancel()

	assert.Equal(t, 1, feed.ListenerCount(feedChannelA))
}

func TestLiveFeed_MultipleSubscribersSeeSameMessage(t *testing.T) {
	feed := NewLiveFeed()

	var first, second int
	subA, err := feed.Subscribe(feedChannelA, func(m *domain.Message) { first++ })
	require.NoError(t, err)
	defer subA.Cancel()

	subB, err := feed.Subscribe(feedChannelA, func(m *domain.Message) { second++ })
	require.NoError(t, err)
	defer subB.Cancel()

	feed.Publish(feedMessage(feedChannelA, "broadcast"))

	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)
}

func TestLiveFeed_NilCallbackRejected(t *testing.T) {
	feed := NewLiveFeed()

	_, err := feed.Subscribe(feedChannelA, nil)
	assert.ErrorIs(t, err, ErrNilHandler)
}
