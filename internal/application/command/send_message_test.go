package command

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/encadrement"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/messaging"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
)

func newMessagingFixture(t *testing.T, status encadrement.Status) (*SendMessageHandler, *MarkMessageReadHandler, *fakeMessageRepo, *capturingPublisher) {
	t.Helper()
	encRepo := newFakeEncadrementRepo()
	seedEncadrement(t, encRepo, status)
	msgRepo := newFakeMessageRepo()
	pub := &capturingPublisher{}
	return NewSendMessageHandler(encRepo, msgRepo, pub, nil),
		NewMarkMessageReadHandler(msgRepo, pub, nil),
		msgRepo, pub
}

func TestSendMessageHandler(t *testing.T) {
	send, _, msgRepo, pub := newMessagingFixture(t, encadrement.StatusActive)

	result, err := send.Handle(context.Background(), SendMessageCommand{
		EncadrementID: testEncID, SenderID: testStudent, Content: "Bonjour, question sur l'exercice 4",
	})
	require.NoError(t, err)
	assert.Equal(t, testTeacher, result.RecipientID)
	assert.False(t, result.SentAt.IsZero(), "store-assigned timestamp must be written back")

	msgs, err := msgRepo.ListByChannel(context.Background(), testEncID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.False(t, msgs[0].Read)
	assert.Equal(t, []shared.EventType{shared.EventMessageSent}, pub.typesSeen())
}

func TestSendMessageHandler_OrderFollowsStoreTimestamps(t *testing.T) {
	send, _, msgRepo, _ := newMessagingFixture(t, encadrement.StatusActive)

	// Both parties post; the channel orders by arrival at the store.
	for i, sender := range []string{testStudent, testTeacher, testStudent} {
		_, err := send.Handle(context.Background(), SendMessageCommand{
			EncadrementID: testEncID, SenderID: sender, Content: strings.Repeat("m", i+1),
		})
		require.NoError(t, err)
	}

	msgs, err := msgRepo.ListByChannel(context.Background(), testEncID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for i := 1; i < len(msgs); i++ {
		assert.True(t, msgs[i].CreatedAt.After(msgs[i-1].CreatedAt))
	}
}

func TestSendMessageHandler_OpenWhilePaused(t *testing.T) {
	send, _, _, _ := newMessagingFixture(t, encadrement.StatusPaused)

	_, err := send.Handle(context.Background(), SendMessageCommand{
		EncadrementID: testEncID, SenderID: testTeacher, Content: "On reprend la semaine prochaine",
	})
	assert.NoError(t, err, "pause interrupts billing, not the conversation")
}

func TestSendMessageHandler_ClosedAfterCancellation(t *testing.T) {
	send, _, _, _ := newMessagingFixture(t, encadrement.StatusCancelled)

	_, err := send.Handle(context.Background(), SendMessageCommand{
		EncadrementID: testEncID, SenderID: testStudent, Content: "hello?",
	})
	assert.ErrorIs(t, err, shared.ErrSubscriptionCancelled)
}

func TestSendMessageHandler_SenderMustBeParticipant(t *testing.T) {
	send, _, _, _ := newMessagingFixture(t, encadrement.StatusActive)

	_, err := send.Handle(context.Background(), SendMessageCommand{
		EncadrementID: testEncID, SenderID: "intruder-9", Content: "hi",
	})
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

func TestSendMessageHandler_ContentLimits(t *testing.T) {
	send, _, _, _ := newMessagingFixture(t, encadrement.StatusActive)

	_, err := send.Handle(context.Background(), SendMessageCommand{
		EncadrementID: testEncID, SenderID: testStudent, Content: "   ",
	})
	assert.ErrorIs(t, err, shared.ErrEmptyValue)

	_, err = send.Handle(context.Background(), SendMessageCommand{
		EncadrementID: testEncID, SenderID: testStudent,
		Content: strings.Repeat("a", messaging.MaxContentLength+1),
	})
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)
}

func TestMarkMessageReadHandler(t *testing.T) {
	send, markRead, msgRepo, _ := newMessagingFixture(t, encadrement.StatusActive)

	result, err := send.Handle(context.Background(), SendMessageCommand{
		EncadrementID: testEncID, SenderID: testStudent, Content: "question",
	})
	require.NoError(t, err)

	// The sender cannot mark their own message.
	err = markRead.Handle(context.Background(), MarkMessageReadCommand{
		MessageID: result.MessageID, ReaderID: testStudent,
	})
	assert.ErrorIs(t, err, shared.ErrForbidden)

	// The recipient can, and doing it twice is fine.
	for i := 0; i < 2; i++ {
		err = markRead.Handle(context.Background(), MarkMessageReadCommand{
			MessageID: result.MessageID, ReaderID: testTeacher,
		})
		require.NoError(t, err)
	}

	unread, err := msgRepo.CountUnread(context.Background(), testEncID, testTeacher)
	require.NoError(t, err)
	assert.Zero(t, unread)
}
