package messaging

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
)

const (
	testEncadrement = shared.EncadrementID("3f0e8d1c-5b7a-4c2d-9e6f-1a2b3c4d5e6f")
	testStudent     = shared.UserID("student-1")
	testTeacher     = shared.UserID("teacher-1")
)

func TestNew(t *testing.T) {
	m, err := New("msg-1", testEncadrement, testStudent, testTeacher, "  Bonjour, question sur l'exercice 3  ")
	require.NoError(t, err)
	assert.Equal(t, "Bonjour, question sur l'exercice 3", m.Content, "content is trimmed")
	assert.False(t, m.Read)
	assert.True(t, m.CreatedAt.IsZero(), "timestamp is store-assigned, not client-assigned")
}

func TestNew_Validation(t *testing.T) {
	_, err := New("msg-1", testEncadrement, testStudent, testStudent, "hello")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = New("msg-1", testEncadrement, testStudent, testTeacher, "   ")
	assert.ErrorIs(t, err, shared.ErrEmptyValue)

	_, err = New("msg-1", testEncadrement, testStudent, testTeacher, strings.Repeat("x", MaxContentLength+1))
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)
}

func TestMarkRead(t *testing.T) {
	m, err := New("msg-1", testEncadrement, testStudent, testTeacher, "hello")
	require.NoError(t, err)

	// Only the recipient may mark a message read.
	assert.ErrorIs(t, m.MarkRead(testStudent), shared.ErrForbidden)
	assert.False(t, m.Read)

	require.NoError(t, m.MarkRead(testTeacher))
	assert.True(t, m.Read)

	// Idempotent.
	require.NoError(t, m.MarkRead(testTeacher))
	assert.True(t, m.Read)
}
