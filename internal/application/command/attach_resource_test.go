package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/encadrement"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
)

func newResourceFixture(t *testing.T, status encadrement.Status) (*AttachResourceHandler, *fakeResourceRepo) {
	t.Helper()
	encRepo := newFakeEncadrementRepo()
	seedEncadrement(t, encRepo, status)
	resRepo := newFakeResourceRepo()
	return NewAttachResourceHandler(encRepo, resRepo, &capturingPublisher{}, nil), resRepo
}

func TestAttachResourceHandler(t *testing.T) {
	handler, resRepo := newResourceFixture(t, encadrement.StatusActive)

	result, err := handler.Handle(context.Background(), AttachResourceCommand{
		EncadrementID: testEncID,
		Title:         "Fiche suites numériques",
		Type:          "pdf",
		URL:           "https://cdn.example.com/fiches/suites.pdf",
		UploadedBy:    testTeacher,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.ResourceID)

	stored, err := resRepo.ListByEncadrement(context.Background(), testEncID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.False(t, stored[0].CreatedAt.IsZero())
}

func TestAttachResourceHandler_DuplicatesCoexist(t *testing.T) {
	handler, resRepo := newResourceFixture(t, encadrement.StatusActive)

	cmd := AttachResourceCommand{
		EncadrementID: testEncID,
		Title:         "Corrigé DS 2",
		Type:          "document",
		URL:           "https://cdn.example.com/ds2-corrige.docx",
		UploadedBy:    testTeacher,
	}
	first, err := handler.Handle(context.Background(), cmd)
	require.NoError(t, err)
	second, err := handler.Handle(context.Background(), cmd)
	require.NoError(t, err)

	// Append-only catalogue: the re-upload is a new entry, not a rejection.
	assert.NotEqual(t, first.ResourceID, second.ResourceID)
	stored, err := resRepo.ListByEncadrement(context.Background(), testEncID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestAttachResourceHandler_Validation(t *testing.T) {
	handler, _ := newResourceFixture(t, encadrement.StatusActive)

	_, err := handler.Handle(context.Background(), AttachResourceCommand{
		EncadrementID: testEncID, Title: "x", Type: "podcast",
		URL: "https://example.com/x", UploadedBy: testTeacher,
	})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = handler.Handle(context.Background(), AttachResourceCommand{
		EncadrementID: testEncID, Title: "x", Type: "link",
		URL: "not-a-url", UploadedBy: testTeacher,
	})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestAttachResourceHandler_RejectedOnCancelled(t *testing.T) {
	handler, _ := newResourceFixture(t, encadrement.StatusCancelled)

	_, err := handler.Handle(context.Background(), AttachResourceCommand{
		EncadrementID: testEncID, Title: "x", Type: "link",
		URL: "https://example.com/x", UploadedBy: testTeacher,
	})
	assert.ErrorIs(t, err, shared.ErrSubscriptionCancelled)
}

func TestAttachResourceHandler_AuthorizesViaStatusReader(t *testing.T) {
	// Catalogue writes authorize against a status-only source; a cached
	// status is enough and the paused state keeps the catalogue open.
	statuses := &statusStub{status: encadrement.StatusPaused}
	handler := NewAttachResourceHandler(statuses, newFakeResourceRepo(), &capturingPublisher{}, nil)

	_, err := handler.Handle(context.Background(), AttachResourceCommand{
		EncadrementID: testEncID, Title: "Fiche limites", Type: "pdf",
		URL: "https://cdn.example.com/fiches/limites.pdf", UploadedBy: testTeacher,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, statuses.calls)
}
