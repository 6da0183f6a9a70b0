package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/encadrement"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
)

const testEncID = "3f0e8d1c-5b7a-4c2d-9e6f-1a2b3c4d5e6f"

func newEncadrementMock(t *testing.T) (pgxmock.PgxPoolIface, *EncadrementRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewEncadrementRepository(mock)
}

func encadrementRows() *pgxmock.Rows {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	return pgxmock.NewRows([]string{
		"id", "user_id", "teacher_id", "formule", "status", "start_date",
		"next_billing_date", "monthly_amount_cents", "sessions_per_month",
		"consecutive_billing_failures", "billing_grace", "created_at", "updated_at",
	}).AddRow(
		testEncID, "student-1", "teacher-1", "intensive", "active", now,
		now.AddDate(0, 1, 0), int64(9990), 4, 0, false, now, now,
	)
}

func TestEncadrementRepository_GetByID(t *testing.T) {
	mock, repo := newEncadrementMock(t)

	mock.ExpectQuery("FROM encadrements WHERE id").
		WithArgs(testEncID).
		WillReturnRows(encadrementRows())

	enc, err := repo.GetByID(context.Background(), testEncID)
	require.NoError(t, err)
	assert.Equal(t, shared.EncadrementID(testEncID), enc.ID)
	assert.Equal(t, encadrement.FormuleIntensive, enc.Formule)
	assert.Equal(t, encadrement.StatusActive, enc.Status)
	assert.Equal(t, shared.Cents(9990), enc.MonthlyAmount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEncadrementRepository_GetByID_NotFound(t *testing.T) {
	mock, repo := newEncadrementMock(t)

	mock.ExpectQuery("FROM encadrements WHERE id").
		WithArgs(testEncID).
		WillReturnError(ErrNoRows)

	_, err := repo.GetByID(context.Background(), testEncID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEncadrementRepository_UpdateStatus(t *testing.T) {
	mock, repo := newEncadrementMock(t)

	mock.ExpectExec("UPDATE encadrements").
		WithArgs("paused", testEncID, []string{"active"}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.UpdateStatus(context.Background(), testEncID,
		[]encadrement.Status{encadrement.StatusActive}, encadrement.StatusPaused)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEncadrementRepository_UpdateStatus_LostRace(t *testing.T) {
	mock, repo := newEncadrementMock(t)

	// The conditional write matches nothing; a follow-up read finds the row,
	// so the failure is a state conflict rather than a missing entity.
	mock.ExpectExec("UPDATE encadrements").
		WithArgs("paused", testEncID, []string{"active"}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("FROM encadrements WHERE id").
		WithArgs(testEncID).
		WillReturnRows(encadrementRows())

	err := repo.UpdateStatus(context.Background(), testEncID,
		[]encadrement.Status{encadrement.StatusActive}, encadrement.StatusPaused)
	assert.ErrorIs(t, err, shared.ErrStateTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEncadrementRepository_ApplyBillingOutcome_Conflict(t *testing.T) {
	mock, repo := newEncadrementMock(t)

	start := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	enc, err := encadrement.New(testEncID, "student-1", "teacher-1", encadrement.FormuleIntensive, start)
	require.NoError(t, err)
	expected := enc.NextBillingDate
	_, err = enc.RecordBillingSuccess(start, encadrement.DefaultBillingPolicy())
	require.NoError(t, err)

	mock.ExpectExec("UPDATE encadrements").
		WithArgs(enc.Status.String(), enc.NextBillingDate, 0, false, testEncID, expected).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("FROM encadrements WHERE id").
		WithArgs(testEncID).
		WillReturnRows(encadrementRows())

	err = repo.ApplyBillingOutcome(context.Background(), enc, expected)
	assert.ErrorIs(t, err, shared.ErrConcurrentModification)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEncadrementRepository_GetStatus(t *testing.T) {
	mock, repo := newEncadrementMock(t)

	mock.ExpectQuery("SELECT status FROM encadrements").
		WithArgs(testEncID).
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("paused"))

	status, err := repo.GetStatus(context.Background(), testEncID)
	require.NoError(t, err)
	assert.Equal(t, encadrement.StatusPaused, status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
