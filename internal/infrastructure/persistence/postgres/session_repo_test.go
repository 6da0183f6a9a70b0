package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/session"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
	"github.com/reussite-hub/reussite-tutoring-hub/pkg/timeutil"
)

const testSessionID = "7c1d2e3f-4a5b-4c6d-8e9f-0a1b2c3d4e5f"

func newSessionMock(t *testing.T) (pgxmock.PgxPoolIface, *SessionRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewSessionRepository(mock)
}

// anyInsertArgs matches the 16 arguments of the guarded session insert
// without pinning their values.
func anyInsertArgs() []interface{} {
	args := make([]interface{}, 16)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func newStoredSession(t *testing.T) (*session.Session, timeutil.Window) {
	t.Helper()
	now := time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC)
	s, err := session.New(testSessionID, testEncID, "student-1", "teacher-1",
		now.AddDate(0, 0, 2), 60, "maths-suites", now)
	require.NoError(t, err)
	return s, timeutil.CycleWindow(now.AddDate(0, 1, 0))
}

func TestSessionRepository_CreateChecked(t *testing.T) {
	mock, repo := newSessionMock(t)
	s, window := newStoredSession(t)

	// A freshly built session carries an empty attachment list, never nil:
	// the column is NOT NULL and a nil slice would encode as SQL NULL.
	mock.ExpectExec("INSERT INTO sessions").
		WithArgs(
			s.ID,
			s.EncadrementID.String(),
			s.UserID.String(),
			s.TeacherID.String(),
			s.Date,
			s.DurationMinutes,
			s.Subject,
			"scheduled",
			"",
			[]string{},
			"",
			s.CreatedAt,
			s.UpdatedAt,
			window.From,
			window.To,
			4,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.CreateChecked(context.Background(), s, window, 4)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_CreateChecked_QuotaRejection(t *testing.T) {
	mock, repo := newSessionMock(t)
	s, window := newStoredSession(t)

	// The guarded insert matches nothing; the diagnosis finds the parent
	// active and the window already full.
	mock.ExpectExec("INSERT INTO sessions").
		WithArgs(anyInsertArgs()...).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery("SELECT status FROM encadrements").
		WithArgs(testEncID).
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("active"))
	mock.ExpectQuery("SELECT COUNT").
		WithArgs(testEncID, window.From, window.To).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(4))

	err := repo.CreateChecked(context.Background(), s, window, 4)
	assert.ErrorIs(t, err, shared.ErrQuotaExceeded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_CreateChecked_StoreOutageIsRetryable(t *testing.T) {
	mock, repo := newSessionMock(t)
	s, window := newStoredSession(t)

	mock.ExpectExec("INSERT INTO sessions").
		WithArgs(anyInsertArgs()...).
		WillReturnError(errors.New("dial tcp 10.0.0.5:5432: connection refused"))

	err := repo.CreateChecked(context.Background(), s, window, 4)
	assert.ErrorIs(t, err, shared.ErrStoreUnavailable)
	assert.True(t, shared.IsRetryable(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
