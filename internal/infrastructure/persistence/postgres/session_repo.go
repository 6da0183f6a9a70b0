package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/session"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
	"github.com/reussite-hub/reussite-tutoring-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const sessionColumns = `
	id, encadrement_id, user_id, teacher_id, date, duration_minutes, subject,
	status, notes, resource_ids, meeting_url, created_at, updated_at`

// SessionRepository implements session.Repository for PostgreSQL.
type SessionRepository struct {
	db Querier
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db Querier) *SessionRepository {
	return &SessionRepository{db: db}
}

// CreateChecked inserts the session with its three admission checks folded
// into one INSERT..SELECT, so parent status, quota count and teacher calendar
// are all evaluated inside the same statement snapshot. When nothing is
// inserted, the checks are re-run individually to name the reason.
func (r *SessionRepository) CreateChecked(ctx context.Context, s *session.Session, window timeutil.Window, quota int) error {
	query := `
		INSERT INTO sessions (
			id, encadrement_id, user_id, teacher_id, date, duration_minutes,
			subject, status, notes, resource_ids, meeting_url, created_at, updated_at
		)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		WHERE EXISTS (
			SELECT 1 FROM encadrements WHERE id = $2 AND status = 'active'
		)
		AND (
			SELECT COUNT(*) FROM sessions
			WHERE encadrement_id = $2 AND created_at >= $14 AND created_at < $15
		) < $16
		AND NOT EXISTS (
			SELECT 1 FROM sessions
			WHERE teacher_id = $4
			  AND status != 'cancelled'
			  AND date < $5::timestamptz + make_interval(mins => $6)
			  AND date + make_interval(mins => duration_minutes) > $5
		)
	`

	result, err := r.db.Exec(ctx, query,
		s.ID,
		s.EncadrementID.String(),
		s.UserID.String(),
		s.TeacherID.String(),
		s.Date,
		s.DurationMinutes,
		s.Subject,
		s.Status.String(),
		s.Notes,
		s.ResourceIDs,
		s.MeetingURL,
		s.CreatedAt,
		s.UpdatedAt,
		window.From,
		window.To,
		quota,
	)
	if err != nil {
		return storeError("session", "Schedule", "insert failed", err)
	}

	if result.RowsAffected() == 0 {
		return r.diagnoseRejection(ctx, s, window, quota)
	}

	return nil
}

// diagnoseRejection re-runs the admission checks to classify why the insert
// matched nothing. Precedence: parent status, then quota, then calendar.
func (r *SessionRepository) diagnoseRejection(ctx context.Context, s *session.Session, window timeutil.Window, quota int) error {
	var status string
	err := r.db.QueryRow(ctx,
		`SELECT status FROM encadrements WHERE id = $1`, s.EncadrementID.String(),
	).Scan(&status)
	if err != nil {
		if IsNoRows(err) {
			return shared.ErrEncadrementNotFound
		}
		return storeError("session", "Schedule", "rejection diagnosis failed", err)
	}
	if status != "active" {
		return shared.WrapError("session", "Schedule", shared.ErrSubscriptionNotActive,
			fmt.Sprintf("encadrement is %s", status), nil)
	}

	count, err := r.CountCreatedInWindow(ctx, s.EncadrementID, window)
	if err != nil {
		return err
	}
	if count >= quota {
		return shared.ErrSessionQuotaReached
	}

	return shared.ErrSessionOverlap
}

// GetByID returns a session by ID.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*session.Session, error) {
	query := `SELECT` + sessionColumns + ` FROM sessions WHERE id = $1`

	row := r.db.QueryRow(ctx, query, id)
	return r.scanSession(row)
}

// UpdateStatus transitions the status conditionally on the current one.
func (r *SessionRepository) UpdateStatus(ctx context.Context, id string, from, to session.Status, notes string, now time.Time) error {
	query := `
		UPDATE sessions
		SET status = $1,
		    notes = CASE WHEN $2 != '' THEN $2 ELSE notes END,
		    updated_at = $3
		WHERE id = $4 AND status = $5
	`

	result, err := r.db.Exec(ctx, query, to.String(), notes, now, id, from.String())
	if err != nil {
		return storeError("session", "UpdateStatus", "conditional update failed", err)
	}

	if result.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return shared.WrapError("session", "UpdateStatus", shared.ErrStateTransition,
			fmt.Sprintf("stored status is no longer %s", from), nil)
	}

	return nil
}

// CountCreatedInWindow counts the sessions created inside the billing window,
// any status. The count keys on creation time: cancelling never refunds the
// slot for the cycle the session was booked in.
func (r *SessionRepository) CountCreatedInWindow(ctx context.Context, encadrementID shared.EncadrementID, window timeutil.Window) (int, error) {
	query := `
		SELECT COUNT(*) FROM sessions
		WHERE encadrement_id = $1 AND created_at >= $2 AND created_at < $3
	`

	var count int
	err := r.db.QueryRow(ctx, query, encadrementID.String(), window.From, window.To).Scan(&count)
	if err != nil {
		return 0, storeError("session", "CountCreatedInWindow", "count query failed", err)
	}

	return count, nil
}

// ListByEncadrement returns all sessions of an encadrement, soonest first.
func (r *SessionRepository) ListByEncadrement(ctx context.Context, encadrementID shared.EncadrementID) ([]*session.Session, error) {
	query := `SELECT` + sessionColumns + `
		FROM sessions
		WHERE encadrement_id = $1
		ORDER BY date ASC`

	return r.querySessions(ctx, query, encadrementID.String())
}

// ListTeacherSessionsInWindow returns a teacher's non-cancelled sessions
// whose occupied interval intersects the window.
func (r *SessionRepository) ListTeacherSessionsInWindow(ctx context.Context, teacherID shared.UserID, window timeutil.Window) ([]*session.Session, error) {
	query := `SELECT` + sessionColumns + `
		FROM sessions
		WHERE teacher_id = $1
		  AND status != 'cancelled'
		  AND date < $3
		  AND date + make_interval(mins => duration_minutes) > $2
		ORDER BY date ASC`

	return r.querySessions(ctx, query, teacherID.String(), window.From, window.To)
}

// ListUpcomingConfirmed returns confirmed sessions starting inside the window.
func (r *SessionRepository) ListUpcomingConfirmed(ctx context.Context, window timeutil.Window) ([]*session.Session, error) {
	query := `SELECT` + sessionColumns + `
		FROM sessions
		WHERE status = 'confirmed' AND date >= $1 AND date < $2
		ORDER BY date ASC`

	return r.querySessions(ctx, query, window.From, window.To)
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning helpers
// ─────────────────────────────────────────────────────────────────────────────

func (r *SessionRepository) scanSession(row pgx.Row) (*session.Session, error) {
	var (
		s             session.Session
		encadrementID string
		userID        string
		teacherID     string
		status        string
	)

	err := row.Scan(
		&s.ID,
		&encadrementID,
		&userID,
		&teacherID,
		&s.Date,
		&s.DurationMinutes,
		&s.Subject,
		&status,
		&s.Notes,
		&s.ResourceIDs,
		&s.MeetingURL,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrSessionNotFound
		}
		return nil, storeError("session", "Get", "row scan failed", err)
	}

	s.EncadrementID = shared.EncadrementID(encadrementID)
	s.UserID = shared.UserID(userID)
	s.TeacherID = shared.UserID(teacherID)
	s.Status = session.Status(status)

	return &s, nil
}

func (r *SessionRepository) querySessions(ctx context.Context, query string, args ...interface{}) ([]*session.Session, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, storeError("session", "List", "query failed", err)
	}
	defer rows.Close()

	var out []*session.Session
	for rows.Next() {
		s, err := r.scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("session", "List", "row iteration failed", err)
	}

	return out, nil
}
