package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/encadrement"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENCADREMENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const encadrementColumns = `
	id, user_id, teacher_id, formule, status, start_date, next_billing_date,
	monthly_amount_cents, sessions_per_month, consecutive_billing_failures,
	billing_grace, created_at, updated_at`

// EncadrementRepository implements encadrement.Repository for PostgreSQL.
//
// UpdateStatus and ApplyBillingOutcome restate their domain precondition in
// the WHERE clause and inspect RowsAffected: a zero count means a concurrent
// writer invalidated the precondition between read and commit.
type EncadrementRepository struct {
	db Querier
}

// NewEncadrementRepository creates a new EncadrementRepository.
func NewEncadrementRepository(db Querier) *EncadrementRepository {
	return &EncadrementRepository{db: db}
}

// Create creates a new encadrement.
func (r *EncadrementRepository) Create(ctx context.Context, e *encadrement.Encadrement) error {
	query := `
		INSERT INTO encadrements (
			id, user_id, teacher_id, formule, status, start_date,
			next_billing_date, monthly_amount_cents, sessions_per_month,
			consecutive_billing_failures, billing_grace, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.Exec(ctx, query,
		e.ID.String(),
		e.UserID.String(),
		e.TeacherID.String(),
		e.Formule.String(),
		e.Status.String(),
		e.StartDate,
		e.NextBillingDate,
		e.MonthlyAmount.Int64(),
		e.SessionsPerMonth,
		e.ConsecutiveBillingFailures,
		e.BillingGrace,
		e.CreatedAt,
		e.UpdatedAt,
	)
	if err != nil {
		// The partial unique index on (user_id, teacher_id) enforces one
		// live pairing.
		if IsUniqueViolation(err) {
			return shared.WrapError("encadrement", "Create", shared.ErrAlreadyExists,
				"an encadrement already pairs this student and teacher", err)
		}
		return storeError("encadrement", "Create", "insert failed", err)
	}

	return nil
}

// GetByID returns an encadrement by ID.
func (r *EncadrementRepository) GetByID(ctx context.Context, id shared.EncadrementID) (*encadrement.Encadrement, error) {
	query := `SELECT` + encadrementColumns + ` FROM encadrements WHERE id = $1`

	row := r.db.QueryRow(ctx, query, id.String())
	return r.scanEncadrement(row)
}

// GetByParticipants returns the most recent encadrement pairing a student
// and a teacher. Cancelled pairings are returned too, so callers can decide
// whether a replacement is allowed.
func (r *EncadrementRepository) GetByParticipants(ctx context.Context, userID, teacherID shared.UserID) (*encadrement.Encadrement, error) {
	query := `SELECT` + encadrementColumns + `
		FROM encadrements
		WHERE user_id = $1 AND teacher_id = $2
		ORDER BY created_at DESC
		LIMIT 1`

	row := r.db.QueryRow(ctx, query, userID.String(), teacherID.String())
	return r.scanEncadrement(row)
}

// ListByUser returns all encadrements where the user is the student.
func (r *EncadrementRepository) ListByUser(ctx context.Context, userID shared.UserID) ([]*encadrement.Encadrement, error) {
	query := `SELECT` + encadrementColumns + `
		FROM encadrements
		WHERE user_id = $1
		ORDER BY created_at DESC`

	return r.queryEncadrements(ctx, query, userID.String())
}

// ListByTeacher returns all encadrements where the user is the teacher.
func (r *EncadrementRepository) ListByTeacher(ctx context.Context, teacherID shared.UserID) ([]*encadrement.Encadrement, error) {
	query := `SELECT` + encadrementColumns + `
		FROM encadrements
		WHERE teacher_id = $1
		ORDER BY created_at DESC`

	return r.queryEncadrements(ctx, query, teacherID.String())
}

// UpdateStatus transitions the status conditionally on the current one.
func (r *EncadrementRepository) UpdateStatus(ctx context.Context, id shared.EncadrementID, from []encadrement.Status, to encadrement.Status) error {
	fromStates := make([]string, len(from))
	for i, s := range from {
		fromStates[i] = s.String()
	}

	query := `
		UPDATE encadrements
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = ANY($3)
	`

	result, err := r.db.Exec(ctx, query, to.String(), id.String(), fromStates)
	if err != nil {
		return storeError("encadrement", "UpdateStatus", "conditional update failed", err)
	}

	if result.RowsAffected() == 0 {
		// Either the row is gone or a concurrent transition got there first.
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return shared.WrapError("encadrement", "UpdateStatus", shared.ErrStateTransition,
			fmt.Sprintf("stored status is no longer in %v", fromStates), nil)
	}

	return nil
}

// ApplyBillingOutcome persists the billing fields conditionally on the stored
// NextBillingDate still matching the one the outcome was decided under.
func (r *EncadrementRepository) ApplyBillingOutcome(ctx context.Context, e *encadrement.Encadrement, expectedNextBilling time.Time) error {
	query := `
		UPDATE encadrements
		SET status = $1,
		    next_billing_date = $2,
		    consecutive_billing_failures = $3,
		    billing_grace = $4,
		    updated_at = NOW()
		WHERE id = $5 AND next_billing_date = $6
	`

	result, err := r.db.Exec(ctx, query,
		e.Status.String(),
		e.NextBillingDate,
		e.ConsecutiveBillingFailures,
		e.BillingGrace,
		e.ID.String(),
		expectedNextBilling,
	)
	if err != nil {
		return storeError("encadrement", "ApplyBillingOutcome", "conditional update failed", err)
	}

	if result.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, e.ID); err != nil {
			return err
		}
		return shared.WrapError("encadrement", "ApplyBillingOutcome", shared.ErrConcurrentModification,
			"billing date advanced by a concurrent outcome", nil)
	}

	return nil
}

// ListBillingDue returns active encadrements whose billing date has passed.
func (r *EncadrementRepository) ListBillingDue(ctx context.Context, asOf time.Time, limit int) ([]*encadrement.Encadrement, error) {
	query := `SELECT` + encadrementColumns + `
		FROM encadrements
		WHERE status = 'active' AND next_billing_date <= $1
		ORDER BY next_billing_date ASC
		LIMIT $2`

	return r.queryEncadrements(ctx, query, asOf, limit)
}

// GetStatus implements encadrement.StatusReader without loading the full row.
func (r *EncadrementRepository) GetStatus(ctx context.Context, id shared.EncadrementID) (encadrement.Status, error) {
	query := `SELECT status FROM encadrements WHERE id = $1`

	var status string
	if err := r.db.QueryRow(ctx, query, id.String()).Scan(&status); err != nil {
		if IsNoRows(err) {
			return "", shared.ErrEncadrementNotFound
		}
		return "", storeError("encadrement", "GetStatus", "status lookup failed", err)
	}

	return encadrement.Status(status), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning helpers
// ─────────────────────────────────────────────────────────────────────────────

func (r *EncadrementRepository) scanEncadrement(row pgx.Row) (*encadrement.Encadrement, error) {
	var (
		e             encadrement.Encadrement
		id            string
		userID        string
		teacherID     string
		formule       string
		status        string
		monthlyAmount int64
	)

	err := row.Scan(
		&id,
		&userID,
		&teacherID,
		&formule,
		&status,
		&e.StartDate,
		&e.NextBillingDate,
		&monthlyAmount,
		&e.SessionsPerMonth,
		&e.ConsecutiveBillingFailures,
		&e.BillingGrace,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrEncadrementNotFound
		}
		return nil, storeError("encadrement", "Get", "row scan failed", err)
	}

	e.ID = shared.EncadrementID(id)
	e.UserID = shared.UserID(userID)
	e.TeacherID = shared.UserID(teacherID)
	e.Formule = encadrement.Formule(formule)
	e.Status = encadrement.Status(status)
	e.MonthlyAmount = shared.Cents(monthlyAmount)

	return &e, nil
}

func (r *EncadrementRepository) queryEncadrements(ctx context.Context, query string, args ...interface{}) ([]*encadrement.Encadrement, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, storeError("encadrement", "List", "query failed", err)
	}
	defer rows.Close()

	var out []*encadrement.Encadrement
	for rows.Next() {
		e, err := r.scanEncadrement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("encadrement", "List", "row iteration failed", err)
	}

	return out, nil
}
