package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/messaging"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MESSAGE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const messageColumns = `
	id, encadrement_id, sender_id, recipient_id, content, read, created_at`

// MessageRepository implements messaging.Repository for PostgreSQL.
//
// The messages table is append-only. created_at comes from the database
// clock (clock_timestamp, monotonic within a backend) and defines the
// channel's total order; Append reads it back via RETURNING so callers and
// the live feed carry the authoritative timestamp.
type MessageRepository struct {
	db Querier
}

// NewMessageRepository creates a new MessageRepository.
func NewMessageRepository(db Querier) *MessageRepository {
	return &MessageRepository{db: db}
}

// Append persists a new message and writes the store-assigned timestamp back.
func (r *MessageRepository) Append(ctx context.Context, m *messaging.Message) error {
	query := `
		INSERT INTO messages (id, encadrement_id, sender_id, recipient_id, content, read)
		VALUES ($1, $2, $3, $4, $5, FALSE)
		RETURNING created_at
	`

	err := r.db.QueryRow(ctx, query,
		m.ID,
		m.EncadrementID.String(),
		m.SenderID.String(),
		m.RecipientID.String(),
		m.Content,
	).Scan(&m.CreatedAt)
	if err != nil {
		return storeError("messaging", "Append", "insert failed", err)
	}

	return nil
}

// GetByID returns a message by ID.
func (r *MessageRepository) GetByID(ctx context.Context, id string) (*messaging.Message, error) {
	query := `SELECT` + messageColumns + ` FROM messages WHERE id = $1`

	row := r.db.QueryRow(ctx, query, id)
	return r.scanMessage(row)
}

// MarkRead sets the read flag conditionally on the reader being the stored
// recipient. Marking an already-read message matches the row and succeeds.
func (r *MessageRepository) MarkRead(ctx context.Context, id string, readerID shared.UserID) error {
	query := `
		UPDATE messages
		SET read = TRUE
		WHERE id = $1 AND recipient_id = $2
	`

	result, err := r.db.Exec(ctx, query, id, readerID.String())
	if err != nil {
		return storeError("messaging", "MarkRead", "conditional update failed", err)
	}

	if result.RowsAffected() == 0 {
		// Distinguish a missing message from a non-recipient reader.
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return shared.ErrNotRecipient
	}

	return nil
}

// ListByChannel returns a channel's messages in creation order. With a
// positive limit only the most recent tail is returned, still ascending.
func (r *MessageRepository) ListByChannel(ctx context.Context, encadrementID shared.EncadrementID, limit int) ([]*messaging.Message, error) {
	query := `SELECT` + messageColumns + `
		FROM messages
		WHERE encadrement_id = $1
		ORDER BY created_at ASC`
	args := []interface{}{encadrementID.String()}

	if limit > 0 {
		query = `SELECT * FROM (
			SELECT` + messageColumns + `
			FROM messages
			WHERE encadrement_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) tail ORDER BY created_at ASC`
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, storeError("messaging", "ListByChannel", "query failed", err)
	}
	defer rows.Close()

	var out []*messaging.Message
	for rows.Next() {
		m, err := r.scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("messaging", "ListByChannel", "row iteration failed", err)
	}

	return out, nil
}

// CountUnread returns the number of unread messages addressed to the reader.
func (r *MessageRepository) CountUnread(ctx context.Context, encadrementID shared.EncadrementID, readerID shared.UserID) (int, error) {
	query := `
		SELECT COUNT(*) FROM messages
		WHERE encadrement_id = $1 AND recipient_id = $2 AND read = FALSE
	`

	var count int
	err := r.db.QueryRow(ctx, query, encadrementID.String(), readerID.String()).Scan(&count)
	if err != nil {
		return 0, storeError("messaging", "CountUnread", "count query failed", err)
	}

	return count, nil
}

func (r *MessageRepository) scanMessage(row pgx.Row) (*messaging.Message, error) {
	var (
		m             messaging.Message
		encadrementID string
		senderID      string
		recipientID   string
	)

	err := row.Scan(
		&m.ID,
		&encadrementID,
		&senderID,
		&recipientID,
		&m.Content,
		&m.Read,
		&m.CreatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrMessageNotFound
		}
		return nil, storeError("messaging", "Get", "row scan failed", err)
	}

	m.EncadrementID = shared.EncadrementID(encadrementID)
	m.SenderID = shared.UserID(senderID)
	m.RecipientID = shared.UserID(recipientID)

	return &m, nil
}
