package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"meetpanel/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS panel_messages (
	id         BIGSERIAL PRIMARY KEY,
	meeting_id TEXT        NOT NULL,
	body       TEXT        NOT NULL,
	kind       TEXT        NOT NULL,
	sent_at    TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS panel_messages_meeting_idx ON panel_messages (meeting_id, sent_at)`

// MessageRepository archives the messages a panel dispatched.
type MessageRepository struct {
	DB *sql.DB
}

// EnsureSchema creates the archive table.
func (r *MessageRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// SaveMessage stores one dispatched body.
func (r *MessageRepository) SaveMessage(ctx context.Context, msg models.ArchivedMessage) (models.ArchivedMessage, error) {
	query := `
		INSERT INTO panel_messages (meeting_id, body, kind, sent_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`
	err := r.DB.QueryRowContext(ctx, query, msg.MeetingID, msg.Body, msg.Kind, msg.SentAt).
		Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return msg, fmt.Errorf("save message: %w", err)
	}
	return msg, nil
}

// GetMessages lists a meeting's archive, oldest first. A non-positive limit
// returns everything.
func (r *MessageRepository) GetMessages(ctx context.Context, meetingID string, limit int) ([]models.ArchivedMessage, error) {
	query := `
		SELECT id, meeting_id, body, kind, sent_at, created_at
		FROM panel_messages
		WHERE meeting_id = $1
		ORDER BY sent_at ASC, id ASC`
	args := []any{meetingID}
	if limit > 0 {
		query += `
		LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []models.ArchivedMessage
	for rows.Next() {
		var msg models.ArchivedMessage
		if err := rows.Scan(&msg.ID, &msg.MeetingID, &msg.Body, &msg.Kind, &msg.SentAt, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

// PurgeBefore drops archived messages older than cutoff.
func (r *MessageRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM panel_messages WHERE sent_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge messages: %w", err)
	}
	return res.RowsAffected()
}
