package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"flowkit/internal/schema"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Save(ctx context.Context, msg *schema.Message) error {
	data, err := json.Marshal(msg.Data)
	if err != nil {
		return fmt.Errorf("failed to encode message data: %w", err)
	}
	if msg.Data == nil {
		data = []byte("{}")
	}

	query := `
		INSERT INTO messages (id, session_id, sender, sender_name, text, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.db.ExecContext(ctx, query, msg.ID, msg.SessionID, msg.Sender, msg.SenderName, msg.Text, data, msg.CreatedAt)
	return err
}

func (r *PostgresRepo) ListBySession(ctx context.Context, sessionID string) ([]schema.Message, error) {
	query := `SELECT id, session_id, sender, sender_name, text, data, created_at FROM messages WHERE session_id = $1 ORDER BY created_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []schema.Message{}
	for rows.Next() {
		var m schema.Message
		var data []byte
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Sender, &m.SenderName, &m.Text, &data, &m.CreatedAt); err != nil {
			return nil, err
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &m.Data); err != nil {
				return nil, fmt.Errorf("failed to decode message data: %w", err)
			}
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (r *PostgresRepo) DeleteBySession(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE session_id = $1`, sessionID)
	return err
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}

func (r *PostgresRepo) CountSessions(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT session_id) FROM messages`).Scan(&count)
	return count, err
}
