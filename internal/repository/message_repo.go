package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"memodesk-backend/internal/models"
)

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

func (r *MessageRepo) Create(ctx context.Context, m *models.Message) error {
	m.ID = uuid.New()
	if m.Attachments == nil {
		m.Attachments = []models.Attachment{}
	}
	attachments, err := json.Marshal(m.Attachments)
	if err != nil {
		return fmt.Errorf("failed to encode attachments: %w", err)
	}

	query := `INSERT INTO messages (id, chat_id, role, content, reasoning, attachments)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		m.ID, m.ChatID, m.Role, m.Content, m.Reasoning, attachments,
	).Scan(&m.CreatedAt)
}

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	query := `SELECT id, chat_id, role, content, reasoning, attachments, created_at
		FROM messages WHERE id = $1`

	var raw []byte
	m := &models.Message{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&m.ID, &m.ChatID, &m.Role, &m.Content, &m.Reasoning, &raw, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &m.Attachments); err != nil {
		return nil, fmt.Errorf("failed to decode attachments: %w", err)
	}
	return m, nil
}

func (r *MessageRepo) ListByChatID(ctx context.Context, chatID uuid.UUID) ([]models.Message, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, chat_id, role, content, reasoning, attachments, created_at
		FROM messages WHERE chat_id = $1 ORDER BY created_at ASC`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var (
			m   models.Message
			raw []byte
		)
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &m.Reasoning, &raw, &m.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &m.Attachments); err != nil {
			return nil, fmt.Errorf("failed to decode attachments: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// DeleteByChatIDAfter removes the chat's messages created at or after ts.
func (r *MessageRepo) DeleteByChatIDAfter(ctx context.Context, chatID uuid.UUID, ts time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		"DELETE FROM messages WHERE chat_id = $1 AND created_at >= $2", chatID, ts)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
