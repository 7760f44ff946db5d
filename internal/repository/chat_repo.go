package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"memodesk-backend/internal/models"
)

type ChatRepo struct {
	pool *pgxpool.Pool
}

func NewChatRepo(pool *pgxpool.Pool) *ChatRepo {
	return &ChatRepo{pool: pool}
}

// Create inserts c with the ID the client chose.
func (r *ChatRepo) Create(ctx context.Context, c *models.Chat) error {
	if c.Visibility == "" {
		c.Visibility = models.VisibilityPrivate
	}

	query := `INSERT INTO chats (id, user_id, title, visibility)
		VALUES ($1, $2, $3, $4) RETURNING created_at`

	return r.pool.QueryRow(ctx, query, c.ID, c.UserID, c.Title, c.Visibility).Scan(&c.CreatedAt)
}

func (r *ChatRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Chat, error) {
	c := &models.Chat{}
	query := `SELECT id, user_id, title, visibility, created_at FROM chats WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(&c.ID, &c.UserID, &c.Title, &c.Visibility, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *ChatRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Chat, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, title, visibility, created_at FROM chats
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []models.Chat
	for rows.Next() {
		var c models.Chat
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.Visibility, &c.CreatedAt); err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

func (r *ChatRepo) UpdateTitle(ctx context.Context, id uuid.UUID, title string) error {
	_, err := r.pool.Exec(ctx, "UPDATE chats SET title = $1 WHERE id = $2", title, id)
	return err
}

func (r *ChatRepo) UpdateVisibility(ctx context.Context, id uuid.UUID, visibility string) error {
	_, err := r.pool.Exec(ctx, "UPDATE chats SET visibility = $1 WHERE id = $2", visibility, id)
	return err
}
