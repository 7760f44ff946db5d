package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"memodesk-backend/internal/models"
)

type DocumentRepo struct {
	pool *pgxpool.Pool
}

func NewDocumentRepo(pool *pgxpool.Pool) *DocumentRepo {
	return &DocumentRepo{pool: pool}
}

func (r *DocumentRepo) Create(ctx context.Context, d *models.Document) error {
	d.ID = uuid.New()
	if d.Status == "" {
		d.Status = "pending"
	}

	query := `INSERT INTO documents (id, user_id, url, pathname, content_type, size, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		d.ID, d.UserID, d.URL, d.Pathname, d.ContentType, d.Size, d.Status,
	).Scan(&d.CreatedAt)
}

const documentColumns = `id, user_id, url, pathname, content_type, size, status, extracted_text, created_at`

func (r *DocumentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	d := &models.Document{}
	err := r.pool.QueryRow(ctx, "SELECT "+documentColumns+" FROM documents WHERE id = $1", id).Scan(
		&d.ID, &d.UserID, &d.URL, &d.Pathname, &d.ContentType, &d.Size, &d.Status, &d.ExtractedText, &d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// GetByURL finds a document the user uploaded. Documents of other users are
// reported as missing.
func (r *DocumentRepo) GetByURL(ctx context.Context, userID uuid.UUID, url string) (*models.Document, error) {
	d := &models.Document{}
	err := r.pool.QueryRow(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE user_id = $1 AND url = $2", userID, url).Scan(
		&d.ID, &d.UserID, &d.URL, &d.Pathname, &d.ContentType, &d.Size, &d.Status, &d.ExtractedText, &d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *DocumentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.pool.Exec(ctx, "UPDATE documents SET status = $1 WHERE id = $2", status, id)
	return err
}

// UpdateText stores extracted text and marks the document completed.
func (r *DocumentRepo) UpdateText(ctx context.Context, id uuid.UUID, text string) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE documents SET extracted_text = $1, status = 'completed' WHERE id = $2", text, id)
	return err
}
