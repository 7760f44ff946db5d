// Package history keeps a local record of memo analyses run from the CLI.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"memodesk-backend/internal/models"
)

var ErrNotFound = errors.New("history entry not found")

// Entry is one analysis: the uploaded memos and the streamed answer.
type Entry struct {
	ID          int64
	ChatID      uuid.UUID
	Model       string
	Attachments []models.Attachment
	Answer      string
	Reasoning   string
	CreatedAt   time.Time
}

type Store struct {
	db *sql.DB
}

// DefaultPath is memoctl/history.db under the user's config directory.
func DefaultPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, herr := os.UserHomeDir()
		if herr != nil {
			return "", err
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "memoctl", "history.db"), nil
}

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create history dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS analyses (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id TEXT NOT NULL,
			model TEXT NOT NULL,
			attachments TEXT NOT NULL DEFAULT '[]',
			answer TEXT NOT NULL DEFAULT '',
			reasoning TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at DESC);`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply history schema: %w", err)
		}
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Record(ctx context.Context, e *Entry) error {
	if e.Attachments == nil {
		e.Attachments = []models.Attachment{}
	}
	atts, err := json.Marshal(e.Attachments)
	if err != nil {
		return fmt.Errorf("failed to encode attachments: %w", err)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO analyses(chat_id, model, attachments, answer, reasoning, created_at) VALUES(?, ?, ?, ?, ?, ?)",
		e.ChatID.String(),
		e.Model,
		string(atts),
		e.Answer,
		e.Reasoning,
		e.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return err
	}
	e.ID, err = res.LastInsertId()
	return err
}

// Recent returns the latest entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, chat_id, model, attachments, answer, reasoning, created_at FROM analyses ORDER BY created_at DESC, id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func (s *Store) Get(ctx context.Context, id int64) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, chat_id, model, attachments, answer, reasoning, created_at FROM analyses WHERE id = ?",
		id,
	)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		e       Entry
		chatID  string
		atts    string
		created int64
	)
	if err := row.Scan(&e.ID, &chatID, &e.Model, &atts, &e.Answer, &e.Reasoning, &created); err != nil {
		return nil, err
	}

	var err error
	if e.ChatID, err = uuid.Parse(chatID); err != nil {
		return nil, fmt.Errorf("bad chat id %q: %w", chatID, err)
	}
	if err := json.Unmarshal([]byte(atts), &e.Attachments); err != nil {
		return nil, fmt.Errorf("bad attachments for entry %d: %w", e.ID, err)
	}
	e.CreatedAt = time.UnixMilli(created)
	return &e, nil
}
