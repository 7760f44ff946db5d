package models

import (
	"time"

	"github.com/google/uuid"
)

// Document is a stored upload. Its URL is what attachments point at.
type Document struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	URL           string    `json:"url"`
	Pathname      string    `json:"pathname"`
	ContentType   string    `json:"content_type"`
	Size          int64     `json:"size"`
	Status        string    `json:"status"` // "pending" | "processing" | "completed" | "failed"
	ExtractedText *string   `json:"extracted_text,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
