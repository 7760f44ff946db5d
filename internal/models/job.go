package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	JobDocumentExtraction = "document-extraction"
	JobTitleGeneration    = "title-generation"
)

type Job struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	Type         string          `json:"type"` // "document-extraction" | "title-generation"
	ReferenceID  uuid.UUID       `json:"reference_id"`
	ConfigJSON   json.RawMessage `json:"config"`
	Status       string          `json:"status"` // "pending" | "processing" | "completed" | "failed"
	RetryCount   int             `json:"retry_count"`
	MaxRetries   int             `json:"max_retries"`
	ErrorMessage *string         `json:"error_message"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at"`
}

// WebSocket message types
const (
	WSDocumentUpdate = "document_update"
	WSTitleUpdate    = "title_update"
	WSError          = "error"
)

type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type TitleEvent struct {
	ChatID uuid.UUID `json:"chat_id"`
	Title  string    `json:"title"`
}

type DocumentEvent struct {
	DocumentID uuid.UUID `json:"document_id"`
	URL        string    `json:"url"`
	Status     string    `json:"status"`
}

type ErrorEvent struct {
	JobID        uuid.UUID `json:"job_id"`
	ErrorCode    string    `json:"error_code"`
	ErrorMessage string    `json:"error_message"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
