package models

import (
	"time"

	"github.com/google/uuid"
)

// Logical model keys
const (
	ChatModel          = "chat-model"
	ChatModelReasoning = "chat-model-reasoning"
	TitleModel         = "title-model"
	ArtifactModel      = "artifact-model"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	VisibilityPrivate = "private"
	VisibilityPublic  = "public"
)

type Chat struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	Title      string    `json:"title"`
	Visibility string    `json:"visibility"`
	CreatedAt  time.Time `json:"created_at"`
}

type Message struct {
	ID          uuid.UUID    `json:"id"`
	ChatID      uuid.UUID    `json:"chat_id"`
	Role        string       `json:"role"`
	Content     string       `json:"content"`
	Reasoning   *string      `json:"reasoning,omitempty"`
	Attachments []Attachment `json:"attachments"`
	CreatedAt   time.Time    `json:"created_at"`
}

// ChatMessage is a single role/content message as sent by a client.
type ChatMessage struct {
	Role        string       `json:"role"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// ChatRequest is the payload of POST /api/chat. When DocumentKind is set the
// message is an edit instruction for CurrentContent.
type ChatRequest struct {
	ID                uuid.UUID   `json:"id"`
	Message           ChatMessage `json:"message"`
	SelectedChatModel string      `json:"selectedChatModel"`
	DocumentKind      string      `json:"documentKind,omitempty"`
	CurrentContent    string      `json:"currentContent,omitempty"`
}

type UpdateVisibilityRequest struct {
	Visibility string `json:"visibility"`
}

type SaveModelRequest struct {
	Model string `json:"model"`
}

// Stream event types written to the chat event stream
const (
	EventReasoning = "reasoning"
	EventTextDelta = "text-delta"
	EventFinish    = "finish"
	EventError     = "error"
)

type StreamEvent struct {
	Type      string     `json:"type"`
	Text      string     `json:"text,omitempty"`
	MessageID *uuid.UUID `json:"message_id,omitempty"`
}
