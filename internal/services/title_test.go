package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"memodesk-backend/internal/models"
	"memodesk-backend/internal/providers"
)

func attachment(name, contentType string) models.Attachment {
	return models.Attachment{URL: "http://localhost:8080/api/files/" + name, Name: name, ContentType: contentType}
}

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"Acme Corp Memo", "Acme Corp Memo"},
		{"  \"Facebook Memo\"\n", "Facebook Memo"},
		{"AT&T Memo", "AT&T Memo"},
		{"Memo", FallbackTitle},
		{"Acme: Memo", FallbackTitle},
		{"The memo is about Acme", FallbackTitle},
		{"", FallbackTitle},
	}

	for _, tc := range tests {
		if got := cleanTitle(tc.raw); got != tc.want {
			t.Errorf("cleanTitle(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestTitleService_GenerateForChat(t *testing.T) {
	chats := newStubChats()
	chatID := uuid.New()
	chats.Create(context.Background(), &models.Chat{ID: chatID, Title: defaultChatTitle})

	title := &recordingModel{inner: providers.NewStandIn("Acme Corp Memo")}
	svc := NewTitleService(chats, stubLookup{models.TitleModel: title})

	cfg, _ := json.Marshal(TitleRequest{Message: models.ChatMessage{
		Content:     "Summarize",
		Attachments: []models.Attachment{attachment("memos/1/acme.pdf", "application/pdf")},
	}})
	got, err := svc.GenerateForChat(context.Background(), &models.Job{ReferenceID: chatID, ConfigJSON: cfg})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Acme Corp Memo" {
		t.Errorf("unexpected title %q", got)
	}

	chat, _ := chats.GetByID(context.Background(), chatID)
	if chat.Title != "Acme Corp Memo" {
		t.Errorf("expected title stored on chat, got %q", chat.Title)
	}
	if title.last.Messages[0].Content != "Summarize\nAttachment: memos/1/acme.pdf" {
		t.Errorf("unexpected title input %q", title.last.Messages[0].Content)
	}
}

func TestTitleService_FallsBackOnBadOutput(t *testing.T) {
	svc := NewTitleService(newStubChats(), stubLookup{models.TitleModel: providers.NewStandIn("Sure! Here is a title: Acme")})

	got, err := svc.Generate(context.Background(), models.ChatMessage{Content: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != FallbackTitle {
		t.Errorf("expected fallback, got %q", got)
	}
}

func TestTitleService_MissingModel(t *testing.T) {
	svc := NewTitleService(newStubChats(), stubLookup{})
	if _, err := svc.Generate(context.Background(), models.ChatMessage{Content: "x"}); err == nil {
		t.Fatal("expected error without a title model")
	}
}
