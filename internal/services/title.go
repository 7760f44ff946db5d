package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"memodesk-backend/internal/models"
	"memodesk-backend/internal/prompts"
	"memodesk-backend/internal/providers"
)

// FallbackTitle is used when the model output is not a "<Company> Memo" line.
const FallbackTitle = "Company Memo"

var titlePattern = regexp.MustCompile(`^[A-Za-z0-9 &.-]+ Memo$`)

// TitleRequest is the config of a title-generation job.
type TitleRequest struct {
	Message models.ChatMessage `json:"message"`
}

type titleStore interface {
	UpdateTitle(ctx context.Context, id uuid.UUID, title string) error
}

type TitleService struct {
	chats  titleStore
	models modelLookup
}

func NewTitleService(chats titleStore, lookup modelLookup) *TitleService {
	return &TitleService{chats: chats, models: lookup}
}

// Generate asks the title model for a "<Company> Memo" title.
func (s *TitleService) Generate(ctx context.Context, msg models.ChatMessage) (string, error) {
	model, err := s.models.LanguageModel(models.TitleModel)
	if err != nil {
		return "", err
	}

	raw, err := providers.GenerateText(ctx, model, providers.Request{
		System:   prompts.TitlePrompt,
		Messages: []providers.Message{{Role: models.RoleUser, Content: describeMessage(msg)}},
	})
	if err != nil {
		return "", fmt.Errorf("title generation failed: %w", err)
	}
	return cleanTitle(raw), nil
}

// GenerateForChat runs a title job and stores the result on the chat.
func (s *TitleService) GenerateForChat(ctx context.Context, job *models.Job) (string, error) {
	var req TitleRequest
	if err := json.Unmarshal(job.ConfigJSON, &req); err != nil {
		return "", fmt.Errorf("invalid title job config: %w", err)
	}

	title, err := s.Generate(ctx, req.Message)
	if err != nil {
		return "", err
	}
	if err := s.chats.UpdateTitle(ctx, job.ReferenceID, title); err != nil {
		return "", fmt.Errorf("failed to save title: %w", err)
	}
	return title, nil
}

func describeMessage(msg models.ChatMessage) string {
	var b strings.Builder
	b.WriteString(msg.Content)
	for _, att := range msg.Attachments {
		b.WriteString("\nAttachment: ")
		b.WriteString(att.Name)
	}
	return b.String()
}

func cleanTitle(raw string) string {
	title := strings.TrimSpace(raw)
	title = strings.Trim(title, `"'`+"`")
	if titlePattern.MatchString(title) {
		return title
	}
	log.Printf("Title model returned %q, using fallback", raw)
	return FallbackTitle
}
