package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"memodesk-backend/internal/models"
	"memodesk-backend/internal/prompts"
	"memodesk-backend/internal/providers"
)

const defaultChatTitle = "New Memo"

type chatStore interface {
	Create(ctx context.Context, c *models.Chat) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Chat, error)
	UpdateVisibility(ctx context.Context, id uuid.UUID, visibility string) error
}

type messageStore interface {
	Create(ctx context.Context, m *models.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error)
	ListByChatID(ctx context.Context, chatID uuid.UUID) ([]models.Message, error)
	DeleteByChatIDAfter(ctx context.Context, chatID uuid.UUID, ts time.Time) (int64, error)
}

type documentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error)
	GetByURL(ctx context.Context, userID uuid.UUID, url string) (*models.Document, error)
}

type modelLookup interface {
	LanguageModel(key string) (providers.LanguageModel, error)
}

type jobEnqueuer interface {
	Enqueue(ctx context.Context, job *models.Job) error
}

type ChatService struct {
	chats    chatStore
	messages messageStore
	docs     documentStore
	models   modelLookup
	jobs     jobEnqueuer
	rateChan chan struct{}

	// how long a chat request waits for attachment text to be extracted
	extractWait  time.Duration
	pollInterval time.Duration
}

func NewChatService(chats chatStore, messages messageStore, docs documentStore, lookup modelLookup, jobs jobEnqueuer, concurrentReqs int) *ChatService {
	if concurrentReqs < 1 {
		concurrentReqs = 1
	}
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &ChatService{
		chats:        chats,
		messages:     messages,
		docs:         docs,
		models:       lookup,
		jobs:         jobs,
		rateChan:     rateChan,
		extractWait:  30 * time.Second,
		pollInterval: time.Second,
	}
}

// acquireRate blocks until a model slot is available
func (s *ChatService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("timeout waiting for model slot")
	}
}

func (s *ChatService) releaseRate() {
	s.rateChan <- struct{}{}
}

// Stream stores the user message, runs the selected model over the chat
// history and stores the reply. Events are passed to emit as they arrive.
func (s *ChatService) Stream(ctx context.Context, userID uuid.UUID, req models.ChatRequest, emit func(models.StreamEvent) error) error {
	if strings.TrimSpace(req.Message.Content) == "" && len(req.Message.Attachments) == 0 {
		return ErrEmptyMessage
	}
	if req.ID == uuid.Nil {
		return fmt.Errorf("%w: chat id", ErrNotFound)
	}

	selected := req.SelectedChatModel
	if selected == "" {
		selected = models.ChatModel
	}
	if selected != models.ChatModel && selected != models.ChatModelReasoning {
		return fmt.Errorf("%w: %s", ErrUnknownModel, selected)
	}

	kind := prompts.DocumentKind(req.DocumentKind)
	modelKey := selected
	if kind != "" {
		if !kind.Known() {
			return fmt.Errorf("%w: %s", ErrUnknownKind, kind)
		}
		modelKey = models.ArtifactModel
	}
	model, err := s.models.LanguageModel(modelKey)
	if err != nil {
		return err
	}

	if err := s.checkAttachments(ctx, userID, req.Message.Attachments); err != nil {
		return err
	}

	if _, err := s.ensureChat(ctx, userID, req); err != nil {
		return err
	}

	userMsg := &models.Message{
		ChatID:      req.ID,
		Role:        models.RoleUser,
		Content:     req.Message.Content,
		Attachments: req.Message.Attachments,
	}
	if err := s.messages.Create(ctx, userMsg); err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}

	history, err := s.messages.ListByChatID(ctx, req.ID)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	llmReq := providers.Request{
		System: prompts.Build(prompts.Request{
			SelectedChatModel: selected,
			DocumentKind:      kind,
			CurrentContent:    req.CurrentContent,
		}),
		Messages: make([]providers.Message, 0, len(history)),
	}
	for _, m := range history {
		content := m.Content
		if m.Role == models.RoleUser && len(m.Attachments) > 0 {
			// only the message being answered waits for extraction
			wait := m.ID == userMsg.ID
			content = withAttachmentContext(content, s.attachedDocuments(ctx, userID, m.Attachments, wait))
		}
		llmReq.Messages = append(llmReq.Messages, providers.Message{Role: m.Role, Content: content})
	}

	if err := s.acquireRate(ctx); err != nil {
		return err
	}
	defer s.releaseRate()

	var text, reasoning strings.Builder
	err = model.Stream(ctx, llmReq, func(c providers.Chunk) error {
		if c.Kind == providers.ChunkReasoning {
			reasoning.WriteString(c.Text)
			return emit(models.StreamEvent{Type: models.EventReasoning, Text: c.Text})
		}
		text.WriteString(c.Text)
		return emit(models.StreamEvent{Type: models.EventTextDelta, Text: c.Text})
	})
	if err != nil {
		return err
	}

	reply := &models.Message{
		ChatID:  req.ID,
		Role:    models.RoleAssistant,
		Content: text.String(),
	}
	if reasoning.Len() > 0 {
		r := reasoning.String()
		reply.Reasoning = &r
	}
	// the client may be gone by now, the reply is still kept
	if err := s.messages.Create(context.WithoutCancel(ctx), reply); err != nil {
		return fmt.Errorf("failed to save reply: %w", err)
	}

	return emit(models.StreamEvent{Type: models.EventFinish, MessageID: &reply.ID})
}

func (s *ChatService) checkAttachments(ctx context.Context, userID uuid.UUID, atts []models.Attachment) error {
	for _, att := range atts {
		_, err := s.docs.GetByURL(ctx, userID, att.URL)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrUnknownAttachment, att.Name)
		}
		if err != nil {
			return fmt.Errorf("failed to look up attachment: %w", err)
		}
	}
	return nil
}

func (s *ChatService) ensureChat(ctx context.Context, userID uuid.UUID, req models.ChatRequest) (*models.Chat, error) {
	chat, err := s.chats.GetByID(ctx, req.ID)
	if err == nil {
		if chat.UserID != userID {
			return nil, ErrForbidden
		}
		return chat, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to load chat: %w", err)
	}

	chat = &models.Chat{
		ID:         req.ID,
		UserID:     userID,
		Title:      defaultChatTitle,
		Visibility: models.VisibilityPrivate,
	}
	if err := s.chats.Create(ctx, chat); err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}

	cfg, _ := json.Marshal(TitleRequest{Message: req.Message})
	job := &models.Job{
		UserID:      userID,
		Type:        models.JobTitleGeneration,
		ReferenceID: chat.ID,
		ConfigJSON:  cfg,
	}
	if err := s.jobs.Enqueue(ctx, job); err != nil {
		// the chat keeps its placeholder title
		log.Printf("failed to enqueue title job for chat %s: %v", chat.ID, err)
	}
	return chat, nil
}

// attachedDocuments resolves attachments to their extracted text. With wait
// set it polls a bounded time for extraction still in flight, otherwise the
// stored text is used as is.
func (s *ChatService) attachedDocuments(ctx context.Context, userID uuid.UUID, atts []models.Attachment, wait bool) []AttachedDocument {
	out := make([]AttachedDocument, 0, len(atts))
	for _, att := range atts {
		ad := AttachedDocument{Attachment: att}
		doc, err := s.docs.GetByURL(ctx, userID, att.URL)
		if err == nil {
			if wait {
				if doc, err = s.waitForDocument(ctx, doc); err != nil {
					log.Printf("Attachment %s has no text, sending name only: %v", att.URL, err)
				}
			}
			if doc != nil && doc.ExtractedText != nil {
				ad.Text = *doc.ExtractedText
			}
		}
		out = append(out, ad)
	}
	return out
}

func (s *ChatService) waitForDocument(ctx context.Context, doc *models.Document) (*models.Document, error) {
	deadline := time.Now().Add(s.extractWait)

	for {
		switch doc.Status {
		case "completed":
			return doc, nil
		case "failed":
			return doc, fmt.Errorf("document extraction failed")
		}

		if time.Now().After(deadline) {
			return doc, fmt.Errorf("document text not ready yet (status: %s)", doc.Status)
		}

		select {
		case <-ctx.Done():
			return doc, ctx.Err()
		case <-time.After(s.pollInterval):
		}

		refreshed, err := s.docs.GetByID(ctx, doc.ID)
		if err != nil {
			return doc, fmt.Errorf("failed to get document: %w", err)
		}
		doc = refreshed
	}
}

// Messages lists a chat's messages. Private chats are visible to their owner only.
func (s *ChatService) Messages(ctx context.Context, userID, chatID uuid.UUID) ([]models.Message, error) {
	chat, err := s.getChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if chat.UserID != userID && chat.Visibility != models.VisibilityPublic {
		return nil, ErrForbidden
	}
	return s.messages.ListByChatID(ctx, chatID)
}

// DeleteTrailingMessages removes the given message and everything after it
// in the same chat.
func (s *ChatService) DeleteTrailingMessages(ctx context.Context, userID, messageID uuid.UUID) (int64, error) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get message: %w", err)
	}

	chat, err := s.getChat(ctx, msg.ChatID)
	if err != nil {
		return 0, err
	}
	if chat.UserID != userID {
		return 0, ErrForbidden
	}

	return s.messages.DeleteByChatIDAfter(ctx, msg.ChatID, msg.CreatedAt)
}

func (s *ChatService) UpdateVisibility(ctx context.Context, userID, chatID uuid.UUID, visibility string) error {
	if visibility != models.VisibilityPrivate && visibility != models.VisibilityPublic {
		return ErrInvalidVisibility
	}

	chat, err := s.getChat(ctx, chatID)
	if err != nil {
		return err
	}
	if chat.UserID != userID {
		return ErrForbidden
	}
	return s.chats.UpdateVisibility(ctx, chatID, visibility)
}

func (s *ChatService) getChat(ctx context.Context, id uuid.UUID) (*models.Chat, error) {
	chat, err := s.chats.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}
	return chat, nil
}
