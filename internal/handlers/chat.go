package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"slices"
	"strconv"

	"github.com/google/uuid"

	"memodesk-backend/internal/middleware"
	"memodesk-backend/internal/models"
)

const modelCookie = "chat-model"

type chatService interface {
	Stream(ctx context.Context, userID uuid.UUID, req models.ChatRequest, emit func(models.StreamEvent) error) error
	Messages(ctx context.Context, userID, chatID uuid.UUID) ([]models.Message, error)
	DeleteTrailingMessages(ctx context.Context, userID, messageID uuid.UUID) (int64, error)
	UpdateVisibility(ctx context.Context, userID, chatID uuid.UUID, visibility string) error
}

type chatLister interface {
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Chat, error)
}

type modelKeys interface {
	Keys() []string
}

type ChatHandler struct {
	chats  chatService
	lister chatLister
	models modelKeys
}

func NewChatHandler(chats chatService, lister chatLister, keys modelKeys) *ChatHandler {
	return &ChatHandler{chats: chats, lister: lister, models: keys}
}

// sseWriter writes server-sent events, sending headers on the first event.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func (s *sseWriter) emit(e models.StreamEvent) error {
	if !s.started {
		h := s.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}

	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", e.Type, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Stream answers a chat message as a text/event-stream. Errors found before
// the first event use the JSON error envelope, later ones an error event.
func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.ID == uuid.Nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Chat id is required", r))
		return
	}
	if req.SelectedChatModel == "" {
		if c, err := r.Cookie(modelCookie); err == nil && h.selectable(c.Value) {
			req.SelectedChatModel = c.Value
		}
	}
	if req.SelectedChatModel != "" && !h.selectable(req.SelectedChatModel) {
		writeJSON(w, http.StatusBadRequest, errorResp("UNKNOWN_MODEL", "Unknown chat model", r))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Streaming is not supported", r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	sse := &sseWriter{w: w, flusher: flusher}

	err := h.chats.Stream(r.Context(), userID, req, sse.emit)
	if err == nil {
		return
	}
	if !sse.started {
		handleServiceError(w, r, err)
		return
	}
	if r.Context().Err() != nil {
		log.Printf("Chat %s: client went away mid-stream", req.ID)
		return
	}

	log.Printf("Chat %s stream failed: %v", req.ID, err)
	sse.emit(models.StreamEvent{Type: models.EventError, Text: "An error occurred while generating the response"})
}

func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	chats, err := h.lister.ListByUser(r.Context(), userID, limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if chats == nil {
		chats = []models.Chat{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"chats": chats})
}

func (h *ChatHandler) Messages(w http.ResponseWriter, r *http.Request) {
	chatID, ok := uuidParam(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid chat ID", r))
		return
	}

	msgs, err := h.chats.Messages(r.Context(), middleware.GetUserID(r.Context()), chatID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"messages": msgs})
}

func (h *ChatHandler) DeleteTrailing(w http.ResponseWriter, r *http.Request) {
	messageID, ok := uuidParam(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid message ID", r))
		return
	}

	n, err := h.chats.DeleteTrailingMessages(r.Context(), middleware.GetUserID(r.Context()), messageID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": n})
}

func (h *ChatHandler) UpdateVisibility(w http.ResponseWriter, r *http.Request) {
	chatID, ok := uuidParam(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid chat ID", r))
		return
	}

	var req models.UpdateVisibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if err := h.chats.UpdateVisibility(r.Context(), middleware.GetUserID(r.Context()), chatID, req.Visibility); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"visibility": req.Visibility})
}

// SaveModel remembers the selected chat model in a cookie.
func (h *ChatHandler) SaveModel(w http.ResponseWriter, r *http.Request) {
	var req models.SaveModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if !h.selectable(req.Model) {
		writeJSON(w, http.StatusBadRequest, errorResp("UNKNOWN_MODEL", "Unknown chat model", r))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     modelCookie,
		Value:    req.Model,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// Models lists the chat models a user can pick and the current selection.
func (h *ChatHandler) Models(w http.ResponseWriter, r *http.Request) {
	selectable := make([]string, 0, 2)
	for _, k := range h.models.Keys() {
		if h.selectable(k) {
			selectable = append(selectable, k)
		}
	}

	selected := models.ChatModel
	if c, err := r.Cookie(modelCookie); err == nil && h.selectable(c.Value) {
		selected = c.Value
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"models":   selectable,
		"selected": selected,
	})
}

// selectable reports whether key is a chat model a user may pick. Title and
// artifact models are internal.
func (h *ChatHandler) selectable(key string) bool {
	if key != models.ChatModel && key != models.ChatModelReasoning {
		return false
	}
	return slices.Contains(h.models.Keys(), key)
}
