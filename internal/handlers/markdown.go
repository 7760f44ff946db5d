package handlers

import (
	"encoding/json"
	"log"
	"net/http"
)

type markdownRenderer interface {
	Render(source string) (string, error)
}

type MarkdownHandler struct {
	renderer markdownRenderer
}

func NewMarkdownHandler(renderer markdownRenderer) *MarkdownHandler {
	return &MarkdownHandler{renderer: renderer}
}

type renderRequest struct {
	Markdown string `json:"markdown"`
}

// Render returns the styled HTML for an assistant message.
func (h *MarkdownHandler) Render(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	html, err := h.renderer.Render(req.Markdown)
	if err != nil {
		log.Printf("markdown render failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to render markdown", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"html": html})
}
