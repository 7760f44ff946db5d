package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"memodesk-backend/internal/middleware"
	"memodesk-backend/internal/models"
	"memodesk-backend/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: middleware.GetRequestID(r),
		},
	}
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Resource not found", r))
	case errors.Is(err, services.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "You do not have access to this chat", r))
	case errors.Is(err, services.ErrEmptyMessage):
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Message must have content or an attachment", r))
	case errors.Is(err, services.ErrUnknownAttachment):
		writeJSON(w, http.StatusBadRequest, errorResp("INVALID_ATTACHMENT", "Attachments must be uploaded before they are sent", r))
	case errors.Is(err, services.ErrUnknownModel):
		writeJSON(w, http.StatusBadRequest, errorResp("UNKNOWN_MODEL", "Unknown chat model", r))
	case errors.Is(err, services.ErrUnknownKind):
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Document kind must be text, code or sheet", r))
	case errors.Is(err, services.ErrInvalidVisibility):
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Visibility must be private or public", r))
	default:
		log.Printf("request %s failed: %v", middleware.GetRequestID(r), err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
	}
}

func uuidParam(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	return id, err == nil
}
