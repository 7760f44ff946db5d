package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"memodesk-backend/internal/middleware"
	"memodesk-backend/internal/models"
	"memodesk-backend/internal/storage"
)

// contentTypes lists the accepted memo formats.
var contentTypes = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".txt":  "text/plain",
}

type documentCreator interface {
	Create(ctx context.Context, d *models.Document) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

type jobEnqueuer interface {
	Enqueue(ctx context.Context, job *models.Job) error
}

type FileHandler struct {
	store    storage.Store
	docs     documentCreator
	jobs     jobEnqueuer
	maxBytes int64
}

func NewFileHandler(store storage.Store, docs documentCreator, jobs jobEnqueuer, maxBytes int64) *FileHandler {
	return &FileHandler{store: store, docs: docs, jobs: jobs, maxBytes: maxBytes}
}

func uploadError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.UploadErrorResponse{Error: msg})
}

// Upload stores one memo from the multipart field "file". Failures use the
// {error} body the upload client shows verbatim.
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	tooLargeMsg := "File size should be less than " + sizeLimit(h.maxBytes)

	// leave room for the multipart envelope around the file
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+1<<20)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			uploadError(w, http.StatusRequestEntityTooLarge, tooLargeMsg)
			return
		}
		uploadError(w, http.StatusBadRequest, "Request body is empty")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		uploadError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	contentType, ok := contentTypes[ext]
	if !ok {
		uploadError(w, http.StatusBadRequest, "File type should be PDF, DOC, DOCX or TXT")
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, h.maxBytes+1))
	if err != nil {
		uploadError(w, http.StatusBadRequest, "Failed to read file")
		return
	}
	if int64(len(data)) > h.maxBytes {
		uploadError(w, http.StatusRequestEntityTooLarge, tooLargeMsg)
		return
	}
	if len(data) == 0 {
		uploadError(w, http.StatusBadRequest, "File is empty")
		return
	}

	blob, err := h.store.Put(r.Context(), header.Filename, contentType, data)
	if err != nil {
		log.Printf("Failed to store upload %q: %v", header.Filename, err)
		uploadError(w, http.StatusInternalServerError, "Upload failed")
		return
	}

	doc := &models.Document{
		UserID:      userID,
		URL:         blob.URL,
		Pathname:    blob.Pathname,
		ContentType: blob.ContentType,
		Size:        blob.Size,
		Status:      "pending",
	}
	if err := h.docs.Create(r.Context(), doc); err != nil {
		log.Printf("Failed to record document %s: %v", blob.Pathname, err)
		// nothing references the blob without its document row
		if err := h.store.Delete(context.WithoutCancel(r.Context()), blob.Pathname); err != nil {
			log.Printf("Failed to remove orphaned blob %s: %v", blob.Pathname, err)
		}
		uploadError(w, http.StatusInternalServerError, "Upload failed")
		return
	}

	job := &models.Job{
		UserID:      userID,
		Type:        models.JobDocumentExtraction,
		ReferenceID: doc.ID,
	}
	if err := h.jobs.Enqueue(r.Context(), job); err != nil {
		// the memo is still attachable, chat falls back to its name
		log.Printf("Failed to enqueue extraction for document %s: %v", doc.ID, err)
		if err := h.docs.UpdateStatus(r.Context(), doc.ID, "failed"); err != nil {
			log.Printf("Failed to mark document %s failed: %v", doc.ID, err)
		}
	}

	writeJSON(w, http.StatusOK, models.UploadResponse{
		URL:         blob.URL,
		Pathname:    blob.Pathname,
		ContentType: blob.ContentType,
	})
}

// sizeLimit formats n bytes for the upload error, rounding up so a limit
// under 1MB never reads as zero.
func sizeLimit(n int64) string {
	const kb, mb = 1024, 1024 * 1024
	if n < mb {
		return fmt.Sprintf("%dKB", (n+kb-1)/kb)
	}
	return fmt.Sprintf("%dMB", (n+mb-1)/mb)
}

// Serve streams a stored blob back by pathname.
func (h *FileHandler) Serve(w http.ResponseWriter, r *http.Request) {
	pathname := chi.URLParam(r, "*")

	rc, size, err := h.store.Get(r.Context(), pathname)
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "File not found", r))
		return
	}
	if err != nil {
		log.Printf("Failed to read blob %s: %v", pathname, err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to read file", r))
		return
	}
	defer rc.Close()

	contentType, ok := contentTypes[strings.ToLower(filepath.Ext(pathname))]
	if !ok {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", filepath.Base(pathname)))
	w.WriteHeader(http.StatusOK)
	io.Copy(w, rc)
}
