package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"memodesk-backend/internal/middleware"
	"memodesk-backend/internal/models"
	"memodesk-backend/internal/storage"
)

type stubDocs struct {
	created  []*models.Document
	statuses map[uuid.UUID]string
	err      error
}

func (s *stubDocs) Create(ctx context.Context, d *models.Document) error {
	if s.err != nil {
		return s.err
	}
	d.ID = uuid.New()
	s.created = append(s.created, d)
	return nil
}

func (s *stubDocs) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	if s.statuses == nil {
		s.statuses = map[uuid.UUID]string{}
	}
	s.statuses[id] = status
	return nil
}

type stubJobs struct {
	jobs []*models.Job
	err  error
}

func (s *stubJobs) Enqueue(ctx context.Context, job *models.Job) error {
	s.jobs = append(s.jobs, job)
	return s.err
}

func newFileHandler(t *testing.T, maxBytes int64) (*FileHandler, *stubDocs, *stubJobs) {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir(), "http://localhost:8080")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	docs, jobs := &stubDocs{}, &stubJobs{}
	return NewFileHandler(store, docs, jobs, maxBytes), docs, jobs
}

func multipartRequest(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fw.Write(content)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func withUser(req *http.Request, userID uuid.UUID) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, userID))
}

func TestFileHandler_Upload(t *testing.T) {
	h, docs, jobs := newFileHandler(t, 5*1024*1024)
	userID := uuid.New()

	rr := httptest.NewRecorder()
	h.Upload(rr, withUser(multipartRequest(t, "file", "Acme Memo.txt", []byte("Revenue grew 40%.")), userID))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp models.UploadResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ContentType != "text/plain" {
		t.Errorf("expected text/plain, got %q", resp.ContentType)
	}
	if !strings.HasPrefix(resp.Pathname, "memos/") || !strings.HasSuffix(resp.Pathname, ".txt") {
		t.Errorf("unexpected pathname %q", resp.Pathname)
	}
	if resp.URL != "http://localhost:8080/api/files/"+resp.Pathname {
		t.Errorf("unexpected url %q", resp.URL)
	}

	if len(docs.created) != 1 {
		t.Fatalf("expected one document, got %d", len(docs.created))
	}
	doc := docs.created[0]
	if doc.UserID != userID || doc.Status != "pending" || doc.URL != resp.URL {
		t.Errorf("unexpected document %+v", doc)
	}
	if len(jobs.jobs) != 1 || jobs.jobs[0].Type != models.JobDocumentExtraction || jobs.jobs[0].ReferenceID != doc.ID {
		t.Errorf("expected an extraction job for %s, got %+v", doc.ID, jobs.jobs)
	}
}

func TestFileHandler_UploadEnqueueFailureMarksDocumentFailed(t *testing.T) {
	h, docs, jobs := newFileHandler(t, 1024)
	jobs.err = errors.New("redis down")

	rr := httptest.NewRecorder()
	h.Upload(rr, withUser(multipartRequest(t, "file", "memo.pdf", []byte("%PDF-1.4")), uuid.New()))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(docs.created) != 1 {
		t.Fatalf("expected one document, got %d", len(docs.created))
	}
	// a document nobody will extract must not stay pending
	if got := docs.statuses[docs.created[0].ID]; got != "failed" {
		t.Errorf("expected document marked failed, got %q", got)
	}
}

func TestFileHandler_UploadRecordFailureRemovesBlob(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewLocalStore(dir, "http://localhost:8080")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	docs, jobs := &stubDocs{err: errors.New("db down")}, &stubJobs{}
	h := NewFileHandler(store, docs, jobs, 1024)

	rr := httptest.NewRecorder()
	h.Upload(rr, withUser(multipartRequest(t, "file", "memo.txt", []byte("Burn is $2M/month.")), uuid.New()))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	var files []string
	filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			files = append(files, p)
		}
		return nil
	})
	if len(files) != 0 {
		t.Errorf("expected the stored blob to be removed, found %v", files)
	}
	if len(jobs.jobs) != 0 {
		t.Errorf("expected no extraction job, got %d", len(jobs.jobs))
	}
}

func TestFileHandler_UploadSizeLimitMessage(t *testing.T) {
	tests := []struct {
		maxBytes int64
		want     string
	}{
		{512 * 1024, "File size should be less than 512KB"},
		{1000, "File size should be less than 1KB"},
		{5 * 1024 * 1024, "File size should be less than 5MB"},
		{3*1024*1024 + 1, "File size should be less than 4MB"},
	}

	for _, tc := range tests {
		t.Run(tc.want, func(t *testing.T) {
			h, _, _ := newFileHandler(t, tc.maxBytes)
			rr := httptest.NewRecorder()
			h.Upload(rr, withUser(multipartRequest(t, "file", "memo.txt", bytes.Repeat([]byte("a"), int(tc.maxBytes)+1)), uuid.New()))

			if rr.Code != http.StatusRequestEntityTooLarge {
				t.Fatalf("expected 413, got %d", rr.Code)
			}
			var body models.UploadErrorResponse
			json.NewDecoder(rr.Body).Decode(&body)
			if body.Error != tc.want {
				t.Errorf("expected %q, got %q", tc.want, body.Error)
			}
		})
	}
}

func TestFileHandler_UploadErrors(t *testing.T) {
	tests := []struct {
		name       string
		req        func(t *testing.T) *http.Request
		wantStatus int
		wantError  string
	}{
		{
			name: "not multipart",
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/api/files/upload", nil)
			},
			wantStatus: http.StatusBadRequest,
			wantError:  "Request body is empty",
		},
		{
			name: "missing file field",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "attachment", "memo.txt", []byte("hi"))
			},
			wantStatus: http.StatusBadRequest,
			wantError:  "No file uploaded",
		},
		{
			name: "unsupported type",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "file", "deck.pptx", []byte("slides"))
			},
			wantStatus: http.StatusBadRequest,
			wantError:  "File type should be PDF, DOC, DOCX or TXT",
		},
		{
			name: "empty file",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "file", "memo.txt", nil)
			},
			wantStatus: http.StatusBadRequest,
			wantError:  "File is empty",
		},
		{
			name: "too large",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "file", "memo.txt", bytes.Repeat([]byte("a"), 2*1024*1024))
			},
			wantStatus: http.StatusRequestEntityTooLarge,
			wantError:  "File size should be less than 1MB",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h, docs, _ := newFileHandler(t, 1024*1024)
			rr := httptest.NewRecorder()
			h.Upload(rr, withUser(tc.req(t), uuid.New()))

			if rr.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, rr.Code)
			}
			var body models.UploadErrorResponse
			json.NewDecoder(rr.Body).Decode(&body)
			if body.Error != tc.wantError {
				t.Errorf("expected error %q, got %q", tc.wantError, body.Error)
			}
			if len(docs.created) != 0 {
				t.Errorf("expected no document to be recorded")
			}
		})
	}
}

func TestFileHandler_Serve(t *testing.T) {
	store, err := storage.NewLocalStore(t.TempDir(), "http://localhost:8080")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	blob, err := store.Put(context.Background(), "memo.txt", "text/plain", []byte("Burn is $2M/month."))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	h := NewFileHandler(store, &stubDocs{}, &stubJobs{}, 1024)
	r := chi.NewRouter()
	r.Get("/api/files/*", h.Serve)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/files/"+blob.Pathname, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/plain" {
		t.Errorf("expected text/plain, got %q", ct)
	}
	body, _ := io.ReadAll(rr.Body)
	if string(body) != "Burn is $2M/month." {
		t.Errorf("unexpected body %q", body)
	}

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/files/memos/"+uuid.NewString()+"/missing.txt", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
}
