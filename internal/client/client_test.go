package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"memodesk-backend/internal/handlers"
	"memodesk-backend/internal/middleware"
	"memodesk-backend/internal/models"
	"memodesk-backend/internal/storage"
	"memodesk-backend/internal/upload"
)

type memDocs struct{}

func (memDocs) Create(ctx context.Context, d *models.Document) error {
	d.ID = uuid.New()
	return nil
}

func (memDocs) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error { return nil }

type memJobs struct{}

func (memJobs) Enqueue(ctx context.Context, job *models.Job) error { return nil }

func newUploadServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	auth := middleware.NewJWTAuth("test-secret")
	token, err := auth.GenerateAccessToken(uuid.New(), time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	srv := httptest.NewUnstartedServer(nil)
	store, err := storage.NewLocalStore(t.TempDir(), "http://"+srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	files := handlers.NewFileHandler(store, memDocs{}, memJobs{}, 1024*1024)

	mux := http.NewServeMux()
	mux.Handle("/api/files/upload", auth.Middleware(http.HandlerFunc(files.Upload)))
	srv.Config.Handler = mux
	srv.Start()
	t.Cleanup(srv.Close)
	return srv, token
}

func TestClient_Upload(t *testing.T) {
	srv, token := newUploadServer(t)
	c := NewClient(srv.URL+"/", WithToken(token))

	att, err := c.Upload(context.Background(), upload.File{Name: "Acme.txt", Content: []byte("ARR $3M")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if att.ContentType != "text/plain" {
		t.Errorf("expected text/plain, got %q", att.ContentType)
	}
	if !strings.HasPrefix(att.Name, "memos/") || !strings.HasSuffix(att.URL, att.Name) {
		t.Errorf("unexpected attachment %+v", att)
	}
}

func TestClient_UploadRejected(t *testing.T) {
	srv, token := newUploadServer(t)
	c := NewClient(srv.URL, WithToken(token))

	_, err := c.Upload(context.Background(), upload.File{Name: "deck.pptx", Content: []byte("x")})
	var rejected *upload.RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected RejectedError, got %v", err)
	}
	if rejected.Message != "File type should be PDF, DOC, DOCX or TXT" || rejected.Status != http.StatusBadRequest {
		t.Errorf("unexpected rejection %+v", rejected)
	}
}

func TestClient_UploadUnauthorized(t *testing.T) {
	srv, _ := newUploadServer(t)
	c := NewClient(srv.URL)

	_, err := c.Upload(context.Background(), upload.File{Name: "memo.txt", Content: []byte("x")})
	var rejected *upload.RejectedError
	if !errors.As(err, &rejected) || rejected.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 rejection, got %v", err)
	}
	if rejected.Message != "Missing authorization header" {
		t.Errorf("expected envelope message, got %q", rejected.Message)
	}
}

func TestClient_UploadTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).Upload(context.Background(), upload.File{Name: "memo.txt", Content: []byte("x")})
	if err == nil {
		t.Fatal("expected transport error")
	}
	var rejected *upload.RejectedError
	if errors.As(err, &rejected) {
		t.Errorf("transport errors must not look like rejections")
	}
}

func sseServer(t *testing.T, status int, body string, seen *models.ChatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" || r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("unexpected request %s %s", r.URL.Path, r.Header.Get("Authorization"))
		}
		if seen != nil {
			json.NewDecoder(r.Body).Decode(seen)
		}
		if status != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			fmt.Fprint(w, body)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Chat(t *testing.T) {
	msgID := uuid.New()
	body := ": keepalive\n\n" +
		"event: reasoning\ndata: {\"type\":\"reasoning\",\"text\":\"thinking\"}\n\n" +
		"event: text-delta\ndata: {\"type\":\"text-delta\",\"text\":\"## Summary\"}\n\n" +
		"event: finish\ndata: {\"type\":\"finish\",\"message_id\":\"" + msgID.String() + "\"}\n\n"

	var seen models.ChatRequest
	srv := sseServer(t, http.StatusOK, body, &seen)
	c := NewClient(srv.URL, WithToken("tok"))

	chatID := uuid.New()
	var events []models.StreamEvent
	app := NewChatAppender(c, chatID, models.ChatModelReasoning, func(e models.StreamEvent) error {
		events = append(events, e)
		return nil
	})
	err := app.Append(context.Background(), models.ChatMessage{Role: models.RoleUser, Content: "Analyze"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if seen.ID != chatID || seen.SelectedChatModel != models.ChatModelReasoning || seen.Message.Content != "Analyze" {
		t.Errorf("unexpected request %+v", seen)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d: %+v", len(events), events)
	}
	if events[0].Type != models.EventReasoning || events[1].Text != "## Summary" {
		t.Errorf("unexpected events %+v", events)
	}
	if events[2].MessageID == nil || *events[2].MessageID != msgID {
		t.Errorf("expected finish with message id, got %+v", events[2])
	}
}

func TestClient_ChatErrorEvent(t *testing.T) {
	body := "event: text-delta\ndata: {\"type\":\"text-delta\",\"text\":\"partial\"}\n\n" +
		"event: error\ndata: {\"type\":\"error\",\"text\":\"An error occurred\"}\n\n"
	srv := sseServer(t, http.StatusOK, body, nil)

	err := NewClient(srv.URL, WithToken("tok")).Chat(context.Background(), models.ChatRequest{ID: uuid.New()}, func(models.StreamEvent) error { return nil })
	if !errors.Is(err, ErrStream) {
		t.Fatalf("expected ErrStream, got %v", err)
	}
}

func TestClient_ChatRejected(t *testing.T) {
	srv := sseServer(t, http.StatusBadRequest, `{"error":{"code":"INVALID_ATTACHMENT","message":"Attachments must be uploaded before they are sent"}}`, nil)

	err := NewClient(srv.URL, WithToken("tok")).Chat(context.Background(), models.ChatRequest{ID: uuid.New()}, func(models.StreamEvent) error { return nil })
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != "INVALID_ATTACHMENT" || apiErr.Status != http.StatusBadRequest {
		t.Errorf("unexpected error %+v", apiErr)
	}
}

func TestReadEvents_HandlerErrorStops(t *testing.T) {
	stop := errors.New("stop")
	calls := 0
	err := readEvents(strings.NewReader("data: {\"type\":\"text-delta\",\"text\":\"a\"}\n\ndata: {\"type\":\"text-delta\",\"text\":\"b\"}\n\n"), func(models.StreamEvent) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Errorf("expected to stop after first event, got err=%v calls=%d", err, calls)
	}
}

func TestReadEvents_TrailingEventWithoutBlankLine(t *testing.T) {
	var got []models.StreamEvent
	err := readEvents(strings.NewReader("event: finish\ndata: {\"type\":\"finish\"}"), func(e models.StreamEvent) error {
		got = append(got, e)
		return nil
	})
	if err != nil || len(got) != 1 || got[0].Type != models.EventFinish {
		t.Errorf("expected a single finish event, got %+v err=%v", got, err)
	}
}

func TestClient_JSONEndpoints(t *testing.T) {
	chatID := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/models":
			fmt.Fprint(w, `{"models":["chat-model","chat-model-reasoning"],"selected":"chat-model"}`)
		case r.Method == http.MethodGet && r.URL.Path == "/api/chats":
			fmt.Fprintf(w, `{"chats":[{"id":%q,"title":"Acme Memo","visibility":"private"}]}`, chatID)
		case r.Method == http.MethodPatch:
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"error":{"code":"FORBIDDEN","message":"You do not have access to this chat"}}`)
		case r.Method == http.MethodDelete:
			fmt.Fprint(w, `{"deleted":2}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()
	c := NewClient(srv.URL)
	ctx := context.Background()

	keys, selected, err := c.Models(ctx)
	if err != nil || len(keys) != 2 || selected != models.ChatModel {
		t.Errorf("unexpected models %v %q %v", keys, selected, err)
	}

	chats, err := c.Chats(ctx, 10)
	if err != nil || len(chats) != 1 || chats[0].ID != chatID || chats[0].Title != "Acme Memo" {
		t.Errorf("unexpected chats %+v %v", chats, err)
	}

	var apiErr *APIError
	if err := c.SetVisibility(ctx, chatID, models.VisibilityPublic); !errors.As(err, &apiErr) || apiErr.Code != "FORBIDDEN" {
		t.Errorf("expected FORBIDDEN, got %v", err)
	}

	n, err := c.DeleteTrailing(ctx, uuid.New())
	if err != nil || n != 2 {
		t.Errorf("expected 2 deleted, got %d %v", n, err)
	}
}
