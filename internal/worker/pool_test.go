package worker

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"memodesk-backend/internal/models"
	"memodesk-backend/internal/services"
	"memodesk-backend/internal/storage"
)

type stubJobs struct {
	status  map[uuid.UUID]string
	lastErr string
	retries int
}

func (s *stubJobs) Create(_ context.Context, j *models.Job) error {
	j.ID = uuid.New()
	s.status[j.ID] = "pending"
	return nil
}

func (s *stubJobs) GetByID(_ context.Context, id uuid.UUID) (*models.Job, error) {
	st, ok := s.status[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &models.Job{ID: id, Status: st}, nil
}

func (s *stubJobs) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	s.status[id] = status
	return nil
}

func (s *stubJobs) UpdateError(_ context.Context, _ uuid.UUID, errMsg string, retryCount int) error {
	s.lastErr, s.retries = errMsg, retryCount
	return nil
}

type stubDocs struct {
	doc  *models.Document
	text string
}

func (s *stubDocs) GetByID(_ context.Context, id uuid.UUID) (*models.Document, error) {
	if s.doc == nil || s.doc.ID != id {
		return nil, pgx.ErrNoRows
	}
	return s.doc, nil
}

func (s *stubDocs) UpdateStatus(_ context.Context, _ uuid.UUID, status string) error {
	s.doc.Status = status
	return nil
}

func (s *stubDocs) UpdateText(_ context.Context, _ uuid.UUID, text string) error {
	s.text = text
	s.doc.Status = "completed"
	return nil
}

type stubBlobs map[string]string

func (s stubBlobs) Get(_ context.Context, pathname string) (io.ReadCloser, int64, error) {
	data, ok := s[pathname]
	if !ok {
		return nil, 0, storage.ErrNotFound
	}
	return io.NopCloser(strings.NewReader(data)), int64(len(data)), nil
}

type stubTitles struct {
	title string
	err   error
}

func (s stubTitles) GenerateForChat(context.Context, *models.Job) (string, error) {
	return s.title, s.err
}

type stubPublisher struct {
	msgs []models.WSMessage
}

func (s *stubPublisher) Publish(_ context.Context, _ uuid.UUID, msg models.WSMessage) error {
	s.msgs = append(s.msgs, msg)
	return nil
}

type poolFixture struct {
	pool     *Pool
	jobs     *stubJobs
	docs     *stubDocs
	pub      *stubPublisher
	requeued []time.Duration
}

func newPoolFixture(pathname string, blobs stubBlobs, titles stubTitles) *poolFixture {
	f := &poolFixture{
		jobs: &stubJobs{status: map[uuid.UUID]string{}},
		docs: &stubDocs{doc: &models.Document{ID: uuid.New(), Pathname: pathname, URL: "http://localhost/api/files/" + pathname, Status: "pending"}},
		pub:  &stubPublisher{},
	}
	f.pool = NewPool(nil, f.jobs, f.docs, blobs, services.NewExtractor(), titles, f.pub, 1<<20, 1)
	f.pool.after = func(d time.Duration, _ func()) { f.requeued = append(f.requeued, d) }
	return f
}

func (f *poolFixture) newJob(jobType string, referenceID uuid.UUID) *models.Job {
	job := &models.Job{UserID: uuid.New(), Type: jobType, ReferenceID: referenceID}
	f.jobs.Create(context.Background(), job)
	return job
}

func TestPool_DocumentExtraction(t *testing.T) {
	f := newPoolFixture("memos/1/memo.txt", stubBlobs{"memos/1/memo.txt": "Acme Corp\nSeed round"}, stubTitles{})
	job := f.newJob(models.JobDocumentExtraction, f.docs.doc.ID)

	f.pool.run(context.Background(), job)

	if f.jobs.status[job.ID] != "completed" {
		t.Errorf("expected job completed, got %s", f.jobs.status[job.ID])
	}
	if f.docs.text != "Acme Corp\nSeed round" || f.docs.doc.Status != "completed" {
		t.Errorf("expected text stored, got %q (%s)", f.docs.text, f.docs.doc.Status)
	}
	if len(f.pub.msgs) != 1 || f.pub.msgs[0].Type != models.WSDocumentUpdate {
		t.Fatalf("expected document update, got %+v", f.pub.msgs)
	}
	if ev := f.pub.msgs[0].Payload.(models.DocumentEvent); ev.Status != "completed" {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestPool_UnsupportedDocumentIsNotRetried(t *testing.T) {
	f := newPoolFixture("memos/1/legacy.doc", stubBlobs{"memos/1/legacy.doc": "\xd0\xcf\x11\xe0"}, stubTitles{})
	job := f.newJob(models.JobDocumentExtraction, f.docs.doc.ID)

	f.pool.run(context.Background(), job)

	if f.docs.doc.Status != "failed" {
		t.Errorf("expected document failed, got %s", f.docs.doc.Status)
	}
	if f.jobs.status[job.ID] != "completed" || len(f.requeued) != 0 {
		t.Errorf("expected job settled without retry, status %s, requeued %v", f.jobs.status[job.ID], f.requeued)
	}
}

func TestPool_RetriesWithBackoff(t *testing.T) {
	f := newPoolFixture("memos/1/missing.pdf", stubBlobs{}, stubTitles{})
	job := f.newJob(models.JobDocumentExtraction, f.docs.doc.ID)

	f.pool.run(context.Background(), job)

	if f.jobs.status[job.ID] != "pending" || f.jobs.retries != 1 {
		t.Errorf("expected pending with 1 retry, got %s/%d", f.jobs.status[job.ID], f.jobs.retries)
	}
	if len(f.requeued) != 1 || f.requeued[0] != 2*time.Second {
		t.Errorf("expected one requeue after 2s, got %v", f.requeued)
	}
	if !strings.Contains(f.jobs.lastErr, "failed to read blob") {
		t.Errorf("unexpected error message %q", f.jobs.lastErr)
	}
}

func TestPool_PermanentFailure(t *testing.T) {
	f := newPoolFixture("memos/1/missing.pdf", stubBlobs{}, stubTitles{})
	job := f.newJob(models.JobDocumentExtraction, f.docs.doc.ID)
	job.RetryCount = maxAttempts - 1

	f.pool.run(context.Background(), job)

	if f.jobs.status[job.ID] != "failed" || f.docs.doc.Status != "failed" {
		t.Errorf("expected job and document failed, got %s/%s", f.jobs.status[job.ID], f.docs.doc.Status)
	}
	if len(f.requeued) != 0 {
		t.Errorf("expected no requeue")
	}
	last := f.pub.msgs[len(f.pub.msgs)-1]
	if last.Type != models.WSError {
		t.Errorf("expected error event, got %+v", last)
	}
}

func TestPool_TitleGeneration(t *testing.T) {
	f := newPoolFixture("", stubBlobs{}, stubTitles{title: "Acme Corp Memo"})
	chatID := uuid.New()
	job := f.newJob(models.JobTitleGeneration, chatID)

	f.pool.run(context.Background(), job)

	if len(f.pub.msgs) != 1 {
		t.Fatalf("expected one update, got %+v", f.pub.msgs)
	}
	ev, ok := f.pub.msgs[0].Payload.(models.TitleEvent)
	if !ok || ev.ChatID != chatID || ev.Title != "Acme Corp Memo" {
		t.Errorf("unexpected title event %+v", f.pub.msgs[0])
	}
}

func TestPool_TitleFailureRetries(t *testing.T) {
	f := newPoolFixture("", stubBlobs{}, stubTitles{err: errors.New("model down")})
	job := f.newJob(models.JobTitleGeneration, uuid.New())

	f.pool.run(context.Background(), job)

	if len(f.requeued) != 1 {
		t.Errorf("expected retry to be scheduled")
	}
}

func TestPool_SkipsCompletedJob(t *testing.T) {
	f := newPoolFixture("", stubBlobs{}, stubTitles{title: "Acme Corp Memo"})
	job := f.newJob(models.JobTitleGeneration, uuid.New())
	f.jobs.status[job.ID] = "completed"

	f.pool.run(context.Background(), job)

	if len(f.pub.msgs) != 0 {
		t.Errorf("expected completed job to be skipped")
	}
}

func TestPool_UnknownJobType(t *testing.T) {
	f := newPoolFixture("", stubBlobs{}, stubTitles{})
	if err := f.pool.handle(context.Background(), &models.Job{Type: "thumbnail-generation"}); err == nil {
		t.Fatal("expected error for unknown job type")
	}
}

func TestBackoffAndQueueName(t *testing.T) {
	if backoff(1) != 2*time.Second || backoff(2) != 4*time.Second {
		t.Errorf("unexpected backoff %v %v", backoff(1), backoff(2))
	}
	if QueueName(models.JobTitleGeneration) != "queue:title-generation" {
		t.Errorf("unexpected queue name %q", QueueName(models.JobTitleGeneration))
	}
}
