package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"memodesk-backend/internal/models"
	"memodesk-backend/internal/services"
)

const maxAttempts = 3

type jobStore interface {
	Create(ctx context.Context, j *models.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	UpdateError(ctx context.Context, id uuid.UUID, errMsg string, retryCount int) error
}

type documentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	UpdateText(ctx context.Context, id uuid.UUID, text string) error
}

type blobReader interface {
	Get(ctx context.Context, pathname string) (io.ReadCloser, int64, error)
}

type titleGenerator interface {
	GenerateForChat(ctx context.Context, job *models.Job) (string, error)
}

type publisher interface {
	Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) error
}

// Queue records a job and pushes it onto its Redis list.
type Queue struct {
	redis *redis.Client
	jobs  jobStore
}

func NewQueue(redisClient *redis.Client, jobs jobStore) *Queue {
	return &Queue{redis: redisClient, jobs: jobs}
}

func (q *Queue) Enqueue(ctx context.Context, job *models.Job) error {
	if err := q.jobs.Create(ctx, job); err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	jobBytes, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}
	if err := q.redis.LPush(ctx, QueueName(job.Type), string(jobBytes)).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

type Pool struct {
	redis       *redis.Client
	jobs        jobStore
	docs        documentStore
	blobs       blobReader
	extractor   *services.Extractor
	titles      titleGenerator
	pub         publisher
	maxBytes    int64
	workerCount int
	stopChan    chan struct{}
	after       func(time.Duration, func())
}

func NewPool(
	redisClient *redis.Client,
	jobs jobStore,
	docs documentStore,
	blobs blobReader,
	extractor *services.Extractor,
	titles titleGenerator,
	pub publisher,
	maxBytes int64,
	workerCount int,
) *Pool {
	return &Pool{
		redis:       redisClient,
		jobs:        jobs,
		docs:        docs,
		blobs:       blobs,
		extractor:   extractor,
		titles:      titles,
		pub:         pub,
		maxBytes:    maxBytes,
		workerCount: workerCount,
		stopChan:    make(chan struct{}),
		after:       func(d time.Duration, f func()) { time.AfterFunc(d, f) },
	}
}

func (p *Pool) Start() {
	queues := []string{
		QueueName(models.JobDocumentExtraction),
		QueueName(models.JobTitleGeneration),
	}

	for i := 0; i < p.workerCount; i++ {
		go p.worker(i, queues)
	}

	log.Printf("Started %d worker goroutines", p.workerCount)
}

func (p *Pool) Stop() {
	close(p.stopChan)
}

func (p *Pool) worker(id int, queues []string) {
	for {
		select {
		case <-p.stopChan:
			log.Printf("Worker %d shutting down", id)
			return
		default:
		}

		ctx := context.Background()

		// BLPOP with 30s timeout
		result, err := p.redis.BLPop(ctx, 30*time.Second, queues...).Result()
		if err != nil {
			continue // Timeout or error, retry
		}

		if len(result) < 2 {
			continue
		}

		var job models.Job
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Printf("Worker %d: failed to parse job: %v", id, err)
			continue
		}

		// Try to acquire lock
		lockKey := fmt.Sprintf("job_lock:%s", job.ID.String())
		locked, err := p.redis.SetNX(ctx, lockKey, "1", 10*time.Minute).Result()
		if err != nil || !locked {
			continue // Another worker has this job
		}

		log.Printf("Worker %d: processing job %s (type: %s)", id, job.ID, job.Type)
		p.run(ctx, &job)

		// Release lock
		p.redis.Del(ctx, lockKey)
	}
}

// run executes one job and records the outcome.
func (p *Pool) run(ctx context.Context, job *models.Job) {
	if stored, err := p.jobs.GetByID(ctx, job.ID); err == nil && stored.Status == "completed" {
		return
	}
	p.jobs.UpdateStatus(ctx, job.ID, "processing")

	if err := p.handle(ctx, job); err != nil {
		p.handleFailure(ctx, job, err)
		return
	}

	p.jobs.UpdateStatus(ctx, job.ID, "completed")
	log.Printf("Job %s completed successfully", job.ID)
}

func (p *Pool) handle(ctx context.Context, job *models.Job) error {
	switch job.Type {
	case models.JobDocumentExtraction:
		return p.processDocument(ctx, job)
	case models.JobTitleGeneration:
		return p.processTitle(ctx, job)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

func (p *Pool) processDocument(ctx context.Context, job *models.Job) error {
	doc, err := p.docs.GetByID(ctx, job.ReferenceID)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	p.docs.UpdateStatus(ctx, doc.ID, "processing")

	rc, _, err := p.blobs.Get(ctx, doc.Pathname)
	if err != nil {
		return fmt.Errorf("failed to read blob %s: %w", doc.Pathname, err)
	}
	data, err := io.ReadAll(io.LimitReader(rc, p.maxBytes+1))
	rc.Close()
	if err != nil {
		return fmt.Errorf("failed to read blob %s: %w", doc.Pathname, err)
	}

	text, err := p.extractor.Extract(doc.Pathname, data)
	if errors.Is(err, services.ErrUnsupportedType) {
		// retrying cannot help, the memo is kept without text
		log.Printf("No text extracted for document %s: %v", doc.ID, err)
		p.docs.UpdateStatus(ctx, doc.ID, "failed")
		p.publish(ctx, job.UserID, models.WSDocumentUpdate, models.DocumentEvent{DocumentID: doc.ID, URL: doc.URL, Status: "failed"})
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to extract text from %s: %w", doc.Pathname, err)
	}

	if err := p.docs.UpdateText(ctx, doc.ID, text); err != nil {
		return fmt.Errorf("failed to save extracted text: %w", err)
	}

	log.Printf("Extracted text for document %s (%d chars)", doc.ID, len(text))
	p.publish(ctx, job.UserID, models.WSDocumentUpdate, models.DocumentEvent{DocumentID: doc.ID, URL: doc.URL, Status: "completed"})
	return nil
}

func (p *Pool) processTitle(ctx context.Context, job *models.Job) error {
	title, err := p.titles.GenerateForChat(ctx, job)
	if err != nil {
		return err
	}
	p.publish(ctx, job.UserID, models.WSTitleUpdate, models.TitleEvent{ChatID: job.ReferenceID, Title: title})
	return nil
}

func (p *Pool) publish(ctx context.Context, userID uuid.UUID, msgType string, payload interface{}) {
	if err := p.pub.Publish(ctx, userID, models.WSMessage{Type: msgType, Payload: payload}); err != nil {
		log.Printf("failed to publish %s for user %s: %v", msgType, userID, err)
	}
}

func (p *Pool) handleFailure(ctx context.Context, job *models.Job, err error) {
	job.RetryCount++
	errMsg := err.Error()

	if job.RetryCount < maxAttempts {
		log.Printf("Job %s failed (attempt %d): %s, retrying", job.ID, job.RetryCount, errMsg)
		p.jobs.UpdateStatus(ctx, job.ID, "pending")
		p.jobs.UpdateError(ctx, job.ID, errMsg, job.RetryCount)

		// Re-queue after backoff
		jobBytes, _ := json.Marshal(job)
		p.after(backoff(job.RetryCount), func() {
			p.redis.LPush(context.Background(), QueueName(job.Type), string(jobBytes))
		})
		return
	}

	log.Printf("Job %s failed permanently: %s", job.ID, errMsg)
	p.jobs.UpdateStatus(ctx, job.ID, "failed")
	p.jobs.UpdateError(ctx, job.ID, errMsg, job.RetryCount)
	if job.Type == models.JobDocumentExtraction {
		p.docs.UpdateStatus(ctx, job.ReferenceID, "failed")
	}

	p.publish(ctx, job.UserID, models.WSError, models.ErrorEvent{
		JobID:        job.ID,
		ErrorCode:    "JOB_FAILED",
		ErrorMessage: errMsg,
	})
}

func backoff(retry int) time.Duration {
	return time.Duration(1<<uint(retry)) * time.Second
}

func QueueName(jobType string) string {
	return "queue:" + jobType
}
