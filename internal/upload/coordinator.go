package upload

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"memodesk-backend/internal/models"
	"memodesk-backend/internal/prompts"
)

// GenericFailure is shown when an upload fails without a server message.
const GenericFailure = "Failed to upload file, please try again!"

var ErrBusy = errors.New("an upload is already in progress")

type State int

const (
	Idle State = iota
	Uploading
	Processing
	Success
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Uploading:
		return "uploading"
	case Processing:
		return "processing"
	case Success:
		return "success"
	default:
		return "unknown"
	}
}

// File is one user-selected memo.
type File struct {
	Name    string
	Content []byte
}

// RejectedError is a non-OK upload response. Message is the server's error string.
type RejectedError struct {
	Status  int
	Message string
}

func (e *RejectedError) Error() string {
	return e.Message
}

type Uploader interface {
	Upload(ctx context.Context, f File) (models.Attachment, error)
}

type Appender interface {
	Append(ctx context.Context, msg models.ChatMessage) error
}

type Notifier interface {
	Error(message string)
}

type Option func(*Coordinator)

// WithStateObserver registers fn to receive every state transition.
func WithStateObserver(fn func(State)) Option {
	return func(c *Coordinator) { c.onState = fn }
}

// WithClearInput registers fn to reset the file selection once a batch settles.
func WithClearInput(fn func()) Option {
	return func(c *Coordinator) { c.clearInput = fn }
}

// Coordinator uploads a selection of memos concurrently and, when at least one
// succeeds, asks the assistant to analyze them.
type Coordinator struct {
	uploader Uploader
	appender Appender
	notifier Notifier

	onState    func(State)
	clearInput func()
	after      func(time.Duration, func())

	successDelay time.Duration
	idleDelay    time.Duration

	mu          sync.Mutex
	state       State
	attachments []models.Attachment
}

func NewCoordinator(uploader Uploader, appender Appender, notifier Notifier, opts ...Option) *Coordinator {
	c := &Coordinator{
		uploader:     uploader,
		appender:     appender,
		notifier:     notifier,
		onState:      func(State) {},
		clearInput:   func() {},
		after:        func(d time.Duration, f func()) { time.AfterFunc(d, f) },
		successDelay: time.Second,
		idleDelay:    2 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attachments returns every attachment uploaded so far, in upload order.
func (c *Coordinator) Attachments() []models.Attachment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Attachment(nil), c.attachments...)
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	c.onState(s)
}

// Submit uploads files and, if any succeed, appends the analysis request with
// exactly the successful attachments. Failed uploads are reported through the
// notifier and never retried.
func (c *Coordinator) Submit(ctx context.Context, files []File) error {
	if len(files) == 0 {
		return nil
	}

	c.mu.Lock()
	if c.state != Idle {
		c.mu.Unlock()
		return ErrBusy
	}
	c.state = Uploading
	c.mu.Unlock()
	c.onState(Uploading)

	defer c.clearInput()

	uploaded := c.uploadAll(ctx, files)

	c.mu.Lock()
	c.attachments = append(c.attachments, uploaded...)
	c.mu.Unlock()

	if len(uploaded) == 0 {
		c.setState(Idle)
		return nil
	}

	c.setState(Processing)
	c.after(c.successDelay, func() {
		c.setState(Success)
		c.after(c.idleDelay, func() { c.setState(Idle) })
	})

	return c.appender.Append(ctx, models.ChatMessage{
		Role:        models.RoleUser,
		Content:     prompts.AnalysisInstruction,
		Attachments: uploaded,
	})
}

// uploadAll starts one upload per file and waits for all of them to settle.
// The result holds the successes in input order.
func (c *Coordinator) uploadAll(ctx context.Context, files []File) []models.Attachment {
	results := make([]*models.Attachment, len(files))

	var g errgroup.Group
	for i, f := range files {
		g.Go(func() error {
			att, err := c.uploader.Upload(ctx, f)
			if err != nil {
				c.notifier.Error(failureMessage(err))
				return nil
			}
			results[i] = &att
			return nil
		})
	}
	g.Wait()

	uploaded := make([]models.Attachment, 0, len(files))
	for _, att := range results {
		if att != nil {
			uploaded = append(uploaded, *att)
		}
	}
	return uploaded
}

func failureMessage(err error) string {
	var rejected *RejectedError
	if errors.As(err, &rejected) && rejected.Message != "" {
		return rejected.Message
	}
	return GenericFailure
}
