package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
)

var ErrUnknownModel = errors.New("unknown model")

// ChunkKind tells visible answer text apart from extracted reasoning.
type ChunkKind int

const (
	ChunkText ChunkKind = iota
	ChunkReasoning
)

type Chunk struct {
	Kind ChunkKind
	Text string
}

type Message struct {
	Role    string
	Content string
}

type Request struct {
	System   string
	Messages []Message
}

// LanguageModel streams a completion, calling emit once per chunk in order.
// An error returned by emit aborts the stream and is returned as is.
type LanguageModel interface {
	Stream(ctx context.Context, req Request, emit func(Chunk) error) error
}

// GenerateText runs a model to completion and returns the visible text only.
func GenerateText(ctx context.Context, m LanguageModel, req Request) (string, error) {
	var b strings.Builder
	err := m.Stream(ctx, req, func(c Chunk) error {
		if c.Kind == ChunkText {
			b.WriteString(c.Text)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}

// Registry maps logical model keys to model handles. It is built once at
// start and only read afterwards.
type Registry struct {
	models  map[string]LanguageModel
	closers []io.Closer
}

func NewRegistry(bindings map[string]LanguageModel, closers ...io.Closer) *Registry {
	m := make(map[string]LanguageModel, len(bindings))
	for k, v := range bindings {
		m[k] = v
	}
	return &Registry{models: m, closers: closers}
}

func (r *Registry) LanguageModel(key string) (LanguageModel, error) {
	m, ok := r.models[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, key)
	}
	return m, nil
}

func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.models))
	for k := range r.models {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (r *Registry) Close() {
	for _, c := range r.closers {
		if err := c.Close(); err != nil {
			log.Printf("provider close: %v", err)
		}
	}
}

type Settings struct {
	Provider        string // "openai" | "gemini"
	Model           string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	GeminiAPIKey    string
	TestEnvironment bool
}

// Factory builds the process-wide registry.
type Factory func(ctx context.Context, s Settings) (*Registry, error)

// SelectFactory is the single place the test-mode flag is consulted.
func SelectFactory(testEnvironment bool) Factory {
	if testEnvironment {
		return NewTestRegistry
	}
	return NewHostedRegistry
}

func New(ctx context.Context, s Settings) (*Registry, error) {
	return SelectFactory(s.TestEnvironment)(ctx, s)
}
