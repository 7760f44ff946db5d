package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/openai/openai-go/v3"
	openaiopt "github.com/openai/openai-go/v3/option"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"memodesk-backend/internal/models"
)

const (
	defaultOpenAIModel = "o4-mini"
	defaultGeminiModel = "gemini-3-flash-preview"
	reasoningTag       = "think"
)

// NewHostedRegistry binds every logical key to the hosted model service.
func NewHostedRegistry(ctx context.Context, s Settings) (*Registry, error) {
	var (
		base    func() LanguageModel
		closers []io.Closer
	)

	switch strings.ToLower(s.Provider) {
	case "", "openai":
		client := newOpenAIClient(s)
		name := s.Model
		if name == "" {
			name = defaultOpenAIModel
		}
		base = func() LanguageModel { return &openAIModel{client: client, model: name} }
	case "gemini", "google":
		client, err := genai.NewClient(ctx, option.WithAPIKey(s.GeminiAPIKey))
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		closers = append(closers, client)
		name := s.Model
		if name == "" {
			name = defaultGeminiModel
		}
		base = func() LanguageModel { return &geminiModel{client: client, model: name} }
	default:
		return nil, fmt.Errorf("unknown provider: %s", s.Provider)
	}

	reg := NewRegistry(map[string]LanguageModel{
		models.ChatModel:          base(),
		models.ChatModelReasoning: WithReasoningExtraction(base(), reasoningTag),
		models.TitleModel:         base(),
		models.ArtifactModel:      base(),
	}, closers...)
	return reg, nil
}

func newOpenAIClient(s Settings) openai.Client {
	opts := []openaiopt.RequestOption{openaiopt.WithAPIKey(s.OpenAIAPIKey)}
	if s.OpenAIBaseURL != "" {
		opts = append(opts, openaiopt.WithBaseURL(s.OpenAIBaseURL))
	}
	return openai.NewClient(opts...)
}

// openAIModel streams chat completions from the OpenAI API.
type openAIModel struct {
	client openai.Client
	model  string
}

func (m *openAIModel) Stream(ctx context.Context, req Request, emit func(Chunk) error) error {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, msg := range req.Messages {
		if msg.Role == models.RoleAssistant {
			messages = append(messages, openai.AssistantMessage(msg.Content))
		} else {
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}

	stream := m.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model:    m.model,
		Messages: messages,
	})
	defer stream.Close()

	for stream.Next() {
		chunk := stream.Current()
		for _, choice := range chunk.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			if err := emit(Chunk{Kind: ChunkText, Text: choice.Delta.Content}); err != nil {
				return err
			}
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("OpenAI API error: %w", err)
	}
	return nil
}

type geminiModel struct {
	client *genai.Client
	model  string
}

func (m *geminiModel) Stream(ctx context.Context, req Request, emit func(Chunk) error) error {
	if len(req.Messages) == 0 {
		return errors.New("gemini: no messages to send")
	}

	gm := m.client.GenerativeModel(m.model)
	gm.SetTemperature(0.3)
	if req.System != "" {
		gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}

	cs := gm.StartChat()
	last := len(req.Messages) - 1
	for _, msg := range req.Messages[:last] {
		role := "user"
		if msg.Role == models.RoleAssistant {
			role = "model"
		}
		cs.History = append(cs.History, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(msg.Content)}})
	}

	iter := cs.SendMessageStream(ctx, genai.Text(req.Messages[last].Content))
	for {
		resp, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("Gemini API error: %w", err)
		}
		if text := extractText(resp); text != "" {
			if err := emit(Chunk{Kind: ChunkText, Text: text}); err != nil {
				return err
			}
		}
	}
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
