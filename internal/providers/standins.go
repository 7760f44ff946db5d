package providers

import (
	"context"
	"strings"

	"memodesk-backend/internal/models"
)

// Canned outputs of the test-mode models.
const (
	StandInAnalysis = `## Summary
The memo describes an early-stage company raising a seed round.

## Strengths
- **Team:** founders with prior exits
- **Traction:** paying pilot customers

## Weaknesses
- Narrow go-to-market plan

## Risks
- **Concentration:** two customers make up most revenue

## Follow-up Questions
1. What is the current monthly burn?
2. How long are the pilot contracts?
`
	StandInReasoning = "Reading the memo section by section before answering."
	StandInTitle     = "Acme Corp Memo"
	StandInArtifact  = "Draft memo document."
)

// NewTestRegistry binds the same logical keys as the hosted registry to
// deterministic local models. The reasoning stand-in goes through the same
// extraction middleware as the hosted one.
func NewTestRegistry(_ context.Context, _ Settings) (*Registry, error) {
	return NewRegistry(map[string]LanguageModel{
		models.ChatModel:          NewStandIn(StandInAnalysis),
		models.ChatModelReasoning: WithReasoningExtraction(NewStandIn("<"+reasoningTag+">"+StandInReasoning+"</"+reasoningTag+">"+StandInAnalysis), reasoningTag),
		models.TitleModel:         NewStandIn(StandInTitle),
		models.ArtifactModel:      NewStandIn(StandInArtifact),
	}), nil
}

// StandIn replays a fixed reply word by word.
type StandIn struct {
	reply string
}

func NewStandIn(reply string) *StandIn {
	return &StandIn{reply: reply}
}

func (s *StandIn) Stream(ctx context.Context, _ Request, emit func(Chunk) error) error {
	for _, word := range strings.SplitAfter(s.reply, " ") {
		if err := ctx.Err(); err != nil {
			return err
		}
		if word == "" {
			continue
		}
		if err := emit(Chunk{Kind: ChunkText, Text: word}); err != nil {
			return err
		}
	}
	return nil
}
