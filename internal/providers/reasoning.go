package providers

import (
	"context"
	"strings"
)

// WithReasoningExtraction wraps m so that text between <tag> and </tag> is
// emitted as reasoning chunks and stripped from the visible answer. Tags may
// arrive split across chunk boundaries.
func WithReasoningExtraction(m LanguageModel, tag string) LanguageModel {
	return &reasoningModel{inner: m, open: "<" + tag + ">", close: "</" + tag + ">"}
}

type reasoningModel struct {
	inner       LanguageModel
	open, close string
}

func (r *reasoningModel) Stream(ctx context.Context, req Request, emit func(Chunk) error) error {
	x := &tagSplitter{open: r.open, close: r.close}
	err := r.inner.Stream(ctx, req, func(c Chunk) error {
		if c.Kind != ChunkText {
			return emit(c)
		}
		return x.feed(c.Text, emit)
	})
	if err != nil {
		return err
	}
	return x.flush(emit)
}

type tagSplitter struct {
	open, close string
	buf         string
	inside      bool
}

func (x *tagSplitter) feed(s string, emit func(Chunk) error) error {
	x.buf += s
	for {
		tag := x.open
		if x.inside {
			tag = x.close
		}

		if i := strings.Index(x.buf, tag); i >= 0 {
			if err := x.send(x.buf[:i], emit); err != nil {
				return err
			}
			x.buf = x.buf[i+len(tag):]
			x.inside = !x.inside
			continue
		}

		// hold back a possible tag prefix until the next chunk decides it
		keep := partialSuffix(x.buf, tag)
		if err := x.send(x.buf[:len(x.buf)-keep], emit); err != nil {
			return err
		}
		x.buf = x.buf[len(x.buf)-keep:]
		return nil
	}
}

func (x *tagSplitter) flush(emit func(Chunk) error) error {
	rest := x.buf
	x.buf = ""
	return x.send(rest, emit)
}

func (x *tagSplitter) send(text string, emit func(Chunk) error) error {
	if text == "" {
		return nil
	}
	kind := ChunkText
	if x.inside {
		kind = ChunkReasoning
	}
	return emit(Chunk{Kind: kind, Text: text})
}

// partialSuffix returns the length of the longest suffix of s that is a
// proper prefix of tag.
func partialSuffix(s, tag string) int {
	n := len(tag) - 1
	if len(s) < n {
		n = len(s)
	}
	for ; n > 0; n-- {
		if strings.HasSuffix(s, tag[:n]) {
			return n
		}
	}
	return 0
}
