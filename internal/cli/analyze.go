package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"memodesk-backend/internal/client"
	"memodesk-backend/internal/history"
	"memodesk-backend/internal/markdown"
	"memodesk-backend/internal/models"
	"memodesk-backend/internal/upload"
)

type logNotifier struct {
	logger *log.Logger
}

func (n logNotifier) Error(message string) {
	n.logger.Error(message)
}

// answer collects a streamed assistant reply.
type answer struct {
	mu        sync.Mutex
	text      strings.Builder
	reasoning strings.Builder
	messageID *uuid.UUID
	live      io.Writer
}

func (a *answer) handle(e models.StreamEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch e.Type {
	case models.EventReasoning:
		a.reasoning.WriteString(e.Text)
	case models.EventTextDelta:
		a.text.WriteString(e.Text)
		if a.live != nil {
			if _, err := io.WriteString(a.live, e.Text); err != nil {
				return err
			}
		}
	case models.EventFinish:
		a.messageID = e.MessageID
	}
	return nil
}

func newAnalyzeCmd(opts *options) *cobra.Command {
	var (
		model     string
		chatID    string
		style     string
		width     int
		raw       bool
		noHistory bool
	)

	cmd := &cobra.Command{
		Use:   "analyze FILE...",
		Short: "Upload memos and stream their analysis",
		Long: `Uploads every FILE concurrently (PDF, DOC, DOCX or TXT). Files that
upload successfully are sent to the assistant with a request for strengths,
weaknesses, risks and follow-up questions; failed uploads are reported and
skipped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			selected, err := readFiles(args)
			if err != nil {
				return err
			}

			id := uuid.New()
			if chatID != "" {
				if id, err = uuid.Parse(chatID); err != nil {
					return fmt.Errorf("invalid chat id %q: %w", chatID, err)
				}
			}

			out := cmd.OutOrStdout()
			reply := &answer{}
			if raw {
				reply.live = out
			}

			api := opts.client()
			var finished atomic.Bool
			coord := upload.NewCoordinator(
				api,
				client.NewChatAppender(api, id, model, reply.handle),
				logNotifier{logger: opts.logger},
				upload.WithStateObserver(func(s upload.State) {
					if !finished.Load() {
						opts.logger.Debug("upload state", "state", s)
					}
				}),
				upload.WithClearInput(func() { selected = nil }),
			)
			defer finished.Store(true)

			opts.logger.Info("uploading", "files", len(selected), "chat", id)
			if err := coord.Submit(ctx, selected); err != nil {
				return err
			}

			attachments := coord.Attachments()
			if len(attachments) == 0 {
				return fmt.Errorf("no memo could be uploaded")
			}

			if raw {
				fmt.Fprintln(out)
			} else {
				if err := printMarkdown(out, reply.text.String(), style, width); err != nil {
					return err
				}
			}

			if noHistory {
				return nil
			}
			store, err := opts.openHistory()
			if err != nil {
				opts.logger.Warn("history unavailable", "err", err)
				return nil
			}
			defer store.Close()

			entry := &history.Entry{
				ChatID:      id,
				Model:       model,
				Attachments: attachments,
				Answer:      reply.text.String(),
				Reasoning:   reply.reasoning.String(),
			}
			if err := store.Record(context.WithoutCancel(ctx), entry); err != nil {
				opts.logger.Warn("failed to record history", "err", err)
				return nil
			}
			opts.logger.Debug("recorded", "entry", entry.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", models.ChatModel, "chat model (chat-model or chat-model-reasoning)")
	cmd.Flags().StringVar(&chatID, "chat", "", "continue an existing chat instead of starting a new one")
	cmd.Flags().StringVar(&style, "style", "dark", "glamour style for rendering")
	cmd.Flags().IntVar(&width, "width", 100, "wrap width for rendering")
	cmd.Flags().BoolVar(&raw, "raw", false, "stream raw markdown instead of rendering at the end")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "do not record this analysis locally")

	return cmd
}

func readFiles(paths []string) ([]upload.File, error) {
	files := make([]upload.File, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		files = append(files, upload.File{Name: filepath.Base(p), Content: data})
	}
	return files, nil
}

func printMarkdown(w io.Writer, source, style string, width int) error {
	term, err := markdown.NewTerminal(style, width)
	if err != nil {
		return err
	}
	rendered, err := term.Render(source)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, rendered)
	return err
}
