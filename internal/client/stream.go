package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"memodesk-backend/internal/models"
)

// ErrStream is returned when the server ends a chat stream with an error event.
var ErrStream = errors.New("chat stream failed")

// Chat posts a message and calls handle for every event of the answer stream.
// The request has no client timeout; cancel ctx to stop it.
func (c *Client) Chat(ctx context.Context, chatReq models.ChatRequest, handle func(models.StreamEvent) error) error {
	body, err := json.Marshal(chatReq)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/chat", bytes.NewReader(body), "application/json")
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	streaming := *c.httpClient
	streaming.Timeout = 0
	resp, err := streaming.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	return readEvents(resp.Body, handle)
}

// readEvents parses a text/event-stream body. Only the event and data fields
// are used; comments and unknown fields are skipped.
func readEvents(r io.Reader, handle func(models.StreamEvent) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var name string
	var data strings.Builder
	dispatch := func() error {
		defer func() {
			name = ""
			data.Reset()
		}()
		if data.Len() == 0 {
			return nil
		}

		var ev models.StreamEvent
		if err := json.Unmarshal([]byte(data.String()), &ev); err != nil {
			return fmt.Errorf("bad stream event: %w", err)
		}
		if name != "" {
			ev.Type = name
		}
		if err := handle(ev); err != nil {
			return err
		}
		if ev.Type == models.EventError {
			return fmt.Errorf("%w: %s", ErrStream, ev.Text)
		}
		return nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if err := dispatch(); err != nil {
				return err
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read stream: %w", err)
	}
	return dispatch()
}

// ChatAppender sends coordinator messages into one chat.
type ChatAppender struct {
	client  *Client
	chatID  uuid.UUID
	model   string
	onEvent func(models.StreamEvent) error
}

func NewChatAppender(c *Client, chatID uuid.UUID, model string, onEvent func(models.StreamEvent) error) *ChatAppender {
	return &ChatAppender{client: c, chatID: chatID, model: model, onEvent: onEvent}
}

func (a *ChatAppender) Append(ctx context.Context, msg models.ChatMessage) error {
	return a.client.Chat(ctx, models.ChatRequest{
		ID:                a.chatID,
		Message:           msg,
		SelectedChatModel: a.model,
	}, a.onEvent)
}
