// Package client talks to the memo assistant HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"memodesk-backend/internal/models"
	"memodesk-backend/internal/upload"
)

// APIError is a non-2xx response from the API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type ClientOption func(*Client)

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) request(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := c.newRequest(ctx, method, path, bodyReader, "application/json")
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return c.httpClient.Do(req)
}

// decodeError reads either error shape the API returns: the {error:{code,message}}
// envelope or the upload route's {error:"..."}.
func decodeError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	apiErr := &APIError{Status: resp.StatusCode}

	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Error) == 0 {
		apiErr.Message = strings.TrimSpace(string(body))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	var plain string
	if err := json.Unmarshal(envelope.Error, &plain); err == nil {
		apiErr.Message = plain
		return apiErr
	}
	var detail models.APIError
	if err := json.Unmarshal(envelope.Error, &detail); err == nil {
		apiErr.Code = detail.Code
		apiErr.Message = detail.Message
	}
	return apiErr
}

func parseResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// Upload sends one memo to the upload route. A rejected upload is returned as
// *upload.RejectedError carrying the server's message.
func (c *Client) Upload(ctx context.Context, f upload.File) (models.Attachment, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", f.Name)
	if err != nil {
		return models.Attachment{}, fmt.Errorf("failed to build form: %w", err)
	}
	if _, err := part.Write(f.Content); err != nil {
		return models.Attachment{}, fmt.Errorf("failed to build form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return models.Attachment{}, fmt.Errorf("failed to build form: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/files/upload", &buf, mw.FormDataContentType())
	if err != nil {
		return models.Attachment{}, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.Attachment{}, err
	}

	var out models.UploadResponse
	if err := parseResponse(resp, &out); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return models.Attachment{}, &upload.RejectedError{Status: apiErr.Status, Message: apiErr.Message}
		}
		return models.Attachment{}, err
	}
	return out.Attachment(), nil
}

func (c *Client) Chats(ctx context.Context, limit int) ([]models.Chat, error) {
	resp, err := c.request(ctx, http.MethodGet, fmt.Sprintf("/api/chats?limit=%d", limit), nil)
	if err != nil {
		return nil, err
	}
	var result struct {
		Chats []models.Chat `json:"chats"`
	}
	if err := parseResponse(resp, &result); err != nil {
		return nil, err
	}
	return result.Chats, nil
}

func (c *Client) Messages(ctx context.Context, chatID uuid.UUID) ([]models.Message, error) {
	resp, err := c.request(ctx, http.MethodGet, "/api/chat/"+chatID.String()+"/messages", nil)
	if err != nil {
		return nil, err
	}
	var result struct {
		Messages []models.Message `json:"messages"`
	}
	if err := parseResponse(resp, &result); err != nil {
		return nil, err
	}
	return result.Messages, nil
}

// Models returns the selectable chat models and the server's current choice.
func (c *Client) Models(ctx context.Context) ([]string, string, error) {
	resp, err := c.request(ctx, http.MethodGet, "/api/models", nil)
	if err != nil {
		return nil, "", err
	}
	var result struct {
		Models   []string `json:"models"`
		Selected string   `json:"selected"`
	}
	if err := parseResponse(resp, &result); err != nil {
		return nil, "", err
	}
	return result.Models, result.Selected, nil
}

func (c *Client) SetVisibility(ctx context.Context, chatID uuid.UUID, visibility string) error {
	resp, err := c.request(ctx, http.MethodPatch, "/api/chat/"+chatID.String()+"/visibility", models.UpdateVisibilityRequest{Visibility: visibility})
	if err != nil {
		return err
	}
	return parseResponse(resp, nil)
}

// DeleteTrailing removes a message and everything after it in its chat.
func (c *Client) DeleteTrailing(ctx context.Context, messageID uuid.UUID) (int64, error) {
	resp, err := c.request(ctx, http.MethodDelete, "/api/messages/"+messageID.String()+"/trailing", nil)
	if err != nil {
		return 0, err
	}
	var result struct {
		Deleted int64 `json:"deleted"`
	}
	if err := parseResponse(resp, &result); err != nil {
		return 0, err
	}
	return result.Deleted, nil
}
