package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"extflow/internal/domain"
)

// Client talks to the university backend that owns project records.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: timeout},
		Timeout:    timeout,
	}
}

// ErrEmptyRecord is returned when a successful response carries no record.
var ErrEmptyRecord = errors.New("backend returned no record")

type tokenKey struct{}

// WithToken attaches the caller's bearer token to ctx. Every request made with
// that context is sent on the caller's behalf.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext returns the bearer token attached with WithToken.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend error: status=%d message=%s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend error: status=%d body=%s", e.StatusCode, e.Body)
}

// ServerMessage is the human readable message from the error payload, if any.
func (e *APIError) ServerMessage() string { return e.Message }

func (e *APIError) GetStatus() int { return e.StatusCode }

// GetProject fetches a project record.
func (c *Client) GetProject(ctx context.Context, id string) (domain.Project, error) {
	var resp domain.Project
	err := c.do(ctx, http.MethodGet, "project/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// ChangeStatus asks the backend to move a project to next. The returned record
// is the backend's, decoded from the raw response.
func (c *Client) ChangeStatus(ctx context.Context, projectID string, next domain.Status) (domain.Project, error) {
	body := map[string]any{
		"nextStatus": next,
	}
	var resp domain.Project
	endpoint := fmt.Sprintf("project/%s/change-status", url.PathEscape(projectID))
	if err := c.do(ctx, http.MethodPut, endpoint, body, &resp); err != nil {
		return domain.Project{}, err
	}
	if resp.ID == "" {
		return domain.Project{}, ErrEmptyRecord
	}
	return resp, nil
}

// ListDocuments returns the documents attached to a project.
func (c *Client) ListDocuments(ctx context.Context, projectID string) ([]domain.Document, error) {
	var resp []domain.Document
	endpoint := fmt.Sprintf("project/%s/documents", url.PathEscape(projectID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	if resp == nil {
		resp = []domain.Document{}
	}
	return resp, err
}

// DeleteDocument removes a document.
func (c *Client) DeleteDocument(ctx context.Context, documentID string) error {
	return c.do(ctx, http.MethodDelete, "document/"+url.PathEscape(documentID), nil, nil)
}

// AddComment posts a review comment on a project.
func (c *Client) AddComment(ctx context.Context, projectID, text string) (domain.Comment, error) {
	body := map[string]any{
		"text": text,
	}
	var resp domain.Comment
	endpoint := fmt.Sprintf("project/%s/comments", url.PathEscape(projectID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	hc := c.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token := TokenFromContext(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(b), Body: string(b)}
	}
	if out == nil {
		return nil
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil
	}
	return json.Unmarshal(b, out)
}

// errorMessage extracts "message" from an error payload. Both a top-level
// message and the {"error": {"message"}} envelope are accepted.
func errorMessage(body []byte) string {
	var payload struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if msg := strings.TrimSpace(payload.Message); msg != "" {
		return msg
	}
	var nested struct {
		Message string `json:"message"`
	}
	if len(payload.Error) > 0 && json.Unmarshal(payload.Error, &nested) == nil {
		return strings.TrimSpace(nested.Message)
	}
	return ""
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
