package client

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

	"github.com/dmitrijs2005/todokeeper/internal/client/models"
)

const (
	DefaultBaseURL = "http://localhost:3000"
	DefaultTimeout = 10 * time.Second

	// maxDetailBytes caps how much of an error body is kept as detail.
	maxDetailBytes = 4 << 10
)

// HTTPClient talks JSON to the todo REST API.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient returns a client for baseURL. Trailing slashes are dropped;
// an empty baseURL means DefaultBaseURL and a non-positive timeout means
// DefaultTimeout.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClient{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

func (c *HTTPClient) BaseURL() string { return c.baseURL }

func (c *HTTPClient) List(ctx context.Context, p ListParams) ([]models.Todo, error) {
	var out []models.Todo
	if err := c.do(ctx, "list todos", http.MethodGet, "/todos", p.Query(), nil, &out); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

func (c *HTTPClient) Get(ctx context.Context, id string) (*models.Todo, error) {
	var out models.Todo
	if err := c.do(ctx, "get todo", http.MethodGet, "/todos/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Create(ctx context.Context, in models.CreateTodo) (*models.Todo, error) {
	var out models.Todo
	if err := c.do(ctx, "create todo", http.MethodPost, "/todos", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Update(ctx context.Context, id string, patch models.UpdateTodo) (*models.Todo, error) {
	var out models.Todo
	if err := c.do(ctx, "update todo", http.MethodPatch, "/todos/"+url.PathEscape(id), nil, patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Delete(ctx context.Context, id string) error {
	return c.do(ctx, "delete todo", http.MethodDelete, "/todos/"+url.PathEscape(id), nil, nil, nil)
}

func (c *HTTPClient) Search(ctx context.Context, text string) ([]models.Todo, error) {
	q := url.Values{}
	q.Set("q", strings.TrimSpace(text))

	var out []models.Todo
	if err := c.do(ctx, "search todos", http.MethodGet, "/todos/search", q, nil, &out); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

func (c *HTTPClient) FindByTags(ctx context.Context, tags []string) ([]models.Todo, error) {
	joined := strings.Join(models.ParseTags(strings.Join(tags, ",")), ",")
	if joined == "" {
		return []models.Todo{}, nil
	}

	var out []models.Todo
	if err := c.do(ctx, "find todos by tags", http.MethodGet, "/todos/tags/"+url.PathEscape(joined), nil, nil, &out); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

func (c *HTTPClient) Exists(ctx context.Context, id string) (bool, error) {
	var out struct {
		Exists bool `json:"exists"`
	}
	if err := c.do(ctx, "check todo", http.MethodGet, "/todos/exists/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return false, err
	}
	return out.Exists, nil
}

// Count fetches status counts and rejects bodies that lack any of the
// three numbers.
func (c *HTTPClient) Count(ctx context.Context, p CountParams) (models.StatusCount, error) {
	const op = "count todos"

	var raw json.RawMessage
	if err := c.do(ctx, op, http.MethodGet, "/todos/count/status", p.Query(), nil, &raw); err != nil {
		return models.StatusCount{}, err
	}

	var shape struct {
		Total *int64 `json:"total"`
		Done  *int64 `json:"done"`
		Open  *int64 `json:"open"`
	}
	if err := json.Unmarshal(raw, &shape); err != nil || shape.Total == nil || shape.Done == nil || shape.Open == nil {
		return models.StatusCount{}, fmt.Errorf("%s: %w: invalid response shape for todo counts", op, ErrBadResponse)
	}
	return models.StatusCount{Total: *shape.Total, Done: *shape.Done, Open: *shape.Open}, nil
}

func (c *HTTPClient) FindByDateRange(ctx context.Context, from, to time.Time) ([]models.Todo, error) {
	q := url.Values{}
	q.Set("from", from.UTC().Format(time.RFC3339Nano))
	q.Set("to", to.UTC().Format(time.RFC3339Nano))

	var out []models.Todo
	if err := c.do(ctx, "find todos by date", http.MethodGet, "/todos/range", q, nil, &out); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

func (c *HTTPClient) Export(ctx context.Context) (*Snapshot, error) {
	var out Snapshot
	if err := c.do(ctx, "export todos", http.MethodPost, "/todos/export", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", op, ctxErr)
		}
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(op, resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", op, ctxErr)
		}
		return fmt.Errorf("%s: %w: %v", op, ErrBadResponse, err)
	}
	return nil
}

// newAPIError reads the error body. A JSON body with a message field
// contributes that message; any other body is kept verbatim.
func newAPIError(op string, resp *http.Response) *APIError {
	e := &APIError{
		Op:         op,
		Status:     resp.StatusCode,
		StatusText: http.StatusText(resp.StatusCode),
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxDetailBytes))
	if err != nil || len(bytes.TrimSpace(b)) == 0 {
		return e
	}

	var body struct {
		Message json.RawMessage `json:"message"`
	}
	if json.Unmarshal(b, &body) == nil && len(body.Message) > 0 {
		e.Detail = messageText(body.Message)
		return e
	}
	e.Detail = strings.TrimSpace(string(b))
	return e
}

// messageText accepts a string or an array of strings.
func messageText(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var list []string
	if json.Unmarshal(raw, &list) == nil {
		return strings.Join(list, "; ")
	}
	return string(raw)
}

func nonNil(items []models.Todo) []models.Todo {
	if items == nil {
		return []models.Todo{}
	}
	return items
}

var _ API = (*HTTPClient)(nil)

// IsCanceled reports whether err came from a cancelled or expired context.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
