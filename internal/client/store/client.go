// Package store is the remote store client: the four table verbs plus
// function invocation, with errors mapped onto the shared taxonomy.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"

	apperrors "alawein/internal/pkg/errors"
)

const (
	ClientInfo           = "alawein-go/1.0"
	headerIdempotencyKey = "Idempotency-Key"
)

// Client is the surface the resource hooks depend on. out arguments receive
// the decoded JSON response and may be nil.
type Client interface {
	Select(ctx context.Context, table string, q *Query, out interface{}) error
	Insert(ctx context.Context, table string, row interface{}, out interface{}) error
	Update(ctx context.Context, table string, q *Query, patch interface{}, out interface{}) error
	Delete(ctx context.Context, table string, q *Query, out interface{}) error
	Invoke(ctx context.Context, function string, body interface{}, out interface{}) error
}

type Options struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Retry      RetryPolicy
}

type HTTPClient struct {
	baseURL string
	http    *http.Client
	retry   RetryPolicy

	mu    sync.RWMutex
	token string
}

func NewHTTPClient(opts Options) *HTTPClient {
	hc := opts.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    hc,
		retry:   opts.Retry,
		token:   opts.Token,
	}
}

// SetToken switches the session credential. An empty token makes calls anonymous.
func (c *HTTPClient) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *HTTPClient) Select(ctx context.Context, table string, q *Query, out interface{}) error {
	return c.table(ctx, http.MethodGet, table, q, nil, out, false)
}

func (c *HTTPClient) Insert(ctx context.Context, table string, row interface{}, out interface{}) error {
	return c.table(ctx, http.MethodPost, table, nil, row, out, false)
}

// Update reports NotFoundError when no row matched q.
func (c *HTTPClient) Update(ctx context.Context, table string, q *Query, patch interface{}, out interface{}) error {
	return c.table(ctx, http.MethodPatch, table, q, patch, out, true)
}

// Delete reports NotFoundError when no row matched q.
func (c *HTTPClient) Delete(ctx context.Context, table string, q *Query, out interface{}) error {
	return c.table(ctx, http.MethodDelete, table, q, nil, out, true)
}

func (c *HTTPClient) Invoke(ctx context.Context, function string, body interface{}, out interface{}) error {
	return c.retry.run(ctx, func(ctx context.Context) error {
		raw, err := c.do(ctx, http.MethodPost, "/functions/v1/"+function, body, function)
		if err != nil {
			return err
		}
		return decodeInto(raw, out)
	})
}

func (c *HTTPClient) table(ctx context.Context, method, table string, q *Query, body, out interface{}, requireRow bool) error {
	path := "/rest/v1/" + table
	if qs := q.values().Encode(); qs != "" {
		path += "?" + qs
	}

	return c.retry.run(ctx, func(ctx context.Context) error {
		raw, err := c.do(ctx, method, path, body, table)
		if err != nil {
			return err
		}
		if requireRow {
			var rows []json.RawMessage
			if err := json.Unmarshal(raw, &rows); err != nil {
				return &apperrors.RemoteError{Status: http.StatusOK, Message: "malformed response", Err: err}
			}
			if len(rows) == 0 {
				return &apperrors.NotFoundError{Resource: table}
			}
		}
		return decodeInto(raw, out)
	})
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body interface{}, resource string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, apperrors.NewValidation("", "cannot encode request: "+err.Error())
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, &apperrors.RemoteError{Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Client-Info", ClientInfo)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.mu.RLock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.RUnlock()
	if key := IdempotencyKey(ctx); key != "" && method == http.MethodPost {
		req.Header.Set(headerIdempotencyKey, key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &apperrors.RemoteError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &apperrors.RemoteError{Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode >= 300 {
		return nil, statusError(resp.StatusCode, raw, resource)
	}
	return raw, nil
}

// statusError maps a failed response onto the error taxonomy. It reads both
// the REST envelope and the bare {"error": ...} body functions return.
func statusError(status int, body []byte, resource string) error {
	var env apperrors.ErrorResponse
	_ = json.Unmarshal(body, &env)
	message := env.Message
	if message == "" {
		message = env.Error
	}
	if message == "" {
		message = http.StatusText(status)
	}

	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return apperrors.NewValidation("", message)
	case http.StatusUnauthorized:
		return &apperrors.AuthError{Message: message}
	case http.StatusForbidden:
		return &apperrors.AuthError{Message: message, Forbidden: true}
	case http.StatusNotFound:
		return &apperrors.NotFoundError{Resource: resource}
	default:
		return &apperrors.RemoteError{Status: status, Message: message}
	}
}

func decodeInto(raw []byte, out interface{}) error {
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &apperrors.RemoteError{Status: http.StatusOK, Message: "malformed response", Err: err}
	}
	return nil
}
