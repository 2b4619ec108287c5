// Package openai provides an HTTP client for the OpenAI Assistants v2 REST API,
// implementing the aiplatform.Platform port.
package openai

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

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Strob0t/sketchforge/internal/port/aiplatform"
	"github.com/Strob0t/sketchforge/internal/resilience"
)

const (
	betaHeader = "assistants=v2"
	pageLimit  = 100
)

// APIError is a non-2xx response from the remote service.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("openai API error %d (%s): %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("openai API error %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the remote service.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// isServerFailure reports whether err should count against the circuit breaker.
// Client errors other than rate limiting say nothing about remote health.
func isServerFailure(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 || apiErr.StatusCode == http.StatusTooManyRequests
	}
	return true
}

// Client talks to the OpenAI REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

var _ aiplatform.Platform = (*Client)(nil)

// NewClient creates a new OpenAI client. timeout bounds each HTTP call.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	b.SetFailureFilter(isServerFailure)
	c.breaker = b
}

// ---------------------------------------------------------------------------
// Assistants
// ---------------------------------------------------------------------------

// ListAssistants returns every assistant of the account.
func (c *Client) ListAssistants(ctx context.Context) ([]aiplatform.Assistant, error) {
	items, err := listAll(ctx, c, "/v1/assistants", nil, func(a aiplatform.Assistant) string { return a.ID })
	if err != nil {
		return nil, fmt.Errorf("list assistants: %w", err)
	}
	return items, nil
}

// CreateAssistant creates an assistant from a verbatim parameter object.
func (c *Client) CreateAssistant(ctx context.Context, params map[string]any) (*aiplatform.Assistant, error) {
	var a aiplatform.Assistant
	if err := c.doJSON(ctx, http.MethodPost, "/v1/assistants", params, &a); err != nil {
		return nil, fmt.Errorf("create assistant: %w", err)
	}
	return &a, nil
}

// ---------------------------------------------------------------------------
// Threads, runs, messages
// ---------------------------------------------------------------------------

// CreateThread opens a thread with a single user message.
func (c *Client) CreateThread(ctx context.Context, userContent string) (*aiplatform.Thread, error) {
	body := map[string]any{
		"messages": []map[string]string{{"role": "user", "content": userContent}},
	}
	var th aiplatform.Thread
	if err := c.doJSON(ctx, http.MethodPost, "/v1/threads", body, &th); err != nil {
		return nil, fmt.Errorf("create thread: %w", err)
	}
	return &th, nil
}

// CreateRun starts a run of the assistant on the thread.
func (c *Client) CreateRun(ctx context.Context, threadID, assistantID string) (*aiplatform.Run, error) {
	body := map[string]string{"assistant_id": assistantID}
	var run aiplatform.Run
	if err := c.doJSON(ctx, http.MethodPost, "/v1/threads/"+url.PathEscape(threadID)+"/runs", body, &run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	return &run, nil
}

// GetRun fetches the current state of a run.
func (c *Client) GetRun(ctx context.Context, threadID, runID string) (*aiplatform.Run, error) {
	var run aiplatform.Run
	path := "/v1/threads/" + url.PathEscape(threadID) + "/runs/" + url.PathEscape(runID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &run); err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &run, nil
}

// wireMessage mirrors the message object, whose text parts nest the value.
type wireMessage struct {
	ID        string `json:"id"`
	RunID     string `json:"run_id"`
	Role      string `json:"role"`
	CreatedAt int64  `json:"created_at"`
	Content   []struct {
		Type string `json:"type"`
		Text *struct {
			Value string `json:"value"`
		} `json:"text,omitempty"`
	} `json:"content"`
}

func (m *wireMessage) toMessage() aiplatform.Message {
	msg := aiplatform.Message{ID: m.ID, RunID: m.RunID, Role: m.Role, CreatedAt: m.CreatedAt}
	for _, part := range m.Content {
		ct := aiplatform.Content{Type: part.Type}
		if part.Text != nil {
			ct.Text = part.Text.Value
		}
		msg.Content = append(msg.Content, ct)
	}
	return msg
}

// ListMessages returns the messages of a thread produced by runID.
func (c *Client) ListMessages(ctx context.Context, threadID, runID string) ([]aiplatform.Message, error) {
	q := url.Values{}
	if runID != "" {
		q.Set("run_id", runID)
	}
	wire, err := listAll(ctx, c, "/v1/threads/"+url.PathEscape(threadID)+"/messages", q,
		func(m wireMessage) string { return m.ID })
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	msgs := make([]aiplatform.Message, 0, len(wire))
	for i := range wire {
		msgs = append(msgs, wire[i].toMessage())
	}
	return msgs, nil
}

// ---------------------------------------------------------------------------
// Vector stores
// ---------------------------------------------------------------------------

// ListVectorStores returns every vector store of the account.
func (c *Client) ListVectorStores(ctx context.Context) ([]aiplatform.VectorStore, error) {
	items, err := listAll(ctx, c, "/v1/vector_stores", nil, func(v aiplatform.VectorStore) string { return v.ID })
	if err != nil {
		return nil, fmt.Errorf("list vector stores: %w", err)
	}
	return items, nil
}

// CreateVectorStore creates an empty vector store.
func (c *Client) CreateVectorStore(ctx context.Context, name string) (*aiplatform.VectorStore, error) {
	var vs aiplatform.VectorStore
	if err := c.doJSON(ctx, http.MethodPost, "/v1/vector_stores", map[string]string{"name": name}, &vs); err != nil {
		return nil, fmt.Errorf("create vector store: %w", err)
	}
	return &vs, nil
}

// ListVectorStoreFiles returns the files attached to a vector store.
func (c *Client) ListVectorStoreFiles(ctx context.Context, storeID string) ([]aiplatform.VectorStoreFile, error) {
	items, err := listAll(ctx, c, "/v1/vector_stores/"+url.PathEscape(storeID)+"/files", nil,
		func(f aiplatform.VectorStoreFile) string { return f.ID })
	if err != nil {
		return nil, fmt.Errorf("list vector store files: %w", err)
	}
	return items, nil
}

// AttachFile attaches an uploaded file to a vector store.
func (c *Client) AttachFile(ctx context.Context, storeID, fileID string) error {
	path := "/v1/vector_stores/" + url.PathEscape(storeID) + "/files"
	if err := c.doJSON(ctx, http.MethodPost, path, map[string]string{"file_id": fileID}, nil); err != nil {
		return fmt.Errorf("attach file %s: %w", fileID, err)
	}
	return nil
}

// DetachFile removes a file from a vector store without deleting the file object.
func (c *Client) DetachFile(ctx context.Context, storeID, fileID string) error {
	path := "/v1/vector_stores/" + url.PathEscape(storeID) + "/files/" + url.PathEscape(fileID)
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("detach file %s: %w", fileID, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

// page is the envelope of every list endpoint.
type page[T any] struct {
	Data    []T    `json:"data"`
	HasMore bool   `json:"has_more"`
	LastID  string `json:"last_id"`
}

// listAll follows has_more/after cursors until the listing is exhausted.
func listAll[T any](ctx context.Context, c *Client, path string, query url.Values, idOf func(T) string) ([]T, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("limit", fmt.Sprint(pageLimit))

	var all []T
	for {
		var p page[T]
		if err := c.doJSON(ctx, http.MethodGet, path+"?"+query.Encode(), nil, &p); err != nil {
			return nil, err
		}
		all = append(all, p.Data...)
		if !p.HasMore || len(p.Data) == 0 {
			return all, nil
		}
		after := p.LastID
		if after == "" {
			after = idOf(p.Data[len(p.Data)-1])
		}
		query.Set("after", after)
	}
}

// doJSON sends an optional JSON body and decodes the response into out when non-nil.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	data, err := c.doRequest(ctx, method, path, func() (io.Reader, string, error) {
		if body == nil {
			return nil, "", nil
		}
		return bytes.NewReader(body), "application/json", nil
	})
	if err != nil {
		return err
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// doRequest performs one HTTP call through the breaker. newBody is invoked only
// when the breaker admits the call, so streamed bodies are never left unread.
func (c *Client) doRequest(ctx context.Context, method, path string, newBody func() (io.Reader, string, error)) ([]byte, error) {
	var result []byte
	call := func() error {
		bodyReader, contentType, err := newBody()
		if err != nil {
			return fmt.Errorf("build request body: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			if rc, ok := bodyReader.(io.Closer); ok {
				_ = rc.Close()
			}
			return fmt.Errorf("create request: %w", err)
		}

		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("OpenAI-Beta", betaHeader)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode >= 400 {
			return decodeAPIError(resp.StatusCode, data)
		}

		result = data
		return nil
	}

	if c.breaker != nil {
		if err := c.breaker.Execute(call); err != nil {
			return nil, err
		}
		return result, nil
	}

	if err := call(); err != nil {
		return nil, err
	}
	return result, nil
}

func decodeAPIError(status int, data []byte) error {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	apiErr := &APIError{StatusCode: status, Message: strings.TrimSpace(string(data))}
	if json.Unmarshal(data, &envelope) == nil && envelope.Error.Message != "" {
		apiErr.Message = envelope.Error.Message
		apiErr.Type = envelope.Error.Type
	}
	return apiErr
}
