package openai_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Strob0t/sketchforge/internal/adapter/openai"
	"github.com/Strob0t/sketchforge/internal/config"
	"github.com/Strob0t/sketchforge/internal/port/aiplatform"
	"github.com/Strob0t/sketchforge/internal/resilience"
)

func newClient(srv *httptest.Server) *openai.Client {
	return openai.NewClient(srv.URL, "test-key", 5*time.Second)
}

func TestListAssistantsFollowsPages(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/assistants" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("unexpected auth: %q", got)
		}
		if got := r.Header.Get("OpenAI-Beta"); got != "assistants=v2" {
			t.Fatalf("unexpected beta header: %q", got)
		}
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("after") {
		case "":
			_, _ = w.Write([]byte(`{"data":[{"id":"asst_1","name":"one"}],"has_more":true,"last_id":"asst_1"}`))
		case "asst_1":
			_, _ = w.Write([]byte(`{"data":[{"id":"asst_2","name":"two"}],"has_more":false}`))
		default:
			t.Fatalf("unexpected cursor %q", r.URL.Query().Get("after"))
		}
	}))
	defer srv.Close()

	got, err := newClient(srv).ListAssistants(context.Background())
	if err != nil {
		t.Fatalf("ListAssistants failed: %v", err)
	}
	if len(got) != 2 || got[1].Name != "two" {
		t.Fatalf("expected two assistants across pages, got %+v", got)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 page requests, got %d", calls.Load())
	}
}

func TestCreateThreadSendsSingleUserTurn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/threads" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if len(body.Messages) != 1 || body.Messages[0].Role != "user" || body.Messages[0].Content != "// @sketch: demo" {
			t.Fatalf("unexpected messages: %+v", body.Messages)
		}
		_, _ = w.Write([]byte(`{"id":"thread_1"}`))
	}))
	defer srv.Close()

	th, err := newClient(srv).CreateThread(context.Background(), "// @sketch: demo")
	if err != nil {
		t.Fatalf("CreateThread failed: %v", err)
	}
	if th.ID != "thread_1" {
		t.Fatalf("expected thread_1, got %s", th.ID)
	}
}

func TestRunLifecycle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/threads/thread_1/runs":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["assistant_id"] != "asst_1" {
				t.Fatalf("unexpected assistant id: %v", body)
			}
			_, _ = w.Write([]byte(`{"id":"run_1","thread_id":"thread_1","status":"queued"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/v1/threads/thread_1/runs/run_1":
			_, _ = w.Write([]byte(`{"id":"run_1","thread_id":"thread_1","status":"completed"}`))
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	c := newClient(srv)
	run, err := c.CreateRun(context.Background(), "thread_1", "asst_1")
	if err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	if run.Status != aiplatform.RunQueued {
		t.Fatalf("expected queued, got %s", run.Status)
	}

	run, err = c.GetRun(context.Background(), "thread_1", "run_1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.Status != aiplatform.RunCompleted {
		t.Fatalf("expected completed, got %s", run.Status)
	}
}

func TestListMessagesDecodesTextParts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/threads/thread_1/messages" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("run_id"); got != "run_1" {
			t.Fatalf("expected run_id filter, got %q", got)
		}
		_, _ = w.Write([]byte(`{"data":[
			{"id":"msg_2","run_id":"run_1","role":"assistant","created_at":20,
			 "content":[{"type":"text","text":{"value":"{\"transpiled_code\":\"package main\"}","annotations":[]}}]},
			{"id":"msg_1","run_id":"run_1","role":"assistant","created_at":10,
			 "content":[{"type":"image_file","image_file":{"file_id":"file_9"}}]}
		],"has_more":false}`))
	}))
	defer srv.Close()

	msgs, err := newClient(srv).ListMessages(context.Background(), "thread_1", "run_1")
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Content[0].Type != aiplatform.ContentText || msgs[0].Content[0].Text != `{"transpiled_code":"package main"}` {
		t.Fatalf("unexpected text content: %+v", msgs[0].Content)
	}
	if msgs[1].Content[0].Type != "image_file" || msgs[1].Content[0].Text != "" {
		t.Fatalf("unexpected image content: %+v", msgs[1].Content)
	}
	if msgs[0].CreatedAt != 20 {
		t.Fatalf("expected created_at 20, got %d", msgs[0].CreatedAt)
	}
}

func TestUploadFileMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/files" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("purpose"); got != "assistants" {
			t.Fatalf("unexpected purpose %q", got)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if hdr.Filename != "rules.md" || string(data) != "# rules" {
			t.Fatalf("unexpected upload %s: %q", hdr.Filename, data)
		}
		_, _ = w.Write([]byte(`{"id":"file_1","filename":"rules.md","purpose":"assistants"}`))
	}))
	defer srv.Close()

	f, err := newClient(srv).UploadFile(context.Background(), "rules.md", strings.NewReader("# rules"), aiplatform.PurposeAssistants)
	if err != nil {
		t.Fatalf("UploadFile failed: %v", err)
	}
	if f.ID != "file_1" {
		t.Fatalf("expected file_1, got %s", f.ID)
	}
}

func TestVectorStoreFileOperations(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Method+" "+r.URL.Path)
		mu.Unlock()
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v1/vector_stores/vs_1/files":
			_, _ = w.Write([]byte(`{"data":[{"id":"file_1","status":"completed"}],"has_more":false}`))
		case r.Method == http.MethodPost && r.URL.Path == "/v1/vector_stores/vs_1/files":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["file_id"] != "file_2" {
				t.Fatalf("unexpected attach body: %v", body)
			}
			_, _ = w.Write([]byte(`{"id":"file_2"}`))
		case r.Method == http.MethodDelete && r.URL.Path == "/v1/vector_stores/vs_1/files/file_1":
			_, _ = w.Write([]byte(`{"id":"file_1","deleted":true}`))
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	c := newClient(srv)
	ctx := context.Background()
	files, err := c.ListVectorStoreFiles(ctx, "vs_1")
	if err != nil || len(files) != 1 {
		t.Fatalf("ListVectorStoreFiles: %v %+v", err, files)
	}
	if err := c.AttachFile(ctx, "vs_1", "file_2"); err != nil {
		t.Fatalf("AttachFile: %v", err)
	}
	if err := c.DetachFile(ctx, "vs_1", "file_1"); err != nil {
		t.Fatalf("DetachFile: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 3 {
		t.Fatalf("expected 3 calls, got %v", seen)
	}
}

func TestAPIErrorDecoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"message":"No such File object: file_x","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	err := newClient(srv).DeleteFile(context.Background(), "file_x")
	if !openai.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "No such File object: file_x" {
		t.Fatalf("unexpected api error: %v", err)
	}
}

func TestBreakerOpensOnServerErrorsOnly(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusNotFound)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(int(status.Load()))
		_, _ = w.Write([]byte(`{"error":{"message":"boom"}}`))
	}))
	defer srv.Close()

	c := newClient(srv)
	b := resilience.NewBreaker(1, time.Minute)
	c.SetBreaker(b)
	ctx := context.Background()

	_, _ = c.ListFiles(ctx)
	if b.State() != "closed" {
		t.Fatalf("404 should not open the breaker, got %s", b.State())
	}

	status.Store(http.StatusBadGateway)
	_, _ = c.ListFiles(ctx)
	if b.State() != "open" {
		t.Fatalf("502 should open the breaker, got %s", b.State())
	}

	_, err := c.ListFiles(ctx)
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestUploadRejectedByOpenBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newClient(srv)
	c.SetBreaker(resilience.NewBreaker(1, time.Minute))
	ctx := context.Background()
	_, _ = c.ListFiles(ctx)

	_, err := c.UploadFile(ctx, "a.md", strings.NewReader("x"), aiplatform.PurposeAssistants)
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestFactoryReusesClientPerKey(t *testing.T) {
	f := openai.NewFactory(config.Defaults().OpenAI, config.Defaults().Breaker)
	if f("sk-a") != f("sk-a") {
		t.Fatal("expected the same client for the same key")
	}
	if f("sk-a") == f("sk-b") {
		t.Fatal("expected distinct clients for distinct keys")
	}
}
