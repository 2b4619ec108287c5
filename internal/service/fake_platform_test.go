package service_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Strob0t/sketchforge/internal/port/aiplatform"
)

// fakePlatform is an in-memory aiplatform.Platform that counts every call.
type fakePlatform struct {
	mu sync.Mutex

	assistants []aiplatform.Assistant
	stores     []aiplatform.VectorStore
	files      []aiplatform.File
	attached   map[string][]string // storeID -> file ids
	contents   map[string]string   // fileID -> uploaded bytes
	created    []map[string]any    // CreateAssistant params
	calls      map[string]int
	nextID     int

	threads map[string]string // threadID -> user content
	code    string            // generated code returned in replies
	reply   func(content string) []aiplatform.Message
	final   aiplatform.RunStatus
	polls   int // GetRun calls before the run becomes terminal

	runErr     error
	runGate    chan struct{} // CreateRun blocks until closed
	runStarted chan struct{} // receives one value per CreateRun
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		attached:   make(map[string][]string),
		contents:   make(map[string]string),
		calls:      make(map[string]int),
		threads:    make(map[string]string),
		code:       "package main",
		final:      aiplatform.RunCompleted,
		runStarted: make(chan struct{}, 16),
	}
}

func (f *fakePlatform) count(name string) {
	f.calls[name]++
}

func (f *fakePlatform) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakePlatform) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

var mutatingCalls = []string{
	"CreateAssistant", "CreateVectorStore", "UploadFile", "DeleteFile",
	"AttachFile", "DetachFile", "CreateThread", "CreateRun",
}

func (f *fakePlatform) mutations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range mutatingCalls {
		n += f.calls[c]
	}
	return n
}

func (f *fakePlatform) attachedTo(storeID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.attached[storeID]...)
}

func (f *fakePlatform) addAssistant(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.id("asst")
	f.assistants = append(f.assistants, aiplatform.Assistant{ID: id, Name: name})
	return id
}

func (f *fakePlatform) addStore(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.id("vs")
	f.stores = append(f.stores, aiplatform.VectorStore{ID: id, Name: name})
	return id
}

func (f *fakePlatform) addFile(name string, attachTo string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.id("file")
	f.files = append(f.files, aiplatform.File{ID: id, Filename: name, Purpose: aiplatform.PurposeAssistants})
	if attachTo != "" {
		f.attached[attachTo] = append(f.attached[attachTo], id)
	}
	return id
}

func (f *fakePlatform) ListAssistants(_ context.Context) ([]aiplatform.Assistant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("ListAssistants")
	return append([]aiplatform.Assistant(nil), f.assistants...), nil
}

func (f *fakePlatform) CreateAssistant(_ context.Context, params map[string]any) (*aiplatform.Assistant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("CreateAssistant")
	name, _ := params["name"].(string)
	a := aiplatform.Assistant{ID: f.id("asst"), Name: name}
	f.assistants = append(f.assistants, a)
	f.created = append(f.created, params)
	return &a, nil
}

func (f *fakePlatform) CreateThread(_ context.Context, userContent string) (*aiplatform.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("CreateThread")
	id := f.id("thread")
	f.threads[id] = userContent
	return &aiplatform.Thread{ID: id}, nil
}

func (f *fakePlatform) CreateRun(ctx context.Context, threadID, _ string) (*aiplatform.Run, error) {
	f.mu.Lock()
	f.count("CreateRun")
	gate, runErr := f.runGate, f.runErr
	id := f.id("run")
	f.mu.Unlock()

	select {
	case f.runStarted <- struct{}{}:
	default:
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if runErr != nil {
		return nil, runErr
	}
	return &aiplatform.Run{ID: id, ThreadID: threadID, Status: aiplatform.RunQueued}, nil
}

func (f *fakePlatform) GetRun(_ context.Context, threadID, runID string) (*aiplatform.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("GetRun")
	status := aiplatform.RunInProgress
	if f.calls["GetRun"] > f.polls {
		status = f.final
	}
	run := &aiplatform.Run{ID: runID, ThreadID: threadID, Status: status}
	if status == aiplatform.RunFailed {
		run.LastError = &aiplatform.RunError{Code: "server_error", Message: "boom"}
	}
	return run, nil
}

func (f *fakePlatform) ListMessages(_ context.Context, threadID, runID string) ([]aiplatform.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("ListMessages")
	if f.reply != nil {
		return f.reply(f.threads[threadID]), nil
	}
	body, _ := json.Marshal(map[string]string{"transpiled_code": f.code})
	return []aiplatform.Message{{
		ID:        "msg-1",
		RunID:     runID,
		Role:      "assistant",
		CreatedAt: time.Now().Unix(),
		Content:   []aiplatform.Content{{Type: aiplatform.ContentText, Text: string(body)}},
	}}, nil
}

func (f *fakePlatform) ListFiles(_ context.Context) ([]aiplatform.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("ListFiles")
	return append([]aiplatform.File(nil), f.files...), nil
}

func (f *fakePlatform) UploadFile(_ context.Context, filename string, r io.Reader, purpose string) (*aiplatform.File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("UploadFile")
	file := aiplatform.File{ID: f.id("file"), Filename: filename, Purpose: purpose}
	f.files = append(f.files, file)
	f.contents[file.ID] = string(data)
	return &file, nil
}

func (f *fakePlatform) DeleteFile(_ context.Context, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("DeleteFile")
	for i := range f.files {
		if f.files[i].ID == fileID {
			f.files = append(f.files[:i], f.files[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("file %s not found", fileID)
}

func (f *fakePlatform) ListVectorStores(_ context.Context) ([]aiplatform.VectorStore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("ListVectorStores")
	return append([]aiplatform.VectorStore(nil), f.stores...), nil
}

func (f *fakePlatform) CreateVectorStore(_ context.Context, name string) (*aiplatform.VectorStore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("CreateVectorStore")
	vs := aiplatform.VectorStore{ID: f.id("vs"), Name: name}
	f.stores = append(f.stores, vs)
	return &vs, nil
}

func (f *fakePlatform) ListVectorStoreFiles(_ context.Context, storeID string) ([]aiplatform.VectorStoreFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("ListVectorStoreFiles")
	out := make([]aiplatform.VectorStoreFile, 0, len(f.attached[storeID]))
	for _, id := range f.attached[storeID] {
		out = append(out, aiplatform.VectorStoreFile{ID: id, Status: "completed"})
	}
	return out, nil
}

func (f *fakePlatform) AttachFile(_ context.Context, storeID, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("AttachFile")
	f.attached[storeID] = append(f.attached[storeID], fileID)
	return nil
}

func (f *fakePlatform) DetachFile(_ context.Context, storeID, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("DetachFile")
	ids := f.attached[storeID]
	for i, id := range ids {
		if id == fileID {
			f.attached[storeID] = append(ids[:i:i], ids[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("file %s not attached to %s", fileID, storeID)
}

// factory returns an aiplatform.Factory serving f and counting its invocations.
func (f *fakePlatform) factory() aiplatform.Factory {
	return func(string) aiplatform.Platform {
		f.mu.Lock()
		f.count("Factory")
		f.mu.Unlock()
		return f
	}
}

// mapCache is a synchronous in-memory cache.Cache.
type mapCache struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newMapCache() *mapCache { return &mapCache{m: make(map[string][]byte)} }

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, key)
	return nil
}

// recordingHub is a broadcast.Broadcaster that keeps every event.
type recordingHub struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	Type    string
	Payload any
}

func (h *recordingHub) BroadcastEvent(_ context.Context, eventType string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, recordedEvent{Type: eventType, Payload: payload})
}

func (h *recordingHub) ofType(eventType string) []recordedEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []recordedEvent
	for _, e := range h.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
