// Package aiplatform defines the port for the remote assistant service:
// assistants, conversation threads, runs, files and vector stores.
package aiplatform

import (
	"context"
	"io"
)

// PurposeAssistants is the upload purpose for files used by assistants.
const PurposeAssistants = "assistants"

// Assistant is a named, pre-configured remote agent profile.
type Assistant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// VectorStore is a named remote collection of files used for retrieval.
type VectorStore struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// File is an uploaded remote file object.
type File struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Purpose  string `json:"purpose,omitempty"`
}

// VectorStoreFile is a file attachment inside a vector store. ID equals the file ID.
type VectorStoreFile struct {
	ID     string `json:"id"`
	Status string `json:"status,omitempty"`
}

// Thread is a conversation.
type Thread struct {
	ID string `json:"id"`
}

// RunStatus is the lifecycle status of a run.
type RunStatus string

const (
	RunQueued         RunStatus = "queued"
	RunInProgress     RunStatus = "in_progress"
	RunRequiresAction RunStatus = "requires_action"
	RunCancelling     RunStatus = "cancelling"
	RunCancelled      RunStatus = "cancelled"
	RunFailed         RunStatus = "failed"
	RunCompleted      RunStatus = "completed"
	RunIncomplete     RunStatus = "incomplete"
	RunExpired        RunStatus = "expired"
)

// Terminal reports whether polling can stop. requires_action is terminal
// because no tool outputs are ever submitted.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunQueued, RunInProgress, RunCancelling:
		return false
	default:
		return true
	}
}

// Run executes one exchange on a thread.
type Run struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	Status    RunStatus `json:"status"`
	LastError *RunError `json:"last_error,omitempty"`
}

// RunError carries the remote reason for a failed run.
type RunError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ContentText is the content type of plain text turns.
const ContentText = "text"

// Content is one part of a message.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"` // Set when Type is ContentText
}

// Message is one turn of a thread.
type Message struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id,omitempty"`
	Role      string    `json:"role"`
	CreatedAt int64     `json:"created_at"`
	Content   []Content `json:"content"`
}

// Platform is the port interface for the remote assistant service.
type Platform interface {
	ListAssistants(ctx context.Context) ([]Assistant, error)
	// CreateAssistant sends params verbatim as the creation request body.
	CreateAssistant(ctx context.Context, params map[string]any) (*Assistant, error)

	CreateThread(ctx context.Context, userContent string) (*Thread, error)
	CreateRun(ctx context.Context, threadID, assistantID string) (*Run, error)
	GetRun(ctx context.Context, threadID, runID string) (*Run, error)
	// ListMessages returns the messages of a thread produced by the given run.
	ListMessages(ctx context.Context, threadID, runID string) ([]Message, error)

	ListFiles(ctx context.Context) ([]File, error)
	UploadFile(ctx context.Context, filename string, r io.Reader, purpose string) (*File, error)
	DeleteFile(ctx context.Context, fileID string) error

	ListVectorStores(ctx context.Context) ([]VectorStore, error)
	CreateVectorStore(ctx context.Context, name string) (*VectorStore, error)
	ListVectorStoreFiles(ctx context.Context, storeID string) ([]VectorStoreFile, error)
	AttachFile(ctx context.Context, storeID, fileID string) error
	DetachFile(ctx context.Context, storeID, fileID string) error
}

// Factory builds a Platform bound to one API key.
type Factory func(apiKey string) Platform
