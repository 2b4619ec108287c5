package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Strob0t/sketchforge/internal/config"
	"github.com/Strob0t/sketchforge/internal/domain"
	"github.com/Strob0t/sketchforge/internal/domain/sketch"
	"github.com/Strob0t/sketchforge/internal/port/aiplatform"
	"github.com/Strob0t/sketchforge/internal/port/cache"
)

// WorkspaceDeps carries the process-wide collaborators every Workspace is built from.
type WorkspaceDeps struct {
	Platforms         aiplatform.Factory
	Cache             cache.Cache // Optional
	IdentityTTL       time.Duration
	PollInterval      time.Duration
	ResultField       string
	ResyncConcurrency int
}

// WorkspaceDepsFromConfig fills the tunables of WorkspaceDeps from the daemon config.
func WorkspaceDepsFromConfig(cfg *config.Config, platforms aiplatform.Factory, c cache.Cache) WorkspaceDeps {
	return WorkspaceDeps{
		Platforms:         platforms,
		Cache:             c,
		IdentityTTL:       cfg.Cache.IdentityTTL,
		PollInterval:      cfg.OpenAI.PollInterval,
		ResultField:       cfg.Transpile.ResultField,
		ResyncConcurrency: cfg.Resync.Concurrency,
	}
}

// Workspace binds one project root to its config, assistant and file mirror.
// Fields are written only by Initialize, before the registry publishes the instance.
type Workspace struct {
	root string
	deps WorkspaceDeps

	cfg       *config.Workspace
	assistant *Assistant
	files     *FileSync
	ready     bool
}

// NewWorkspace creates an uninitialized Workspace for root.
func NewWorkspace(root string, deps WorkspaceDeps) *Workspace {
	return &Workspace{root: root, deps: deps}
}

// Root returns the project root.
func (w *Workspace) Root() string { return w.root }

// Config returns the loaded project config, nil when loading failed.
func (w *Workspace) Config() *config.Workspace { return w.cfg }

// Assistant returns the conversational identity, nil when the config did not load.
func (w *Workspace) Assistant() *Assistant { return w.assistant }

// Files returns the vector store mirror, nil when the config did not load.
func (w *Workspace) Files() *FileSync { return w.files }

// Ready reports whether both the assistant and the vector store resolved.
func (w *Workspace) Ready() bool { return w.ready }

// Initialize loads the project config and resolves both remote identities.
// A failure leaves the Workspace not ready; it is never retried on this instance.
func (w *Workspace) Initialize(ctx context.Context) error {
	cfg, err := config.LoadWorkspace(w.root)
	if err != nil {
		return err
	}
	w.cfg = cfg

	platform := w.deps.Platforms(cfg.APIKey)
	ids := NewIdentityResolver(w.deps.Cache, w.deps.IdentityTTL, cfg.APIKey)
	w.assistant = NewAssistant(platform, ids, cfg.Assistant(), w.deps.PollInterval, w.deps.ResultField)
	w.files = NewFileSync(platform, ids, cfg.VectorStore(), w.deps.ResyncConcurrency)

	errA := w.assistant.Initialize(ctx)
	errF := w.files.Initialize(ctx)
	if err := errors.Join(errA, errF); err != nil {
		return err
	}

	w.ready = true
	slog.Info("workspace ready",
		"root", w.root,
		"project_id", cfg.ProjectID,
		"api_key", config.Fingerprint(cfg.APIKey),
		"assistant", w.assistant.Name(),
		"vector_store", w.files.Name(),
	)
	return nil
}

// Transpile delegates to the assistant. It fails with domain.ErrNotReady unless
// the Workspace and its assistant are ready.
func (w *Workspace) Transpile(ctx context.Context, content string) (string, error) {
	if !w.ready || w.assistant == nil || !w.assistant.Ready() {
		name := ""
		if w.assistant != nil {
			name = w.assistant.Name()
		}
		return "", fmt.Errorf("%w: assistant %q in %s", domain.ErrNotReady, name, w.root)
	}
	return w.assistant.Transpile(ctx, content)
}

// SaveFile writes code next to the project root following the output path rule
// for source and its content. The target is overwritten unconditionally.
func (w *Workspace) SaveFile(source, content, code string) (string, error) {
	out, err := sketch.OutputPath(w.root, source, content)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil { //nolint:gosec // G301: generated sources are world-readable like any project file
		return "", fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(out, []byte(code), 0o644); err != nil { //nolint:gosec // G306: generated sources are world-readable like any project file
		return "", fmt.Errorf("write %s: %w", out, err)
	}
	return out, nil
}
