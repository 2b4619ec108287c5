package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	sfotel "github.com/Strob0t/sketchforge/internal/adapter/otel"
	"github.com/Strob0t/sketchforge/internal/domain"
	"github.com/Strob0t/sketchforge/internal/domain/sketch"
	"github.com/Strob0t/sketchforge/internal/logger"
)

// Task is the handle of one transpile attempt.
type Task struct {
	Path      string
	AttemptID string

	done   chan struct{}
	result sketch.Result
	err    error
}

func newTask(path string) *Task {
	return &Task{Path: path, AttemptID: uuid.New().String(), done: make(chan struct{})}
}

func finishedTask(res sketch.Result) *Task {
	t := &Task{Path: res.Path, done: make(chan struct{}), result: res}
	close(t.done)
	return t
}

func (t *Task) finish(res sketch.Result, err error) {
	t.result = res
	t.err = err
	close(t.done)
}

// Done is closed when the attempt has finished.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the attempt finishes or ctx is done. Giving up waiting does
// not stop the attempt.
func (t *Task) Wait(ctx context.Context) (sketch.Result, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		return sketch.Result{Path: t.Path}, ctx.Err()
	}
}

// fileEntry is the bookkeeping for one path. A non-nil task means in flight.
type fileEntry struct {
	task  *Task
	dirty bool
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithMetrics records attempt metrics on m.
func WithMetrics(m *sfotel.Metrics) OrchestratorOption {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithRootResolver replaces ResolveRoot.
func WithRootResolver(fn RootResolverFunc) OrchestratorOption {
	return func(o *Orchestrator) { o.resolve = fn }
}

// Orchestrator handles save events. It allows at most one transpile per path at a
// time; a save that arrives while its path is in flight is rejected and leaves the
// path dirty-pending, so the next save reprocesses it even without new changes.
type Orchestrator struct {
	registry *Registry
	reporter *Reporter
	metrics  *sfotel.Metrics
	resolve  RootResolverFunc

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	files      map[string]*fileEntry
	activeFile string
	root       string // Cached root of activeFile, empty when unknown
}

// NewOrchestrator creates an Orchestrator. Close it to stop running attempts.
func NewOrchestrator(registry *Registry, reporter *Reporter, opts ...OrchestratorOption) *Orchestrator {
	base, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		registry: registry,
		reporter: reporter,
		resolve:  ResolveRoot,
		base:     base,
		cancel:   cancel,
		files:    make(map[string]*fileEntry),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Registry returns the workspace registry.
func (o *Orchestrator) Registry() *Registry { return o.registry }

// SetActiveFile records the file the user is looking at. The cached project root
// is dropped when the active file changes.
func (o *Orchestrator) SetActiveFile(path string) {
	path = cleanPath(path)
	o.mu.Lock()
	defer o.mu.Unlock()
	if path != o.activeFile {
		o.activeFile = path
		o.root = ""
	}
}

// CurrentRoot returns the project root of the active file.
func (o *Orchestrator) CurrentRoot() (string, bool) {
	o.mu.Lock()
	active := o.activeFile
	o.mu.Unlock()
	if active == "" {
		return "", false
	}
	return o.rootFor(active)
}

// rootFor resolves the root of path, reusing the cached root for the active file.
func (o *Orchestrator) rootFor(path string) (string, bool) {
	o.mu.Lock()
	if path == o.activeFile && o.root != "" {
		root := o.root
		o.mu.Unlock()
		return root, true
	}
	o.mu.Unlock()

	root, ok := o.resolve(path)
	if !ok {
		return "", false
	}

	o.mu.Lock()
	if path == o.activeFile {
		o.root = root
	}
	o.mu.Unlock()
	return root, true
}

// Status returns the bookkeeping snapshot for path.
func (o *Orchestrator) Status(path string) sketch.Status {
	path = cleanPath(path)
	o.mu.Lock()
	defer o.mu.Unlock()

	st := sketch.Status{Path: path, State: sketch.StateIdle}
	e, ok := o.files[path]
	if !ok {
		return st
	}
	st.DirtyPending = e.dirty
	if e.task != nil {
		st.State = sketch.StateInFlight
		if e.dirty {
			st.State = sketch.StateInFlightDirty
		}
	}
	return st
}

// Submit starts a transpile attempt for ev and returns its handle. Events that need
// no remote call return an already finished Task. When ev.Path is in flight the
// event is rejected with domain.ErrInFlight and the path becomes dirty-pending.
// An empty ev.Content is read from disk.
func (o *Orchestrator) Submit(ctx context.Context, ev sketch.SaveEvent) (*Task, error) {
	ev.Path = cleanPath(ev.Path)
	if ev.Content == "" {
		data, err := os.ReadFile(ev.Path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", ev.Path, err)
		}
		ev.Content = string(data)
	}

	if !sketch.IsSketch(ev.Content) {
		return finishedTask(sketch.Result{Path: ev.Path, Outcome: sketch.OutcomeNotSketch}), nil
	}

	o.mu.Lock()
	e := o.files[ev.Path]
	if e != nil && e.task != nil {
		e.dirty = true
		o.mu.Unlock()

		o.metrics.RecordCoalesced(ctx)
		o.reporter.Info(ctx, ev.Path, "Sketch "+filepath.Base(ev.Path)+" is still transpiling. Save again once it finishes to transpile the latest content.")
		return nil, fmt.Errorf("%w: %s", domain.ErrInFlight, ev.Path)
	}
	if !ev.Modified && (e == nil || !e.dirty) {
		o.mu.Unlock()
		return finishedTask(sketch.Result{Path: ev.Path, Outcome: sketch.OutcomeSkipped}), nil
	}
	if e == nil {
		e = &fileEntry{}
		o.files[ev.Path] = e
	}
	task := newTask(ev.Path)
	e.task = task
	e.dirty = false
	o.wg.Add(1)
	o.mu.Unlock()

	go o.run(ctx, task, ev)
	return task, nil
}

// HandleSave submits ev and waits for the outcome. A rejected in-flight event
// returns a coalesced Result together with domain.ErrInFlight.
func (o *Orchestrator) HandleSave(ctx context.Context, ev sketch.SaveEvent) (sketch.Result, error) {
	task, err := o.Submit(ctx, ev)
	if errors.Is(err, domain.ErrInFlight) {
		return sketch.Result{Path: cleanPath(ev.Path), Outcome: sketch.OutcomeCoalesced}, err
	}
	if err != nil {
		return sketch.Result{Path: cleanPath(ev.Path), Outcome: sketch.OutcomeFailed, Error: err.Error()}, err
	}
	return task.Wait(ctx)
}

// Close cancels running attempts and waits for them to finish.
func (o *Orchestrator) Close() {
	o.cancel()
	o.wg.Wait()
}

// run drives one attempt. The caller's cancellation is dropped; the attempt only
// stops when the Orchestrator is closed.
func (o *Orchestrator) run(parent context.Context, task *Task, ev sketch.SaveEvent) {
	defer o.wg.Done()

	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	stop := context.AfterFunc(o.base, cancel)
	defer stop()
	defer cancel()

	ctx = logger.WithAttemptID(ctx, task.AttemptID)
	start := time.Now()
	o.reporter.Status(ctx, sketch.Status{Path: task.Path, State: sketch.StateInFlight})

	res, err := o.attempt(ctx, task, ev)

	o.mu.Lock()
	e := o.files[task.Path]
	if res.Outcome == sketch.OutcomeFailed {
		e.dirty = true
	}
	e.task = nil
	if !e.dirty {
		delete(o.files, task.Path)
	}
	o.mu.Unlock()

	o.metrics.RecordAttempt(ctx, string(res.Outcome), time.Since(start))
	slog.InfoContext(ctx, "transpile finished",
		"path", task.Path,
		"outcome", res.Outcome,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	o.reporter.Status(ctx, res)
	task.finish(res, err)
}

func (o *Orchestrator) attempt(ctx context.Context, task *Task, ev sketch.SaveEvent) (res sketch.Result, err error) {
	ctx, span := sfotel.StartTranspileSpan(ctx, task.AttemptID, task.Path)
	defer func() { sfotel.EndSpan(span, err) }()

	res = sketch.Result{Path: task.Path}
	fail := func(outcome sketch.Outcome, err error, msg string) (sketch.Result, error) {
		res.Outcome = outcome
		res.Error = err.Error()
		o.reporter.Error(ctx, task.Path, msg)
		return res, err
	}

	root, ok := o.rootFor(task.Path)
	if !ok {
		err := fmt.Errorf("%w for %s", domain.ErrRootNotFound, task.Path)
		return fail(sketch.OutcomeNotReady, err, "No sketch project found for "+task.Path)
	}
	res.Root = root
	span.SetAttributes(attribute.String("sketch.root", root))

	ws := o.registry.GetOrInit(ctx, root)

	o.metrics.RecordStart(ctx)
	code, err := ws.Transpile(ctx, ev.Content)
	if errors.Is(err, domain.ErrNotReady) {
		return fail(sketch.OutcomeNotReady, err, "Sketch assistant not ready: "+err.Error())
	}
	if err != nil {
		return fail(sketch.OutcomeFailed, err, "Transpile failed for "+filepath.Base(task.Path)+": "+err.Error())
	}

	out, err := ws.SaveFile(task.Path, ev.Content, code)
	if err != nil {
		return fail(sketch.OutcomeFailed, err, "Could not save transpiled code for "+filepath.Base(task.Path)+": "+err.Error())
	}

	res.Outcome = sketch.OutcomeWritten
	res.OutputPath = out
	o.reporter.Info(ctx, task.Path, "Transpiled "+filepath.Base(task.Path)+" to "+out)
	return res, nil
}

func cleanPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
