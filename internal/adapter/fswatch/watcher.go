// Package fswatch turns filesystem writes to sketch files into save events, for
// editors that have no integration with the control API.
package fswatch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Strob0t/sketchforge/internal/domain"
	"github.com/Strob0t/sketchforge/internal/domain/sketch"
	"github.com/Strob0t/sketchforge/internal/service"
)

// Submitter accepts save events.
type Submitter interface {
	Submit(ctx context.Context, ev sketch.SaveEvent) (*service.Task, error)
}

// Watcher recursively watches a directory tree. Writes to files below a sketch
// folder of their project are debounced and submitted as modified saves with
// content read from disk. Generated files never live below the sketch folder of
// their project, so writing them triggers nothing.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	sink        Submitter
	resolve     service.RootResolverFunc
	dir         string
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
}

// New creates a watcher for dir.
func New(dir string, debounce time.Duration, sink Submitter) (*Watcher, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:     w,
		sink:        sink,
		resolve:     service.ResolveRoot,
		dir:         abs,
		debounceMap: make(map[string]time.Time),
		debounceDur: debounce,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start adds the directory tree and begins processing events in a goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.addTree(w.dir); err != nil {
		return err
	}
	slog.Info("watching for sketch saves", "dir", w.dir, "debounce", w.debounceDur)

	go w.run(ctx)
	return nil
}

// Stop stops the event loop and releases the watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		slog.Error("closing file watcher", "error", err)
	}
}

// addTree watches root and every directory below it, skipping hidden directories.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			slog.Warn("skipping unreadable directory", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			slog.Warn("watch failed", "path", path, "error", err)
		}
		return nil
	})
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := max(w.debounceDur/2, 10*time.Millisecond)
	debounceTicker := time.NewTicker(tick)
	defer debounceTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("file watcher error", "error", err)
		case <-debounceTicker.C:
			w.processDebounced(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if event.Has(fsnotify.Create) {
			if err := w.addTree(event.Name); err != nil {
				slog.Warn("watch new directory failed", "path", event.Name, "error", err)
			}
		}
		return
	}

	if !w.isSource(event.Name) {
		return
	}

	w.mu.Lock()
	w.debounceMap[event.Name] = time.Now()
	w.mu.Unlock()
}

// isSource reports whether path lies below a sketch folder. The folder is looked
// for relative to the project root, so directories named like it above the root
// do not count. Paths outside any project fall back to the watched directory.
func (w *Watcher) isSource(path string) bool {
	base := w.dir
	if root, ok := w.resolve(path); ok {
		base = root
	}
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return sketch.HasFolderSegment(filepath.Dir(rel))
}

// processDebounced submits paths whose last event is older than the debounce window.
func (w *Watcher) processDebounced(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	var settled []string
	for path, at := range w.debounceMap {
		if now.Sub(at) >= w.debounceDur {
			settled = append(settled, path)
			delete(w.debounceMap, path)
		}
	}
	w.mu.Unlock()

	for _, path := range settled {
		_, err := w.sink.Submit(ctx, sketch.SaveEvent{Path: path, Modified: true})
		switch {
		case err == nil, errors.Is(err, domain.ErrInFlight):
		case errors.Is(err, fs.ErrNotExist):
			slog.Debug("watched file vanished before submit", "path", path)
		default:
			slog.Warn("watched save rejected", "path", path, "error", err)
		}
	}
}
