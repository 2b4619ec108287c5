package service

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Registry caches one Workspace per project root for the life of the process.
// Concurrent first requests for a root share a single initialization.
type Registry struct {
	deps     WorkspaceDeps
	reporter *Reporter

	mu         sync.Mutex
	workspaces map[string]*Workspace
	group      singleflight.Group
}

// NewRegistry creates an empty Registry.
func NewRegistry(deps WorkspaceDeps, reporter *Reporter) *Registry {
	return &Registry{
		deps:       deps,
		reporter:   reporter,
		workspaces: make(map[string]*Workspace),
	}
}

// Lookup returns the cached Workspace for root, if any.
func (r *Registry) Lookup(root string) (*Workspace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.workspaces[root]
	return ws, ok
}

// GetOrInit returns the Workspace for root, creating and initializing it on first use.
// A Workspace whose initialization failed is cached anyway and stays not ready;
// the failure is reported once.
func (r *Registry) GetOrInit(ctx context.Context, root string) *Workspace {
	if ws, ok := r.Lookup(root); ok {
		return ws
	}

	v, _, _ := r.group.Do(root, func() (any, error) {
		if ws, ok := r.Lookup(root); ok {
			return ws, nil
		}

		// Initialization is shared and cached; it outlives the caller's cancellation.
		ws := NewWorkspace(root, r.deps)
		if err := ws.Initialize(context.WithoutCancel(ctx)); err != nil {
			r.reporter.Error(ctx, root, "Sketch workspace "+root+" is not ready: "+err.Error())
		}

		r.mu.Lock()
		r.workspaces[root] = ws
		r.mu.Unlock()
		return ws, nil
	})
	return v.(*Workspace)
}

// Evict drops the cached Workspace for root so the next GetOrInit builds a new one.
func (r *Registry) Evict(root string) {
	r.mu.Lock()
	delete(r.workspaces, root)
	r.mu.Unlock()
}
