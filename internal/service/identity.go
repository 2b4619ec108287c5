package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Strob0t/sketchforge/internal/config"
	"github.com/Strob0t/sketchforge/internal/domain"
	"github.com/Strob0t/sketchforge/internal/port/aiplatform"
	"github.com/Strob0t/sketchforge/internal/port/cache"
)

// IdentityKind names a family of remote named resources.
type IdentityKind string

const (
	KindAssistant   IdentityKind = "assistant"
	KindVectorStore IdentityKind = "vector_store"
)

// NamedID is a remote resource as seen by a name scan.
type NamedID struct {
	ID   string
	Name string
}

// ListFunc lists every remote resource of one kind.
type ListFunc func(ctx context.Context) ([]NamedID, error)

// IdentityResolver maps remote resource names to ids. Results are cached per API key
// so that repeated lookups skip the remote scan until invalidated or expired.
type IdentityResolver struct {
	cache     cache.Cache
	ttl       time.Duration
	namespace string
}

// NewIdentityResolver creates a resolver. c may be nil, in which case every
// lookup scans the remote list.
func NewIdentityResolver(c cache.Cache, ttl time.Duration, apiKey string) *IdentityResolver {
	return &IdentityResolver{cache: c, ttl: ttl, namespace: config.Fingerprint(apiKey)}
}

func (r *IdentityResolver) key(kind IdentityKind, name string) string {
	return "identity:" + r.namespace + ":" + string(kind) + ":" + name
}

// Resolve returns the id of the first remote resource of kind named name.
// A miss wraps domain.ErrRemoteIdentityNotFound.
func (r *IdentityResolver) Resolve(ctx context.Context, kind IdentityKind, name string, list ListFunc) (string, error) {
	if r.cache != nil {
		id, ok, err := r.cache.Get(ctx, r.key(kind, name))
		if err != nil {
			slog.Warn("identity cache read failed", "kind", kind, "name", name, "error", err)
		} else if ok {
			return string(id), nil
		}
	}

	items, err := list(ctx)
	if err != nil {
		return "", fmt.Errorf("list %s: %w", kind, err)
	}
	for _, it := range items {
		if it.Name == name {
			r.Remember(ctx, kind, name, it.ID)
			return it.ID, nil
		}
	}
	return "", fmt.Errorf("%w: %s %q", domain.ErrRemoteIdentityNotFound, kind, name)
}

// Remember caches id for name, typically after creating the resource.
func (r *IdentityResolver) Remember(ctx context.Context, kind IdentityKind, name, id string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, r.key(kind, name), []byte(id), r.ttl); err != nil {
		slog.Warn("identity cache write failed", "kind", kind, "name", name, "error", err)
	}
}

// Invalidate drops the cached id for name.
func (r *IdentityResolver) Invalidate(ctx context.Context, kind IdentityKind, name string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Delete(ctx, r.key(kind, name)); err != nil {
		slog.Warn("identity cache delete failed", "kind", kind, "name", name, "error", err)
	}
}

func assistantLister(p aiplatform.Platform) ListFunc {
	return func(ctx context.Context) ([]NamedID, error) {
		as, err := p.ListAssistants(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]NamedID, len(as))
		for i, a := range as {
			out[i] = NamedID{ID: a.ID, Name: a.Name}
		}
		return out, nil
	}
}

func vectorStoreLister(p aiplatform.Platform) ListFunc {
	return func(ctx context.Context) ([]NamedID, error) {
		vs, err := p.ListVectorStores(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]NamedID, len(vs))
		for i, v := range vs {
			out[i] = NamedID{ID: v.ID, Name: v.Name}
		}
		return out, nil
	}
}
