package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"path/filepath"

	sfotel "github.com/Strob0t/sketchforge/internal/adapter/otel"
	"github.com/Strob0t/sketchforge/internal/config"
	"github.com/Strob0t/sketchforge/internal/domain"
)

// ProvisionResult describes the remote resources of a project after provisioning.
type ProvisionResult struct {
	Root               string `json:"root"`
	VectorStoreID      string `json:"vector_store_id"`
	AssistantID        string `json:"assistant_id"`
	CreatedVectorStore bool   `json:"created_vector_store"`
	CreatedAssistant   bool   `json:"created_assistant"`
}

// ResyncResult lists the files uploaded by a resync.
type ResyncResult struct {
	Root    string   `json:"root"`
	Folder  string   `json:"folder"`
	FileIDs []string `json:"file_ids"`
}

// Provisioner runs the user-invoked remote actions: create-if-absent of the
// assistant and vector store, and the full sources resync.
type Provisioner struct {
	registry *Registry
	reporter *Reporter
	metrics  *sfotel.Metrics
	resolve  RootResolverFunc
}

// NewProvisioner creates a Provisioner sharing the orchestrator's registry.
func NewProvisioner(registry *Registry, reporter *Reporter, metrics *sfotel.Metrics) *Provisioner {
	return &Provisioner{registry: registry, reporter: reporter, metrics: metrics, resolve: ResolveRoot}
}

func (p *Provisioner) rootOf(filePath string) (string, error) {
	root, ok := p.resolve(filePath)
	if !ok {
		return "", fmt.Errorf("%w for %s", domain.ErrRootNotFound, filePath)
	}
	return root, nil
}

// Provision makes sure the vector store and the assistant of the project holding
// filePath exist, creating whichever is missing. The assistant is created bound to
// the vector store. When both exist no remote mutation is made.
func (p *Provisioner) Provision(ctx context.Context, filePath string) (res *ProvisionResult, err error) {
	root, err := p.rootOf(filePath)
	if err != nil {
		return nil, err
	}

	ctx, span := sfotel.StartProvisionSpan(ctx, root)
	defer func() { sfotel.EndSpan(span, err) }()

	cfg, err := config.LoadWorkspace(root)
	if err != nil {
		return nil, err
	}

	deps := p.registry.deps
	platform := deps.Platforms(cfg.APIKey)
	ids := NewIdentityResolver(deps.Cache, deps.IdentityTTL, cfg.APIKey)
	res = &ProvisionResult{Root: root}

	// Provisioning is explicit, so cached ids are re-checked against the remote.
	ids.Invalidate(ctx, KindVectorStore, cfg.VectorStore())
	ids.Invalidate(ctx, KindAssistant, cfg.Assistant())

	res.VectorStoreID, res.CreatedVectorStore, err = ensure(ctx, ids, KindVectorStore, cfg.VectorStore(), vectorStoreLister(platform),
		func(ctx context.Context) (string, error) {
			vs, err := platform.CreateVectorStore(ctx, cfg.VectorStore())
			if err != nil {
				return "", err
			}
			return vs.ID, nil
		})
	if err != nil {
		return nil, err
	}
	if res.CreatedVectorStore {
		p.reporter.Info(ctx, root, "Created vector store "+cfg.VectorStore())
	}

	res.AssistantID, res.CreatedAssistant, err = ensure(ctx, ids, KindAssistant, cfg.Assistant(), assistantLister(platform),
		func(ctx context.Context) (string, error) {
			a, err := platform.CreateAssistant(ctx, assistantParams(cfg, res.VectorStoreID, deps.ResultField))
			if err != nil {
				return "", err
			}
			return a.ID, nil
		})
	if err != nil {
		return nil, err
	}
	if res.CreatedAssistant {
		p.reporter.Info(ctx, root, "Created assistant "+cfg.Assistant())
	}

	// A cached workspace that failed to initialize never retries on its own.
	if ws, ok := p.registry.Lookup(root); ok && !ws.Ready() {
		p.registry.Evict(root)
	}

	if !res.CreatedAssistant && !res.CreatedVectorStore {
		p.reporter.Info(ctx, root, "Assistant "+cfg.Assistant()+" and vector store "+cfg.VectorStore()+" already exist")
	}
	return res, nil
}

// ensure resolves name, creating the resource when the remote has none.
func ensure(ctx context.Context, ids *IdentityResolver, kind IdentityKind, name string, list ListFunc,
	create func(context.Context) (string, error),
) (id string, created bool, err error) {
	id, err = ids.Resolve(ctx, kind, name, list)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, domain.ErrRemoteIdentityNotFound) {
		return "", false, err
	}

	id, err = create(ctx)
	if err != nil {
		return "", false, fmt.Errorf("create %s %q: %w", kind, name, err)
	}
	ids.Remember(ctx, kind, name, id)
	return id, true, nil
}

// assistantParams returns the configured creation params, or the built-in profile.
// Configured params get the assistant name when they lack one so the assistant can
// be found by name afterwards.
func assistantParams(cfg *config.Workspace, storeID, resultField string) map[string]any {
	if len(cfg.AssistantCreateParams) == 0 {
		return DefaultAssistantParams(cfg.Assistant(), storeID, resultField)
	}
	params := maps.Clone(cfg.AssistantCreateParams)
	if _, ok := params["name"]; !ok {
		params["name"] = cfg.Assistant()
	}
	return params
}

// Resync replaces the project's sources folder in its vector store.
func (p *Provisioner) Resync(ctx context.Context, filePath string) (*ResyncResult, error) {
	root, err := p.rootOf(filePath)
	if err != nil {
		return nil, err
	}

	ws := p.registry.GetOrInit(ctx, root)
	if !ws.Ready() {
		return nil, fmt.Errorf("%w: workspace %s", domain.ErrNotReady, root)
	}

	folder := filepath.Join(root, ws.Config().Sources())
	ids, err := ws.Files().Resync(ctx, folder)
	if err != nil {
		p.reporter.Error(ctx, root, "Resync of "+folder+" failed: "+err.Error())
		return nil, err
	}

	p.metrics.RecordResync(ctx, len(ids))
	p.reporter.Info(ctx, root, fmt.Sprintf("Resynced %d files from %s", len(ids), folder))
	return &ResyncResult{Root: root, Folder: folder, FileIDs: ids}, nil
}
