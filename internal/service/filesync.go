package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	sfotel "github.com/Strob0t/sketchforge/internal/adapter/otel"
	"github.com/Strob0t/sketchforge/internal/domain"
	"github.com/Strob0t/sketchforge/internal/port/aiplatform"
)

// FileSync mirrors local sketch source files into one named vector store.
type FileSync struct {
	platform    aiplatform.Platform
	ids         *IdentityResolver
	name        string
	concurrency int
	httpClient  *http.Client

	storeID string
	ready   bool
}

// NewFileSync creates a FileSync bound to the vector store called name.
func NewFileSync(p aiplatform.Platform, ids *IdentityResolver, name string, concurrency int) *FileSync {
	if concurrency < 1 {
		concurrency = 1
	}
	return &FileSync{
		platform:    p,
		ids:         ids,
		name:        name,
		concurrency: concurrency,
		httpClient:  http.DefaultClient,
	}
}

// Name returns the bound vector store name.
func (f *FileSync) Name() string { return f.name }

// StoreID returns the resolved vector store id, empty until Initialize succeeds.
func (f *FileSync) StoreID() string { return f.storeID }

// Ready reports whether the vector store was resolved.
func (f *FileSync) Ready() bool { return f.ready }

// Initialize resolves the vector store by name. Stores are never created here.
func (f *FileSync) Initialize(ctx context.Context) error {
	id, err := f.ids.Resolve(ctx, KindVectorStore, f.name, vectorStoreLister(f.platform))
	if err != nil {
		return err
	}
	f.storeID = id
	f.ready = true
	return nil
}

// UploadOne uploads a local file or the body of an http(s) URL and returns the remote file id.
func (f *FileSync) UploadOne(ctx context.Context, pathOrURL string) (string, error) {
	if strings.HasPrefix(pathOrURL, "http://") || strings.HasPrefix(pathOrURL, "https://") {
		return f.uploadURL(ctx, pathOrURL)
	}

	file, err := os.Open(pathOrURL) //nolint:gosec // G304: path comes from the project sources folder or the user
	if err != nil {
		return "", fmt.Errorf("open %s: %w", pathOrURL, err)
	}
	defer func() { _ = file.Close() }()

	uploaded, err := f.platform.UploadFile(ctx, filepath.Base(pathOrURL), file, aiplatform.PurposeAssistants)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", pathOrURL, err)
	}
	return uploaded.ID, nil
}

func (f *FileSync) uploadURL(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", rawURL, err)
	}
	name := path.Base(u.Path)
	if name == "/" || name == "." {
		return "", fmt.Errorf("%w: %s has no file name", domain.ErrValidation, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", rawURL, err)
	}

	uploaded, err := f.platform.UploadFile(ctx, name, bytes.NewReader(data), aiplatform.PurposeAssistants)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", rawURL, err)
	}
	return uploaded.ID, nil
}

// Resync replaces every regular file directly inside folder in the vector store:
// same-named remote files are detached and deleted, the local bytes are uploaded and
// attached. Attached files whose name matches no local file are detached. Afterwards
// the store holds exactly one file per local file. Returns the new ids in folder order.
func (f *FileSync) Resync(ctx context.Context, folder string) (ids []string, err error) {
	if !f.ready {
		return nil, fmt.Errorf("%w: vector store %q", domain.ErrNotReady, f.name)
	}

	ctx, span := sfotel.StartResyncSpan(ctx, f.name, folder)
	defer func() { sfotel.EndSpan(span, err) }()

	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("read sources %s: %w", folder, err)
	}
	var locals []string
	isLocal := make(map[string]bool)
	for _, e := range entries {
		if e.Type().IsRegular() {
			locals = append(locals, e.Name())
			isLocal[e.Name()] = true
		}
	}

	storeFiles, err := f.platform.ListVectorStoreFiles(ctx, f.storeID)
	if err != nil {
		return nil, fmt.Errorf("list vector store files: %w", err)
	}
	attached := make(map[string]bool, len(storeFiles))
	for _, sf := range storeFiles {
		attached[sf.ID] = true
	}

	files, err := f.platform.ListFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	byName := make(map[string][]string)
	nameOf := make(map[string]string, len(files))
	for _, rf := range files {
		byName[rf.Filename] = append(byName[rf.Filename], rf.ID)
		nameOf[rf.ID] = rf.Filename
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)

	ids = make([]string, len(locals))
	for i, name := range locals {
		g.Go(func() error {
			for _, old := range byName[name] {
				if err := f.removeRemote(gctx, old, attached[old]); err != nil {
					return err
				}
			}
			id, err := f.UploadOne(gctx, filepath.Join(folder, name))
			if err != nil {
				return err
			}
			if err := f.platform.AttachFile(gctx, f.storeID, id); err != nil {
				return fmt.Errorf("attach %s: %w", name, err)
			}
			ids[i] = id
			return nil
		})
	}

	var staleMu sync.Mutex
	var stale []string
	for id := range attached {
		if name, known := nameOf[id]; known && isLocal[name] {
			continue
		}
		g.Go(func() error {
			if err := f.platform.DetachFile(gctx, f.storeID, id); err != nil {
				return fmt.Errorf("detach stale file %s: %w", id, err)
			}
			staleMu.Lock()
			stale = append(stale, id)
			staleMu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	slog.Info("vector store resynced", "vector_store", f.name, "uploaded", len(ids), "detached_stale", len(stale))
	return ids, nil
}

func (f *FileSync) removeRemote(ctx context.Context, fileID string, attached bool) error {
	if attached {
		if err := f.platform.DetachFile(ctx, f.storeID, fileID); err != nil {
			return fmt.Errorf("detach %s: %w", fileID, err)
		}
	}
	if err := f.platform.DeleteFile(ctx, fileID); err != nil {
		return fmt.Errorf("delete %s: %w", fileID, err)
	}
	return nil
}
