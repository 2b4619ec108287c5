package service_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/Strob0t/sketchforge/internal/domain"
	"github.com/Strob0t/sketchforge/internal/service"
)

func newReadyFileSync(t *testing.T, fp *fakePlatform) *service.FileSync {
	t.Helper()
	ids := service.NewIdentityResolver(newMapCache(), time.Minute, "sk-test")
	fs := service.NewFileSync(fp, ids, testProjectID, 3)
	if err := fs.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return fs
}

func TestFileSyncResyncLeavesExactlyLocalFiles(t *testing.T) {
	fp := newFakePlatform()
	store := fp.addStore(testProjectID)
	dupA1 := fp.addFile("a.md", store)
	dupA2 := fp.addFile("a.md", store)
	staleC := fp.addFile("c.md", store)
	unrelated := fp.addFile("other.md", "")

	folder := t.TempDir()
	writeFile(t, filepath.Join(folder, "a.md"), "rules for a")
	writeFile(t, filepath.Join(folder, "b.md"), "rules for b")
	writeFile(t, filepath.Join(folder, "nested", "ignored.md"), "not uploaded")

	fs := newReadyFileSync(t, fp)
	ids, err := fs.Resync(context.Background(), folder)
	if err != nil {
		t.Fatalf("Resync: %v", err)
	}

	if len(ids) != 2 {
		t.Fatalf("expected 2 uploaded ids, got %v", ids)
	}
	attached := fp.attachedTo(store)
	slices.Sort(attached)
	want := slices.Clone(ids)
	slices.Sort(want)
	if !slices.Equal(attached, want) {
		t.Errorf("expected store to hold exactly %v, got %v", want, attached)
	}

	if n := fp.callCount("DeleteFile"); n != 2 {
		t.Errorf("expected both a.md duplicates deleted, got %d deletes", n)
	}
	files, _ := fp.ListFiles(context.Background())
	var remaining []string
	for _, f := range files {
		remaining = append(remaining, f.ID)
	}
	for _, gone := range []string{dupA1, dupA2} {
		if slices.Contains(remaining, gone) {
			t.Errorf("expected %s deleted", gone)
		}
	}
	for _, kept := range []string{staleC, unrelated} {
		if !slices.Contains(remaining, kept) {
			t.Errorf("expected %s kept as a remote file", kept)
		}
	}

	fp.mu.Lock()
	defer fp.mu.Unlock()
	if got := fp.contents[ids[0]]; got != "rules for a" {
		t.Errorf("expected a.md bytes uploaded first, got %q", got)
	}
}

func TestFileSyncResyncTwiceIsStable(t *testing.T) {
	fp := newFakePlatform()
	store := fp.addStore(testProjectID)
	folder := t.TempDir()
	writeFile(t, filepath.Join(folder, "a.md"), "a")
	writeFile(t, filepath.Join(folder, "b.md"), "b")

	fs := newReadyFileSync(t, fp)
	for i := range 2 {
		if _, err := fs.Resync(context.Background(), folder); err != nil {
			t.Fatalf("Resync %d: %v", i, err)
		}
		if n := len(fp.attachedTo(store)); n != 2 {
			t.Fatalf("after resync %d expected 2 attached files, got %d", i, n)
		}
	}
	files, _ := fp.ListFiles(context.Background())
	if len(files) != 2 {
		t.Errorf("expected old uploads deleted, got %d remote files", len(files))
	}
}

func TestFileSyncNotReady(t *testing.T) {
	fp := newFakePlatform()
	ids := service.NewIdentityResolver(nil, time.Minute, "sk-test")
	fs := service.NewFileSync(fp, ids, "missing", 1)

	if err := fs.Initialize(context.Background()); !errors.Is(err, domain.ErrRemoteIdentityNotFound) {
		t.Fatalf("expected ErrRemoteIdentityNotFound, got %v", err)
	}
	if _, err := fs.Resync(context.Background(), t.TempDir()); !errors.Is(err, domain.ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
	if n := fp.callCount("CreateVectorStore"); n != 0 {
		t.Errorf("expected no implicit store creation, got %d", n)
	}
}

func TestFileSyncUploadOneLocal(t *testing.T) {
	fp := newFakePlatform()
	fp.addStore(testProjectID)
	path := filepath.Join(t.TempDir(), "guide.md")
	writeFile(t, path, "guide")

	id, err := newReadyFileSync(t, fp).UploadOne(context.Background(), path)
	if err != nil {
		t.Fatalf("UploadOne: %v", err)
	}
	files, _ := fp.ListFiles(context.Background())
	if len(files) != 1 || files[0].ID != id || files[0].Filename != "guide.md" {
		t.Errorf("unexpected remote files: %+v", files)
	}
}

func TestFileSyncUploadOneURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/docs/style.md" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("remote style"))
	}))
	defer srv.Close()
	defer http.DefaultTransport.(*http.Transport).CloseIdleConnections()

	fp := newFakePlatform()
	fp.addStore(testProjectID)
	fs := newReadyFileSync(t, fp)

	id, err := fs.UploadOne(context.Background(), srv.URL+"/docs/style.md")
	if err != nil {
		t.Fatalf("UploadOne: %v", err)
	}
	fp.mu.Lock()
	got := fp.contents[id]
	fp.mu.Unlock()
	if got != "remote style" {
		t.Errorf("expected fetched bytes uploaded, got %q", got)
	}

	if _, err := fs.UploadOne(context.Background(), srv.URL+"/missing.md"); err == nil {
		t.Error("expected error for non-2xx fetch")
	}
}
