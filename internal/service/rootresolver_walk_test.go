package service

import (
	"path/filepath"
	"testing"
)

func TestWalkRootStopsBeforeFilesystemRoot(t *testing.T) {
	start := filepath.Join(t.TempDir(), "a", "b")
	fsRoot := start
	for filepath.Dir(fsRoot) != fsRoot {
		fsRoot = filepath.Dir(fsRoot)
	}

	var visited []string
	got, ok := walkRoot(start, func(dir string) bool {
		visited = append(visited, dir)
		return dir == fsRoot
	})
	if ok {
		t.Fatalf("expected no root, got %s", got)
	}
	for _, dir := range visited {
		if dir == fsRoot {
			t.Errorf("filesystem root %s was checked", fsRoot)
		}
	}

	parent := filepath.Dir(start)
	got, ok = walkRoot(start, func(dir string) bool { return dir == parent })
	if !ok || got != parent {
		t.Errorf("expected %s, got %q (ok=%v)", parent, got, ok)
	}
}
