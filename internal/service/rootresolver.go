package service

import (
	"os"
	"path/filepath"

	"github.com/Strob0t/sketchforge/internal/config"
	"github.com/Strob0t/sketchforge/internal/domain/sketch"
)

// RootResolverFunc maps a file path to its enclosing project root.
type RootResolverFunc func(filePath string) (string, bool)

// ResolveRoot walks from the directory of filePath towards the filesystem root and
// returns the first ancestor holding a sketch folder with a recognized config file.
// The filesystem root itself is never a project root.
// Filesystem errors are treated as "not here" and the walk continues.
func ResolveRoot(filePath string) (string, bool) {
	abs, err := filepath.Abs(filePath)
	if err != nil {
		return "", false
	}
	return walkRoot(filepath.Dir(abs), isProjectRoot)
}

func walkRoot(dir string, isRoot func(dir string) bool) (string, bool) {
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		if isRoot(dir) {
			return dir, true
		}
		dir = parent
	}
}

func isProjectRoot(dir string) bool {
	sketchDir := filepath.Join(dir, sketch.FolderName)
	info, err := os.Stat(sketchDir)
	if err != nil || !info.IsDir() {
		return false
	}
	_, ok := config.WorkspaceFile(sketchDir)
	return ok
}
