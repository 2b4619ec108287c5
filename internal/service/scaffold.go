package service

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Strob0t/sketchforge/internal/domain/sketch"
)

//go:embed all:skeleton
var skeletonFS embed.FS

const skeletonRoot = "skeleton"

// Scaffolder creates the sketch folder of a new project.
type Scaffolder struct {
	reporter *Reporter
}

// NewScaffolder creates a Scaffolder.
func NewScaffolder(reporter *Reporter) *Scaffolder {
	return &Scaffolder{reporter: reporter}
}

// Scaffold copies the project skeleton into dir unless dir already has a non-empty
// sketch folder. It reports whether files were copied.
func (s *Scaffolder) Scaffold(ctx context.Context, dir string) (bool, error) {
	target := filepath.Join(dir, sketch.FolderName)
	entries, err := os.ReadDir(target)
	switch {
	case err == nil && len(entries) > 0:
		s.reporter.Info(ctx, dir, "Project files already exist in "+target)
		return false, nil
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return false, fmt.Errorf("inspect %s: %w", target, err)
	}

	err = fs.WalkDir(skeletonFS, skeletonRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(skeletonRoot, filepath.FromSlash(p))
		if err != nil {
			return err
		}
		dst := filepath.Join(dir, rel)
		if d.IsDir() {
			return os.MkdirAll(dst, 0o755) //nolint:gosec // G301: project folders are world-readable
		}
		data, err := skeletonFS.ReadFile(p)
		if err != nil {
			return err
		}
		return os.WriteFile(dst, data, 0o644) //nolint:gosec // G306: project files are world-readable
	})
	if err != nil {
		return false, fmt.Errorf("copy skeleton to %s: %w", dir, err)
	}

	s.reporter.Info(ctx, dir, "Sketch project files created in "+target)
	return true, nil
}
