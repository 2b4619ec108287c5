// Package sketch defines the sketch file model: tags embedded in file content,
// the output path rule, and the per-file transpile state.
package sketch

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	// FolderName is the directory that marks a project root and is stripped from output paths.
	FolderName = "sketch"

	// UnknownExtension is appended when the content carries no @ext tag.
	UnknownExtension = "undefined"

	// TranspileErrorSentinel is returned in place of generated code when the reply
	// cannot be interpreted.
	TranspileErrorSentinel = "Error: Could not transpile the code."
)

var (
	sketchTagRe = regexp.MustCompile(`(?i)//\s*@sketch:\s*(\S+)`)
	extTagRe    = regexp.MustCompile(`@ext:(\w+)`)
)

// Name returns the identifier of the first sketch tag in content.
// The second return value is false when content is not a sketch.
func Name(content string) (string, bool) {
	m := sketchTagRe.FindStringSubmatch(content)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// IsSketch reports whether content carries a sketch tag.
func IsSketch(content string) bool {
	_, ok := Name(content)
	return ok
}

// Extension returns the output suffix selected by the first @ext tag,
// or UnknownExtension when there is none.
func Extension(content string) string {
	m := extTagRe.FindStringSubmatch(content)
	if m == nil {
		return UnknownExtension
	}
	return m[1]
}

// OutputPath maps a sketch source under root to its generated file:
// every "sketch" segment of the relative path is dropped and "."+ext is appended.
func OutputPath(root, source, content string) (string, error) {
	rel, err := filepath.Rel(root, source)
	if err != nil {
		return "", fmt.Errorf("relative path of %s: %w", source, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside project root %s", source, root)
	}

	segments := strings.Split(rel, string(filepath.Separator))
	kept := segments[:0]
	for _, s := range segments {
		if s != FolderName {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return "", fmt.Errorf("%s has no file name outside the sketch folder", source)
	}

	return filepath.Join(append([]string{root}, kept...)...) + "." + Extension(content), nil
}

// HasFolderSegment reports whether any segment of rel equals FolderName.
func HasFolderSegment(rel string) bool {
	for _, s := range strings.Split(filepath.ToSlash(rel), "/") {
		if s == FolderName {
			return true
		}
	}
	return false
}
