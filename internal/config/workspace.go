package config

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/blake2b"
	"gopkg.in/yaml.v3"

	"github.com/Strob0t/sketchforge/internal/domain"
)

// WorkspaceFileNames lists the recognized project config files inside the
// sketch folder, in lookup order.
var WorkspaceFileNames = []string{"sketch.yaml", "sketch.yml"}

// DefaultSourcesDir is the project-relative folder mirrored to the vector store.
const DefaultSourcesDir = "sketch/sources"

const apiKeyPlaceholder = "YOUR_OPENAI_API_KEY"

// Workspace is the declarative per-project configuration read from
// <root>/sketch/sketch.yaml. It is immutable once loaded.
type Workspace struct {
	APIKey                string         `yaml:"api_key"`
	ProjectID             string         `yaml:"project_id"`
	AssistantName         string         `yaml:"assistant_name,omitempty"`
	VectorStoreName       string         `yaml:"vector_store_name,omitempty"`
	SourcesDir            string         `yaml:"sources_dir,omitempty"`
	AssistantCreateParams map[string]any `yaml:"assistant_create_params,omitempty"` // Sent verbatim when set
}

// Assistant returns the remote assistant name, defaulting to the project id.
func (w *Workspace) Assistant() string {
	if w.AssistantName != "" {
		return w.AssistantName
	}
	return w.ProjectID
}

// VectorStore returns the remote vector store name, defaulting to the project id.
func (w *Workspace) VectorStore() string {
	if w.VectorStoreName != "" {
		return w.VectorStoreName
	}
	return w.ProjectID
}

// Sources returns the project-relative sources folder.
func (w *Workspace) Sources() string {
	if w.SourcesDir != "" {
		return w.SourcesDir
	}
	return DefaultSourcesDir
}

// WorkspaceFile returns the first recognized config file in sketchDir.
func WorkspaceFile(sketchDir string) (string, bool) {
	for _, name := range WorkspaceFileNames {
		p := filepath.Join(sketchDir, name)
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p, true
		}
	}
	return "", false
}

// LoadWorkspace reads and validates the project config under root.
// Every failure wraps domain.ErrConfigLoad.
func LoadWorkspace(root string) (*Workspace, error) {
	path, ok := WorkspaceFile(filepath.Join(root, "sketch"))
	if !ok {
		return nil, fmt.Errorf("%w: no sketch config in %s", domain.ErrConfigLoad, root)
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: path is derived from the resolved project root
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrConfigLoad, path, err)
	}

	var ws Workspace
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&ws); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %s is empty", domain.ErrConfigLoad, path)
		}
		return nil, fmt.Errorf("%w: parse %s: %v", domain.ErrConfigLoad, path, err)
	}

	if ws.APIKey == "" || ws.APIKey == apiKeyPlaceholder {
		setString(&ws.APIKey, "OPENAI_API_KEY")
		setString(&ws.APIKey, "SKETCHFORGE_OPENAI_API_KEY")
	}

	if err := validateWorkspace(&ws); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrConfigLoad, path, err)
	}
	return &ws, nil
}

func validateWorkspace(ws *Workspace) error {
	if ws.APIKey == "" || ws.APIKey == apiKeyPlaceholder {
		return errors.New("api_key is required")
	}
	if ws.ProjectID == "" {
		return errors.New("project_id is required")
	}
	if filepath.IsAbs(ws.SourcesDir) {
		return errors.New("sources_dir must be relative to the project root")
	}
	return nil
}

// Fingerprint returns a short stable digest of an API key, safe for logs and cache keys.
func Fingerprint(apiKey string) string {
	sum := blake2b.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:6])
}
