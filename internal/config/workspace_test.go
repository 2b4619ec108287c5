package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Strob0t/sketchforge/internal/domain"
)

func writeWorkspace(t *testing.T, root, name, content string) {
	t.Helper()
	dir := filepath.Join(root, "sketch")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestLoadWorkspace(t *testing.T) {
	root := t.TempDir()
	writeWorkspace(t, root, "sketch.yaml", `
api_key: sk-test
project_id: foo-bar
vector_store_name: docs
assistant_create_params:
  model: gpt-4o-mini
  temperature: 0.2
`)

	ws, err := LoadWorkspace(root)
	if err != nil {
		t.Fatalf("LoadWorkspace: %v", err)
	}
	if ws.Assistant() != "foo-bar" {
		t.Errorf("assistant name should default to project id, got %s", ws.Assistant())
	}
	if ws.VectorStore() != "docs" {
		t.Errorf("expected vector store docs, got %s", ws.VectorStore())
	}
	if ws.Sources() != DefaultSourcesDir {
		t.Errorf("expected default sources dir, got %s", ws.Sources())
	}
	if ws.AssistantCreateParams["model"] != "gpt-4o-mini" {
		t.Errorf("expected override params, got %v", ws.AssistantCreateParams)
	}
}

func TestLoadWorkspace_YMLExtension(t *testing.T) {
	root := t.TempDir()
	writeWorkspace(t, root, "sketch.yml", "api_key: sk-test\nproject_id: p\n")

	if _, err := LoadWorkspace(root); err != nil {
		t.Fatalf("LoadWorkspace: %v", err)
	}
}

func TestLoadWorkspace_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"unknown field", "api_key: k\nproject_id: p\nassistan_name: typo\n"},
		{"missing project", "api_key: k\n"},
		{"placeholder key", "api_key: YOUR_OPENAI_API_KEY\nproject_id: p\n"},
		{"absolute sources", "api_key: k\nproject_id: p\nsources_dir: /etc\n"},
		{"malformed", "api_key: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OPENAI_API_KEY", "")
			t.Setenv("SKETCHFORGE_OPENAI_API_KEY", "")
			root := t.TempDir()
			writeWorkspace(t, root, "sketch.yaml", tt.content)

			_, err := LoadWorkspace(root)
			if !errors.Is(err, domain.ErrConfigLoad) {
				t.Fatalf("expected ErrConfigLoad, got %v", err)
			}
		})
	}
}

func TestLoadWorkspace_Missing(t *testing.T) {
	_, err := LoadWorkspace(t.TempDir())
	if !errors.Is(err, domain.ErrConfigLoad) {
		t.Fatalf("expected ErrConfigLoad, got %v", err)
	}
}

func TestLoadWorkspace_EnvKey(t *testing.T) {
	root := t.TempDir()
	writeWorkspace(t, root, "sketch.yaml", "api_key: YOUR_OPENAI_API_KEY\nproject_id: p\n")
	t.Setenv("SKETCHFORGE_OPENAI_API_KEY", "sk-env")

	ws, err := LoadWorkspace(root)
	if err != nil {
		t.Fatalf("LoadWorkspace: %v", err)
	}
	if ws.APIKey != "sk-env" {
		t.Errorf("expected env key, got %s", ws.APIKey)
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("sk-one")
	if a != Fingerprint("sk-one") {
		t.Fatal("fingerprint must be stable")
	}
	if a == Fingerprint("sk-two") {
		t.Fatal("different keys should differ")
	}
	if len(a) != 12 {
		t.Fatalf("expected 12 hex chars, got %d", len(a))
	}
}
