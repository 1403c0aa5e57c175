// Package testutil provides test helper utilities for sxconsole tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// TempWorkspace creates a temporary directory with the given files and returns its path.
// Files is a map of relative path -> content. Directories are created as needed.
// The directory is automatically cleaned up when the test finishes.
func TempWorkspace(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()

	for relPath, content := range files {
		absPath := filepath.Join(dir, relPath)
		if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			t.Fatalf("creating directory for %s: %v", relPath, err)
		}
		if err := os.WriteFile(absPath, []byte(content), 0644); err != nil {
			t.Fatalf("writing %s: %v", relPath, err)
		}
	}

	return dir
}

// ConfigFile returns a workspace file map holding a config.yaml that points
// the client at baseURL with a single request attempt.
func ConfigFile(baseURL string) map[string]string {
	return map[string]string{
		".sxconsole/config.yaml": "version: 1\napi:\n  base_url: " + baseURL + "\n  retries: 1\n  timeout_ms: 2000\n",
	}
}
