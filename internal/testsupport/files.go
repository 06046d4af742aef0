package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile writes content to path, creating parent directories.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteAcquisitionDir lays out a synthetic acquisition directory with a
// descriptor placeholder and a few series files under the data root.
func WriteAcquisitionDir(t testing.TB, dataDir, name string) string {
	t.Helper()
	dir := filepath.Join(dataDir, name)
	WriteFile(t, filepath.Join(dir, "DIRFILE"), "descriptor placeholder")
	WriteFile(t, filepath.Join(dir, "IM000001"), "slice placeholder")
	WriteFile(t, filepath.Join(dir, "IM000002"), "slice placeholder")
	return dir
}
