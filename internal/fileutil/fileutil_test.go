package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestCopyFileVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")
	writeFile(t, src, "verified payload")

	if err := CopyFileVerified(src, dst); err != nil {
		t.Fatalf("CopyFileVerified: %v", err)
	}
	if got := readFile(t, dst); got != "verified payload" {
		t.Fatalf("dst content = %q", got)
	}
}

func TestCopyTreeMergesIntoExisting(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")

	writeFile(t, filepath.Join(src, "a.txt"), "alpha")
	writeFile(t, filepath.Join(src, "nested", "b.txt"), "beta")
	// Pre-existing destination content from an earlier partial run.
	writeFile(t, filepath.Join(dst, "a.txt"), "stale")
	writeFile(t, filepath.Join(dst, "keep.txt"), "keep")

	if err := CopyTree(src, dst); err != nil {
		t.Fatalf("CopyTree: %v", err)
	}
	if got := readFile(t, filepath.Join(dst, "a.txt")); got != "alpha" {
		t.Fatalf("a.txt = %q, want overwritten copy", got)
	}
	if got := readFile(t, filepath.Join(dst, "nested", "b.txt")); got != "beta" {
		t.Fatalf("nested/b.txt = %q", got)
	}
	if got := readFile(t, filepath.Join(dst, "keep.txt")); got != "keep" {
		t.Fatalf("keep.txt = %q, want untouched", got)
	}
}

func TestCopyTreeIdempotent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	writeFile(t, filepath.Join(src, "series", "slice-001.dcm"), "pixel data")

	for i := 0; i < 2; i++ {
		if err := CopyTree(src, dst); err != nil {
			t.Fatalf("CopyTree pass %d: %v", i+1, err)
		}
	}
	if got := readFile(t, filepath.Join(dst, "series", "slice-001.dcm")); got != "pixel data" {
		t.Fatalf("content = %q", got)
	}
}
