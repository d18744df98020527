package fileutil

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteAtomicOverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "nested", "ffmpeg")
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dst, []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := WriteAtomic(dst, strings.NewReader("fresh"), 0o755); err != nil {
		t.Fatalf("WriteAtomic: %v", err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "fresh" {
		t.Fatalf("content mismatch: got %q", got)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Fatalf("expected mode 0755, got %o", info.Mode().Perm())
	}
	if _, err := os.Stat(dst + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("expected temp file to be gone, stat err=%v", err)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("truncated archive") }

func TestWriteAtomicRemovesTempOnFailure(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "ffmpeg")

	err := WriteAtomic(dst, failingReader{}, 0o755)
	if err == nil || !strings.Contains(err.Error(), "truncated archive") {
		t.Fatalf("expected read error, got %v", err)
	}
	if _, err := os.Stat(dst + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("expected temp file to be removed, stat err=%v", err)
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Fatalf("expected destination to be absent, stat err=%v", err)
	}
}

func TestSpoolTemp(t *testing.T) {
	dir := t.TempDir()
	path, err := SpoolTemp(io.LimitReader(strings.NewReader("nested archive bytes"), 6), dir, "nested-*.zip")
	if err != nil {
		t.Fatalf("SpoolTemp: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("expected temp file in %s, got %s", dir, path)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "nested" {
		t.Fatalf("content mismatch: got %q", got)
	}
}
