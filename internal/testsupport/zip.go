package testsupport

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// ZipEntry is a single file written by ZipBytes and WriteZip.
type ZipEntry struct {
	Name string
	Data []byte
}

// ZipBytes builds an in-memory zip archive holding entries in order.
func ZipBytes(t testing.TB, entries ...ZipEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, entry := range entries {
		w, err := zw.Create(entry.Name)
		if err != nil {
			t.Fatalf("create zip entry %s: %v", entry.Name, err)
		}
		if _, err := w.Write(entry.Data); err != nil {
			t.Fatalf("write zip entry %s: %v", entry.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// WriteZip writes a zip archive holding entries to path.
func WriteZip(t testing.TB, path string, entries ...ZipEntry) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, ZipBytes(t, entries...), 0o644); err != nil {
		t.Fatalf("write zip %s: %v", path, err)
	}
}

// TranscoderArchive returns a resource archive holding a single executable
// entry named exeName with a shell script body.
func TranscoderArchive(t testing.TB, exeName string) []byte {
	t.Helper()
	return ZipBytes(t, ZipEntry{Name: exeName, Data: []byte("#!/bin/sh\nexit 0\n")})
}
