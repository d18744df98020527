package testsupport

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// videoHeader is an MP4 "ftyp" box. Fixtures are never decoded.
var videoHeader = []byte{0, 0, 0, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm', 0, 0, 2, 0, 'i', 's', 'o', 'm', 'm', 'p', '4', '1'}

// WriteVideo writes a placeholder video of exactly size bytes to path,
// creating parent directories. A size <= 0 writes a single byte.
func WriteVideo(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	body := io.MultiReader(bytes.NewReader(videoHeader), zeroReader{})
	if _, err := io.CopyN(f, body, size); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}
