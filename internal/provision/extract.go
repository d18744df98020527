package provision

import (
	"archive/zip"
	"fmt"
	"os"
	"path"

	"gifconv/internal/fileutil"
)

const executableMode = 0o755

// findEntry returns the first regular entry whose base name equals name.
func findEntry(zr *zip.Reader, name string) *zip.File {
	for _, file := range zr.File {
		if file.FileInfo().IsDir() {
			continue
		}
		if path.Base(file.Name) == name {
			return file
		}
	}
	return nil
}

// extractEntry streams the named entry of zr to dest.
func extractEntry(zr *zip.Reader, name, dest string) error {
	file := findEntry(zr, name)
	if file == nil {
		return fmt.Errorf("%s: %w", name, ErrEntryNotFound)
	}
	rc, err := file.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", file.Name, err)
	}
	defer rc.Close()

	if err := fileutil.WriteAtomic(dest, rc, executableMode); err != nil {
		return fmt.Errorf("extract %s: %w", file.Name, err)
	}
	return nil
}

// extractFromArchive opens the archive at archivePath and extracts the
// entry named exeName to dest.
func extractFromArchive(archivePath, exeName, dest string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open %s: %w", archivePath, err)
	}
	defer zr.Close()

	return extractEntry(&zr.Reader, exeName, dest)
}

// extractNested opens packagePath, spools the nested archive named
// archiveName to a temporary file, and extracts exeName from it to dest.
// The temporary file is always removed.
func extractNested(packagePath, archiveName, exeName, dest string) error {
	zr, err := zip.OpenReader(packagePath)
	if err != nil {
		return fmt.Errorf("open %s: %w", packagePath, err)
	}
	defer zr.Close()

	nested := findEntry(&zr.Reader, archiveName)
	if nested == nil {
		return fmt.Errorf("%s in %s: %w", archiveName, packagePath, ErrEntryNotFound)
	}
	rc, err := nested.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", nested.Name, err)
	}
	tmp, err := fileutil.SpoolTemp(rc, "", "gifconv-*.zip")
	rc.Close()
	if err != nil {
		return fmt.Errorf("spool %s: %w", nested.Name, err)
	}
	defer os.Remove(tmp)

	return extractFromArchive(tmp, exeName, dest)
}
