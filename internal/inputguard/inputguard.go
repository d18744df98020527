// Package inputguard rejects input files that are missing or larger than the
// configured conversion limit before any subprocess is started.
package inputguard

import (
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ErrTooLarge reports an input above the size limit.
var ErrTooLarge = errors.New("input file exceeds size limit")

var printer = message.NewPrinter(language.English)

// SizeError describes a rejected input.
type SizeError struct {
	Path  string
	Size  int64
	Limit int64
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("%s is %s (%s), limit is %s",
		e.Path,
		humanize.IBytes(uint64(e.Size)),
		printer.Sprintf("%d bytes", e.Size),
		humanize.IBytes(uint64(e.Limit)),
	)
}

func (e *SizeError) Unwrap() error { return ErrTooLarge }

func (e *SizeError) ErrorKind() string { return "validation" }

// InputError reports an input path that cannot be converted.
type InputError struct {
	Path string
	Err  error
}

func (e *InputError) Error() string { return fmt.Sprintf("input %s: %v", e.Path, e.Err) }

func (e *InputError) Unwrap() error { return e.Err }

func (e *InputError) ErrorKind() string { return "validation" }

// Check verifies that path is a regular file no larger than limit bytes and
// returns its size. A non-positive limit disables the size check.
func Check(path string, limit int64) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, &InputError{Path: path, Err: err}
	}
	if !info.Mode().IsRegular() {
		return 0, &InputError{Path: path, Err: errors.New("not a regular file")}
	}
	if limit > 0 && info.Size() > limit {
		return info.Size(), &SizeError{Path: path, Size: info.Size(), Limit: limit}
	}
	return info.Size(), nil
}

// Describe formats a byte count for display, e.g. "8.0 MiB (8,388,608 bytes)".
func Describe(size int64) string {
	if size < 0 {
		size = 0
	}
	return fmt.Sprintf("%s (%s)", humanize.IBytes(uint64(size)), printer.Sprintf("%d bytes", size))
}
