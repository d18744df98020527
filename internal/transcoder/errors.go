package transcoder

import (
	"errors"
	"fmt"
)

var (
	// ErrNoVideoInfo reports ffmpeg output without a video stream line.
	ErrNoVideoInfo = errors.New("can not read video info")
	// ErrPartialResolution reports a request with only one of width or height.
	ErrPartialResolution = errors.New("width and height must be set together")
	// ErrInvalidParameter reports a negative dimension or frame rate.
	ErrInvalidParameter = errors.New("invalid conversion parameter")
	// ErrOutputMissing reports a successful exit that produced no file.
	ErrOutputMissing = errors.New("output file was not created")
)

// ProbeError reports that video metadata could not be read.
type ProbeError struct {
	Path string
	// Line is the matched "Video:" line, if any.
	Line string
	Err  error
}

func (e *ProbeError) Error() string {
	if e.Line != "" {
		return fmt.Sprintf("probe %s: %v (line %q)", e.Path, e.Err, e.Line)
	}
	return fmt.Sprintf("probe %s: %v", e.Path, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

func (e *ProbeError) ErrorKind() string { return "probe" }

// ConversionError reports a failed encode. Stderr holds the tail of ffmpeg's
// diagnostic output.
type ConversionError struct {
	Input    string
	Output   string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ConversionError) Error() string {
	msg := fmt.Sprintf("convert %s -> %s: %v", e.Input, e.Output, e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ConversionError) Unwrap() error { return e.Err }

func (e *ConversionError) ErrorKind() string { return "conversion" }

// ValidationError wraps a rejected request.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return "invalid request: " + e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) ErrorKind() string { return "validation" }
