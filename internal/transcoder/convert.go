package transcoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"gifconv/internal/logging"
)

const stderrTailBytes = 4 * 1024

// BuildArgs returns the ffmpeg arguments, without the executable, for req.
// Resolution is applied only when both dimensions are set; frame rate is
// applied independently.
func BuildArgs(req Request) []string {
	kwargs := ffmpeg.KwArgs{
		"format": "gif",
		"vcodec": "gif",
		"strict": "normal",
	}
	if req.HasResolution() {
		kwargs["s"] = fmt.Sprintf("%dx%d", req.Width, req.Height)
	}
	if req.HasFrameRate() {
		kwargs["r"] = formatRate(req.FrameRate)
	}
	return ffmpeg.Input(req.InputPath).
		Output(req.OutputPath, kwargs).
		OverWriteOutput().
		GetArgs()
}

// Convert encodes req.InputPath to an animated GIF at req.OutputPath,
// overwriting any existing file, and blocks until ffmpeg exits.
func (t *Transcoder) Convert(ctx context.Context, req Request) error {
	if err := req.Validate(); err != nil {
		return err
	}
	exe, err := t.exe.Executable(ctx)
	if err != nil {
		return err
	}

	args := BuildArgs(req)
	t.logger.Info("starting conversion",
		logging.String("input", req.InputPath),
		logging.String("output", req.OutputPath),
		logging.String("command", exe+" "+strings.Join(args, " ")),
	)

	var stderr bytes.Buffer
	cmd := commandContext(ctx, exe, args...)
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		convErr := &ConversionError{
			Input:    req.InputPath,
			Output:   req.OutputPath,
			ExitCode: -1,
			Stderr:   tail(stderr.Bytes(), stderrTailBytes),
			Err:      err,
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			convErr.ExitCode = exitErr.ExitCode()
		}
		return convErr
	}

	info, err := os.Stat(req.OutputPath)
	if err != nil || info.IsDir() {
		return &ConversionError{
			Input:  req.InputPath,
			Output: req.OutputPath,
			Stderr: tail(stderr.Bytes(), stderrTailBytes),
			Err:    ErrOutputMissing,
		}
	}

	t.logger.Info("conversion finished",
		logging.String("output", req.OutputPath),
		logging.Int64("bytes", info.Size()),
		logging.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// tail returns at most limit trailing bytes of data, trimmed, starting on a
// line boundary when one is available.
func tail(data []byte, limit int) string {
	if len(data) > limit {
		data = data[len(data)-limit:]
		if idx := bytes.IndexByte(data, '\n'); idx >= 0 && idx < len(data)-1 {
			data = data[idx+1:]
		}
	}
	return strings.TrimSpace(string(data))
}
