package transcoder

import (
	"context"
	"log/slog"
	"os/exec"

	"gifconv/internal/logging"
)

// commandContext is swapped in tests to run a helper process.
var commandContext = exec.CommandContext

// ExecutableProvider yields the path of the ffmpeg executable.
type ExecutableProvider interface {
	Executable(ctx context.Context) (string, error)
}

// Transcoder runs probe and convert invocations.
type Transcoder struct {
	exe    ExecutableProvider
	logger *slog.Logger
}

// New constructs a Transcoder. A nil logger disables logging.
func New(exe ExecutableProvider, logger *slog.Logger) *Transcoder {
	return &Transcoder{
		exe:    exe,
		logger: logging.NewComponentLogger(logger, "transcoder"),
	}
}
