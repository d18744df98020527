package transcoder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"gifconv/internal/logging"
)

const (
	videoMarker       = "Video:"
	maxProbeLineBytes = 1 << 20
)

var (
	resolutionPattern = regexp.MustCompile(`, (\d+)x(\d+),`)
	frameRatePattern  = regexp.MustCompile(`(\d+(?:\.\d+)?) fps`)
)

// Probe runs `<exe> -i path` and parses the first video stream line of its
// stderr. The exit status is ignored; success depends only on that line.
func (t *Transcoder) Probe(ctx context.Context, path string) (VideoInfo, error) {
	exe, err := t.exe.Executable(ctx)
	if err != nil {
		return VideoInfo{}, err
	}

	cmd := commandContext(ctx, exe, "-i", path)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return VideoInfo{}, &ProbeError{Path: path, Err: fmt.Errorf("stderr pipe: %w", err)}
	}
	if err := cmd.Start(); err != nil {
		return VideoInfo{}, &ProbeError{Path: path, Err: fmt.Errorf("start transcoder: %w", err)}
	}

	info, line, parseErr := parseProbeOutput(stderr)
	// Drain so the process never blocks on a full pipe, then reap it.
	_, _ = io.Copy(io.Discard, stderr)
	if waitErr := cmd.Wait(); waitErr != nil {
		t.logger.Debug("probe exited non-zero", logging.String("path", path), logging.Error(waitErr))
	}

	if parseErr != nil {
		return VideoInfo{}, &ProbeError{Path: path, Line: line, Err: parseErr}
	}
	t.logger.Debug("probed video",
		logging.String("path", path),
		logging.Int("width", info.Width),
		logging.Int("height", info.Height),
		logging.Float64("fps", info.FrameRate),
	)
	return info, nil
}

// parseProbeOutput scans r for the first line containing the video marker
// and parses it. Later lines are never consulted.
func parseProbeOutput(r io.Reader) (VideoInfo, string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxProbeLineBytes)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, videoMarker) {
			continue
		}
		trimmed := strings.TrimSpace(line)
		info, err := parseVideoLine(trimmed)
		return info, trimmed, err
	}
	if err := scanner.Err(); err != nil {
		return VideoInfo{}, "", fmt.Errorf("read transcoder output: %w", err)
	}
	return VideoInfo{}, "", ErrNoVideoInfo
}

func parseVideoLine(line string) (VideoInfo, error) {
	res := resolutionPattern.FindStringSubmatch(line)
	if res == nil {
		return VideoInfo{}, fmt.Errorf("%w: resolution not found", ErrNoVideoInfo)
	}
	fps := frameRatePattern.FindStringSubmatch(line)
	if fps == nil {
		return VideoInfo{}, fmt.Errorf("%w: frame rate not found", ErrNoVideoInfo)
	}

	width, err := strconv.Atoi(res[1])
	if err != nil {
		return VideoInfo{}, fmt.Errorf("%w: width %q: %v", ErrNoVideoInfo, res[1], err)
	}
	height, err := strconv.Atoi(res[2])
	if err != nil {
		return VideoInfo{}, fmt.Errorf("%w: height %q: %v", ErrNoVideoInfo, res[2], err)
	}
	rate, err := strconv.ParseFloat(fps[1], 64)
	if err != nil {
		return VideoInfo{}, fmt.Errorf("%w: frame rate %q: %v", ErrNoVideoInfo, fps[1], err)
	}
	if width <= 0 || height <= 0 || rate <= 0 {
		return VideoInfo{}, fmt.Errorf("%w: non-positive value %dx%d @ %s fps", ErrNoVideoInfo, width, height, fps[1])
	}
	return VideoInfo{Width: width, Height: height, FrameRate: rate}, nil
}
