package transcoder

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// VideoInfo is the geometry and frame rate recovered by Probe.
type VideoInfo struct {
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	FrameRate float64 `json:"frame_rate"`
}

// Resolution formats the dimensions as WxH.
func (v VideoInfo) Resolution() string {
	return fmt.Sprintf("%dx%d", v.Width, v.Height)
}

// Request describes one conversion. Zero Width, Height and FrameRate mean
// "keep the source value".
type Request struct {
	InputPath  string  `json:"input"`
	OutputPath string  `json:"output"`
	Width      int     `json:"width,omitempty"`
	Height     int     `json:"height,omitempty"`
	FrameRate  float64 `json:"frame_rate,omitempty"`
}

// Validate checks the parameter invariants. Paths are not inspected.
func (r Request) Validate() error {
	if r.Width < 0 || r.Height < 0 {
		return &ValidationError{Err: fmt.Errorf("%w: negative dimension %dx%d", ErrInvalidParameter, r.Width, r.Height)}
	}
	if math.IsNaN(r.FrameRate) || math.IsInf(r.FrameRate, 0) {
		return &ValidationError{Err: fmt.Errorf("%w: frame rate %s is not a finite number", ErrInvalidParameter, formatRate(r.FrameRate))}
	}
	if r.FrameRate < 0 {
		return &ValidationError{Err: fmt.Errorf("%w: negative frame rate %s", ErrInvalidParameter, formatRate(r.FrameRate))}
	}
	if (r.Width > 0) != (r.Height > 0) {
		return &ValidationError{Err: ErrPartialResolution}
	}
	return nil
}

// HasResolution reports whether both dimensions are overridden.
func (r Request) HasResolution() bool {
	return r.Width > 0 && r.Height > 0
}

// HasFrameRate reports whether the frame rate is overridden.
func (r Request) HasFrameRate() bool {
	return r.FrameRate > 0
}

// WithDefaults fills unset parameters from probed metadata. Dimensions are
// only taken as a pair.
func (r Request) WithDefaults(info VideoInfo) Request {
	if r.Width == 0 && r.Height == 0 && info.Width > 0 && info.Height > 0 {
		r.Width = info.Width
		r.Height = info.Height
	}
	if r.FrameRate == 0 && info.FrameRate > 0 {
		r.FrameRate = info.FrameRate
	}
	return r
}

// ParseResolution parses "WxH". An empty string yields zeros.
func ParseResolution(value string) (int, int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, 0, nil
	}
	w, h, ok := strings.Cut(strings.ToLower(value), "x")
	if !ok {
		return 0, 0, fmt.Errorf("%w: resolution %q is not WxH", ErrInvalidParameter, value)
	}
	width, err := strconv.Atoi(strings.TrimSpace(w))
	if err != nil || width <= 0 {
		return 0, 0, fmt.Errorf("%w: width in %q", ErrInvalidParameter, value)
	}
	height, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil || height <= 0 {
		return 0, 0, fmt.Errorf("%w: height in %q", ErrInvalidParameter, value)
	}
	return width, height, nil
}

func formatRate(rate float64) string {
	return strconv.FormatFloat(rate, 'f', -1, 64)
}
