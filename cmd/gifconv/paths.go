package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gifconv/internal/config"
)

func expandInput(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.New("input path is required")
	}
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return "", fmt.Errorf("resolve input path: %w", err)
	}
	return expanded, nil
}

// resolveOutputPath returns where the GIF for input is written. With no
// output the GIF lands beside the input; when output is an existing
// directory, or ends with a separator, the input stem is appended. The
// result never names the input itself.
func resolveOutputPath(input, output string) (string, error) {
	resolved, err := outputPathFor(input, output)
	if err != nil {
		return "", err
	}
	if samePath(input, resolved) {
		return "", fmt.Errorf("output %s is the same as the input; pass -o to choose another path", resolved)
	}
	return resolved, nil
}

func outputPathFor(input, output string) (string, error) {
	base := filepath.Base(input)
	name := strings.TrimSuffix(base, filepath.Ext(base)) + ".gif"

	output = strings.TrimSpace(output)
	if output == "" {
		return filepath.Join(filepath.Dir(input), name), nil
	}

	trailing := strings.HasSuffix(output, "/") || strings.HasSuffix(output, string(filepath.Separator))
	expanded, err := config.ExpandPath(output)
	if err != nil {
		return "", fmt.Errorf("resolve output path: %w", err)
	}
	if trailing {
		return filepath.Join(expanded, name), nil
	}
	if info, err := os.Stat(expanded); err == nil && info.IsDir() {
		return filepath.Join(expanded, name), nil
	}
	return expanded, nil
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	if absA == absB {
		return true
	}
	infoA, errA := os.Stat(absA)
	infoB, errB := os.Stat(absB)
	return errA == nil && errB == nil && os.SameFile(infoA, infoB)
}
