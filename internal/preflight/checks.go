package preflight

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"gifconv/internal/config"
	"gifconv/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, dir string) Result {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", dir)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", dir, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", dir)}
	}
	if err := dirAccess(dir); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", dir, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", dir)}
}

// CheckInstallDir verifies that the transcoder can be extracted into dir,
// walking up to the nearest existing ancestor when dir does not exist yet.
func CheckInstallDir(dir string) Result {
	const name = "Install directory"
	if strings.TrimSpace(dir) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	candidate := dir
	for {
		if _, err := os.Stat(candidate); err == nil {
			break
		}
		parent := filepath.Dir(candidate)
		if parent == candidate {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: no existing ancestor)", dir)}
		}
		candidate = parent
	}
	result := CheckDirectoryAccess(name, candidate)
	if result.Passed && candidate != dir {
		result.Detail = fmt.Sprintf("%s (will be created under %s)", dir, candidate)
	}
	return result
}

// CheckResourceArchive reports whether the bundled transcoder archive exists
// and contains the executable entry.
func CheckResourceArchive(cfg *config.Config) Result {
	const name = "Resource archive"
	archive := filepath.Join(cfg.Paths.ResourceDir, cfg.Transcoder.ResourceArchive)
	zr, err := zip.OpenReader(archive)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (missing; the distributable package will be searched)", archive)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", archive, err)}
	}
	defer zr.Close()

	exeName := cfg.ExecutableName()
	for _, file := range zr.File {
		if path.Base(file.Name) == exeName {
			return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (contains %s)", archive, exeName)}
		}
	}
	return Result{Name: name, Detail: fmt.Sprintf("%s (error: no %s entry)", archive, exeName)}
}

// CheckSystemDeps evaluates the transcoder locations for the given config:
// the configured or extracted executable, and any ffmpeg on PATH.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	command := cfg.Transcoder.Binary
	description := "Configured transcoder"
	if command == "" {
		command = filepath.Join(cfg.Paths.InstallDir, cfg.ExecutableName())
		description = "Extracted transcoder (created on first use)"
	}
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     command,
			Description: description,
		},
		{
			Name:        "System FFmpeg",
			Command:     "ffmpeg",
			Description: "Not used directly; set transcoder.binary to prefer it",
			Optional:    true,
		},
	}
	return deps.CheckBinaries(requirements)
}

// CheckAPIServer reports whether a `gifconv serve` instance answers on bind.
func CheckAPIServer(ctx context.Context, bind string) Result {
	const name = "API server"

	bind = strings.TrimSpace(bind)
	if bind == "" {
		return Result{Name: name, Detail: "missing bind address"}
	}
	host, port, err := net.SplitHostPort(bind)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("invalid bind %q (%v)", bind, err)}
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}

	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	url := "http://" + net.JoinHostPort(host, port) + "/api/status"
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, url, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("status check failed (%v)", err)}
	}
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: "Not running"}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{Name: name, Detail: fmt.Sprintf("status check failed (%d)", resp.StatusCode)}
	}
	var payload struct {
		State string `json:"state"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil || payload.State == "" {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("Running on %s", bind)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("Running on %s (%s)", bind, payload.State)}
}
