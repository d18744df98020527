package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"gifconv/internal/config"
	"gifconv/internal/deps"
	"gifconv/internal/logging"
)

// Source values describe how the executable was obtained.
const (
	SourceConfigured = "configured"
	SourceExisting   = "existing"
	SourceResource   = "resource"
	SourcePackage    = "package"
)

const lockRetryDelay = 100 * time.Millisecond

// Options controls where the provisioner looks for and places the executable.
type Options struct {
	// Binary, when set, is used as-is and disables extraction.
	Binary string
	// ExecutableName is the entry name inside the archives and the file name
	// of the extracted executable.
	ExecutableName  string
	InstallDir      string
	ResourceDir     string
	ResourceArchive string
	PackagePath     string
}

// OptionsFromConfig maps configuration values onto provisioning options.
func OptionsFromConfig(cfg *config.Config) Options {
	if cfg == nil {
		return Options{}
	}
	return Options{
		Binary:          cfg.Transcoder.Binary,
		ExecutableName:  cfg.ExecutableName(),
		InstallDir:      cfg.Paths.InstallDir,
		ResourceDir:     cfg.Paths.ResourceDir,
		ResourceArchive: cfg.Transcoder.ResourceArchive,
		PackagePath:     cfg.Paths.PackagePath,
	}
}

// Provisioner resolves the transcoder executable at most once.
type Provisioner struct {
	opts   Options
	logger *slog.Logger

	once   sync.Once
	ready  atomic.Bool
	path   string
	source string
	err    error
}

// New constructs a Provisioner. A nil logger disables logging.
func New(opts Options, logger *slog.Logger) *Provisioner {
	if strings.TrimSpace(opts.ExecutableName) == "" {
		opts.ExecutableName = "ffmpeg"
	}
	if strings.TrimSpace(opts.ResourceArchive) == "" {
		opts.ResourceArchive = "ffmpeg.zip"
	}
	if opts.ResourceDir == "" {
		opts.ResourceDir = opts.InstallDir
	}
	return &Provisioner{
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "provision"),
	}
}

// NewFromConfig constructs a Provisioner from configuration.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) *Provisioner {
	return New(OptionsFromConfig(cfg), logger)
}

// Executable returns the absolute path of a usable transcoder, extracting it
// on first use. The outcome of the first call is cached, errors included.
func (p *Provisioner) Executable(ctx context.Context) (string, error) {
	p.once.Do(func() {
		defer p.ready.Store(true)
		p.path, p.source, p.err = p.resolve(ctx)
		if p.err != nil {
			p.path = ""
			logging.ErrorWithContext(p.logger, "transcoder provisioning failed", "provision_failed",
				logging.Error(p.err),
				logging.String(logging.FieldErrorHint, "place ffmpeg.zip next to gifconv or set transcoder.binary"),
			)
			return
		}
		p.logger.Info("transcoder ready",
			logging.String("path", p.path),
			logging.String("source", p.source),
		)
	})
	return p.path, p.err
}

// Source reports how the executable was obtained. It is empty until
// Executable has succeeded.
func (p *Provisioner) Source() string {
	if !p.ready.Load() || p.err != nil {
		return ""
	}
	return p.source
}

// Destination returns where the resource archive is extracted to.
func (p *Provisioner) Destination() string {
	return filepath.Join(p.opts.InstallDir, p.opts.ExecutableName)
}

// packageDestination returns where the nested package archive is extracted to.
func (p *Provisioner) packageDestination() string {
	return filepath.Join(filepath.Dir(p.opts.PackagePath), p.opts.ExecutableName)
}

func (p *Provisioner) resolve(ctx context.Context) (string, string, error) {
	if binary := strings.TrimSpace(p.opts.Binary); binary != "" {
		abs, err := filepath.Abs(binary)
		if err != nil {
			return "", "", &Error{Err: fmt.Errorf("configured binary: %w", err)}
		}
		if err := deps.Executable(abs); err != nil {
			return "", "", &Error{Err: fmt.Errorf("configured binary: %w", err)}
		}
		return abs, SourceConfigured, nil
	}

	if path, ok := p.existing(); ok {
		return path, SourceExisting, nil
	}

	if strings.TrimSpace(p.opts.InstallDir) == "" {
		return "", "", &Error{Err: errors.New("install directory not configured")}
	}

	unlock, err := p.lock(ctx)
	if err != nil {
		return "", "", &Error{Err: err}
	}
	defer unlock()

	// Another process may have finished extraction while we waited.
	if path, ok := p.existing(); ok {
		return path, SourceExisting, nil
	}

	dest := p.Destination()
	archive := filepath.Join(p.opts.ResourceDir, p.opts.ResourceArchive)
	resourceErr := extractFromArchive(archive, p.opts.ExecutableName, dest)
	if resourceErr == nil {
		return dest, SourceResource, nil
	}
	p.logger.Debug("resource archive unavailable, trying distributable package",
		logging.String("archive", archive),
		logging.Error(resourceErr),
	)

	if strings.TrimSpace(p.opts.PackagePath) == "" {
		return "", "", &Error{Resource: resourceErr, Package: errors.New("package path not configured")}
	}
	dest = p.packageDestination()
	packageErr := extractNested(p.opts.PackagePath, p.opts.ResourceArchive, p.opts.ExecutableName, dest)
	if packageErr == nil {
		return dest, SourcePackage, nil
	}
	return "", "", &Error{Resource: resourceErr, Package: packageErr}
}

// existing returns an already extracted executable, checking the install
// directory before the package directory.
func (p *Provisioner) existing() (string, bool) {
	candidates := []string{}
	if p.opts.InstallDir != "" {
		candidates = append(candidates, p.Destination())
	}
	if p.opts.PackagePath != "" {
		candidates = append(candidates, p.packageDestination())
	}
	for _, candidate := range candidates {
		if err := deps.Executable(candidate); err == nil {
			return candidate, true
		}
	}
	return "", false
}

func (p *Provisioner) lock(ctx context.Context) (func(), error) {
	if err := os.MkdirAll(p.opts.InstallDir, 0o755); err != nil {
		return nil, fmt.Errorf("create install directory: %w", err)
	}
	lockPath := filepath.Join(p.opts.InstallDir, "."+p.opts.ExecutableName+".lock")
	lock := flock.New(lockPath)
	ok, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("acquire provisioning lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("acquire provisioning lock: %s is held by another process", lockPath)
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			logging.WarnWithContext(p.logger, "failed to release provisioning lock", "lock_release_failed",
				logging.String("lock", lockPath),
				logging.Error(err),
				logging.String(logging.FieldImpact, "the next provisioning attempt may wait for the lock"),
			)
		}
	}, nil
}
