package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeTranscoder(); err != nil {
		return err
	}
	c.normalizeConversion()
	c.normalizeAPI()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}

	needsExecutable := strings.TrimSpace(c.Paths.InstallDir) == "" || strings.TrimSpace(c.Paths.PackagePath) == ""
	var exe string
	if needsExecutable {
		if exe, err = runningExecutable(); err != nil {
			return err
		}
	}

	if strings.TrimSpace(c.Paths.InstallDir) == "" {
		c.Paths.InstallDir = filepath.Dir(exe)
	}
	if c.Paths.InstallDir, err = expandPath(c.Paths.InstallDir); err != nil {
		return fmt.Errorf("paths.install_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ResourceDir) == "" {
		c.Paths.ResourceDir = c.Paths.InstallDir
	}
	if c.Paths.ResourceDir, err = expandPath(c.Paths.ResourceDir); err != nil {
		return fmt.Errorf("paths.resource_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.PackagePath) == "" {
		c.Paths.PackagePath = exe
	}
	if c.Paths.PackagePath, err = expandPath(c.Paths.PackagePath); err != nil {
		return fmt.Errorf("paths.package_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeTranscoder() error {
	c.Transcoder.Binary = strings.TrimSpace(c.Transcoder.Binary)
	if c.Transcoder.Binary == "" {
		if value, ok := os.LookupEnv("GIFCONV_FFMPEG"); ok {
			c.Transcoder.Binary = strings.TrimSpace(value)
		}
	}
	if c.Transcoder.Binary != "" {
		expanded, err := expandPath(c.Transcoder.Binary)
		if err != nil {
			return fmt.Errorf("transcoder.binary: %w", err)
		}
		c.Transcoder.Binary = expanded
	}
	c.Transcoder.BinaryName = strings.TrimSpace(c.Transcoder.BinaryName)
	if c.Transcoder.BinaryName == "" {
		c.Transcoder.BinaryName = defaultBinaryName
	}
	c.Transcoder.ResourceArchive = strings.TrimSpace(c.Transcoder.ResourceArchive)
	if c.Transcoder.ResourceArchive == "" {
		c.Transcoder.ResourceArchive = defaultResourceArchive
	}
	return nil
}

func (c *Config) normalizeConversion() {
	if c.Conversion.MaxInputMiB < 0 {
		c.Conversion.MaxInputMiB = 0
	}
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
