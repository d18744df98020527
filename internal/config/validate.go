package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTranscoder(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.InstallDir) == "" {
		return errors.New("paths.install_dir must be set")
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir must be set")
	}
	return nil
}

func (c *Config) validateTranscoder() error {
	for key, value := range map[string]string{
		"transcoder.binary_name":      c.Transcoder.BinaryName,
		"transcoder.resource_archive": c.Transcoder.ResourceArchive,
	} {
		if filepath.Base(value) != value {
			return fmt.Errorf("%s must be a bare file name, got %q", key, value)
		}
	}
	if !strings.EqualFold(filepath.Ext(c.Transcoder.ResourceArchive), ".zip") {
		return errors.New("transcoder.resource_archive must be a .zip archive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error (got %q)", c.Logging.Level)
	}
}
