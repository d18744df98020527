// Package config loads, normalizes, and validates gifconv configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// GIFCONV_FFMPEG. The Config type centralizes every knob the CLI and the
// local API need, so the transcoder provisioning paths, the state directory,
// and the conversion limits are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
