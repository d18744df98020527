// Package transcoder drives the external ffmpeg executable.
//
// Probe runs `ffmpeg -i <path>` and scrapes width, height and frame rate from
// the first "Video:" line ffmpeg writes to stderr. The two patterns used are
// tied to ffmpeg's human-readable output and may break across versions or
// locales. Probe ignores the exit status: ffmpeg exits non-zero when no
// output file is given.
//
// Convert encodes an input file to an animated GIF with optional resolution
// and frame rate overrides. Argument construction uses ffmpeg-go; execution
// goes through a package-level command factory so tests can substitute a
// helper process.
//
// Both operations obtain the executable from an ExecutableProvider, usually
// a *provision.Provisioner. Provisioning errors are returned unchanged.
package transcoder
