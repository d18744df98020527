// Package provision makes sure an ffmpeg executable exists on local disk.
//
// A Provisioner resolves the transcoder once and caches the result. The
// lookup order is:
//   - an explicitly configured binary (transcoder.binary or GIFCONV_FFMPEG)
//   - a previously extracted executable at the install destination
//   - the resource archive (ffmpeg.zip) next to the application
//   - a nested ffmpeg.zip inside the distributable package, which
//     defaults to the running executable. A zip appended to the gifconv
//     binary is readable this way.
//
// First-time extraction is serialized across processes with a lock file
// beside the destination. Failure of both extraction sources yields an *Error
// that callers treat as fatal.
package provision
