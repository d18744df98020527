// Package fileutil writes files atomically and spools streams to temporary
// files.
package fileutil
