//go:build unix

package deps

import (
	"os"

	"golang.org/x/sys/unix"
)

func accessExec(path string, _ os.FileInfo) error {
	return unix.Access(path, unix.X_OK)
}
