//go:build !unix

package deps

import (
	"os"
	"runtime"
)

func accessExec(_ string, info os.FileInfo) error {
	if runtime.GOOS == "windows" || info.Mode().Perm()&0o111 != 0 {
		return nil
	}
	return os.ErrPermission
}
