//go:build unix

package preflight

import "golang.org/x/sys/unix"

func dirAccess(dir string) error {
	return unix.Access(dir, unix.R_OK|unix.W_OK|unix.X_OK)
}
