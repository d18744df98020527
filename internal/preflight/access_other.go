//go:build !unix

package preflight

import "os"

func dirAccess(dir string) error {
	f, err := os.CreateTemp(dir, ".gifconv-preflight-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}
