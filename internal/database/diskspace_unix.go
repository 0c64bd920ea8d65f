//go:build unix

package database

import (
	"fmt"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// freeBytes reports the space available to unprivileged users on the
// filesystem holding path.
func freeBytes(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(filepath.Dir(path), &stat); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", filepath.Dir(path), err)
	}
	return uint64(stat.Bavail) * uint64(stat.Bsize), nil
}
