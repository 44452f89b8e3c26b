//go:build !windows

package downloader

import (
	"os"

	"golang.org/x/sys/unix"
)

func freeDiskSpace(path string) int64 {
	stat, err := os.Stat(path)
	if err != nil || !stat.IsDir() {
		return 0
	}

	var fs unix.Statfs_t
	if err := unix.Statfs(path, &fs); err != nil {
		return 0
	}

	return int64(fs.Bavail) * int64(fs.Bsize)
}

func writable(path string) bool {
	return unix.Access(path, unix.W_OK) == nil
}
