package downloader

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/iconidentify/seriesgrab/internal/domain"
)

// checkDestination makes sure dir exists, is writable and, when minFree is
// set, has room for a download. Unknown free space is not an error.
func checkDestination(dir string, minFree int64) error {
	if dir == "" {
		return fmt.Errorf("%w: no downloads directory", domain.ErrNoDestination)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrNoDestination, err)
	}
	if !writable(dir) {
		return fmt.Errorf("%w: %s is not writable", domain.ErrNoDestination, dir)
	}
	if minFree > 0 {
		if free := freeDiskSpace(dir); free > 0 && free < minFree {
			return fmt.Errorf("%w: %s free, %s required", domain.ErrStorageFull,
				humanize.IBytes(uint64(free)), humanize.IBytes(uint64(minFree)))
		}
	}
	return nil
}
