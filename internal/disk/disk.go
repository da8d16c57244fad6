//go:build unix

package disk

import (
	"errors"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// Usage describes the filesystem holding a path
type Usage struct {
	UsedPercent float64
	FreePercent float64
	FreeBytes   int64
	TotalBytes  int64
}

// GetUsage returns capacity figures for the filesystem containing path
func GetUsage(path string) (Usage, error) {
	usedPercent, freeBytes, totalBytes, err := GetDiskUsage(path)
	if err != nil {
		return Usage{}, err
	}
	return Usage{
		UsedPercent: usedPercent,
		FreePercent: 100.0 - usedPercent,
		FreeBytes:   freeBytes,
		TotalBytes:  totalBytes,
	}, nil
}

// GetDiskUsage returns the percentage of disk space used for a given path
func GetDiskUsage(path string) (usedPercent float64, freeBytes int64, totalBytes int64, err error) {
	var stat unix.Statfs_t
	if err = unix.Statfs(path, &stat); err != nil {
		return 0, 0, 0, err
	}

	totalBytes = int64(stat.Blocks) * int64(stat.Bsize)
	freeBytes = int64(stat.Bavail) * int64(stat.Bsize)
	usedBytes := totalBytes - freeBytes

	if totalBytes > 0 {
		usedPercent = (float64(usedBytes) / float64(totalBytes)) * 100.0
	}

	return usedPercent, freeBytes, totalBytes, nil
}

// GetFreePercent returns the percentage of free disk space
func GetFreePercent(path string) (float64, error) {
	usedPercent, _, _, err := GetDiskUsage(path)
	if err != nil {
		return 0, err
	}
	return 100.0 - usedPercent, nil
}

// IsNFSStale checks if a path is on a stale NFS mount by attempting a quick stat
// with timeout. Returns true if the operation times out or fails with NFS-specific errors.
func IsNFSStale(path string, timeout time.Duration) bool {
	done := make(chan error, 1)

	go func() {
		_, err := os.Stat(path)
		done <- err
	}()

	select {
	case err := <-done:
		if err == nil {
			return false
		}
		// Common NFS errors: EIO, ESTALE, ENXIO
		return os.IsTimeout(err) ||
			errors.Is(err, unix.EIO) ||
			errors.Is(err, unix.ESTALE) ||
			errors.Is(err, unix.ENXIO)
	case <-time.After(timeout):
		return true
	}
}
