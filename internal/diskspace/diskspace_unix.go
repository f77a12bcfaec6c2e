//go:build !windows

package diskspace

import "syscall"

// FreeBytes returns available disk space for the given path (spec.md §4.8
// preflight: the atomic EXIF write needs headroom for a full temp copy of
// the keeper on its own volume). Grounded directly on the teacher's
// getFreeSpace (diskspace_unix.go).
func FreeBytes(path string) (uint64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}
