//go:build !windows

package enumerator

import (
	"os"
	"syscall"
	"time"
)

// inodeOf extracts the inode number from the platform-specific stat_t, used
// by FileIndex.upsert_file's (inode, size) fallback match (spec.md §4.1).
// Grounded on the teacher's diskspace_unix.go for the build-tag split
// between a syscall.Stat_t-based Unix path and a Windows equivalent.
func inodeOf(info os.FileInfo) uint64 {
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		return uint64(stat.Ino)
	}
	return 0
}

// creationTime approximates a filesystem ctime. Go's os.FileInfo has no
// portable creation time across Unix variants (the Stat_t field holding it
// is named differently on Linux vs. Darwin), so this uses ModTime as the
// practical cross-platform proxy — the same approximation the teacher's
// planning pass makes (files.go's evaluateFileForPlanning uses ModTime
// throughout).
func creationTime(info os.FileInfo) time.Time {
	return info.ModTime()
}
