//go:build windows

package enumerator

import (
	"os"
	"syscall"
	"time"
)

// inodeOf has no equivalent on Windows (no stable inode number); FileIndex's
// (inode, size) fallback match simply never fires there and path-based
// matching is primary (spec.md §4.1).
func inodeOf(info os.FileInfo) uint64 {
	return 0
}

// creationTime reads the Windows file creation timestamp directly, which
// (unlike Unix) Go's syscall layer exposes without ambiguity.
func creationTime(info os.FileInfo) time.Time {
	if stat, ok := info.Sys().(*syscall.Win32FileAttributeData); ok {
		return time.Unix(0, stat.CreationTime.Nanoseconds())
	}
	return info.ModTime()
}
