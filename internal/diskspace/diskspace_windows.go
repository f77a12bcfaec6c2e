//go:build windows

package diskspace

import "golang.org/x/sys/windows"

// FreeBytes returns available disk space for the given path. Grounded
// directly on the teacher's getFreeSpace (diskspace_windows.go).
func FreeBytes(path string) (uint64, error) {
	var freeBytesAvailable, totalNumberOfBytes, totalNumberOfFreeBytes uint64

	pathPtr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, err
	}

	if err := windows.GetDiskFreeSpaceEx(pathPtr, &freeBytesAvailable, &totalNumberOfBytes, &totalNumberOfFreeBytes); err != nil {
		return 0, err
	}

	return freeBytesAvailable, nil
}
