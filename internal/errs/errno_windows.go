//go:build windows

package errs

import (
	"errors"

	"golang.org/x/sys/windows"
)

func classifyErrno(err error) (Code, bool) {
	var errno windows.Errno
	if !errors.As(err, &errno) {
		return 0, false
	}
	switch errno {
	case windows.ERROR_ACCESS_DENIED, windows.ERROR_WRITE_PROTECT:
		return AccessDenied, true
	case windows.ERROR_SHARING_VIOLATION, windows.ERROR_LOCK_VIOLATION:
		return DeviceBusy, true
	case windows.ERROR_INVALID_HANDLE, windows.ERROR_FILE_NOT_FOUND, windows.ERROR_PATH_NOT_FOUND:
		return InvalidDevice, true
	case windows.ERROR_DISK_FULL, windows.ERROR_CRC, windows.ERROR_SECTOR_NOT_FOUND:
		return IOError, true
	}
	return 0, false
}

// Windows has no interrupted system calls.
func isInterrupted(error) bool {
	return false
}
