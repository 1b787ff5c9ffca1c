//go:build !windows

package errs

import (
	"errors"

	"golang.org/x/sys/unix"
)

func classifyErrno(err error) (Code, bool) {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return 0, false
	}
	switch errno {
	case unix.EACCES, unix.EPERM, unix.EROFS:
		return AccessDenied, true
	case unix.EBUSY, unix.ETXTBSY:
		return DeviceBusy, true
	case unix.EBADF, unix.ENODEV, unix.ENXIO, unix.ENOENT, unix.ENOTBLK:
		return InvalidDevice, true
	case unix.EIO, unix.ENOSPC, unix.EFBIG, unix.ESPIPE, unix.EINVAL:
		return IOError, true
	}
	return 0, false
}

func isInterrupted(err error) bool {
	return errors.Is(err, unix.EINTR)
}
