//go:build !windows

package main

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

// deviceSize returns the size of a file or block device in bytes.
func deviceSize(f *os.File) (int64, error) {
	// Seeking to the end works for regular files and Linux block devices.
	size, err := f.Seek(0, io.SeekEnd)
	if err == nil && size > 0 {
		_, err = f.Seek(0, io.SeekStart)
		return size, err
	}

	size, ioctlErr := blockDeviceSize(f.Fd())
	if ioctlErr != nil {
		if err == nil {
			err = ioctlErr
		}
		return 0, errors.Wrapf(err, "cannot determine size of %s", f.Name())
	}
	return size, nil
}
