//go:build !windows

package main

import (
	"os"

	"golang.org/x/sys/unix"

	"ndsfat/internal/errs"
)

// openDevice opens a block device for exclusive read-write access. On Linux
// O_EXCL fails with EBUSY while the device or one of its partitions is mounted.
func openDevice(path string) (*rawDevice, error) {
	const op = "open device"
	var fd int
	var err error
	for {
		fd, err = unix.Open(path, unix.O_RDWR|unix.O_EXCL|unix.O_CLOEXEC, 0)
		if err != unix.EINTR {
			break
		}
	}
	if err != nil {
		return nil, errs.New(op, errs.Classify(err, errs.UnknownError), &os.PathError{Op: "open", Path: path, Err: err})
	}

	f := os.NewFile(uintptr(fd), path)
	size, err := deviceSize(f)
	if err != nil {
		_ = f.Close()
		return nil, errs.New(op, errs.Classify(err, errs.InvalidDevice), err)
	}
	return &rawDevice{File: f, size: size}, nil
}
