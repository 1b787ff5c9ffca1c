package main

import (
	"golang.org/x/sys/unix"
)

func blockDeviceSize(fd uintptr) (int64, error) {
	n, err := unix.IoctlGetInt(int(fd), unix.BLKGETSIZE64)
	if err != nil {
		return 0, err
	}
	return int64(n), nil
}
