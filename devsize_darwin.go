package main

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	dkiocGetBlockSize  = 0x40046418 // _IOR('d', 24, uint32)
	dkiocGetBlockCount = 0x40086419 // _IOR('d', 25, uint64)
)

func blockDeviceSize(fd uintptr) (int64, error) {
	var blockSize uint32
	var blockCount uint64

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, dkiocGetBlockSize, uintptr(unsafe.Pointer(&blockSize))); errno != 0 {
		return 0, errno
	}
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, dkiocGetBlockCount, uintptr(unsafe.Pointer(&blockCount))); errno != 0 {
		return 0, errno
	}
	return int64(blockSize) * int64(blockCount), nil
}
