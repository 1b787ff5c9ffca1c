//go:build windows

package main

import (
	"fmt"
	"os"
	"strings"
	"unsafe"

	"golang.org/x/sys/windows"

	"ndsfat/internal/errs"
)

const (
	fsctlLockVolume      = 0x90018
	fsctlDismountVolume  = 0x90020
	fsctlUnlockVolume    = 0x9001c
	ioctlDiskGetLengthIn = 0x7405c
	fileFlagWriteThrough = 0x80000000
)

// openDevice locks and dismounts the volume behind a \\.\X: path, then opens the
// device for exclusive raw access with write-through. The volume stays locked
// until the returned device is closed.
func openDevice(path string) (*rawDevice, error) {
	const op = "open device"

	vol, err := lockVolume(path)
	if err != nil {
		return nil, errs.New(op, errs.Classify(err, errs.DeviceBusy), err)
	}

	h, err := windows.CreateFile(
		windows.StringToUTF16Ptr(path),
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		0, // exclusive
		nil,
		windows.OPEN_EXISTING,
		fileFlagWriteThrough,
		0,
	)
	if err != nil {
		unlockVolume(vol)
		return nil, errs.New(op, errs.Classify(err, errs.UnknownError),
			fmt.Errorf("cannot open device %s: %w (run as administrator and close programs using the drive)", path, err))
	}

	var length int64
	var returned uint32
	err = windows.DeviceIoControl(h, ioctlDiskGetLengthIn, nil, 0,
		(*byte)(unsafe.Pointer(&length)), uint32(unsafe.Sizeof(length)), &returned, nil)
	if err != nil {
		windows.CloseHandle(h)
		unlockVolume(vol)
		return nil, errs.New(op, errs.InvalidDevice, fmt.Errorf("cannot determine size of %s: %w", path, err))
	}

	f := os.NewFile(uintptr(h), path)
	return &rawDevice{File: f, size: length, release: func() { unlockVolume(vol) }}, nil
}

// lockVolume only applies to drive letter paths; physical drive paths return a
// zero handle.
func lockVolume(devicePath string) (windows.Handle, error) {
	if len(devicePath) < 6 || !strings.HasPrefix(devicePath, `\\.\`) {
		return 0, nil
	}
	letter := strings.ToUpper(devicePath[4:5])
	if letter < "A" || letter > "Z" {
		return 0, nil
	}
	volumePath := `\\.\` + letter + `:`

	h, err := windows.CreateFile(
		windows.StringToUTF16Ptr(volumePath),
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		0,
		nil,
		windows.OPEN_EXISTING,
		0,
		0,
	)
	if err != nil {
		return 0, fmt.Errorf("cannot open volume %s: %w", volumePath, err)
	}

	var returned uint32
	if err := windows.DeviceIoControl(h, fsctlLockVolume, nil, 0, nil, 0, &returned, nil); err != nil {
		windows.CloseHandle(h)
		if err == windows.ERROR_NOT_SUPPORTED {
			return 0, nil
		}
		return 0, fmt.Errorf("cannot lock volume %s (close all programs accessing it): %w", volumePath, err)
	}
	if err := windows.DeviceIoControl(h, fsctlDismountVolume, nil, 0, nil, 0, &returned, nil); err != nil {
		_ = windows.DeviceIoControl(h, fsctlUnlockVolume, nil, 0, nil, 0, &returned, nil)
		windows.CloseHandle(h)
		if err != windows.ERROR_NOT_SUPPORTED && err != windows.ERROR_NOT_LOCKED {
			return 0, fmt.Errorf("cannot dismount volume %s: %w", volumePath, err)
		}
		return 0, nil
	}
	return h, nil
}

func unlockVolume(h windows.Handle) {
	if h == 0 {
		return
	}
	var returned uint32
	_ = windows.DeviceIoControl(h, fsctlUnlockVolume, nil, 0, nil, 0, &returned, nil)
	windows.CloseHandle(h)
}
