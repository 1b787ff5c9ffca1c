//go:build !windows

package errs

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := New("write MBR", IOError, syscall.EIO)

	assert.ErrorIs(t, err, ErrIO)
	assert.NotErrorIs(t, err, ErrTooSmall)
	assert.ErrorIs(t, err, &Error{Op: "write MBR", Code: IOError})
	assert.NotErrorIs(t, err, &Error{Op: "write FSInfo", Code: IOError})
	assert.ErrorIs(t, err, syscall.EIO, "cause must stay reachable through Unwrap")
}

func TestErrorMessage(t *testing.T) {
	err := Newf("derive geometry", TooSmall, "%d sectors", 10)
	assert.Equal(t, "derive geometry: device too small: 10 sectors", err.Error())

	assert.Equal(t, "invalid device", (&Error{Code: InvalidDevice}).Error())
	assert.Equal(t, "code(42)", Code(42).String())
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"nil", nil, Success},
		{"plain", errors.New("boom"), UnknownError},
		{"direct", New("x", DeviceBusy, nil), DeviceBusy},
		{"wrapped", fmt.Errorf("outer: %w", New("x", AccessDenied, nil)), AccessDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestWithOp(t *testing.T) {
	assert.NoError(t, WithOp("x", nil))

	err := WithOp("write FAT tables", New("zero region", IOError, syscall.EIO))
	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "write FAT tables", e.Op)
	assert.Equal(t, IOError, e.Code)

	err = WithOp("encode", errors.New("bad field"))
	assert.Equal(t, UnknownError, CodeOf(err))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"nil", nil, Success},
		{"closed", os.ErrClosed, InvalidDevice},
		{"nil file", &os.PathError{Op: "seek", Path: "", Err: os.ErrInvalid}, InvalidDevice},
		{"einval", syscall.EINVAL, IOError},
		{"path error", &os.PathError{Op: "write", Path: "/dev/x", Err: syscall.EBADF}, InvalidDevice},
		{"eacces", syscall.EACCES, AccessDenied},
		{"erofs", syscall.EROFS, AccessDenied},
		{"ebusy", syscall.EBUSY, DeviceBusy},
		{"eio", syscall.EIO, IOError},
		{"enospc", syscall.ENOSPC, IOError},
		{"unmapped", errors.New("strange"), UnknownError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err, UnknownError))
		})
	}
}

func TestInterrupted(t *testing.T) {
	assert.False(t, Interrupted(nil))
	assert.False(t, Interrupted(syscall.EIO))
	assert.True(t, Interrupted(syscall.EINTR))
	assert.True(t, Interrupted(&os.PathError{Op: "write", Err: syscall.EINTR}))
}
