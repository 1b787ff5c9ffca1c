//go:build !windows

package sectorio

import (
	"bytes"
	"errors"
	"io"
	"os"
	"syscall"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"ndsfat/internal/errs"
	"ndsfat/internal/geometry"
	"ndsfat/internal/sectorio/mock_sectorio"
)

func newImage(sectors int, fill byte) ([]byte, Device) {
	b := bytes.Repeat([]byte{fill}, sectors*512)
	return b, bytesextra.NewReadWriteSeeker(b)
}

func TestWriteAtPlacesBytes(t *testing.T) {
	img, dev := newImage(4, 0)
	w := New(dev, geometry.Default(), nil)

	require.NoError(t, w.WriteAt(700, []byte("hello")))
	assert.Equal(t, []byte("hello"), img[700:705])
	assert.Equal(t, make([]byte, 700), img[:700])
}

func TestWriteAtEmptyIsNoop(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// No expectations: any call on the device fails the test.
	dev := mock_sectorio.NewMockDevice(ctrl)
	w := New(dev, geometry.Default(), nil)

	assert.NoError(t, w.WriteAt(512, nil))
	assert.NoError(t, w.WriteAt(512, []byte{}))
	assert.NoError(t, w.WriteSector(3, nil))
}

func TestNilDevice(t *testing.T) {
	w := New(nil, geometry.Default(), nil)
	assert.ErrorIs(t, w.WriteAt(0, []byte{1}), errs.ErrInvalidDevice)
	assert.ErrorIs(t, w.WriteSector(0, make([]byte, 512)), errs.ErrInvalidDevice)
	assert.ErrorIs(t, w.ZeroRegion(0, 1), errs.ErrInvalidDevice)
	assert.ErrorIs(t, w.Sync(), errs.ErrInvalidDevice)

	var nilWriter *Writer
	assert.ErrorIs(t, nilWriter.WriteAt(0, []byte{1}), errs.ErrInvalidDevice)
}

func TestNilFileHandle(t *testing.T) {
	w := New((*os.File)(nil), geometry.Default(), nil)
	err := w.WriteSector(0, make([]byte, 512))
	assert.ErrorIs(t, err, errs.ErrInvalidDevice)
	assert.ErrorIs(t, w.ZeroRegion(0, 1), errs.ErrInvalidDevice)
	assert.ErrorIs(t, w.Sync(), errs.ErrInvalidDevice)
}

func TestWriteAtRetriesAndShortWrites(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 512)

	tests := []struct {
		name    string
		results []struct {
			n   int
			err error
		}
		wantCode errs.Code
		wantGot  int
	}{
		{
			name: "interrupted then complete",
			results: []struct {
				n   int
				err error
			}{{0, syscall.EINTR}, {512, nil}},
			wantCode: errs.Success,
			wantGot:  512,
		},
		{
			name: "short writes",
			results: []struct {
				n   int
				err error
			}{{100, nil}, {12, nil}, {400, nil}},
			wantCode: errs.Success,
			wantGot:  512,
		},
		{
			name: "partial then interrupted",
			results: []struct {
				n   int
				err error
			}{{200, syscall.EINTR}, {312, nil}},
			wantCode: errs.Success,
			wantGot:  512,
		},
		{
			name: "hard failure",
			results: []struct {
				n   int
				err error
			}{{0, syscall.EIO}},
			wantCode: errs.IOError,
		},
		{
			name: "no progress",
			results: []struct {
				n   int
				err error
			}{{0, nil}},
			wantCode: errs.IOError,
		},
		{
			name: "bad handle",
			results: []struct {
				n   int
				err error
			}{{0, &os.PathError{Op: "write", Path: "img", Err: syscall.EBADF}}},
			wantCode: errs.InvalidDevice,
		},
		{
			name: "closed file",
			results: []struct {
				n   int
				err error
			}{{0, os.ErrClosed}},
			wantCode: errs.InvalidDevice,
		},
		{
			name: "nil *os.File",
			results: []struct {
				n   int
				err error
			}{{0, os.ErrInvalid}},
			wantCode: errs.InvalidDevice,
		},
		{
			name: "read-only is still an I/O failure",
			results: []struct {
				n   int
				err error
			}{{0, syscall.EROFS}},
			wantCode: errs.IOError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			dev := mock_sectorio.NewMockDevice(ctrl)
			dev.EXPECT().Seek(int64(1024), io.SeekStart).Return(int64(1024), nil)

			var got []byte
			var calls []*gomock.Call
			for _, r := range tt.results {
				r := r
				calls = append(calls, dev.EXPECT().Write(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
					got = append(got, p[:r.n]...)
					return r.n, r.err
				}))
			}
			gomock.InOrder(calls...)

			err := New(dev, geometry.Default(), nil).WriteSector(2, payload)
			assert.Equal(t, tt.wantCode, errs.CodeOf(err), "err=%v", err)
			if tt.wantCode == errs.Success {
				assert.Equal(t, payload, got)
			}
		})
	}
}

func TestWriteAtSeekFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	dev := mock_sectorio.NewMockDevice(ctrl)
	gomock.InOrder(
		dev.EXPECT().Seek(int64(0), io.SeekStart).Return(int64(0), syscall.EINTR),
		dev.EXPECT().Seek(int64(0), io.SeekStart).Return(int64(0), syscall.ESPIPE),
	)

	err := New(dev, geometry.Default(), nil).WriteAt(0, []byte{1})
	assert.ErrorIs(t, err, errs.ErrIO)
}

func TestWriteSectorRejectsPartialSector(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	dev := mock_sectorio.NewMockDevice(ctrl)
	err := New(dev, geometry.Default(), nil).WriteSector(0, make([]byte, 511))
	require.Error(t, err)
	assert.Equal(t, errs.UnknownError, errs.CodeOf(err))
}

type countingDevice struct {
	Device
	writes []int
}

func (c *countingDevice) Write(p []byte) (int, error) {
	c.writes = append(c.writes, len(p))
	return c.Device.Write(p)
}

func TestZeroRegion(t *testing.T) {
	img, inner := newImage(200, 0xFF)
	dev := &countingDevice{Device: inner}
	w := New(dev, geometry.Default(), nil)

	require.NoError(t, w.ZeroRegion(10, 130))

	assert.Equal(t, []int{64 * 512, 64 * 512, 2 * 512}, dev.writes)
	assert.Equal(t, bytes.Repeat([]byte{0xFF}, 10*512), img[:10*512])
	assert.Equal(t, make([]byte, 130*512), img[10*512:140*512])
	assert.Equal(t, bytes.Repeat([]byte{0xFF}, 60*512), img[140*512:])

	// The scratch buffer must still be zero after use.
	assert.Equal(t, make([]byte, len(w.scratch)), w.scratch)
}

func TestZeroRegionEmpty(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	dev := mock_sectorio.NewMockDevice(ctrl)
	assert.NoError(t, New(dev, geometry.Default(), nil).ZeroRegion(100, 0))
}

func TestZeroRegionStopsAtFirstFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	dev := mock_sectorio.NewMockDevice(ctrl)
	gomock.InOrder(
		dev.EXPECT().Seek(int64(0), io.SeekStart).Return(int64(0), nil),
		dev.EXPECT().Write(gomock.Any()).Return(64*512, nil),
		dev.EXPECT().Seek(int64(64*512), io.SeekStart).Return(int64(64*512), nil),
		dev.EXPECT().Write(gomock.Any()).Return(0, syscall.EIO),
	)

	err := New(dev, geometry.Default(), nil).ZeroRegion(0, 192)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrIO)
	assert.ErrorIs(t, err, &errs.Error{Op: "zero region", Code: errs.IOError})
}

type syncDevice struct {
	Device
	err   error
	calls int
}

func (s *syncDevice) Sync() error {
	s.calls++
	return s.err
}

func TestSync(t *testing.T) {
	_, inner := newImage(1, 0)
	assert.NoError(t, New(inner, geometry.Default(), nil).Sync(), "devices without Sync are fine")

	ok := &syncDevice{Device: inner}
	assert.NoError(t, New(ok, geometry.Default(), nil).Sync())
	assert.Equal(t, 1, ok.calls)

	bad := &syncDevice{Device: inner, err: errors.New("flush failed")}
	assert.ErrorIs(t, New(bad, geometry.Default(), nil).Sync(), errs.ErrIO)
}
