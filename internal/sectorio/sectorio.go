// Package sectorio writes whole sectors to a caller-owned device handle.
//
// The Writer never opens, closes or caches the device. Its only state is one
// zeroed cluster-sized scratch buffer used to blank regions.
package sectorio

import (
	"io"
	"math"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"ndsfat/internal/errs"
	"ndsfat/internal/geometry"
)

//go:generate mockgen -destination mock_sectorio/mock_device.go ndsfat/internal/sectorio Device

// Device is the handle being formatted. *os.File satisfies it.
type Device interface {
	io.Writer
	io.Seeker
}

// Syncer is implemented by devices that can flush written data to stable storage.
type Syncer interface {
	Sync() error
}

// Writer performs complete, positioned sector writes.
type Writer struct {
	dev        Device
	sectorSize uint64
	scratch    []byte
	log        logrus.FieldLogger
}

// New returns a Writer for dev. Zero fills are issued one cluster of l at a time.
// A nil logger discards output.
func New(dev Device, l geometry.Layout, log logrus.FieldLogger) *Writer {
	if log == nil {
		log = discardLogger()
	}
	return &Writer{
		dev:        dev,
		sectorSize: uint64(l.SectorSize),
		scratch:    make([]byte, l.ClusterSize()),
		log:        log,
	}
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.Out = io.Discard
	return l
}

// WriteAt writes all of p at byte offset off. Interrupted calls are retried and
// short writes continue where they stopped. An empty p succeeds without touching
// the device.
func (w *Writer) WriteAt(off int64, p []byte) error {
	const op = "write"
	if w == nil || w.dev == nil {
		return errs.New(op, errs.InvalidDevice, errors.New("no device handle"))
	}
	if len(p) == 0 {
		return nil
	}
	if off < 0 {
		return errs.Newf(op, errs.IOError, "negative offset %d", off)
	}

	for {
		_, err := w.dev.Seek(off, io.SeekStart)
		if err == nil {
			break
		}
		if errs.Interrupted(err) {
			continue
		}
		return errs.New(op, failureCode(err), errors.Wrapf(err, "seek to %d", off))
	}

	written := 0
	for written < len(p) {
		n, err := w.dev.Write(p[written:])
		if n > 0 {
			written += n
		}
		if err != nil {
			if errs.Interrupted(err) {
				continue
			}
			return errs.New(op, failureCode(err),
				errors.Wrapf(err, "at offset %d after %d of %d bytes", off, written, len(p)))
		}
		if n <= 0 {
			return errs.New(op, errs.IOError,
				errors.Wrapf(io.ErrShortWrite, "at offset %d after %d of %d bytes", off, written, len(p)))
		}
	}
	return nil
}

// WriteSector writes p starting at the given absolute sector. len(p) must be a
// whole number of sectors.
func (w *Writer) WriteSector(sector uint64, p []byte) error {
	const op = "write sector"
	if w == nil || w.dev == nil {
		return errs.New(op, errs.InvalidDevice, errors.New("no device handle"))
	}
	if uint64(len(p))%w.sectorSize != 0 {
		return errs.Newf(op, errs.UnknownError, "%d bytes is not a multiple of the %d byte sector", len(p), w.sectorSize)
	}
	if sector > math.MaxInt64/w.sectorSize {
		return errs.Newf(op, errs.IOError, "sector %d is beyond the addressable range", sector)
	}
	return w.WriteAt(int64(sector*w.sectorSize), p)
}

// ZeroRegion blanks count sectors starting at start, one cluster per write. It
// stops at the first failed chunk; sectors already written stay written.
func (w *Writer) ZeroRegion(start, count uint64) error {
	const op = "zero region"
	if w == nil || w.dev == nil {
		return errs.New(op, errs.InvalidDevice, errors.New("no device handle"))
	}
	w.log.WithFields(logrus.Fields{"lba": start, "sectors": count}).Debug("zeroing region")

	chunk := uint64(len(w.scratch)) / w.sectorSize
	for count > 0 {
		n := chunk
		if count < n {
			n = count
		}
		if err := w.WriteSector(start, w.scratch[:n*w.sectorSize]); err != nil {
			return errs.WithOp(op, err)
		}
		start += n
		count -= n
	}
	return nil
}

// Sync flushes the device if it supports it.
func (w *Writer) Sync() error {
	const op = "sync"
	if w == nil || w.dev == nil {
		return errs.New(op, errs.InvalidDevice, errors.New("no device handle"))
	}
	s, ok := w.dev.(Syncer)
	if !ok {
		return nil
	}
	for {
		err := s.Sync()
		if err == nil {
			return nil
		}
		if errs.Interrupted(err) {
			continue
		}
		return errs.New(op, failureCode(err), err)
	}
}

// failureCode narrows an OS error to the two outcomes a write can have: the
// handle itself is unusable, or the I/O failed.
func failureCode(err error) errs.Code {
	if errs.Classify(err, errs.IOError) == errs.InvalidDevice {
		return errs.InvalidDevice
	}
	return errs.IOError
}
