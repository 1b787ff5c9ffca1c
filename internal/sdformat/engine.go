// Package sdformat lays a flashcart FAT32 volume onto a caller-owned device.
//
// An Engine exposes the five independent write operations (MBR, volume boot
// record, FSInfo, FAT tables, root directory) and Format, which runs them in
// canonical order. Each operation is all-or-nothing from the caller's point of
// view: it returns the first failure and never rolls back what it already wrote.
package sdformat

import (
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"ndsfat/internal/encoder"
	"ndsfat/internal/errs"
	"ndsfat/internal/geometry"
	"ndsfat/internal/sectorio"
)

// ErrInterrupted is the cause reported when a stop request halts Format between
// operations.
var ErrInterrupted = errors.New("format interrupted")

// Engine formats one device. It is not safe for concurrent use.
type Engine struct {
	geo    geometry.Geometry
	label  encoder.Label
	serial encoder.SerialSource
	dev    *sectorio.Writer

	observer Observer
	stop     func() bool
	sync     bool
	log      logrus.FieldLogger
}

// Option configures an Engine.
type Option func(*config)

type config struct {
	layout   geometry.Layout
	serial   encoder.SerialSource
	observer Observer
	stop     func() bool
	sync     bool
	log      logrus.FieldLogger
}

// WithLayout replaces the default flashcart layout.
func WithLayout(l geometry.Layout) Option {
	return func(c *config) { c.layout = l }
}

// WithSerial sets the volume serial source. The default is the wall clock.
func WithSerial(s encoder.SerialSource) Option {
	return func(c *config) { c.serial = s }
}

// WithObserver registers a callback invoked after every operation.
func WithObserver(o Observer) Option {
	return func(c *config) { c.observer = o }
}

// WithStop installs a predicate Format checks before each operation.
func WithStop(stop func() bool) Option {
	return func(c *config) { c.stop = stop }
}

// WithSync controls whether the device is flushed after each operation. It is on
// by default.
func WithSync(enabled bool) Option {
	return func(c *config) { c.sync = enabled }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *config) { c.log = l }
}

// New derives the geometry for a device of totalSectors sectors and returns an
// Engine that writes to dev. It fails with TooSmall before touching anything if
// the device cannot hold the layout.
func New(dev sectorio.Device, totalSectors uint64, label string, opts ...Option) (*Engine, error) {
	c := config{
		layout: geometry.Default(),
		serial: encoder.ClockSerial{},
		sync:   true,
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.log == nil {
		l := logrus.New()
		l.Out = io.Discard
		c.log = l
	}
	if dev == nil {
		return nil, errs.New("open engine", errs.InvalidDevice, errors.New("no device handle"))
	}

	geo, err := geometry.Derive(c.layout, totalSectors)
	if err != nil {
		return nil, err
	}

	return &Engine{
		geo:      geo,
		label:    encoder.NormalizeLabel(label),
		serial:   c.serial,
		dev:      sectorio.New(dev, c.layout, c.log),
		observer: c.observer,
		stop:     c.stop,
		sync:     c.sync,
		log:      c.log,
	}, nil
}

// Geometry returns the layout derived for this session.
func (e *Engine) Geometry() geometry.Geometry {
	return e.geo
}

// Label returns the normalized volume label.
func (e *Engine) Label() encoder.Label {
	return e.label
}

// WriteMBR writes the partition table to sector 0.
func (e *Engine) WriteMBR() error {
	return e.run(OpMBR, func() error {
		return e.writeImage(encoder.MBR(e.geo), 0)
	})
}

// WriteVolumeBootRecord writes the boot sector at the partition start and its
// backup. The backup is not attempted if the primary fails.
func (e *Engine) WriteVolumeBootRecord() error {
	return e.run(OpVolumeBootRecord, func() error {
		vbr := encoder.VBR(e.geo, e.label, e.serial.Serial())
		return e.writeImage(vbr, e.geo.BootSector(), e.geo.BackupBootSector())
	})
}

// WriteFSInfo writes the FSInfo sector and its backup.
func (e *Engine) WriteFSInfo() error {
	return e.run(OpFSInfo, func() error {
		return e.writeImage(encoder.FSInfo(e.geo), e.geo.FSInfoSector(), e.geo.BackupFSInfoSector())
	})
}

// WriteFATTables blanks each FAT copy and writes its header sector, one copy at a
// time.
func (e *Engine) WriteFATTables() error {
	return e.run(OpFATTables, func() error {
		header, err := encoder.FATHeader(e.geo).Encode()
		if err != nil {
			return errs.New("encode FAT header", errs.UnknownError, err)
		}
		for i := 0; i < int(e.geo.Layout.FATCopies); i++ {
			start := e.geo.FATCopyStart(i)
			e.log.WithFields(logrus.Fields{"copy": i + 1, "lba": start}).Debug("initializing FAT")
			if err := e.dev.ZeroRegion(start, uint64(e.geo.FATSize)); err != nil {
				return err
			}
			if err := e.dev.WriteSector(start, header); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteRootDirectory blanks the root directory cluster and writes the volume
// label entry into its first sector.
func (e *Engine) WriteRootDirectory() error {
	return e.run(OpRootDirectory, func() error {
		start := uint64(e.geo.DataStart)
		if err := e.dev.ZeroRegion(start, e.geo.RootDirSectors()); err != nil {
			return err
		}
		return e.writeImage(encoder.RootDirectory(e.label), start)
	})
}

// Format runs every operation in canonical order and stops at the first failure.
func (e *Engine) Format() error {
	steps := []struct {
		op Operation
		fn func() error
	}{
		{OpMBR, e.WriteMBR},
		{OpVolumeBootRecord, e.WriteVolumeBootRecord},
		{OpFSInfo, e.WriteFSInfo},
		{OpFATTables, e.WriteFATTables},
		{OpRootDirectory, e.WriteRootDirectory},
	}
	for _, s := range steps {
		if e.stop != nil && e.stop() {
			e.log.WithField("next", s.op.String()).Info("format interrupted")
			return errs.New(s.op.String(), errs.UnknownError, ErrInterrupted)
		}
		if err := s.fn(); err != nil {
			return err
		}
	}
	return nil
}

// writeImage encodes s once and writes it to each sector in turn, stopping at the
// first failure.
func (e *Engine) writeImage(s encoder.Structure, sectors ...uint64) error {
	img, err := s.Encode()
	if err != nil {
		return errs.New("encode "+s.Name, errs.UnknownError, err)
	}
	for _, sector := range sectors {
		if err := e.dev.WriteSector(sector, img); err != nil {
			return err
		}
	}
	return nil
}

// run wraps one operation with logging, the optional flush and the observer.
func (e *Engine) run(op Operation, fn func() error) error {
	log := e.log.WithField("op", op.String())
	log.Debug("start")
	began := time.Now()

	err := fn()
	if err == nil && e.sync {
		err = e.dev.Sync()
	}
	if err != nil {
		err = errs.WithOp(op.String(), err)
		log.WithError(err).Debug("failed")
	} else {
		log.WithField("elapsed", time.Since(began)).Debug("done")
	}

	if e.observer != nil {
		e.observer.OperationDone(Event{
			Op:      op,
			Extents: op.Extents(e.geo),
			Err:     err,
			Elapsed: time.Since(began),
		})
	}
	return err
}
