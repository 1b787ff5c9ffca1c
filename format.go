package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"ndsfat/internal/encoder"
	"ndsfat/internal/errs"
	"ndsfat/internal/geometry"
	"ndsfat/internal/sdformat"
	"ndsfat/retrodfrg"
)

const defaultLabel = "NDS_FAT32"

// newUI opens the fullscreen view. Tests replace it with a simulation screen.
var newUI = func() (*retrodfrg.UI, error) { return retrodfrg.NewUI(nil) }

// tuiLinger keeps the final screen up before the terminal is restored.
var tuiLinger = 2 * time.Second

type formatOptions struct {
	out, device, sizeStr string
	label, serial        string
	profilePath          string
	force, randomSerial  bool
	sync, tui, verbose   bool
}

func newFormatCmd() *cobra.Command {
	o := &formatOptions{}
	cmd := &cobra.Command{
		Use:   "format",
		Short: "Format an image file or SD card as flashcart FAT32",
		Long: "Write an MBR, a FAT32 volume boot record with backup, FSInfo, both FATs and an empty\n" +
			"root directory holding the volume label. The data area is left untouched.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := o.resolve(cmd); err != nil {
				return err
			}
			return runFormat(cmd.OutOrStdout(), cmd.ErrOrStderr(), o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.out, "out", "", "output image path")
	f.StringVar(&o.device, "device", "", "block device path (e.g. /dev/sdb, /dev/disk4, \\\\.\\PhysicalDrive2)")
	f.StringVar(&o.sizeStr, "size", "", "image size (e.g. 4g, 3980m, 7774208s); for --device, format only this much")
	f.BoolVar(&o.force, "force", false, "required with --device")
	f.StringVar(&o.label, "label", defaultLabel, "volume label (11 chars max)")
	f.StringVar(&o.serial, "serial", "", "volume serial, XXXX-XXXX or hex (default: derived from the clock)")
	f.BoolVar(&o.randomSerial, "random-serial", false, "use a random volume serial")
	f.StringVar(&o.profilePath, "profile", "", "YAML file with label, serial, random_serial, sync and tui defaults")
	f.BoolVar(&o.sync, "sync", true, "flush the device after each step")
	f.BoolVar(&o.tui, "tui", false, "fullscreen progress view")
	f.BoolVar(&o.verbose, "verbose", false, "debug logging")
	return cmd
}

// resolve merges the profile under explicitly set flags and checks the result.
func (o *formatOptions) resolve(cmd *cobra.Command) error {
	if o.profilePath != "" {
		p, err := loadProfile(hostFs, o.profilePath)
		if err != nil {
			return usageError{err}
		}
		changed := cmd.Flags().Changed
		if !changed("label") && p.Label != "" {
			o.label = p.Label
		}
		if !changed("serial") && !changed("random-serial") {
			o.serial, o.randomSerial = p.Serial, p.RandomSerial
		}
		if !changed("sync") && p.Sync != nil {
			o.sync = *p.Sync
		}
		if !changed("tui") && p.TUI {
			o.tui = true
		}
	}

	var result *multierror.Error
	switch {
	case o.out != "" && o.device != "":
		result = multierror.Append(result, fmt.Errorf("choose only one of --out or --device"))
	case o.out == "" && o.device == "":
		result = multierror.Append(result, fmt.Errorf("choose --out or --device"))
	case o.device != "" && !o.force:
		result = multierror.Append(result, fmt.Errorf("--device requires --force"))
	case o.out != "" && o.sizeStr == "":
		result = multierror.Append(result, fmt.Errorf("--size is required with --out"))
	}
	if err := checkLabel(o.label); err != nil {
		result = multierror.Append(result, err)
	}
	if o.serial != "" {
		if _, err := parseSerial(o.serial); err != nil {
			result = multierror.Append(result, err)
		}
		if o.randomSerial {
			result = multierror.Append(result, fmt.Errorf("--serial and --random-serial are mutually exclusive"))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return usageError{err}
	}
	return nil
}

func (o *formatOptions) sizeBytes() (int64, error) {
	if o.sizeStr == "" {
		return 0, nil
	}
	sz, err := parseSize(o.sizeStr)
	if err != nil {
		return 0, usageError{err}
	}
	if sz%512 != 0 {
		return 0, usagef("size must be multiple of 512")
	}
	return sz, nil
}

func (o *formatOptions) serialSource() encoder.SerialSource {
	switch {
	case o.serial != "":
		v, _ := parseSerial(o.serial)
		return encoder.FixedSerial(v)
	case o.randomSerial:
		return encoder.RandomSerial{}
	}
	return encoder.ClockSerial{}
}

// openTarget derives the geometry and opens the handle. Images are only
// created once the size is known to fit the layout.
func (o *formatOptions) openTarget() (target, geometry.Geometry, error) {
	var geo geometry.Geometry
	sz, err := o.sizeBytes()
	if err != nil {
		return nil, geo, err
	}

	if o.out != "" {
		if geo, err = geometry.Derive(geometry.Default(), uint64(sz/512)); err != nil {
			return nil, geo, errs.WithOp("derive geometry", err)
		}
		img, err := createImage(hostFs, o.out, sz)
		if err != nil {
			return nil, geo, err
		}
		return img, geo, nil
	}

	dev, err := openDevice(o.device)
	if err != nil {
		return nil, geo, err
	}
	if sz == 0 {
		sz = dev.Size() / 512 * 512
	} else if sz > dev.Size() {
		_ = dev.Close()
		return nil, geo, usagef("--size %s exceeds the device (%s)", human(sz), human(dev.Size()))
	}
	if geo, err = geometry.Derive(geometry.Default(), uint64(sz/512)); err != nil {
		_ = dev.Close()
		return nil, geo, errs.WithOp("derive geometry", err)
	}
	return dev, geo, nil
}

func (o *formatOptions) targetName() string {
	if o.device != "" {
		return o.device
	}
	return o.out
}

func runFormat(stdout, stderr io.Writer, o *formatOptions) error {
	log := newLogger(stderr, o.verbose, o.tui)
	if len(o.label) > encoder.LabelSize {
		log.WithField("label", o.label).Warnf("label longer than %d characters, truncating", encoder.LabelSize)
	}
	label := encoder.NormalizeLabel(o.label)

	tgt, geo, err := o.openTarget()
	if err != nil {
		return err
	}

	var stopped int32
	sig := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer func() {
		signal.Stop(sig)
		close(done)
	}()
	go func() {
		select {
		case <-sig:
			atomic.StoreInt32(&stopped, 1)
		case <-done:
		}
	}()
	stop := func() bool { return atomic.LoadInt32(&stopped) != 0 }

	var serial uint32
	source := o.serialSource()
	opts := []sdformat.Option{
		sdformat.WithSerial(encoder.SerialFunc(func() uint32 {
			serial = source.Serial()
			return serial
		})),
		sdformat.WithSync(o.sync),
		sdformat.WithLogger(log),
	}

	var ui *retrodfrg.UI
	if o.tui {
		if ui, err = newUI(); err != nil {
			_ = tgt.Close()
			return errs.New("start UI", errs.UnknownError, err)
		}
		obs := newTUIObserver(ui, geo, label, o.targetName())
		opts = append(opts,
			sdformat.WithObserver(obs),
			sdformat.WithStop(func() bool { return stop() || ui.IsStopped() }),
		)
	} else {
		printGeometryInfo(stdout, geo, label)
		opts = append(opts, sdformat.WithObserver(logObserver(log)), sdformat.WithStop(stop))
	}

	err = formatTarget(tgt, geo.TotalSectors, label.String(), opts...)
	if ui != nil {
		ui.Wait(tuiLinger)
		ui.Close()
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "FAT32 ready on %s: %d clusters of %d bytes, %d free, label %s, serial %s\n",
		o.targetName(), geo.DataClusters, geo.Layout.ClusterSize(), geo.FreeClusters, label.Trimmed(), formatSerial(serial))
	return nil
}

// formatTarget runs the whole sequence and always closes tgt. A close failure
// after a failed sequence is reported alongside it.
func formatTarget(tgt target, totalSectors uint64, label string, opts ...sdformat.Option) error {
	eng, err := sdformat.New(tgt, totalSectors, label, opts...)
	if err == nil {
		err = eng.Format()
	}
	cerr := tgt.Close()
	if cerr == nil {
		return err
	}
	cerr = errs.New("close", errs.Classify(cerr, errs.IOError), cerr)
	if err == nil {
		return cerr
	}
	return multierror.Append(err, cerr)
}

func logObserver(log logrus.FieldLogger) sdformat.Observer {
	return sdformat.ObserverFunc(func(ev sdformat.Event) {
		entry := log.WithFields(logrus.Fields{
			"op":      ev.Op.String(),
			"elapsed": ev.Elapsed.Truncate(time.Microsecond),
		})
		if ev.Err != nil {
			entry.WithError(ev.Err).Error("failed")
			return
		}
		var sectors uint64
		for _, x := range ev.Extents {
			sectors += x.Count
		}
		entry.WithField("sectors", sectors).Info("done")
	})
}
