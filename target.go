package main

import (
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"

	"ndsfat/internal/errs"
	"ndsfat/internal/sectorio"
)

// hostFs backs --out images and --profile files. Tests swap in an in-memory
// filesystem.
var hostFs afero.Fs = afero.NewOsFs()

// target is the handle being formatted plus its size.
type target interface {
	sectorio.Device
	Size() int64
	Close() error
}

// rawDevice is an opened block device.
type rawDevice struct {
	*os.File
	size    int64
	release func()
}

func (d *rawDevice) Size() int64 { return d.size }

func (d *rawDevice) Close() error {
	err := d.File.Close()
	if d.release != nil {
		d.release()
	}
	return err
}

// imageFile is a regular file created for --out.
type imageFile struct {
	afero.File
	size int64
}

func (f *imageFile) Size() int64 { return f.size }

// createImage creates or truncates path and sizes it to size bytes. The result
// is sparse where the filesystem supports it.
func createImage(fs afero.Fs, path string, size int64) (*imageFile, error) {
	const op = "create image"
	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return nil, errs.New(op, errs.Classify(err, errs.UnknownError), err)
		}
	}
	f, err := fs.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, errs.New(op, errs.Classify(err, errs.UnknownError), err)
	}
	if err := f.Truncate(size); err != nil {
		var result *multierror.Error
		result = multierror.Append(result, err)
		if cerr := f.Close(); cerr != nil {
			result = multierror.Append(result, cerr)
		}
		return nil, errs.New(op, errs.Classify(err, errs.IOError), result.ErrorOrNil())
	}
	return &imageFile{File: f, size: size}, nil
}
