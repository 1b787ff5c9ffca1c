// ndsfat writes a FAT32 volume that ARM9 flashcart firmware can mount onto an
// SD card or an image file.
// Cobra CLI, optional tcell fullscreen progress view styled like an old DOS
// formatter.
//
// Build:
//
//	go build -o ndsfat .
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"ndsfat/internal/errs"
	"ndsfat/internal/sdformat"
)

// Exit codes, sysexits(3) style.
const (
	exitOK          = 0
	exitUsage       = 64
	exitDataErr     = 65
	exitNoInput     = 66
	exitSoftware    = 70
	exitIOErr       = 74
	exitTempFail    = 75
	exitNoPerm      = 77
	exitInterrupted = 130
)

// usageError marks bad flags or arguments.
type usageError struct{ err error }

func (u usageError) Error() string { return u.err.Error() }
func (u usageError) Unwrap() error { return u.err }

func usagef(format string, args ...interface{}) error {
	return usageError{fmt.Errorf(format, args...)}
}

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the CLI and returns the process exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.Execute()
	if err != nil {
		reportError(stderr, err)
	}
	return exitCode(err)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ndsfat",
		Short:         "FAT32 formatter for ARM9 flashcart SD cards",
		Long:          "Lay out an MBR and a single FAT32 partition with 32K clusters and 4 MiB alignment, the way flashcart firmware expects it.",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})
	root.AddCommand(newFormatCmd(), newLayoutCmd())
	return root
}

// exitCode maps a command error onto an exit status.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	if errors.Is(err, sdformat.ErrInterrupted) {
		return exitInterrupted
	}
	var e *errs.Error
	if !errors.As(err, &e) {
		// Anything the formatter did not classify came from argument handling.
		return exitUsage
	}
	switch e.Code {
	case errs.Success:
		return exitOK
	case errs.AccessDenied:
		return exitNoPerm
	case errs.DeviceBusy:
		return exitTempFail
	case errs.InvalidDevice:
		return exitNoInput
	case errs.IOError:
		return exitIOErr
	case errs.TooSmall:
		return exitDataErr
	default:
		return exitSoftware
	}
}

// reportError prints "<operation> failed: <code>: <cause>" for classified
// failures and the bare message otherwise.
func reportError(w io.Writer, err error) {
	if errors.Is(err, sdformat.ErrInterrupted) {
		fmt.Fprintln(w, "\nInterrupted")
		return
	}
	var merr *multierror.Error
	if errors.As(err, &merr) {
		for _, e := range merr.Errors {
			reportError(w, e)
		}
		return
	}
	var e *errs.Error
	if errors.As(err, &e) && e.Op != "" {
		msg := fmt.Sprintf("%s failed: %s", e.Op, e.Code)
		if e.Err != nil {
			msg += ": " + e.Err.Error()
		}
		fmt.Fprintln(w, "error: "+msg)
		return
	}
	fmt.Fprintf(w, "error: %v\n", err)
	var u usageError
	if errors.As(err, &u) {
		fmt.Fprintln(w, "run 'ndsfat --help' for usage")
	}
}

// newLogger logs to w, at Debug when verbose. A quiet logger discards
// everything so the fullscreen UI keeps the terminal.
func newLogger(w io.Writer, verbose, quiet bool) *logrus.Logger {
	l := logrus.New()
	l.Out = w
	l.Formatter = &logrus.TextFormatter{DisableTimestamp: true}
	l.Level = logrus.InfoLevel
	if verbose {
		l.Level = logrus.DebugLevel
	}
	if quiet {
		l.Out = io.Discard
	}
	return l
}

// parseSize reads a byte count with an optional k, m, g or b suffix (powers of
// 1024), or a sector count with an s suffix.
func parseSize(s string) (int64, error) {
	ss := strings.TrimSpace(strings.ToLower(s))
	if ss == "" {
		return 0, fmt.Errorf("empty size")
	}
	mult := int64(1)
	switch {
	case strings.HasSuffix(ss, "k"):
		mult = 1024
		ss = strings.TrimSuffix(ss, "k")
	case strings.HasSuffix(ss, "m"):
		mult = 1024 * 1024
		ss = strings.TrimSuffix(ss, "m")
	case strings.HasSuffix(ss, "g"):
		mult = 1024 * 1024 * 1024
		ss = strings.TrimSuffix(ss, "g")
	case strings.HasSuffix(ss, "s"):
		mult = 512
		ss = strings.TrimSuffix(ss, "s")
	case strings.HasSuffix(ss, "b"):
		ss = strings.TrimSuffix(ss, "b")
	}
	v, err := strconv.ParseFloat(ss, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	if v <= 0 {
		return 0, fmt.Errorf("size %q must be positive", s)
	}
	return int64(v * float64(mult)), nil
}

func human(b int64) string {
	switch {
	case b >= 1024*1024*1024:
		return fmt.Sprintf("%.1fG", float64(b)/(1024*1024*1024))
	case b >= 1024*1024:
		return fmt.Sprintf("%dM", b/(1024*1024))
	case b >= 1024:
		return fmt.Sprintf("%dK", b/1024)
	}
	return fmt.Sprintf("%dB", b)
}
