package main

import (
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"ndsfat/internal/errs"
	"ndsfat/internal/sdformat"
	"ndsfat/retrodfrg"
)

const smallCard = 65536 // sectors, 32 MiB

func readSector(t *testing.T, fs afero.Fs, path string, lba int64) []byte {
	t.Helper()
	f, err := fs.Open(path)
	require.NoError(t, err)
	defer f.Close()
	buf := make([]byte, 512)
	_, err = f.ReadAt(buf, lba*512)
	require.NoError(t, err)
	return buf
}

func TestFormatImage(t *testing.T) {
	fs := useMemFs(t)

	code, stdout, stderr := run("format", "--out", "/cards/nds.img", "--size", "65536s",
		"--label", "cart", "--serial", "1234-ABCD")
	require.Equal(t, 0, code, stderr)

	info, err := fs.Stat("/cards/nds.img")
	require.NoError(t, err)
	assert.Equal(t, int64(smallCard*512), info.Size())

	mbr := readSector(t, fs, "/cards/nds.img", 0)
	assert.Equal(t, byte(0x80), mbr[446])
	assert.Equal(t, byte(0x0C), mbr[450])
	assert.Equal(t, uint32(8192), binary.LittleEndian.Uint32(mbr[454:]))
	assert.Equal(t, uint32(57344), binary.LittleEndian.Uint32(mbr[458:]))
	assert.Equal(t, []byte{0x55, 0xAA}, mbr[510:])

	for _, lba := range []int64{8192, 8198} {
		vbr := readSector(t, fs, "/cards/nds.img", lba)
		assert.Equal(t, uint32(7), binary.LittleEndian.Uint32(vbr[36:]), "FAT size at %d", lba)
		assert.Equal(t, uint32(0x1234ABCD), binary.LittleEndian.Uint32(vbr[67:]), "serial at %d", lba)
		assert.Equal(t, "CART       ", string(vbr[71:82]), "label at %d", lba)
	}

	for _, lba := range []int64{8193, 8199} {
		fsinfo := readSector(t, fs, "/cards/nds.img", lba)
		assert.Equal(t, uint32(894), binary.LittleEndian.Uint32(fsinfo[488:]), "free count at %d", lba)
	}

	for _, lba := range []int64{8224, 8231} {
		fat := readSector(t, fs, "/cards/nds.img", lba)
		assert.Equal(t, uint32(0xFFFFFFF8), binary.LittleEndian.Uint32(fat[0:]))
		assert.Equal(t, uint32(0x0FFFFFFF), binary.LittleEndian.Uint32(fat[8:]))
	}

	root := readSector(t, fs, "/cards/nds.img", 8238)
	assert.Equal(t, "CART       ", string(root[:11]))
	assert.Equal(t, byte(0x08), root[11])

	assert.Contains(t, stdout, "GEOMETRY")
	assert.Contains(t, stdout, "FAT32 ready on /cards/nds.img: 895 clusters of 32768 bytes, 894 free, label CART, serial 1234-ABCD")
	assert.Contains(t, stderr, "op=\"write root directory\"")
}

func TestFormatTooSmallLeavesNoImage(t *testing.T) {
	fs := useMemFs(t)

	code, _, stderr := run("format", "--out", "/small.img", "--size", "8m")
	assert.Equal(t, 65, code)
	assert.Contains(t, stderr, "derive geometry failed: device too small")

	exists, err := afero.Exists(fs, "/small.img")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFormatMinimumSize(t *testing.T) {
	useMemFs(t)
	code, stdout, stderr := run("format", "--out", "/min.img", "--size", "9m", "--serial", "0")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "159 clusters")
	assert.Contains(t, stdout, "serial 0000-0000")
}

func TestFormatWithProfile(t *testing.T) {
	fs := useMemFs(t)
	require.NoError(t, afero.WriteFile(fs, "/etc/ndsfat.yaml", []byte("label: r4sd\nserial: \"CAFE-F00D\"\nsync: false\n"), 0o644))

	tests := []struct {
		name   string
		args   []string
		label  string
		serial uint32
	}{
		{"profile values", nil, "R4SD       ", 0xCAFEF00D},
		{"flags win", []string{"--label", "dstt", "--serial", "0x1"}, "DSTT       ", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"format", "--out", "/p.img", "--size", "32m", "--profile", "/etc/ndsfat.yaml"}, tt.args...)
			code, _, stderr := run(args...)
			require.Equal(t, 0, code, stderr)
			vbr := readSector(t, fs, "/p.img", 8192)
			assert.Equal(t, tt.label, string(vbr[71:82]))
			assert.Equal(t, tt.serial, binary.LittleEndian.Uint32(vbr[67:]))
		})
	}
}

func TestFormatBadProfile(t *testing.T) {
	fs := useMemFs(t)
	require.NoError(t, afero.WriteFile(fs, "/bad.yaml", []byte("labl: x\n"), 0o644))

	code, _, stderr := run("format", "--out", "/p.img", "--size", "32m", "--profile", "/bad.yaml")
	assert.Equal(t, 64, code)
	assert.Contains(t, stderr, "parse profile /bad.yaml")

	code, _, stderr = run("format", "--out", "/p.img", "--size", "32m", "--profile", "/missing.yaml")
	assert.Equal(t, 64, code)
	assert.Contains(t, stderr, "read profile")
}

func TestFormatLongLabelWarns(t *testing.T) {
	fs := useMemFs(t)
	code, _, stderr := run("format", "--out", "/l.img", "--size", "32m", "--label", "flashcart_card")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stderr, "truncating")
	assert.Equal(t, "FLASHCART_C", string(readSector(t, fs, "/l.img", 8192)[71:82]))
}

func TestFormatTUI(t *testing.T) {
	useMemFs(t)
	sim := tcell.NewSimulationScreen("")
	prevUI, prevLinger := newUI, tuiLinger
	newUI = func() (*retrodfrg.UI, error) { return retrodfrg.NewUI(sim) }
	tuiLinger = 0
	t.Cleanup(func() { newUI, tuiLinger = prevUI, prevLinger })

	code, stdout, stderr := run("format", "--out", "/t.img", "--size", "32m", "--tui")
	require.Equal(t, 0, code, stderr)
	assert.Empty(t, stderr)
	assert.NotContains(t, stdout, "GEOMETRY")
	assert.Contains(t, stdout, "FAT32 ready")
}

// closeFailTarget is an in-memory target whose Close fails.
type closeFailTarget struct {
	io.ReadWriteSeeker
	size int64
}

func (c *closeFailTarget) Size() int64  { return c.size }
func (c *closeFailTarget) Close() error { return errors.New("close: device went away") }

func TestFormatTargetReportsCloseFailure(t *testing.T) {
	buf := make([]byte, smallCard*512)
	tgt := &closeFailTarget{ReadWriteSeeker: bytesextra.NewReadWriteSeeker(buf), size: int64(len(buf))}

	err := formatTarget(tgt, smallCard, defaultLabel, sdformat.WithSync(false))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrIO))
	assert.Equal(t, "close", err.(*errs.Error).Op)
	assert.Equal(t, []byte{0x55, 0xAA}, buf[510:512])
}

func TestFormatTargetAggregatesFailures(t *testing.T) {
	tgt := &closeFailTarget{ReadWriteSeeker: bytesextra.NewReadWriteSeeker(make([]byte, 512)), size: 512}

	err := formatTarget(tgt, 10, defaultLabel)
	require.Error(t, err)
	assert.Equal(t, 65, exitCode(err))
	assert.True(t, errors.Is(err, errs.ErrTooSmall))
	assert.True(t, errors.Is(err, errs.ErrIO))
}
