package sdformat

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	diskfs "github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/filesystem"
	"github.com/diskfs/go-diskfs/partition/mbr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ndsfat/internal/encoder"
)

// TestFormatImageReadsBack formats a sparse 4 GiB image and reads it back with an
// independent FAT32 implementation.
func TestFormatImageReadsBack(t *testing.T) {
	if testing.Short() {
		t.Skip("writes a sparse 4 GiB image")
	}
	const total = 8388608

	path := filepath.Join(t.TempDir(), "card.img")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(total*512))

	e, err := New(f, total, "NDS_FAT32", WithSerial(encoder.FixedSerial(0xCAFEF00D)))
	require.NoError(t, err)
	require.NoError(t, e.Format())
	require.NoError(t, f.Close())

	g := e.Geometry()
	assert.Equal(t, uint32(8380416), g.PartitionSectors)
	assert.Equal(t, uint32(1023), g.FATSize)
	assert.Equal(t, uint32(10270), g.DataStart)

	raw, err := os.Open(path)
	require.NoError(t, err)
	defer raw.Close()

	readSector := func(n int64) []byte {
		b := make([]byte, 512)
		_, err := raw.ReadAt(b, n*512)
		require.NoError(t, err)
		return b
	}
	vbr := readSector(8192)
	assert.Equal(t, uint16(512), binary.LittleEndian.Uint16(vbr[11:]))
	assert.Equal(t, byte(64), vbr[13])
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(vbr[44:]))
	assert.Equal(t, "NDS_FAT32  ", string(readSector(int64(g.DataStart))[:11]))

	d, err := diskfs.Open(path, diskfs.WithOpenMode(diskfs.ReadOnly))
	require.NoError(t, err)
	defer d.File.Close()

	pt, err := d.GetPartitionTable()
	require.NoError(t, err)
	table, ok := pt.(*mbr.Table)
	require.True(t, ok, "expected an MBR partition table, got %T", pt)
	require.NotEmpty(t, table.Partitions)

	p := table.Partitions[0]
	assert.True(t, p.Bootable)
	assert.Equal(t, mbr.Fat32LBA, p.Type)
	assert.Equal(t, uint32(8192), p.Start)
	assert.Equal(t, uint32(8380416), p.Size)

	fs, err := d.GetFilesystem(1)
	require.NoError(t, err, "the FAT32 reader rejects bad signatures and mismatched FAT copies")
	assert.Equal(t, filesystem.TypeFat32, fs.Type())
	assert.Equal(t, "NDS_FAT32", strings.TrimSpace(fs.Label()))
}
