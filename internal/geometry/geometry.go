package geometry

import (
	"math"

	"ndsfat/internal/errs"
)

// Geometry is the layout of one format session. It is derived once and passed by
// value; nothing mutates it afterwards.
type Geometry struct {
	Layout Layout

	TotalSectors     uint64
	PartitionStart   uint32
	PartitionSectors uint32
	ReservedSectors  uint32
	FATSize          uint32
	FATStart         uint32
	DataStart        uint32
	FreeClusters     uint32
	DataClusters     uint32
}

// Derive computes the geometry for a device of totalSectors sectors.
//
// The TooSmall check runs before any subtraction. Devices whose partition would
// not fit the 32-bit MBR sector count are rejected as InvalidDevice.
func Derive(l Layout, totalSectors uint64) (Geometry, error) {
	const op = "derive geometry"
	if err := l.Validate(); err != nil {
		return Geometry{}, errs.New(op, errs.UnknownError, err)
	}
	if totalSectors < l.MinimumSectors {
		return Geometry{}, errs.Newf(op, errs.TooSmall,
			"%d sectors is below the minimum of %d", totalSectors, l.MinimumSectors)
	}

	partition := totalSectors - uint64(l.PartitionAlignment)
	if partition > math.MaxUint32 {
		return Geometry{}, errs.Newf(op, errs.InvalidDevice,
			"partition of %d sectors exceeds the MBR limit of %d", partition, uint64(math.MaxUint32))
	}

	density := l.FATEntryDensity()
	toAllocate := partition - uint64(l.ReservedSectors)
	fatSize := (toAllocate + density - 1) / density

	fatStart := l.FATStartSector()
	dataStart := fatStart + uint64(l.FATCopies)*fatSize
	dataSectors := toAllocate - uint64(l.FATCopies)*fatSize
	dataClusters := dataSectors / uint64(l.SectorsPerCluster)

	return Geometry{
		Layout:           l,
		TotalSectors:     totalSectors,
		PartitionStart:   l.PartitionAlignment,
		PartitionSectors: uint32(partition),
		ReservedSectors:  l.ReservedSectors,
		FATSize:          uint32(fatSize),
		FATStart:         uint32(fatStart),
		DataStart:        uint32(dataStart),
		DataClusters:     uint32(dataClusters),
		FreeClusters:     uint32(dataClusters - uint64(l.RootDirClusters)),
	}, nil
}

// FATCopyStart is the first sector of FAT copy i (0-based).
func (g Geometry) FATCopyStart(i int) uint64 {
	return uint64(g.FATStart) + uint64(i)*uint64(g.FATSize)
}

// BootSector is the absolute sector of the primary volume boot record.
func (g Geometry) BootSector() uint64 {
	return uint64(g.PartitionStart)
}

// BackupBootSector is the absolute sector of the backup volume boot record.
func (g Geometry) BackupBootSector() uint64 {
	return uint64(g.PartitionStart) + uint64(g.Layout.BackupBootSector)
}

// FSInfoSector is the absolute sector of the primary FSInfo sector.
func (g Geometry) FSInfoSector() uint64 {
	return uint64(g.PartitionStart) + uint64(g.Layout.FSInfoSector)
}

// BackupFSInfoSector sits right after the backup boot sector.
func (g Geometry) BackupFSInfoSector() uint64 {
	return g.BackupBootSector() + uint64(g.Layout.FSInfoSector)
}

// RootDirSectors is the size of the root directory region in sectors.
func (g Geometry) RootDirSectors() uint64 {
	return uint64(g.Layout.RootDirClusters) * uint64(g.Layout.SectorsPerCluster)
}

// ByteOffset converts an absolute sector into a byte offset.
func (g Geometry) ByteOffset(sector uint64) int64 {
	return int64(sector) * int64(g.Layout.SectorSize)
}
