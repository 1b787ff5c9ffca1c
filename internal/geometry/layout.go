// Package geometry derives the on-disk layout of a flashcart FAT32 volume from a
// device's total sector count.
package geometry

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Layout bundles the fixed parameters of the volume layout. Default returns the
// flashcart design point; other values exist so tests can exercise alternate
// geometries.
type Layout struct {
	SectorSize         uint32
	SectorsPerCluster  uint32
	PartitionAlignment uint32
	ReservedSectors    uint32
	FATCopies          uint32
	RootCluster        uint32
	// RootDirClusters is the size of the root directory. The free cluster count
	// subtracts exactly this many clusters.
	RootDirClusters  uint32
	FSInfoSector     uint32
	BackupBootSector uint32
	MediaDescriptor  uint8
	PartitionType    uint8
	SectorsPerTrack  uint16
	Heads            uint16
	// MinimumSectors is the smallest device accepted, checked before any
	// derivation so unsigned arithmetic cannot wrap.
	MinimumSectors uint64
}

// Default is 512 B sectors, 32 KiB clusters, 4 MiB alignment, 32 reserved
// sectors and two FATs.
func Default() Layout {
	return Layout{
		SectorSize:         512,
		SectorsPerCluster:  64,
		PartitionAlignment: 8192,
		ReservedSectors:    32,
		FATCopies:          2,
		RootCluster:        2,
		RootDirClusters:    1,
		FSInfoSector:       1,
		BackupBootSector:   6,
		MediaDescriptor:    0xF8,
		PartitionType:      0x0C,
		SectorsPerTrack:    63,
		Heads:              255,
		MinimumSectors:     18432, // ~9 MiB
	}
}

// ClusterSize is the cluster size in bytes.
func (l Layout) ClusterSize() uint32 {
	return l.SectorSize * l.SectorsPerCluster
}

// FATStartSector is the absolute sector of the first FAT copy.
func (l Layout) FATStartSector() uint64 {
	return uint64(l.PartitionAlignment) + uint64(l.ReservedSectors)
}

// FATEntryDensity is the number of partition sectors one FAT sector accounts
// for, (256*spc + copies) / 2.
func (l Layout) FATEntryDensity() uint64 {
	return (256*uint64(l.SectorsPerCluster) + uint64(l.FATCopies)) / 2
}

// Validate reports every constraint the layout violates.
func (l Layout) Validate() error {
	var result *multierror.Error
	if l.SectorSize != 512 {
		result = multierror.Append(result, fmt.Errorf("sector size must be 512, got %d", l.SectorSize))
	}
	if l.SectorsPerCluster == 0 || l.SectorsPerCluster > 128 || l.SectorsPerCluster&(l.SectorsPerCluster-1) != 0 {
		result = multierror.Append(result, fmt.Errorf("sectors per cluster must be a power of two <= 128, got %d", l.SectorsPerCluster))
	}
	if l.FATCopies == 0 {
		result = multierror.Append(result, fmt.Errorf("at least one FAT copy is required"))
	}
	if l.RootCluster < 2 {
		result = multierror.Append(result, fmt.Errorf("root cluster must be >= 2, got %d", l.RootCluster))
	}
	if uint64(l.RootCluster)*4+4 > uint64(l.SectorSize) {
		result = multierror.Append(result, fmt.Errorf("root cluster %d has no entry in the first FAT sector", l.RootCluster))
	}
	if l.RootDirClusters == 0 {
		result = multierror.Append(result, fmt.Errorf("root directory needs at least one cluster"))
	}
	if l.ReservedSectors <= l.BackupBootSector+l.FSInfoSector {
		result = multierror.Append(result, fmt.Errorf(
			"reserved region of %d sectors cannot hold the backup boot sector (%d) and FSInfo (%d)",
			l.ReservedSectors, l.BackupBootSector, l.FSInfoSector))
	}
	if l.FSInfoSector == 0 || l.FSInfoSector == l.BackupBootSector {
		result = multierror.Append(result, fmt.Errorf("FSInfo sector %d collides with a boot sector", l.FSInfoSector))
	}
	floor := l.FATStartSector() + uint64(l.FATCopies) + uint64(l.SectorsPerCluster)*uint64(l.RootDirClusters+1)
	if l.MinimumSectors <= floor {
		result = multierror.Append(result, fmt.Errorf("minimum of %d sectors leaves no data region (need > %d)", l.MinimumSectors, floor))
	}
	return result.ErrorOrNil()
}
