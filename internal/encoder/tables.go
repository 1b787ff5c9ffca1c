package encoder

import (
	"ndsfat/internal/geometry"
)

// Fixed on-disk constants that are not geometry parameters.
const (
	mbrBootstrapSize   = 446
	partitionEntrySize = 16
	bootSignature      = uint16(0xAA55)

	partitionActive = 0x80
	driveNumber     = 0x80
	extBootSig      = 0x29

	fsInfoLeadSig   = uint32(0x41615252)
	fsInfoStructSig = uint32(0x61417272)
	fsInfoTrailSig  = uint32(0xAA550000)
	fsInfoNextFree  = uint32(3)

	attrVolumeID = 0x08

	// FAT entry 1: end of chain with the clean-shutdown and no-error bits set.
	fatEntry1 = uint32(0xFFFFFFFF)
	// FAT entry for the root cluster: end of chain.
	fatEndOfChain = uint32(0x0FFFFFFF)
)

var (
	jmpBoot = [3]byte{0xEB, 0x58, 0x90}
	oemName = [8]byte{'M', 'S', 'W', 'I', 'N', '4', '.', '1'}
	fsType  = [8]byte{'F', 'A', 'T', '3', '2', ' ', ' ', ' '}
	chsLBA  = [3]byte{0xFF, 0xFF, 0xFF}
)

// MBR is the master boot record at sector 0: an empty bootstrap area and one
// active FAT32-LBA partition starting at the alignment boundary.
func MBR(g geometry.Geometry) Structure {
	entry := mbrBootstrapSize
	return Structure{
		Name: "MBR",
		Size: SectorSize,
		Fields: []Field{
			{"bootstrap", 0, mbrBootstrapSize, zeros(mbrBootstrapSize)},
			{"part0.status", entry + 0, 1, uint8(partitionActive)},
			{"part0.chsStart", entry + 1, 3, chsLBA},
			{"part0.type", entry + 4, 1, g.Layout.PartitionType},
			{"part0.chsEnd", entry + 5, 3, chsLBA},
			{"part0.lbaStart", entry + 8, 4, g.PartitionStart},
			{"part0.sectorCount", entry + 12, 4, g.PartitionSectors},
			{"part1-3", entry + partitionEntrySize, 3 * partitionEntrySize, zeros(3 * partitionEntrySize)},
			{"signature", 510, 2, bootSignature},
		},
	}
}

// VBR is the FAT32 volume boot record written at the partition start and again
// at the backup boot sector.
func VBR(g geometry.Geometry, label Label, serial uint32) Structure {
	l := g.Layout
	return Structure{
		Name: "VBR",
		Size: SectorSize,
		Fields: []Field{
			{"jmpBoot", 0, 3, jmpBoot},
			{"oemName", 3, 8, oemName},
			{"bytesPerSector", 11, 2, uint16(l.SectorSize)},
			{"sectorsPerCluster", 13, 1, uint8(l.SectorsPerCluster)},
			{"reservedSectors", 14, 2, uint16(g.ReservedSectors)},
			{"fatCount", 16, 1, uint8(l.FATCopies)},
			{"rootEntryCount", 17, 2, uint16(0)},
			{"totalSectors16", 19, 2, uint16(0)},
			{"media", 21, 1, l.MediaDescriptor},
			{"fatSize16", 22, 2, uint16(0)},
			{"sectorsPerTrack", 24, 2, l.SectorsPerTrack},
			{"headCount", 26, 2, l.Heads},
			{"hiddenSectors", 28, 4, g.PartitionStart},
			{"totalSectors32", 32, 4, g.PartitionSectors},
			{"fatSize32", 36, 4, g.FATSize},
			{"extFlags", 40, 2, uint16(0)},
			{"fsVersion", 42, 2, uint16(0)},
			{"rootCluster", 44, 4, l.RootCluster},
			{"fsInfoSector", 48, 2, uint16(l.FSInfoSector)},
			{"backupBootSector", 50, 2, uint16(l.BackupBootSector)},
			{"reserved", 52, 12, zeros(12)},
			{"driveNumber", 64, 1, uint8(driveNumber)},
			{"reserved1", 65, 1, uint8(0)},
			{"bootSignature", 66, 1, uint8(extBootSig)},
			{"volumeID", 67, 4, serial},
			{"volumeLabel", 71, LabelSize, label},
			// Informational only; FAT type is never determined from it.
			{"fsType", 82, 8, fsType},
			{"bootCode", 90, 420, zeros(420)},
			{"signature", 510, 2, bootSignature},
		},
	}
}

// FSInfo is the free-space hint sector, primary and backup.
func FSInfo(g geometry.Geometry) Structure {
	return Structure{
		Name: "FSInfo",
		Size: SectorSize,
		Fields: []Field{
			{"leadSignature", 0, 4, fsInfoLeadSig},
			{"reserved1", 4, 480, zeros(480)},
			{"structSignature", 484, 4, fsInfoStructSig},
			{"freeCount", 488, 4, g.FreeClusters},
			{"nextFree", 492, 4, fsInfoNextFree},
			{"reserved2", 496, 12, zeros(12)},
			{"trailSignature", 508, 4, fsInfoTrailSig},
		},
	}
}

// FATHeader is the first sector of each FAT copy: the two reserved entries and
// the root directory's end-of-chain marker.
func FATHeader(g geometry.Geometry) Structure {
	rootEntry := int(g.Layout.RootCluster) * 4
	return Structure{
		Name: "FATHeader",
		Size: SectorSize,
		Fields: []Field{
			{"entry0", 0, 4, uint32(0xFFFFFF00) | uint32(g.Layout.MediaDescriptor)},
			{"entry1", 4, 4, fatEntry1},
			{"rootCluster", rootEntry, 4, fatEndOfChain},
		},
	}
}

// RootDirectory is the first sector of the root directory cluster: a single
// volume-label entry followed by free entries.
func RootDirectory(label Label) Structure {
	return Structure{
		Name: "RootDirectory",
		Size: SectorSize,
		Fields: []Field{
			{"name", 0, LabelSize, label},
			{"attributes", 11, 1, uint8(attrVolumeID)},
			{"reservedNT", 12, 1, uint8(0)},
			{"creationTenths", 13, 1, uint8(0)},
			{"creationTime", 14, 2, uint16(0)},
			{"creationDate", 16, 2, uint16(0)},
			{"lastAccessDate", 18, 2, uint16(0)},
			{"firstClusterHigh", 20, 2, uint16(0)},
			{"writeTime", 22, 2, uint16(0)},
			{"writeDate", 24, 2, uint16(0)},
			{"firstClusterLow", 26, 2, uint16(0)},
			{"fileSize", 28, 4, uint32(0)},
			{"free", 32, 480, zeros(480)},
		},
	}
}
