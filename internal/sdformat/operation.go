package sdformat

import (
	"time"

	"ndsfat/internal/geometry"
)

// Operation identifies one of the five format steps.
type Operation int

const (
	OpMBR Operation = iota
	OpVolumeBootRecord
	OpFSInfo
	OpFATTables
	OpRootDirectory
)

// Operations lists every step in canonical order.
var Operations = []Operation{OpMBR, OpVolumeBootRecord, OpFSInfo, OpFATTables, OpRootDirectory}

func (o Operation) String() string {
	switch o {
	case OpMBR:
		return "write MBR"
	case OpVolumeBootRecord:
		return "write volume boot record"
	case OpFSInfo:
		return "write FSInfo"
	case OpFATTables:
		return "write FAT tables"
	case OpRootDirectory:
		return "write root directory"
	}
	return "unknown operation"
}

// Extents lists the absolute sector runs the operation writes for geometry g.
func (o Operation) Extents(g geometry.Geometry) []geometry.Extent {
	switch o {
	case OpMBR:
		return []geometry.Extent{{Start: 0, Count: 1}}
	case OpVolumeBootRecord:
		return []geometry.Extent{{Start: g.BootSector(), Count: 1}, {Start: g.BackupBootSector(), Count: 1}}
	case OpFSInfo:
		return []geometry.Extent{{Start: g.FSInfoSector(), Count: 1}, {Start: g.BackupFSInfoSector(), Count: 1}}
	case OpFATTables:
		var out []geometry.Extent
		for i := 0; i < int(g.Layout.FATCopies); i++ {
			out = append(out, geometry.Extent{Start: g.FATCopyStart(i), Count: uint64(g.FATSize)})
		}
		return out
	case OpRootDirectory:
		return []geometry.Extent{{Start: uint64(g.DataStart), Count: g.RootDirSectors()}}
	}
	return nil
}

// Event reports the outcome of one operation. Extents are the sectors the
// operation targets; on failure only a prefix of them may have been written.
type Event struct {
	Op      Operation
	Extents []geometry.Extent
	Err     error
	Elapsed time.Duration
}

// Observer is notified after each operation completes or fails.
type Observer interface {
	OperationDone(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OperationDone(ev Event) { f(ev) }
