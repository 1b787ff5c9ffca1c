package geometry

// Extent is a run of absolute sectors.
type Extent struct {
	Start uint64
	Count uint64
}

// End is the last sector of the extent, inclusive.
func (e Extent) End() uint64 {
	return e.Start + e.Count - 1
}

// Region is one named row of the on-disk layout table.
type Region struct {
	Name    string `csv:"region"`
	Start   uint64 `csv:"start"`
	End     uint64 `csv:"end"`
	Content string `csv:"content"`
	Written bool   `csv:"written"`
}

// Extent returns the sectors the region spans.
func (r Region) Extent() Extent {
	return Extent{Start: r.Start, Count: r.End - r.Start + 1}
}

// Regions lists the whole device in address order, including the gaps the
// formatter leaves untouched.
func (g Geometry) Regions() []Region {
	boot := g.BootSector()
	fsinfo := g.FSInfoSector()
	backup := g.BackupBootSector()
	backupInfo := g.BackupFSInfoSector()
	fat2 := g.FATCopyStart(1)
	data := uint64(g.DataStart)
	rootEnd := data + g.RootDirSectors() - 1

	regions := []Region{
		{Name: "MBR", Start: 0, End: 0, Content: "partition table, one entry", Written: true},
		{Name: "Alignment gap", Start: 1, End: boot - 1, Content: "untouched"},
		{Name: "Primary VBR", Start: boot, End: boot, Content: "boot sector + BPB", Written: true},
		{Name: "Primary FSInfo", Start: fsinfo, End: fsinfo, Content: "free-space hints", Written: true},
	}
	if backup > fsinfo+1 {
		regions = append(regions, Region{Name: "reserved", Start: fsinfo + 1, End: backup - 1, Content: "untouched"})
	}
	regions = append(regions,
		Region{Name: "Backup VBR", Start: backup, End: backup, Content: "copy of primary VBR", Written: true},
		Region{Name: "Backup FSInfo", Start: backupInfo, End: backupInfo, Content: "copy of primary FSInfo", Written: true},
	)
	if uint64(g.FATStart) > backupInfo+1 {
		regions = append(regions, Region{Name: "reserved", Start: backupInfo + 1, End: uint64(g.FATStart) - 1, Content: "untouched"})
	}
	regions = append(regions,
		Region{Name: "FAT copy 1", Start: uint64(g.FATStart), End: fat2 - 1, Content: "allocation table", Written: true},
	)
	for i := 1; i < int(g.Layout.FATCopies); i++ {
		start := g.FATCopyStart(i)
		regions = append(regions, Region{
			Name:    "FAT copy " + string(rune('1'+i)),
			Start:   start,
			End:     start + uint64(g.FATSize) - 1,
			Content: "mirror",
			Written: true,
		})
	}
	regions = append(regions,
		Region{Name: "Root directory", Start: data, End: rootEnd, Content: "volume-label entry + free entries", Written: true},
	)
	if g.TotalSectors > rootEnd+1 {
		regions = append(regions, Region{Name: "Data", Start: rootEnd + 1, End: g.TotalSectors - 1, Content: "free clusters"})
	}
	return regions
}
