package main

import (
	"fmt"
	"time"

	"ndsfat/internal/encoder"
	"ndsfat/internal/geometry"
	"ndsfat/internal/sdformat"
	"ndsfat/retrodfrg"
)

// screen is the part of retrodfrg.UI the progress view drives.
type screen interface {
	Size() (int, int)
	MapRows(height int) int
	SetTitle(string)
	SetPhases([]string)
	SetPhaseDone(string)
	SetSummaryLines([]string)
	SetLegend([]string)
	SetStatusLines([]string)
	SetProgressMap([]string)
	LayoutAndDraw()
}

// tuiObserver paints format progress: one map cell per group of sectors,
// one phase per operation.
type tuiObserver struct {
	ui      screen
	geo     geometry.Geometry
	tracker *retrodfrg.Tracker
	width   int
	rows    int
	start   time.Time
	current string
	failed  error
}

func newTUIObserver(ui screen, geo geometry.Geometry, label encoder.Label, target string) *tuiObserver {
	l := geo.Layout
	size := int64(geo.TotalSectors) * int64(l.SectorSize)
	ui.SetTitle(fmt.Sprintf(" FORMAT – %s  FAT32  %s ", target, human(size)))

	phases := make([]string, 0, len(sdformat.Operations))
	for _, op := range sdformat.Operations {
		phases = append(phases, op.String())
	}
	ui.SetPhases(phases)
	ui.SetSummaryLines([]string{
		fmt.Sprintf("Bytes/Sector: %-4d  Sectors/Cluster: %-3d  Partition: %d @ %d", l.SectorSize, l.SectorsPerCluster, geo.PartitionSectors, geo.PartitionStart),
		fmt.Sprintf("Reserved: %-3d  FATs: %-1d  Sectors/FAT: %-6d  Data start: %d", geo.ReservedSectors, l.FATCopies, geo.FATSize, geo.DataStart),
		fmt.Sprintf("Clusters: %d  Free: %d  Label: %s", geo.DataClusters, geo.FreeClusters, label.Trimmed()),
	})
	ui.SetLegend([]string{
		"Legend:  █ written   ░ untouched   ■ system area | Q to quit",
	})

	t := &tuiObserver{
		ui:      ui,
		geo:     geo,
		start:   time.Now(),
		current: sdformat.Operations[0].String(),
	}
	t.updateStatus()
	w, h := ui.Size()
	if w < 1 {
		w = 80
	}
	if h < 1 {
		h = 25
	}
	t.width, t.rows = w, ui.MapRows(h)
	t.tracker = retrodfrg.NewTracker(geo.TotalSectors, t.width*t.rows)
	for _, r := range geo.Regions() {
		if r.Written {
			x := r.Extent()
			t.tracker.MarkSystem(x.Start, x.Count)
		}
	}
	t.redraw()
	return t
}

func (t *tuiObserver) OperationDone(ev sdformat.Event) {
	name := ev.Op.String()
	if ev.Err != nil {
		t.failed = ev.Err
		t.current = name + " (failed)"
	} else {
		for _, x := range ev.Extents {
			t.tracker.MarkWritten(x.Start, x.Count)
		}
		t.ui.SetPhaseDone(name)
		t.current = "done"
		if next := int(ev.Op) + 1; next < len(sdformat.Operations) {
			t.current = sdformat.Operations[next].String()
		}
	}
	t.redraw()
}

func (t *tuiObserver) redraw() {
	t.updateStatus()
	t.ui.SetProgressMap(t.tracker.Lines(t.width, t.rows))
	t.ui.LayoutAndDraw()
}

func (t *tuiObserver) updateStatus() {
	var written, pos uint64
	if t.tracker != nil {
		written, pos = t.tracker.Written(), t.tracker.Position()
	}
	lines := []string{
		fmt.Sprintf("Absolute: %08d", pos),
		fmt.Sprintf("Written: %d / %d sectors", written, t.geo.TotalSectors),
		fmt.Sprintf("Elapsed: %s", time.Since(t.start).Truncate(time.Millisecond)),
		"Current op: " + t.current,
	}
	if t.failed != nil {
		lines = append(lines, "Error: "+t.failed.Error())
	}
	t.ui.SetStatusLines(lines)
}
