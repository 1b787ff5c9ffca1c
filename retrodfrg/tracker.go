package retrodfrg

import (
	"strings"

	"github.com/boljen/go-bitmap"
)

// Map glyphs.
const (
	GlyphWritten = '█'
	GlyphPending = '░'
	GlyphSystem  = '■'
)

// Tracker folds a device of arbitrary size onto a fixed number of map cells and
// remembers which cells were written and which belong to system areas.
type Tracker struct {
	total   uint64
	perCell uint64
	cells   int

	written bitmap.Bitmap
	system  bitmap.Bitmap

	writtenSectors uint64
	last           uint64
}

// NewTracker returns a tracker for total sectors drawn on at most maxCells
// cells. Each cell covers the same number of sectors.
func NewTracker(total uint64, maxCells int) *Tracker {
	if maxCells < 1 {
		maxCells = 1
	}
	if total == 0 {
		total = 1
	}
	per := (total + uint64(maxCells) - 1) / uint64(maxCells)
	cells := int((total + per - 1) / per)
	return &Tracker{
		total:   total,
		perCell: per,
		cells:   cells,
		written: bitmap.New(cells),
		system:  bitmap.New(cells),
	}
}

// Cells is the number of map cells.
func (t *Tracker) Cells() int { return t.cells }

// SectorsPerCell is how many sectors one cell stands for.
func (t *Tracker) SectorsPerCell() uint64 { return t.perCell }

func (t *Tracker) span(start, count uint64) (lo, hi int, ok bool) {
	if count == 0 || start >= t.total {
		return 0, 0, false
	}
	end := start + count - 1
	if end >= t.total || end < start {
		end = t.total - 1
	}
	return int(start / t.perCell), int(end / t.perCell), true
}

// MarkSystem flags the cells covering a system area.
func (t *Tracker) MarkSystem(start, count uint64) {
	lo, hi, ok := t.span(start, count)
	if !ok {
		return
	}
	for i := lo; i <= hi; i++ {
		t.system.Set(i, true)
	}
}

// MarkWritten flags the cells covering a written range and advances the
// current position to its last sector.
func (t *Tracker) MarkWritten(start, count uint64) {
	lo, hi, ok := t.span(start, count)
	if !ok {
		return
	}
	for i := lo; i <= hi; i++ {
		t.written.Set(i, true)
	}
	t.writtenSectors += count
	t.last = start + count - 1
}

// Written is the number of sectors reported through MarkWritten.
func (t *Tracker) Written() uint64 { return t.writtenSectors }

// Position is the last sector written.
func (t *Tracker) Position() uint64 { return t.last }

// Glyph returns the rune for cell i.
func (t *Tracker) Glyph(i int) rune {
	switch {
	case t.written.Get(i):
		return GlyphWritten
	case t.system.Get(i):
		return GlyphSystem
	default:
		return GlyphPending
	}
}

// Lines renders the map as rows of width cells, at most rows of them.
func (t *Tracker) Lines(width, rows int) []string {
	if width < 1 || rows < 1 {
		return nil
	}
	var lines []string
	for row := 0; row < rows; row++ {
		first := row * width
		if first >= t.cells {
			break
		}
		var b strings.Builder
		b.Grow(width * 3)
		for col := 0; col < width && first+col < t.cells; col++ {
			b.WriteRune(t.Glyph(first + col))
		}
		lines = append(lines, b.String())
	}
	return lines
}
