// Package retrodfrg provides a generic full-screen terminal UI in the style of
// old DOS disk tools: a title, summary lines, a legend, a progress map, a phase
// checklist and a status block.
// It does not know what task it is showing; callers push text into it.
package retrodfrg

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
)

// UI renders caller-provided state onto a tcell screen.
type UI struct {
	mu       sync.Mutex
	s        tcell.Screen
	stopChan chan struct{}
	once     sync.Once
	restore  bool

	title        string
	phases       []string
	phaseDoneMap map[string]bool
	summaryLines []string
	legendLines  []string
	statusLines  []string

	// Visual progress map (provided by caller, UI just renders it)
	progressMapLines []string
}

// NewUI initializes s and starts the key handler. A nil screen opens the
// terminal.
func NewUI(s tcell.Screen) (*UI, error) {
	restore := false
	if s == nil {
		var err error
		if s, err = tcell.NewScreen(); err != nil {
			return nil, err
		}
		restore = true
	}
	if err := s.Init(); err != nil {
		return nil, err
	}
	s.DisableMouse()
	u := &UI{
		s:            s,
		stopChan:     make(chan struct{}),
		phaseDoneMap: make(map[string]bool),
		restore:      restore,
	}
	go u.eventLoop()
	return u, nil
}

// Close releases the screen and restores the terminal.
func (u *UI) Close() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.s == nil {
		return
	}
	u.s.Fini()
	u.s = nil
	if u.restore {
		fmt.Print("\033[?1049l\033[?25h")
	}
}

// RequestStop signals that the user wants to stop. Safe to call repeatedly.
func (u *UI) RequestStop() {
	u.once.Do(func() {
		close(u.stopChan)
		u.mu.Lock()
		if u.s != nil {
			_ = u.s.PostEvent(tcell.NewEventInterrupt(nil))
		}
		u.mu.Unlock()
	})
}

// IsStopped reports whether a stop was requested.
func (u *UI) IsStopped() bool {
	select {
	case <-u.stopChan:
		return true
	default:
		return false
	}
}

// Wait blocks for d or until a stop is requested, so the final screen stays
// readable.
func (u *UI) Wait(d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-u.stopChan:
	case <-timer.C:
	}
}

// Size returns the current screen width and height.
func (u *UI) Size() (width, height int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.s == nil {
		return 0, 0
	}
	return u.s.Size()
}

// MapRows is the number of rows left for the progress map at the given screen
// height once the other blocks are laid out.
func (u *UI) MapRows(height int) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	used := len(u.summaryLines) + len(u.legendLines)
	if u.title != "" {
		used++
	}
	if len(u.phases) > 0 {
		used += 2
	}
	used += 1 + len(u.statusLines)
	if rows := height - used; rows > 0 {
		return rows
	}
	return 1
}

func putStr(s tcell.Screen, x, y int, str string) {
	w, _ := s.Size()
	for i, r := range []rune(str) {
		pos := x + i
		if pos >= w {
			break
		}
		s.SetContent(pos, y, r, nil, tcell.StyleDefault)
	}
}

// LayoutAndDraw redraws the whole screen from the current state.
func (u *UI) LayoutAndDraw() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.s == nil {
		return
	}
	u.s.Clear()
	w, h := u.s.Size()

	y := 0
	if u.title != "" {
		putStr(u.s, 0, y, strings.Repeat("═", w))
		putStr(u.s, (w-len([]rune(u.title)))/2, y, u.title)
		y++
	}
	for _, line := range u.summaryLines {
		if y >= h {
			break
		}
		putStr(u.s, 0, y, line)
		y++
	}
	for _, line := range u.legendLines {
		if y >= h {
			break
		}
		putStr(u.s, 0, y, line)
		y++
	}

	if len(u.progressMapLines) > 0 {
		// Leave room for the phase and status blocks.
		avail := h - y - 3 - len(u.statusLines)
		if avail < 1 {
			avail = 1
		}
		for i := 0; i < avail && i < len(u.progressMapLines) && y < h; i++ {
			putStr(u.s, 0, y, u.progressMapLines[i])
			y++
		}
	}

	if len(u.phases) > 0 && y < h {
		putStr(u.s, 0, y, strings.Repeat("─", w))
		putStr(u.s, 2, y, " Phase ")
		y++
		var b strings.Builder
		for i, p := range u.phases {
			if i > 0 {
				b.WriteByte(' ')
			}
			mark := ' '
			if u.phaseDoneMap[strings.ToLower(p)] {
				mark = '✓'
			}
			fmt.Fprintf(&b, "[%c]%s", mark, p)
		}
		putStr(u.s, 0, y, b.String())
		y++
	}

	if len(u.statusLines) > 0 && y < h {
		putStr(u.s, 0, y, strings.Repeat("─", w))
		putStr(u.s, 2, y, " Status ")
		y++
		for _, line := range u.statusLines {
			if y >= h {
				break
			}
			putStr(u.s, 0, y, line)
			y++
		}
	}

	u.s.Show()
}

// SetPhaseDone marks a phase as completed. Names are case-insensitive.
func (u *UI) SetPhaseDone(p string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.phaseDoneMap[strings.ToLower(p)] = true
}

// PhaseDone reports whether a phase was marked completed.
func (u *UI) PhaseDone(p string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.phaseDoneMap[strings.ToLower(p)]
}

// SetPhases sets the phase checklist.
func (u *UI) SetPhases(labels []string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.phases = append([]string(nil), labels...)
}

// SetTitle sets the title displayed at the top of the UI.
func (u *UI) SetTitle(t string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.title = t
}

// SetSummaryLines sets the info lines below the title.
func (u *UI) SetSummaryLines(lines []string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.summaryLines = append([]string(nil), lines...)
}

// SetLegend sets the legend lines below the summary.
func (u *UI) SetLegend(lines []string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.legendLines = append([]string(nil), lines...)
}

// SetStatusLines sets the status block at the bottom.
func (u *UI) SetStatusLines(lines []string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.statusLines = append([]string(nil), lines...)
}

// SetProgressMap sets the rows of the progress map. The UI renders them as given.
func (u *UI) SetProgressMap(lines []string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.progressMapLines = append([]string(nil), lines...)
}

func (u *UI) eventLoop() {
	for {
		u.mu.Lock()
		s := u.s
		u.mu.Unlock()
		if s == nil {
			return
		}
		switch ev := s.PollEvent().(type) {
		case *tcell.EventKey:
			switch {
			case ev.Key() == tcell.KeyCtrlC,
				ev.Key() == tcell.KeyEscape,
				ev.Key() == tcell.KeyRune && (ev.Rune() == 'q' || ev.Rune() == 'Q'):
				u.RequestStop()
			}
		case *tcell.EventResize:
			s.Sync()
		case *tcell.EventInterrupt:
			return
		case nil:
			return
		}
	}
}
