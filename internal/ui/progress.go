package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

const clearLine = "\r\x1b[2K"

// ProgressBar is a progress.Reporter drawing one self-overwriting line on a
// terminal. On other writers it prints a line every quarter of the work.
type ProgressBar struct {
	mu     sync.Mutex
	w      io.Writer
	tty    bool
	width  int
	step   int
	drawn  bool
	closed bool
}

// NewProgressBar creates a bar on f, detecting whether f is a terminal.
func NewProgressBar(f *os.File) *ProgressBar {
	return NewProgressBarWriter(f, IsTerminal(f), Width(f, 80))
}

// NewProgressBarWriter creates a bar on w with an explicit mode and width.
func NewProgressBarWriter(w io.Writer, tty bool, width int) *ProgressBar {
	return &ProgressBar{w: w, tty: tty, width: width, step: -1}
}

// Report implements progress.Reporter.
func (p *ProgressBar) Report(task string, fraction float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	pct := int(fraction * 100)

	if !p.tty {
		if step := pct / 25; step > p.step {
			p.step = step
			fmt.Fprintf(p.w, "%s %3d%%\n", task, pct)
		}
		return
	}

	label := fmt.Sprintf(" %3d%% %s", pct, task)
	barWidth := max(10, min(40, p.width-len(label)-3))
	filled := int(fraction * float64(barWidth))
	bar := RenderAccent(strings.Repeat("█", filled)) + RenderMuted(strings.Repeat("░", barWidth-filled))
	line := "[" + bar + "]" + label
	fmt.Fprint(p.w, clearLine+line)
	p.drawn = true
}

// Finish clears the bar line. Later reports are ignored.
func (p *ProgressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tty && p.drawn {
		fmt.Fprint(p.w, clearLine)
	}
	p.closed = true
}
