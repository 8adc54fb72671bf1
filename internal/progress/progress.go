// Package progress provides a hierarchical progress sink with cooperative
// cancellation.
//
// A root Monitor owns the total amount of work; Split hands a share of it to
// a child that can subdivide it again. Children whose amount of work is only
// known late call SetWorkRemaining. Engines poll Canceled between steps.
package progress

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/graphtab/gtab/internal/convert"
)

// Reporter receives progress updates. fraction is in [0, 1].
type Reporter interface {
	Report(task string, fraction float64)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(task string, fraction float64)

// Report calls f.
func (f ReporterFunc) Report(task string, fraction float64) { f(task, fraction) }

type root struct {
	mu       sync.Mutex
	ctx      context.Context
	reporter Reporter
	task     string
	done     float64
	last     int
}

func (r *root) advance(delta float64, task string) {
	if r.reporter == nil {
		return
	}
	r.mu.Lock()
	if task != "" {
		r.task = task
	}
	r.done = math.Min(1, r.done+delta)
	pct := int(r.done * 100)
	changed := pct != r.last || delta == 0
	r.last = pct
	task, done := r.task, r.done
	r.mu.Unlock()
	if changed {
		r.reporter.Report(task, done)
	}
}

// Monitor tracks one level of work. A nil *Monitor is valid and does nothing.
type Monitor struct {
	root      *root
	share     float64
	remaining int
}

// New creates a root monitor for total units of work. reporter may be nil.
func New(ctx context.Context, reporter Reporter, task string, total int) *Monitor {
	if ctx == nil {
		ctx = context.Background()
	}
	r := &root{ctx: ctx, reporter: reporter, task: task, last: -1}
	m := &Monitor{root: r, share: 1, remaining: total}
	r.advance(0, task)
	return m
}

// Context returns the cancellation context.
func (m *Monitor) Context() context.Context {
	if m == nil {
		return context.Background()
	}
	return m.root.ctx
}

// Split returns a child monitor that consumes units of this monitor's work.
func (m *Monitor) Split(units int) *Monitor {
	if m == nil {
		return nil
	}
	units = m.clamp(units)
	var share float64
	if m.remaining > 0 {
		share = m.share * float64(units) / float64(m.remaining)
	}
	m.share -= share
	m.remaining -= units
	return &Monitor{root: m.root, share: share}
}

// SetWorkRemaining redistributes this monitor's unconsumed share over n units.
func (m *Monitor) SetWorkRemaining(n int) {
	if m == nil || n < 0 {
		return
	}
	m.remaining = n
}

// Worked consumes n units.
func (m *Monitor) Worked(n int) {
	if m == nil || m.remaining == 0 {
		return
	}
	n = m.clamp(n)
	delta := m.share * float64(n) / float64(m.remaining)
	m.share -= delta
	m.remaining -= n
	m.root.advance(delta, "")
}

// Subtask names the step currently running.
func (m *Monitor) Subtask(name string) {
	if m == nil {
		return
	}
	m.root.advance(0, name)
}

// Done consumes whatever share is left.
func (m *Monitor) Done() {
	if m == nil {
		return
	}
	left := m.share
	m.share, m.remaining = 0, 0
	if left > 0 {
		m.root.advance(left, "")
	}
}

// Canceled returns an error wrapping convert.ErrCanceled once the context is
// done.
func (m *Monitor) Canceled() error {
	if m == nil {
		return nil
	}
	if err := m.root.ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", convert.ErrCanceled, err)
	}
	return nil
}

func (m *Monitor) clamp(n int) int {
	if n < 0 {
		return 0
	}
	if n > m.remaining {
		return m.remaining
	}
	return n
}

// LogReporter reports progress as debug records on logger.
func LogReporter(logger *slog.Logger) Reporter {
	return ReporterFunc(func(task string, fraction float64) {
		logger.Debug("progress", "task", task, "percent", int(fraction*100))
	})
}
