// Package watcher coalesces bursts of filesystem events into single
// callbacks. Editors tend to fire several writes per save; only the
// settled state matters.
package watcher

import (
	"sync"
	"time"
)

// DefaultDebounce is the settle window applied when none is given.
const DefaultDebounce = 250 * time.Millisecond

// Debouncer delays a callback until events stop arriving. Each Trigger
// restarts the window; only the callback from the last Trigger runs.
type Debouncer struct {
	window time.Duration

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
}

// NewDebouncer returns a debouncer with the given settle window, or
// DefaultDebounce if zero.
func NewDebouncer(window time.Duration) *Debouncer {
	if window == 0 {
		window = DefaultDebounce
	}
	return &Debouncer{window: window}
}

// Trigger schedules fn to run once the window elapses without another
// Trigger arriving.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, func() {
		d.mu.Lock()
		// A newer Trigger or a Cancel may have raced the timer firing;
		// the generation check ensures only the latest schedule runs.
		stale := gen != d.gen
		if !stale {
			d.timer = nil
		}
		d.mu.Unlock()
		if stale {
			return
		}
		fn()
	})
}

// Cancel drops any pending callback.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Window returns the settle window.
func (d *Debouncer) Window() time.Duration {
	return d.window
}
