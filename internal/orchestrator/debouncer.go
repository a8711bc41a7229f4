package orchestrator

import (
	"sync"
	"time"

	"github.com/billie-coop/gridscope/internal/clock"
)

// Debouncer collects rapid calls and runs only the last one after things
// settle. Every Schedule resets the single pending timer.
type Debouncer struct {
	clock clock.Clock

	mu      sync.Mutex
	timer   clock.Timer
	seq     uint64
	stopped bool
}

// NewDebouncer creates a debouncer on the given clock.
func NewDebouncer(c clock.Clock) *Debouncer {
	if c == nil {
		c = clock.Real{}
	}
	return &Debouncer{clock: c}
}

// Schedule replaces any pending action with action, to run once window has
// passed without another Schedule.
func (d *Debouncer) Schedule(action func(), window time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}

	d.seq++
	seq := d.seq
	d.timer = d.clock.AfterFunc(window, func() {
		d.fire(seq, action)
	})
}

// Flush cancels the pending timer and runs action immediately.
func (d *Debouncer) Flush(action func()) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.cancelLocked()
	d.mu.Unlock()

	action()
}

// Pending reports whether an action is waiting for its window.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Stop drops any pending action; later Schedules are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.cancelLocked()
}

func (d *Debouncer) cancelLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
}

// fire runs action unless a newer Schedule or Stop got there first. A timer
// that already fired cannot be stopped, so the sequence check is what
// guarantees only the last call runs.
func (d *Debouncer) fire(seq uint64, action func()) {
	d.mu.Lock()
	if d.stopped || seq != d.seq {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	action()
}
