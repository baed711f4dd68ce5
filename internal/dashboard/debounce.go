package dashboard

import (
	"sync"
	"time"
)

// Timer is a pending scheduled call.
type Timer interface {
	Stop() bool
}

// Scheduler runs fn once after d elapses.
type Scheduler func(d time.Duration, fn func()) Timer

// AfterFunc schedules on the runtime timer.
func AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// Debouncer is a single-slot delayed action: every Trigger replaces the pending
// action and restarts the quiet window.
type Debouncer struct {
	delay    time.Duration
	schedule Scheduler

	mu    sync.Mutex
	timer Timer
	gen   uint64
}

// NewDebouncer builds a Debouncer. A nil scheduler uses AfterFunc.
func NewDebouncer(delay time.Duration, schedule Scheduler) *Debouncer {
	if schedule == nil {
		schedule = AfterFunc
	}
	return &Debouncer{delay: delay, schedule: schedule}
}

// Trigger arms fn, cancelling whatever was pending.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = d.schedule(d.delay, func() {
		d.mu.Lock()
		if gen != d.gen {
			// A later Trigger or Cancel won the race with Stop.
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()
		fn()
	})
}

// Cancel drops the pending action and reports whether one existed.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	if d.timer == nil {
		return false
	}
	d.timer.Stop()
	d.timer = nil
	return true
}

// Pending reports whether an action is armed.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}
