package raster

import (
	"sync"
	"time"

	"clickart/internal/sketch"
)

// Debouncer coalesces bursts of sketch mutations so the render function
// is not invoked for every point of a fast stroke. The latest snapshot
// always wins: after a burst settles, exactly the final state is rendered.
type Debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	run     func(sketch.Snapshot)
	timer   *time.Timer
	pending sketch.Snapshot
	armed   bool
	stopped bool
}

// NewDebouncer returns a debouncer calling run on the coalesced snapshot
// after delay of quiet time.
func NewDebouncer(delay time.Duration, run func(sketch.Snapshot)) *Debouncer {
	return &Debouncer{delay: delay, run: run}
}

// Trigger schedules a render of snap, replacing any snapshot still
// waiting for its delay to elapse.
func (d *Debouncer) Trigger(snap sketch.Snapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.pending = snap
	if d.armed {
		d.timer.Reset(d.delay)
		return
	}
	d.armed = true
	d.timer = time.AfterFunc(d.delay, d.fire)
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	snap := d.pending
	d.pending = nil
	d.armed = false
	d.mu.Unlock()
	if snap != nil {
		d.run(snap)
	}
}

// Flush runs any pending snapshot immediately.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	snap := d.pending
	d.pending = nil
	if d.armed {
		d.timer.Stop()
		d.armed = false
	}
	d.mu.Unlock()
	if snap != nil {
		d.run(snap)
	}
}

// Stop flushes pending work and rejects further triggers.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
	d.Flush()
}
