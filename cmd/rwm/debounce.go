package main

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of triggers into one action after a
// quiet period. Safe for concurrent use.
type Debouncer struct {
	mu    sync.Mutex
	timer *time.Timer
	quiet time.Duration
	fn    func()
	seq   uint64
	wg    sync.WaitGroup
}

// NewDebouncer returns a debouncer that runs fn once the quiet period
// has passed since the last Trigger.
func NewDebouncer(quiet time.Duration, fn func()) *Debouncer {
	return &Debouncer{quiet: quiet, fn: fn}
}

// Trigger schedules fn after the quiet period, resetting any pending
// schedule.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil && d.timer.Stop() {
		d.wg.Done()
	}

	d.seq++
	seq := d.seq

	d.wg.Add(1)
	d.timer = time.AfterFunc(d.quiet, func() {
		defer d.wg.Done()

		d.mu.Lock()
		// A later Trigger supersedes this timer.
		if d.seq != seq {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()

		// fn runs without the lock so it can Trigger again.
		d.fn()
	})
}

// Cancel drops any pending action without waiting for one already
// running.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		if d.timer.Stop() {
			d.wg.Done()
		}
		d.timer = nil
	}
}

// CancelAndWait drops any pending action and blocks until an
// in-flight one finishes. Used during shutdown.
func (d *Debouncer) CancelAndWait() {
	d.Cancel()
	d.wg.Wait()
}
