package charger

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of sensor-change notifications into a single
// refresh request. An event arriving within the interval of the previous
// fire schedules one delayed fire (reusing a pending timer if any); events
// outside the interval fire immediately. A pending fire is superseded, never
// a running one: the control loop itself is never preempted.
type Debouncer struct {
	mu       sync.Mutex
	interval time.Duration
	fire     func()
	lastFire time.Time
	timer    *time.Timer
}

// NewDebouncer creates a debouncer calling fire at most once per interval.
func NewDebouncer(interval time.Duration, fire func()) *Debouncer {
	return &Debouncer{interval: interval, fire: fire}
}

// Trigger requests a refresh, debounced.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	since := time.Since(d.lastFire)
	if since < d.interval {
		if d.timer == nil {
			d.timer = time.AfterFunc(d.interval-since, d.fireNow)
		}
		return
	}
	d.lastFire = time.Now()
	go d.fire()
}

func (d *Debouncer) fireNow() {
	d.mu.Lock()
	d.timer = nil
	d.lastFire = time.Now()
	d.mu.Unlock()
	d.fire()
}

// Stop cancels any pending fire.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
