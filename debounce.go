package geomeasure

import (
	"sync"
	"time"
)

// debouncer runs at most one delayed task per key. Scheduling a key again
// replaces its pending task.
type debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	timers  map[string]*time.Timer
	pending *sync.WaitGroup
}

func newDebouncer(delay time.Duration, pending *sync.WaitGroup) *debouncer {
	if pending == nil {
		pending = &sync.WaitGroup{}
	}
	return &debouncer{delay: delay, timers: make(map[string]*time.Timer), pending: pending}
}

func (d *debouncer) schedule(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked(key)

	d.pending.Add(1)
	var t *time.Timer
	t = time.AfterFunc(d.delay, func() {
		defer d.pending.Done()
		d.mu.Lock()
		if d.timers[key] == t {
			delete(d.timers, key)
		}
		d.mu.Unlock()
		fn()
	})
	d.timers[key] = t
}

func (d *debouncer) cancel(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked(key)
}

func (d *debouncer) stopAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key := range d.timers {
		d.stopLocked(key)
	}
}

func (d *debouncer) len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}

func (d *debouncer) stopLocked(key string) {
	t, ok := d.timers[key]
	if !ok {
		return
	}
	delete(d.timers, key)
	if t.Stop() {
		d.pending.Done()
	}
}
