package concurrent

import (
	"sync"
	"time"
)

// Debounce runs exec once after delay has passed since the last trigger.
type Debounce struct {
	mutex      *sync.Mutex
	delay      time.Duration
	exec       func()
	timer      *time.Timer
	generation uint64
}

// NewDebounce creates a new debounce timer.
func NewDebounce(delay time.Duration, exec func()) *Debounce {
	return &Debounce{
		mutex: new(sync.Mutex),
		delay: delay,
		exec:  exec,
	}
}

// Trigger re-arms the timer.
func (d *Debounce) Trigger() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.generation++
	generation := d.generation
	d.timer = time.AfterFunc(d.delay, func() {
		d.mutex.Lock()
		if generation != d.generation {
			// re-armed or stopped after the timer fired
			d.mutex.Unlock()
			return
		}
		d.timer = nil
		d.mutex.Unlock()
		d.exec()
	})
}

// Stop cancels a pending execution and reports if there was one.
func (d *Debounce) Stop() bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.generation++
	if d.timer == nil {
		return false
	}
	d.timer.Stop()
	d.timer = nil
	return true
}

// Pending reports if an execution is armed.
func (d *Debounce) Pending() bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.timer != nil
}
