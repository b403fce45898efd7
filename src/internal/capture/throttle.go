package capture

import (
	"sync"
	"time"
)

// throttle coalesces a burst of calls into one trailing-edge emission
// per interval: the first call arms a timer, later calls replace the
// stored function, and the timer runs whatever was stored last.
type throttle struct {
	mu       sync.Mutex
	interval time.Duration
	latest   func()
	armed    bool
}

func newThrottle(interval time.Duration) *throttle {
	return &throttle{interval: interval}
}

// Call schedules fn for the trailing edge of the current interval,
// replacing any previously scheduled call.
func (t *throttle) Call(fn func()) {
	t.mu.Lock()
	t.latest = fn
	if t.armed {
		t.mu.Unlock()
		return
	}
	t.armed = true
	t.mu.Unlock()

	time.AfterFunc(t.interval, t.fire)
}

func (t *throttle) fire() {
	t.mu.Lock()
	fn := t.latest
	t.latest = nil
	t.armed = false
	t.mu.Unlock()

	if fn != nil {
		fn()
	}
}
