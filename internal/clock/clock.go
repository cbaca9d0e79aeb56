package clock

import (
	"sync"
	"time"
)

// Timer is a handle to one scheduled callback.
type Timer interface {
	// Stop cancels the callback. It reports whether cancellation won:
	// false means the callback already fired or was stopped before.
	Stop() bool
}

// Clock schedules delayed callbacks and reports the current time.
// Callbacks fire at most once, on their own goroutine.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// Schedule runs fn once after d elapses unless the timer is stopped first.
	Schedule(d time.Duration, fn func()) Timer
}

// System is the wall-clock implementation of Clock.
type System struct{}

// NewSystem returns a Clock backed by the runtime timers.
func NewSystem() *System {
	return &System{}
}

// Now returns the current wall-clock time.
func (*System) Now() time.Time {
	return time.Now()
}

// Schedule runs fn once after d elapses unless the timer is stopped first.
//
//nolint:ireturn // Returning the Timer interface keeps callers implementation-agnostic.
func (*System) Schedule(d time.Duration, fn func()) Timer {
	return &systemTimer{timer: time.AfterFunc(d, fn)}
}

// systemTimer wraps time.Timer so Stop reports a win exactly once.
type systemTimer struct {
	// timer is the underlying runtime timer.
	timer *time.Timer
	// mu guards the done flag.
	mu sync.Mutex
	// done records that Stop was already called.
	done bool
}

// Stop cancels the callback and reports whether cancellation won.
func (t *systemTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return false
	}

	t.done = true

	return t.timer.Stop()
}
