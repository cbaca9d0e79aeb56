package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a deterministic Clock for tests. Time only moves when Advance is
// called, and due callbacks run synchronously on the advancing goroutine.
type Fake struct {
	// mu guards now and pending.
	mu sync.Mutex
	// now is the current fake time.
	now time.Time
	// pending are scheduled callbacks ordered by deadline.
	pending []*fakeTimer
}

// NewFake returns a fake clock starting at the provided time.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the current fake time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.now
}

// Schedule registers fn to run when the fake time reaches now+d.
//
//nolint:ireturn // Returning the Timer interface keeps callers implementation-agnostic.
func (f *Fake) Schedule(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()

	t := &fakeTimer{
		clock:    f,
		deadline: f.now.Add(d),
		fn:       fn,
	}
	f.pending = append(f.pending, t)

	return t
}

// Advance moves the fake time forward and fires all callbacks that became
// due, in deadline order. Callbacks run without the clock lock held, so they
// may schedule or stop other timers.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)

	var due []*fakeTimer

	remaining := f.pending[:0]
	for _, t := range f.pending {
		if !t.deadline.After(f.now) {
			due = append(due, t)
		} else {
			remaining = append(remaining, t)
		}
	}

	f.pending = remaining

	sort.Slice(due, func(i, j int) bool { return due[i].deadline.Before(due[j].deadline) })
	f.mu.Unlock()

	for _, t := range due {
		t.fire()
	}
}

// fakeTimer is one scheduled callback on the fake clock.
type fakeTimer struct {
	// clock owns the timer.
	clock *Fake
	// deadline is the fake time at which fn fires.
	deadline time.Time
	// fn is the scheduled callback.
	fn func()

	// mu guards done.
	mu sync.Mutex
	// done records that the timer fired or was stopped.
	done bool
}

// Stop cancels the callback and reports whether cancellation won.
func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return false
	}

	t.done = true

	return true
}

// fire runs the callback unless the timer was stopped first.
func (t *fakeTimer) fire() {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()

		return
	}

	t.done = true
	t.mu.Unlock()

	t.fn()
}
