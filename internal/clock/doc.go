// Package clock provides the timer service used by the escalation engine:
// delayed callbacks that fire exactly once and support race-free cancellation.
//
// System is the wall-clock implementation; Fake is a deterministic clock for
// tests where time only moves via Advance.
package clock
