// Package notify dispatches manager and police notifications raised by alert
// transitions.
//
// Delivery is asynchronous and at-least-once with bounded retries: the state
// transition that produced a notification commits first and never waits on
// the downstream gateway.
package notify
