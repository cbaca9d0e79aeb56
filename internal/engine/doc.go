// Package engine implements the SOS escalation state machine. It creates a
// level 1 alert on the first qualifying button hold of a band, escalates it
// to level 2 on a further hold, an operator request or an optional timeout,
// and archives the alert to the incident log on resolution. Each alert is
// serialized behind its own lock, so distinct alerts never block each other.
package engine
