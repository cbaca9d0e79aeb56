// Package metrics registers the Prometheus metrics of the monitoring core:
// registrations, active sessions, zone transitions, alert lifecycle counts,
// response-time latency and notification dispatch counts.
package metrics
