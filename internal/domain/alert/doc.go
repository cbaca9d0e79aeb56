// Package alert contains core domain types for the two-level SOS escalation
// protocol: the Alert record, its level, status and derived priority.
//
// Alerts are owned exclusively by the state machine engine; other components
// only ever see clones.
package alert
