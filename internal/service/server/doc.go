// Package server wires the monitoring backend: configuration, the tourist
// registry, the escalation engine, the incident store, the notification
// dispatcher and the HTTP API, managed as one errgroup with graceful
// shutdown.
package server
