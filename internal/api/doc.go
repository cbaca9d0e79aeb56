// Package api is the HTTP boundary of the monitoring backend. It exposes
// tourist registration, band telemetry events, alert operations, incident
// queries and dashboard summaries as a JSON API, plus Prometheus metrics and
// a health probe. Domain error sentinels map to HTTP statuses: validation
// failures are 400, unknown bands and tourists 404, stale events and illegal
// alert transitions 409, storage faults 502.
package api
