// Package aggregate computes dashboard summaries over the active session
// set, the open alert set and the incident log. Summaries are recomputed on
// every request, so they are never stale.
package aggregate
