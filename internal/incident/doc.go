// Package incident implements the append-only incident log: immutable
// archival records of terminated alerts with computed response times.
//
// Two Store implementations are provided: SQLiteStore for durable operation
// and MemoryStore for tests. Appends that fail surface ErrStorage and the
// caller keeps the record pending retry; records are never silently lost.
package incident
