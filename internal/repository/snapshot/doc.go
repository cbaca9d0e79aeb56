// Package snapshot implements persistence for the session registry state.
//
// The FileRepository stores and loads the state as JSON on disk and exposes a
// Repository interface that the registry depends on, so sessions and ID
// counters survive server restarts.
package snapshot
