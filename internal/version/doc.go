// Package version carries the safety-server build metadata. Version, Commit
// and BuildTime are plain variables so the release pipeline can inject real
// values through ldflags; local builds fall back to placeholder defaults.
package version
