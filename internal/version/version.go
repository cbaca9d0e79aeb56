package version

import "fmt"

var (
	// Version is the semantic version of the safety-server build,
	// overridden via -ldflags on release builds.
	Version = "1.0.0"
	// Commit is the short git revision baked in at build time,
	// or "none" for local builds.
	Commit = "none"
	// BuildTime is the UTC timestamp of the build,
	// or "unknown" for local builds.
	BuildTime = "unknown"
)

// Short returns only the semantic version string.
func Short() string {
	return Version
}

// Full renders the version together with the commit and build time,
// for logs and CLI output.
func Full() string {
	return fmt.Sprintf("version: %s, commit: %s, built at: %s", Version, Commit, BuildTime)
}
