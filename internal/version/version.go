// Package version exposes the build identity stamped in at link time.
package version

// Overridden via -ldflags "-X ..." in release builds.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)
