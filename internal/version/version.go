// Package version exposes build metadata stamped at link time.
package version

// Overridden via -ldflags "-X"; the defaults identify a source build.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)
