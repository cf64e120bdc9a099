// Package version provides build version information for the injector.
package version

import (
	"runtime"
)

var (
	// Version is the semantic version (set with -ldflags -X).
	Version = "dev"

	// GitCommit is the git commit hash (set with -ldflags -X).
	GitCommit = "unknown"

	// BuildDate is the build timestamp (set with -ldflags -X).
	BuildDate = "unknown"

	// GoVersion is the Go version used to build.
	GoVersion = runtime.Version()
)
