// Package version holds build-time version information, injected via
// -ldflags.
package version

var (
	Version   = "dev"
	GitCommit = "unknown"
)
