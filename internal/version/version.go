// Package version carries build-time version information, set via ldflags.
package version

var (
	// Version is the current provisioner version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)
