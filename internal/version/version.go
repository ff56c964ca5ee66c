// Package version reports the feeder build.
package version

import (
	"fmt"
	"runtime/debug"
)

// Version contains the application version information.
// This should be set via build-time ldflags in production:
// go build -ldflags "-X git.home.luguber.info/inful/feeder/internal/version.Version=v1.0.0".
var Version = "unknown"

// BuildInfo contains additional build metadata.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String is the one-line version shown by --version and the health endpoint.
func String() string {
	commit := GitCommit
	if commit == "unknown" {
		commit = vcsRevision()
	}
	if len(commit) > 12 {
		commit = commit[:12]
	}
	return fmt.Sprintf("feeder %s (commit %s, built %s)", Version, commit, BuildTime)
}

// vcsRevision falls back to the revision the go tool stamped into the binary.
func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			return s.Value
		}
	}
	return "unknown"
}
