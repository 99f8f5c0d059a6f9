package version

import (
	"fmt"
	"runtime"
	"time"
)

var (
	// Version is injected at build time via -ldflags.
	Version = "dev"
	// BuildTime is injected at build time via -ldflags.
	BuildTime = "unknown"
	// GitCommit is injected at build time via -ldflags.
	GitCommit = "unknown"
)

const appName = "axiombot"

var startedAt = time.Now()

// GetVersion returns the short semantic version.
func GetVersion() string {
	return Version
}

// GetFullVersion returns a user-facing build string.
func GetFullVersion() string {
	if Version == "dev" {
		return fmt.Sprintf("%s/%s (commit: %s, built: %s, %s)", appName, Version, GitCommit, BuildTime, runtime.Version())
	}
	return fmt.Sprintf("%s/%s", appName, Version)
}

// Uptime reports how long the process has been running.
func Uptime() time.Duration {
	return time.Since(startedAt)
}
