package version

import (
	"runtime"
)

// appVersion is the current release of databaser.
const appVersion = "0.1.0"

// Build-time variables set via ldflags
var (
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// App returns the current release version of databaser.
func App() string {
	return appVersion
}

// Version returns the current version of databaser.
func Version() string {
	return appVersion
}

// GetGitCommit returns the git commit hash
func GetGitCommit() string {
	return GitCommit
}

// GetBuildDate returns the build date
func GetBuildDate() string {
	return BuildDate
}

// Platform returns the OS/architecture combination
func Platform() string {
	return runtime.GOOS + "/" + runtime.GOARCH
}
