// Package version carries the build metadata of the inquiry server and inqctl.
package version

import (
	"fmt"
	"runtime"
	"time"
)

// Set at build time with
// -ldflags "-X github.com/telekom/inquiry-pipeline/pkg/version.Version=..."
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"

	GoVersion = runtime.Version()
	Platform  = runtime.GOOS + "/" + runtime.GOARCH
)

// BuildInfo contains metadata about the build
type BuildInfo struct {
	Version   string    `json:"version" yaml:"version"`
	GitCommit string    `json:"gitCommit" yaml:"gitCommit"`
	BuildDate string    `json:"buildDate" yaml:"buildDate"`
	GoVersion string    `json:"goVersion" yaml:"goVersion"`
	Platform  string    `json:"platform" yaml:"platform"`
	BuildTime time.Time `json:"buildTime,omitempty" yaml:"buildTime,omitempty"`
}

// GetBuildInfo returns build metadata. BuildTime is only set when BuildDate
// is RFC3339.
func GetBuildInfo() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: GoVersion,
		Platform:  Platform,
	}
	if t, err := time.Parse(time.RFC3339, BuildDate); err == nil {
		info.BuildTime = t
	}
	return info
}

// Summary is the one-line version banner of binary.
func (b BuildInfo) Summary(binary string) string {
	return fmt.Sprintf("%s %s (commit: %s, built: %s)", binary, b.Version, b.GitCommit, b.BuildDate)
}

// LogFields returns the build metadata as zap key/value pairs.
func (b BuildInfo) LogFields() []any {
	return []any{"version", b.Version, "commit", b.GitCommit, "buildDate", b.BuildDate, "go", b.GoVersion, "platform", b.Platform}
}
