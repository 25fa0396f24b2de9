// Package version reports build information for the stencil binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// Set at build time with -ldflags "-X".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string    `json:"version" yaml:"version"`
	GitCommit string    `json:"git_commit" yaml:"git_commit"`
	BuildTime time.Time `json:"build_time,omitempty" yaml:"build_time,omitempty"`
	Dirty     bool      `json:"dirty,omitempty" yaml:"dirty,omitempty"`
	GoVersion string    `json:"go_version" yaml:"go_version"`
	Platform  string    `json:"platform" yaml:"platform"`
}

// Get returns the build information of the running binary.
func Get() *BuildInfo {
	info, _ := debug.ReadBuildInfo()
	return resolve(Version, GitCommit, BuildTime, info)
}

// resolve prefers linker-provided values and falls back to the module and
// VCS data embedded by the go tool.
func resolve(version, commit, built string, info *debug.BuildInfo) *BuildInfo {
	b := &BuildInfo{
		Version:   version,
		GitCommit: commit,
		BuildTime: parseTime(built),
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if b.Version == "" {
		b.Version = "dev"
	}
	if b.GitCommit == "" {
		b.GitCommit = "unknown"
	}
	if info == nil {
		return b
	}

	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if b.GitCommit == "unknown" {
				b.GitCommit = s.Value
			}
		case "vcs.time":
			if b.BuildTime.IsZero() {
				b.BuildTime = parseTime(s.Value)
			}
		case "vcs.modified":
			b.Dirty = s.Value == "true"
		}
	}

	if b.Version == "dev" {
		switch {
		case info.Main.Version != "" && info.Main.Version != "(devel)":
			b.Version = info.Main.Version
		case len(b.GitCommit) >= 7 && b.GitCommit != "unknown":
			b.Version = "dev-" + b.GitCommit[:7]
		}
	}
	return b
}

// IsRelease reports whether the binary carries a tagged version.
func (b *BuildInfo) IsRelease() bool {
	return b.Version != "dev" && !strings.HasPrefix(b.Version, "dev-")
}

// Short returns a one-line version suitable for --version.
func (b *BuildInfo) Short() string {
	v := b.Version
	if b.IsRelease() && len(b.GitCommit) >= 7 && b.GitCommit != "unknown" {
		v = fmt.Sprintf("%s (%s)", v, b.GitCommit[:7])
	}
	if b.Dirty {
		v += " dirty"
	}
	return v
}

// Detailed returns one "Key: value" line per known field.
func (b *BuildInfo) Detailed() string {
	parts := []string{"Version: " + b.Version}
	if b.GitCommit != "unknown" {
		parts = append(parts, "Commit: "+b.GitCommit)
	}
	if !b.BuildTime.IsZero() {
		parts = append(parts, "Built: "+b.BuildTime.Format(time.RFC3339))
	}
	parts = append(parts, "Go: "+b.GoVersion, "Platform: "+b.Platform)
	return strings.Join(parts, "\n")
}

func parseTime(s string) time.Time {
	if s == "" || s == "unknown" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
