// Package version reports the build metadata of the sitepress binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// These variables are set at build time using -ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Info contains version and build information
type Info struct {
	Version   string    `json:"version" yaml:"version"`
	GitCommit string    `json:"git_commit" yaml:"git_commit"`
	BuildTime time.Time `json:"build_time,omitzero" yaml:"build_time,omitempty"`
	GoVersion string    `json:"go_version" yaml:"go_version"`
	Platform  string    `json:"platform" yaml:"platform"`
	Dirty     bool      `json:"dirty,omitempty" yaml:"dirty,omitempty"`
}

type vcsSettings struct {
	revision string
	modified bool
}

func readVCS() (vcsSettings, string) {
	var s vcsSettings
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return s, ""
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			s.revision = setting.Value
		case "vcs.modified":
			s.modified = setting.Value == "true"
		}
	}
	return s, info.Main.Version
}

// Get returns the build information, falling back to the module build info
// when ldflags were not set.
func Get() Info {
	vcs, moduleVersion := readVCS()

	info := Info{
		Version:   Version,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		Dirty:     vcs.modified,
	}

	if info.GitCommit == "" || info.GitCommit == "unknown" {
		if vcs.revision != "" {
			info.GitCommit = vcs.revision
		}
	}

	if info.Version == "" || info.Version == "dev" {
		switch {
		case moduleVersion != "" && moduleVersion != "(devel)":
			info.Version = moduleVersion
		case len(info.GitCommit) >= 7 && info.GitCommit != "unknown":
			info.Version = "dev-" + info.GitCommit[:7]
		default:
			info.Version = "dev"
		}
	}

	if t, err := time.Parse(time.RFC3339, BuildTime); err == nil {
		info.BuildTime = t
	}

	return info
}

// Short returns a one-line version string suitable for --version output.
func (i Info) Short() string {
	if len(i.GitCommit) >= 7 && i.GitCommit != "unknown" && !strings.HasPrefix(i.Version, "dev-") {
		return fmt.Sprintf("%s (%s)", i.Version, i.GitCommit[:7])
	}
	return i.Version
}

// String returns a detailed multi-line description.
func (i Info) String() string {
	parts := []string{"Version: " + i.Version}

	if i.GitCommit != "unknown" {
		commit := "Commit: " + i.GitCommit
		if i.Dirty {
			commit += " (dirty)"
		}
		parts = append(parts, commit)
	}
	if !i.BuildTime.IsZero() {
		parts = append(parts, "Built: "+i.BuildTime.Format(time.RFC3339))
	}
	parts = append(parts, "Go: "+i.GoVersion, "Platform: "+i.Platform)

	return strings.Join(parts, "\n")
}

// IsRelease returns true if this is a release build (not dev)
func (i Info) IsRelease() bool {
	return i.Version != "dev" && !strings.HasPrefix(i.Version, "dev-")
}
