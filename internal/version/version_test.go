package version

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func withBuildVars(t *testing.T, version, commit, built string) {
	t.Helper()
	oldVersion, oldCommit, oldTime := Version, GitCommit, BuildTime
	Version, GitCommit, BuildTime = version, commit, built
	t.Cleanup(func() {
		Version, GitCommit, BuildTime = oldVersion, oldCommit, oldTime
	})
}

func TestGetUsesLinkerValues(t *testing.T) {
	withBuildVars(t, "v1.2.3", "0123456789abcdef", "2026-01-02T03:04:05Z")

	info := Get()
	assert.Equal(t, "v1.2.3", info.Version)
	assert.Equal(t, "0123456789abcdef", info.GitCommit)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), info.BuildTime)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.True(t, info.IsRelease())
	assert.Equal(t, "v1.2.3 (0123456)", info.Short())
	assert.Contains(t, info.String(), "Built: 2026-01-02T03:04:05Z")
}

func TestGetIgnoresMalformedBuildTime(t *testing.T) {
	withBuildVars(t, "v1.0.0", "unknown", "yesterday")

	info := Get()
	assert.True(t, info.BuildTime.IsZero())
	assert.NotContains(t, info.String(), "Built:")
}

func TestShortForDevBuilds(t *testing.T) {
	info := Info{Version: "dev-abcdef1", GitCommit: "abcdef1234"}
	assert.Equal(t, "dev-abcdef1", info.Short())
	assert.False(t, info.IsRelease())
}
