package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitepress/internal/config"
	"github.com/conneroisu/sitepress/internal/pipeline"
	"github.com/conneroisu/sitepress/internal/watcher"
)

type copyPreprocessor struct{}

func (copyPreprocessor) Compile(_ context.Context, path string) ([]byte, error) {
	return os.ReadFile(path)
}

type copyBundler struct{}

func (copyBundler) Bundle(_ context.Context, entry, outfile string) error {
	data, err := os.ReadFile(entry)
	if err != nil {
		return err
	}
	return os.WriteFile(outfile, data, 0o644)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func writeCompiled(t *testing.T, dir string) {
	t.Helper()
	writeFile(t, filepath.Join(dir, "_compiled", "application.js"), "app();")
	writeFile(t, filepath.Join(dir, "_compiled", "worker.js"), "worker();")
}

func newProject(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src", "shell.html"), `<html data-cachebust=""><body>REPLACE_WITH_HTML</body></html>`)
	writeFile(t, filepath.Join(dir, "src", "homepage.html"), "home")
	writeFile(t, filepath.Join(dir, "src", "site.scss"), "a{}")
	writeCompiled(t, dir)

	cfg := config.Default()
	cfg.ProjectDir = dir
	cfg.Serve.Debounce = 20 * time.Millisecond
	return cfg
}

func newBuildService(t *testing.T, cfg *config.Config) *BuildService {
	t.Helper()
	s, err := NewBuildService(cfg, nil,
		pipeline.WithPreprocessor(copyPreprocessor{}),
		pipeline.WithBundler(copyBundler{}))
	require.NoError(t, err)
	return s
}

func TestBuildServiceBuild(t *testing.T) {
	cfg := newProject(t)
	cfg.Metrics.Textfile = "metrics/sitepress.prom"
	s := newBuildService(t, cfg)

	report, err := s.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, pipeline.StateDone, report.State)

	history := s.History()
	assert.Equal(t, int64(1), history.Succeeded)
	assert.Equal(t, int64(report.Token), history.LastToken)

	data, err := os.ReadFile(filepath.Join(cfg.ProjectDir, "metrics", "sitepress.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "sitepress_build_outcomes_total")
}

func TestBuildServiceRecordsFailures(t *testing.T) {
	cfg := newProject(t)
	require.NoError(t, os.Remove(filepath.Join(cfg.ProjectDir, "_compiled", "worker.js")))
	s := newBuildService(t, cfg)

	report, err := s.Build(context.Background())
	require.Error(t, err)
	assert.Equal(t, pipeline.StateFailed, report.State)
	assert.Equal(t, int64(1), s.History().Failed)
}

func TestBuildServiceClean(t *testing.T) {
	cfg := newProject(t)
	writeFile(t, filepath.Join(cfg.ProjectDir, "_packages", "lib.js"), "shim")
	s := newBuildService(t, cfg)

	removed, err := s.Clean(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"_compiled", "_packages"}, removed)
	assert.NoDirExists(t, filepath.Join(cfg.ProjectDir, "_compiled"))
	assert.NoDirExists(t, filepath.Join(cfg.ProjectDir, "_packages"))
	assert.DirExists(t, filepath.Join(cfg.ProjectDir, "src"))
}

func TestWatchInputs(t *testing.T) {
	cfg := newProject(t)
	w := NewWatchService(cfg, newBuildService(t, cfg), nil)
	in := w.inputs()
	dir := cfg.ProjectDir

	assert.True(t, in.accepts(filepath.Join(dir, "src", "about", "index.html")))
	assert.True(t, in.accepts(filepath.Join(dir, "_compiled", "application.js")))
	assert.True(t, in.accepts(filepath.Join(dir, "package.json")))
	assert.True(t, in.accepts(filepath.Join(dir, "CNAME")))
	assert.False(t, in.accepts(filepath.Join(dir, "build", "index.html")))
	assert.False(t, in.accepts(filepath.Join(dir, "_packages", "lib.js")))
	assert.False(t, in.accepts(filepath.Join(dir, "srcs", "x.html")))

	moved := []watcher.ChangeEvent{
		{Type: watcher.EventTypeDeleted, Path: filepath.Join(dir, "_compiled", "application.js")},
		{Type: watcher.EventTypeRenamed, Path: filepath.Join(dir, "_compiled", "worker.js")},
	}
	assert.False(t, in.triggers(moved))
	assert.True(t, in.triggers(append(moved, watcher.ChangeEvent{
		Type: watcher.EventTypeDeleted, Path: filepath.Join(dir, "src", "old.html"),
	})))
}

func TestWatchRebuildsOnChange(t *testing.T) {
	cfg := newProject(t)
	w := NewWatchService(cfg, newBuildService(t, cfg), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	builds := make(chan *pipeline.Report, 10)
	done := make(chan error, 1)
	go func() {
		done <- w.Watch(ctx, func(report *pipeline.Report, err error) {
			select {
			case builds <- report:
			default:
			}
		})
	}()

	first := <-builds
	require.Equal(t, pipeline.StateDone, first.State)

	// The watcher starts after the initial build; give it a moment.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, filepath.Join(cfg.ProjectDir, "src", "homepage.html"), "home v2")

	index := filepath.Join(cfg.ProjectDir, "build", "index.html")
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(index)
		return err == nil && strings.Contains(string(data), "home v2")
	}, 10*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool {
		return w.build.History().LastToken > int64(first.Token)
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
