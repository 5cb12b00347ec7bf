package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/conneroisu/sitepress/internal/config"
	"github.com/conneroisu/sitepress/internal/logging"
	"github.com/conneroisu/sitepress/internal/pipeline"
	"github.com/conneroisu/sitepress/internal/watcher"
)

// BuildCallback receives the outcome of every build in a watch session.
type BuildCallback func(report *pipeline.Report, err error)

// WatchService rebuilds the site whenever its inputs change.
type WatchService struct {
	config *config.Config
	build  *BuildService
	logger logging.Logger
}

// NewWatchService creates a watch service running builds through build.
func NewWatchService(cfg *config.Config, build *BuildService, logger logging.Logger) *WatchService {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &WatchService{config: cfg, build: build, logger: logger.WithComponent("watch")}
}

// inputs lists what a rebuild depends on.
type inputs struct {
	sourceRoot  string
	compiledDir string
	files       map[string]bool
}

func (s *WatchService) inputs() inputs {
	ws := s.build.Workspace()
	in := inputs{
		sourceRoot:  absPath(ws.SourceRoot),
		compiledDir: absPath(ws.CompiledDir),
		files:       make(map[string]bool),
	}
	in.files[absPath(filepath.Join(s.config.ProjectDir, s.config.Deps.Manifest))] = true
	for _, name := range s.config.Source.Passthrough {
		in.files[absPath(filepath.Join(s.config.ProjectDir, name))] = true
	}
	return in
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

func within(root, path string) bool {
	return path == root || strings.HasPrefix(path, root+string(filepath.Separator))
}

// accepts reports whether a change to path can affect the build.
func (in inputs) accepts(path string) bool {
	path = absPath(path)
	return within(in.sourceRoot, path) || within(in.compiledDir, path) || in.files[path]
}

// triggers reports whether a batch should start a rebuild. Removals in the
// compiled directory are skipped: the upstream compiler clears it before
// re-emitting, and the writes that follow start the rebuild.
func (in inputs) triggers(events []watcher.ChangeEvent) bool {
	for _, e := range events {
		moved := e.Type == watcher.EventTypeDeleted || e.Type == watcher.EventTypeRenamed
		if moved && within(in.compiledDir, absPath(e.Path)) {
			continue
		}
		return true
	}
	return false
}

// Watch builds once and then again after every relevant batch of changes
// until ctx is done. Build failures are passed to onBuild and do not stop
// the session.
func (s *WatchService) Watch(ctx context.Context, onBuild BuildCallback) error {
	in := s.inputs()

	if err := os.MkdirAll(in.compiledDir, 0o755); err != nil {
		return fmt.Errorf("creating compiled directory: %w", err)
	}

	fw, err := watcher.NewFileWatcher(s.config.Serve.Debounce, s.logger)
	if err != nil {
		return err
	}
	defer fw.Stop()

	fw.AddFilter(in.accepts)
	fw.AddFilter(watcher.IgnoreFilter(s.config.ProjectDir, []string{"**/.*", "**/.*/**"}))
	fw.AddFilter(watcher.NoEditorTempFilter)

	for _, root := range []string{in.sourceRoot, in.compiledDir} {
		if _, err := os.Stat(root); os.IsNotExist(err) {
			continue
		}
		if err := fw.AddRecursive(root); err != nil {
			return fmt.Errorf("watching %s: %w", root, err)
		}
	}
	// Files are watched through their directory so editors that replace
	// the file on save keep being seen.
	if err := fw.AddPath(s.config.ProjectDir); err != nil {
		return fmt.Errorf("watching %s: %w", s.config.ProjectDir, err)
	}

	rebuild := func(ctx context.Context, reason string) {
		s.logger.Info(ctx, "Building", "reason", reason)
		report, err := s.build.Build(ctx)
		if onBuild != nil {
			onBuild(report, err)
		}
	}

	fw.AddHandler(func(ctx context.Context, events []watcher.ChangeEvent) error {
		if !in.triggers(events) {
			return nil
		}
		rebuild(ctx, fmt.Sprintf("%d changed files", len(events)))
		return nil
	})

	rebuild(ctx, "initial build")

	if err := fw.Start(ctx); err != nil {
		return err
	}
	s.logger.Info(ctx, "Watching for changes", "source", in.sourceRoot)

	<-ctx.Done()
	return nil
}
