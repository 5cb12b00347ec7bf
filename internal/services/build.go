// Package services wires the pipeline into the long-running commands: a
// one-shot build, the rebuild-on-change loop and the development server.
package services

import (
	"context"
	"net/http"
	"path/filepath"

	"github.com/conneroisu/sitepress/internal/config"
	"github.com/conneroisu/sitepress/internal/logging"
	"github.com/conneroisu/sitepress/internal/metrics"
	"github.com/conneroisu/sitepress/internal/pipeline"
	"github.com/conneroisu/sitepress/internal/workspace"
)

// BuildService runs builds and keeps their metrics.
type BuildService struct {
	config    *config.Config
	logger    logging.Logger
	recorder  *metrics.PrometheusRecorder
	history   *metrics.History
	pipeline  *pipeline.Pipeline
	workspace *workspace.Manager
}

// NewBuildService creates a build service. opts are passed to the
// pipeline.
func NewBuildService(cfg *config.Config, logger logging.Logger, opts ...pipeline.Option) (*BuildService, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	recorder := metrics.NewPrometheusRecorder(nil)
	opts = append([]pipeline.Option{pipeline.WithRecorder(recorder)}, opts...)

	p, err := pipeline.New(cfg, logger, opts...)
	if err != nil {
		return nil, err
	}

	return &BuildService{
		config:    cfg,
		logger:    logger.WithComponent("build"),
		recorder:  recorder,
		history:   metrics.NewHistory(),
		pipeline:  p,
		workspace: workspace.NewManager(logger),
	}, nil
}

// Build runs one build. The report is returned even when the build fails.
func (s *BuildService) Build(ctx context.Context) (*pipeline.Report, error) {
	report, err := s.pipeline.Run(ctx)
	s.history.Record(report.Duration, int64(report.Token), len(report.Warnings()), err)

	if path := s.config.Metrics.Textfile; path != "" {
		if !filepath.IsAbs(path) {
			path = filepath.Join(s.config.ProjectDir, path)
		}
		if writeErr := s.recorder.WriteTextfile(path); writeErr != nil {
			s.logger.Warn(ctx, writeErr, "Failed to write metrics textfile", "path", path)
		}
	}
	return report, err
}

// Clean removes the scratch directories a build leaves in the project:
// the compiled bundle directory and the dependency shim directory. It
// returns the directories removed.
func (s *BuildService) Clean(ctx context.Context) ([]string, error) {
	dirs := []string{s.config.Source.CompiledDir, s.config.Deps.ScratchDir}
	removed := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		path := dir
		if !filepath.IsAbs(path) {
			path = filepath.Join(s.config.ProjectDir, path)
		}
		if err := s.workspace.CleanDir(path); err != nil {
			return removed, err
		}
		removed = append(removed, dir)
	}
	s.logger.Info(ctx, "Removed scratch directories", "dirs", removed)
	return removed, nil
}

// Workspace returns the paths builds read and write.
func (s *BuildService) Workspace() pipeline.Workspace { return s.pipeline.Workspace() }

// History returns totals across the builds run by this service.
func (s *BuildService) History() metrics.Totals { return s.history.Totals() }

// MetricsHandler serves the build metrics in the Prometheus format.
func (s *BuildService) MetricsHandler() http.Handler { return s.recorder.HTTPHandler() }
