package services

import (
	"context"

	"github.com/sourcegraph/conc/pool"

	"github.com/conneroisu/sitepress/internal/config"
	"github.com/conneroisu/sitepress/internal/logging"
	"github.com/conneroisu/sitepress/internal/pipeline"
	"github.com/conneroisu/sitepress/internal/server"
)

// ServeService runs the development server next to a watch session.
type ServeService struct {
	config *config.Config
	build  *BuildService
	logger logging.Logger
}

// NewServeService creates a serve service.
func NewServeService(cfg *config.Config, build *BuildService, logger logging.Logger) *ServeService {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ServeService{config: cfg, build: build, logger: logger}
}

// Serve binds the server, then rebuilds on change and serves the output
// until ctx is done or either side fails. onBuild, when set, is called
// after the server has been told about a build.
func (s *ServeService) Serve(ctx context.Context, onBuild BuildCallback) error {
	srv := server.New(s.config, s.build.MetricsHandler(), s.logger)
	url, err := srv.Listen()
	if err != nil {
		return err
	}
	s.logger.Info(ctx, "Serving site", "url", url, "live_reload", s.config.Serve.LiveReload)

	watch := NewWatchService(s.config, s.build, s.logger)

	p := pool.New().WithErrors().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		return srv.Serve(ctx)
	})
	p.Go(func(ctx context.Context) error {
		return watch.Watch(ctx, func(report *pipeline.Report, err error) {
			srv.BuildFinished(report, err)
			if onBuild != nil {
				onBuild(report, err)
			}
		})
	})
	return p.Wait()
}
