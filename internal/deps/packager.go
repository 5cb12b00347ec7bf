package deps

import (
	"context"
	"path/filepath"

	"github.com/conneroisu/sitepress/internal/buildctx"
	"github.com/conneroisu/sitepress/internal/config"
	"github.com/conneroisu/sitepress/internal/errors"
	"github.com/conneroisu/sitepress/internal/fanout"
	"github.com/conneroisu/sitepress/internal/logging"
)

// Failure records a dependency that did not bundle.
type Failure struct {
	Name string
	Err  error
}

// Result lists the outcome of a packaging run.
type Result struct {
	// Bundled holds output paths relative to the output root in manifest
	// order.
	Bundled []string
	Failed  []Failure
}

// Packager bundles written shims into the versioned asset directory.
type Packager struct {
	bundler     Bundler
	shimDir     string
	policy      config.FailurePolicy
	concurrency int
	logger      logging.Logger
}

// NewPackager creates a packager reading shims from shimDir.
func NewPackager(bundler Bundler, shimDir string, policy config.FailurePolicy, concurrency int, logger logging.Logger) *Packager {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Packager{
		bundler:     bundler,
		shimDir:     shimDir,
		policy:      policy,
		concurrency: concurrency,
		logger:      logger.WithComponent("deps"),
	}
}

// Bundle builds <shimDir>/<name>.js into <versioned>/<name>.js for every
// name. Every bundle is attempted; the failure policy then decides whether
// a failed bundle fails the run.
func (p *Packager) Bundle(ctx context.Context, bc *buildctx.Context, names []string) (*Result, error) {
	result := &Result{}
	if len(names) == 0 {
		return result, nil
	}

	dir := bc.VersionedDir()
	outcome := fanout.Run(ctx, p.concurrency, names, func(ctx context.Context, _ int, name string) error {
		entry := filepath.Join(p.shimDir, name+".js")
		if err := p.bundler.Bundle(ctx, entry, filepath.Join(dir, name+".js")); err != nil {
			var be *errors.BuildError
			if errors.As(err, &be) {
				return err
			}
			return errors.NewToolInvocationError(errors.ErrCodeBundleFailed, err.Error(), err).
				WithLocation(entry, 0, 0).
				WithContext("bundle", name)
		}
		p.logger.Debug(ctx, "Bundled dependency", "bundle", name)
		return nil
	})

	for i, o := range outcome.Outcomes {
		if o.Started && o.Err == nil {
			result.Bundled = append(result.Bundled,
				filepath.ToSlash(filepath.Join(bc.AssetsDir, bc.Token.String(), names[i]+".js")))
		}
	}

	if outcome.NotStarted() > 0 {
		return result, outcome.FirstError()
	}

	failed := outcome.Failed()
	if len(failed) == 0 {
		p.logger.Info(ctx, "Bundled dependencies", "count", len(result.Bundled))
		return result, nil
	}

	if p.policy == config.PolicyContinue {
		for _, f := range failed {
			p.logger.Warn(ctx, f.Err, "Skipping dependency", "bundle", names[f.Index])
			result.Failed = append(result.Failed, Failure{Name: names[f.Index], Err: f.Err})
		}
		return result, nil
	}

	for _, f := range failed[1:] {
		p.logger.Error(ctx, f.Err, "Dependency failed", "bundle", names[f.Index])
	}
	return result, failed[0].Err
}
