// Package pipeline runs a complete site build: it sequences the workspace,
// relocation, templating, style and dependency stages, and publishes the
// result only when every stage succeeded.
package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/conneroisu/sitepress/internal/buildctx"
	"github.com/conneroisu/sitepress/internal/cachebust"
	"github.com/conneroisu/sitepress/internal/config"
	"github.com/conneroisu/sitepress/internal/deps"
	"github.com/conneroisu/sitepress/internal/errors"
	"github.com/conneroisu/sitepress/internal/logging"
	"github.com/conneroisu/sitepress/internal/metrics"
	"github.com/conneroisu/sitepress/internal/relocate"
	"github.com/conneroisu/sitepress/internal/styles"
	"github.com/conneroisu/sitepress/internal/templater"
	"github.com/conneroisu/sitepress/internal/workspace"
)

type (
	// BuildContext is the read-only value every stage after allocation
	// receives.
	BuildContext = buildctx.Context
	Workspace    = buildctx.Workspace
)

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithPreprocessor replaces the sass command line compiler.
func WithPreprocessor(pre styles.Preprocessor) Option {
	return func(p *Pipeline) { p.preprocessor = pre }
}

// WithBundler replaces the esbuild bundler.
func WithBundler(b deps.Bundler) Option {
	return func(p *Pipeline) { p.bundler = b }
}

// WithRecorder sends stage and build metrics to r.
func WithRecorder(r metrics.Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithObserver adds an observer notified around every stage.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observers = append(p.observers, o) }
}

// WithClock sets the clock tokens are allocated from.
func WithClock(c cachebust.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// Pipeline builds one project. A Pipeline may run many builds in sequence;
// tokens allocated across those builds strictly increase.
type Pipeline struct {
	config *config.Config
	logger logging.Logger

	clock        cachebust.Clock
	preprocessor styles.Preprocessor
	bundler      deps.Bundler
	recorder     metrics.Recorder
	observers    []Observer

	workspace *workspace.Manager
	allocator *cachebust.Allocator
	relocator *relocate.Relocator
	templater *templater.Templater
	styles    *styles.Compiler
	packager  *deps.Packager
}

// New creates a pipeline for cfg.
func New(cfg *config.Config, logger logging.Logger, opts ...Option) (*Pipeline, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	p := &Pipeline{
		config:   cfg,
		logger:   logger.WithComponent("pipeline"),
		recorder: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.preprocessor == nil {
		sass, err := styles.NewSassCLI(cfg.Styles, cfg.ProjectDir)
		if err != nil {
			return nil, err
		}
		p.preprocessor = sass
	}
	if p.bundler == nil {
		esb, err := deps.NewEsbuildBundler(cfg.ProjectDir, cfg.Deps.Minify)
		if err != nil {
			return nil, err
		}
		p.bundler = esb
	}

	concurrency := cfg.Build.Concurrency
	p.workspace = workspace.NewManager(logger)
	p.allocator = cachebust.NewAllocator(p.clock)
	p.relocator = relocate.New(cfg.Bundles, logger)
	p.templater = templater.New(cfg.HTML, concurrency, logger)
	p.styles = styles.NewCompiler(p.preprocessor, cfg.Styles.OnError, concurrency, logger)
	p.packager = deps.NewPackager(p.bundler, p.path(cfg.Deps.ScratchDir), cfg.Deps.OnError, concurrency, logger)

	p.observers = append([]Observer{logObserver{logger: p.logger}, metricsObserver{recorder: p.recorder}}, p.observers...)
	p.recorder.SetConcurrency(concurrency)
	return p, nil
}

func (p *Pipeline) path(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(p.config.ProjectDir, rel)
}

// Workspace returns the paths a build reads and writes, before staging.
func (p *Pipeline) Workspace() Workspace {
	final := p.path(p.config.Output.Root)
	return Workspace{
		ProjectDir:  p.config.ProjectDir,
		SourceRoot:  p.path(p.config.Source.Root),
		CompiledDir: p.path(p.config.Source.CompiledDir),
		OutputRoot:  final,
		FinalRoot:   final,
		AssetsDir:   p.config.Output.AssetsDir,
	}
}

// stageOutput is what a stage function reports.
type stageOutput struct {
	artifacts []string
	warnings  []string
}

type step struct {
	stage Stage
	run   func(ctx context.Context) (stageOutput, error)
}

// Run performs one build. The returned report is always non-nil. On
// failure the error is a *errors.BuildError carrying the failed stage, no
// later stage runs, and the staging root is removed so the previous output
// stays in place.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	ws := p.Workspace()
	ws.BuildID = uuid.NewString()

	report := newReport(ws.BuildID, ws.FinalRoot)
	logger := p.logger.With("build_id", ws.BuildID)
	logger.Info(ctx, "Build started", "source", ws.SourceRoot, "output", ws.FinalRoot)

	var bc *BuildContext
	staging := ""

	steps := []step{
		{StageReset, func(ctx context.Context) (stageOutput, error) {
			if !p.config.Output.Atomic {
				return stageOutput{}, p.workspace.Reset(ws.FinalRoot, ws.AssetsDir)
			}
			root, err := p.workspace.BeginStaging(ws.FinalRoot, ws.AssetsDir)
			if err != nil {
				return stageOutput{}, err
			}
			staging = root
			ws.OutputRoot = root
			return stageOutput{}, nil
		}},
		{StageRelocate, func(ctx context.Context) (stageOutput, error) {
			moved, err := p.relocator.Bundles(ctx, ws)
			return stageOutput{artifacts: moved}, err
		}},
		{StageAllocate, func(ctx context.Context) (stageOutput, error) {
			token := p.allocator.Allocate()
			if _, err := cachebust.CreateVersionedDirectory(ws.OutputRoot, ws.AssetsDir, token); err != nil {
				return stageOutput{}, err
			}
			bc = ws.WithToken(token)
			report.Token = token

			components, err := p.relocator.Components(ctx, bc)
			return stageOutput{artifacts: components}, err
		}},
		{StageTemplate, func(ctx context.Context) (stageOutput, error) {
			result, err := p.templater.Render(ctx, bc)
			if err != nil {
				return stageOutput{}, err
			}
			return stageOutput{artifacts: result.Pages}, nil
		}},
		{StageStyles, func(ctx context.Context) (stageOutput, error) {
			files, err := styles.Discover(bc.SourceRoot, p.config.Styles.Patterns)
			if err != nil {
				return stageOutput{}, err
			}
			result, err := p.styles.Compile(ctx, bc, files)
			if err != nil {
				return stageOutput{}, err
			}
			out := stageOutput{artifacts: result.Compiled}
			for _, f := range result.Failed {
				out.warnings = append(out.warnings, f.Err.Error())
			}
			return out, nil
		}},
		{StageDeps, func(ctx context.Context) (stageOutput, error) {
			return p.bundleDependencies(ctx, bc)
		}},
		{StagePassthrough, func(ctx context.Context) (stageOutput, error) {
			copied, err := p.workspace.CopyPassthrough(ws.ProjectDir, ws.OutputRoot, p.config.Source.Passthrough)
			return stageOutput{artifacts: copied}, err
		}},
		{StagePublish, func(ctx context.Context) (stageOutput, error) {
			if err := ctx.Err(); err != nil {
				return stageOutput{}, err
			}
			if staging != "" {
				if err := p.workspace.Publish(staging, ws.FinalRoot); err != nil {
					return stageOutput{}, err
				}
				staging = ""
			}
			if p.config.Bundles.CleanCompiled {
				if err := p.workspace.CleanDir(ws.CompiledDir); err != nil {
					return stageOutput{}, err
				}
			}
			return stageOutput{}, nil
		}},
	}

	m := newMachine()
	var runErr error
	for _, s := range steps {
		if err := m.enter(s.stage); err != nil {
			runErr = errors.WrapInternal(err, errors.ErrCodeInternalError, "invalid stage transition")
			break
		}
		report.State = m.state

		if runErr = p.runStage(ctx, report, s); runErr != nil {
			break
		}
	}

	if runErr == nil {
		if err := m.finish(); err != nil {
			runErr = errors.WrapInternal(err, errors.ErrCodeInternalError, "invalid stage transition")
		}
	}

	report.Duration = time.Since(start)
	p.recorder.ObserveBuildDuration(report.Duration)

	if runErr != nil {
		m.fail()
		report.State = m.state
		p.workspace.Abort(staging)

		outcome := metrics.OutcomeFailed
		if ctx.Err() != nil {
			outcome = metrics.OutcomeCanceled
		}
		p.recorder.IncBuildOutcome(outcome)

		logger.Error(ctx, runErr, "Build failed", errors.ContextFields(runErr)...)
		return report, runErr
	}

	report.State = m.state
	outcome := metrics.OutcomeSuccess
	if len(report.Warnings()) > 0 {
		outcome = metrics.OutcomeWarning
	}
	p.recorder.IncBuildOutcome(outcome)

	logger.Info(ctx, "Build finished",
		"token", report.Token.String(),
		"artifacts", len(report.Artifacts()),
		"warnings", len(report.Warnings()),
		"duration_ms", report.Duration.Milliseconds())
	return report, nil
}

// runStage runs one step, records it in report and notifies observers. The
// returned error carries the stage.
func (p *Pipeline) runStage(ctx context.Context, report *Report, s step) error {
	for _, o := range p.observers {
		o.StageStarted(ctx, s.stage)
	}

	start := time.Now()
	out, err := s.run(ctx)

	sr := report.Stage(s.stage)
	sr.Duration = time.Since(start)
	sr.Artifacts = out.artifacts
	sr.Warnings = out.warnings

	switch {
	case err != nil:
		sr.Status = StatusFailed
		err = stageError(err, s.stage)
		sr.Error = err.Error()
	case len(out.warnings) > 0:
		sr.Status = StatusWarning
	default:
		sr.Status = StatusSucceeded
	}

	for _, o := range p.observers {
		o.StageFinished(ctx, *sr)
	}
	return err
}

// stageError returns err as a BuildError tagged with stage.
func stageError(err error, stage Stage) *errors.BuildError {
	var be *errors.BuildError
	if !errors.As(err, &be) {
		be = errors.WrapInternal(err, errors.ErrCodeInternalError, "stage failed")
	}
	return be.WithStage(string(stage))
}

// bundleDependencies writes a shim per manifest entry and bundles each into
// the versioned directory.
func (p *Pipeline) bundleDependencies(ctx context.Context, bc *BuildContext) (stageOutput, error) {
	descriptors, err := deps.ReadManifest(p.path(p.config.Deps.Manifest), p.config.Deps.Key)
	if err != nil {
		return stageOutput{}, err
	}

	names, err := deps.WriteShims(ctx, p.path(p.config.Deps.ScratchDir), descriptors, p.config.Build.Concurrency)
	if err != nil {
		return stageOutput{}, err
	}

	result, err := p.packager.Bundle(ctx, bc, names)
	if err != nil {
		return stageOutput{}, err
	}

	out := stageOutput{artifacts: result.Bundled}
	for _, f := range result.Failed {
		out.warnings = append(out.warnings, f.Name+": "+f.Err.Error())
	}
	return out, nil
}
