// Package styles compiles the site's stylesheets into the versioned asset
// directory.
package styles

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/text/cases"

	"github.com/conneroisu/sitepress/internal/buildctx"
	"github.com/conneroisu/sitepress/internal/config"
	"github.com/conneroisu/sitepress/internal/errors"
	"github.com/conneroisu/sitepress/internal/fanout"
	"github.com/conneroisu/sitepress/internal/logging"
	"github.com/conneroisu/sitepress/internal/workspace"
)

var styleExtensions = []string{".scss", ".sass"}

// Discover returns the stylesheet sources under sourceRoot matching any of
// patterns, sorted and rooted at sourceRoot. Partials (files whose name
// starts with an underscore) are skipped. A missing source root yields no
// files.
func Discover(sourceRoot string, patterns []string) ([]string, error) {
	if _, err := os.Stat(sourceRoot); os.IsNotExist(err) {
		return nil, nil
	}

	fsys := os.DirFS(sourceRoot)
	seen := make(map[string]bool)
	for _, pattern := range patterns {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, errors.NewValidationError(errors.ErrCodeConfigInvalid,
				"invalid stylesheet pattern "+pattern+": "+err.Error())
		}
		for _, m := range matches {
			if strings.HasPrefix(filepath.Base(m), "_") {
				continue
			}
			seen[m] = true
		}
	}

	files := make([]string, 0, len(seen))
	for m := range seen {
		files = append(files, filepath.Join(sourceRoot, filepath.FromSlash(m)))
	}
	sort.Strings(files)
	return files, nil
}

// OutputName derives the CSS base name for a stylesheet source: the file's
// base name, case-folded, with a .scss or .sass extension removed and
// surrounding space trimmed.
func OutputName(path string) (string, error) {
	name := strings.TrimSpace(cases.Fold().String(filepath.Base(path)))
	for _, ext := range styleExtensions {
		if strings.HasSuffix(name, ext) {
			name = strings.TrimSuffix(name, ext)
			break
		}
	}
	name = strings.TrimSpace(name)

	if name == "" || name == "." {
		return "", errors.NewValidationError(errors.ErrCodeEmptyOutputName,
			"stylesheet has an empty output name").
			WithLocation(path, 0, 0)
	}
	return name, nil
}

// Job is one stylesheet to compile.
type Job struct {
	Source string
	Name   string
	err    error
}

// Output returns the job's file name inside the versioned directory.
func (j Job) Output() string { return j.Name + ".css" }

// Failure records a stylesheet that did not compile.
type Failure struct {
	Source string
	Err    error
}

// Result lists the outcome of a compile.
type Result struct {
	// Compiled holds output paths relative to the output root in source
	// order.
	Compiled []string
	// Failed is only populated under the continue policy.
	Failed []Failure
}

// Compiler compiles stylesheets through a Preprocessor.
type Compiler struct {
	pre         Preprocessor
	policy      config.FailurePolicy
	concurrency int
	logger      logging.Logger
}

// NewCompiler creates a compiler.
func NewCompiler(pre Preprocessor, policy config.FailurePolicy, concurrency int, logger logging.Logger) *Compiler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Compiler{pre: pre, policy: policy, concurrency: concurrency, logger: logger.WithComponent("styles")}
}

// Plan derives a job per file. A file whose name is empty becomes a failed
// job; two files with the same output name are an error for the whole
// plan.
func Plan(files []string) ([]Job, error) {
	jobs := make([]Job, len(files))
	owners := make(map[string]string, len(files))
	for i, f := range files {
		name, err := OutputName(f)
		jobs[i] = Job{Source: f, Name: name, err: err}
		if err != nil {
			continue
		}
		if other, ok := owners[name]; ok {
			return nil, errors.NewValidationError(errors.ErrCodeDuplicateOutput,
				"two stylesheets compile to "+name+".css").
				WithLocation(f, 0, 0).
				WithContext("other", other)
		}
		owners[name] = f
	}
	return jobs, nil
}

// Compile compiles files into bc's versioned directory. Every file is
// attempted; under the abort policy any failure fails the compile once all
// files have reported, under the continue policy failures are returned in
// Result.Failed.
func (c *Compiler) Compile(ctx context.Context, bc *buildctx.Context, files []string) (*Result, error) {
	jobs, err := Plan(files)
	if err != nil {
		return nil, err
	}

	dir := bc.VersionedDir()
	outcome := fanout.Run(ctx, c.concurrency, jobs, func(ctx context.Context, _ int, job Job) error {
		if job.err != nil {
			return job.err
		}

		css, err := c.pre.Compile(ctx, job.Source)
		if err != nil {
			var be *errors.BuildError
			if errors.As(err, &be) {
				return err
			}
			return errors.NewToolInvocationError(errors.ErrCodeStyleCompile, err.Error(), err).
				WithLocation(job.Source, 0, 0)
		}

		if err := workspace.WriteFile(filepath.Join(dir, job.Output()), css); err != nil {
			return err
		}
		c.logger.Debug(ctx, "Compiled stylesheet", "source", job.Source, "output", job.Output())
		return nil
	})

	result := &Result{}
	for i, o := range outcome.Outcomes {
		if o.Started && o.Err == nil {
			result.Compiled = append(result.Compiled,
				filepath.ToSlash(filepath.Join(bc.AssetsDir, bc.Token.String(), jobs[i].Output())))
		}
	}

	if n := outcome.NotStarted(); n > 0 {
		return result, outcome.FirstError()
	}

	failed := outcome.Failed()
	if len(failed) == 0 {
		c.logger.Info(ctx, "Compiled stylesheets", "count", len(result.Compiled))
		return result, nil
	}

	if c.policy == config.PolicyContinue {
		for _, f := range failed {
			c.logger.Warn(ctx, f.Err, "Skipping stylesheet", "source", jobs[f.Index].Source)
			result.Failed = append(result.Failed, Failure{Source: jobs[f.Index].Source, Err: f.Err})
		}
		return result, nil
	}

	for _, f := range failed[1:] {
		c.logger.Error(ctx, f.Err, "Stylesheet failed", "source", jobs[f.Index].Source)
	}
	return result, failed[0].Err
}
