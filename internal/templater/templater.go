// Package templater renders the site's HTML pages: every page is merged into
// the shared shell, include directives are expanded, and cache-bust
// attributes are stamped with the build token.
package templater

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/conneroisu/sitepress/internal/buildctx"
	"github.com/conneroisu/sitepress/internal/cachebust"
	"github.com/conneroisu/sitepress/internal/config"
	"github.com/conneroisu/sitepress/internal/errors"
	"github.com/conneroisu/sitepress/internal/fanout"
	"github.com/conneroisu/sitepress/internal/logging"
	"github.com/conneroisu/sitepress/internal/workspace"
)

// Result lists what a render wrote.
type Result struct {
	// Pages holds output paths relative to the output root, in discovery
	// order. The homepage is included.
	Pages     []string
	Fragments int
}

// Templater renders pages for one configuration.
type Templater struct {
	config      config.HTMLConfig
	concurrency int
	logger      logging.Logger
}

// New creates a templater.
func New(cfg config.HTMLConfig, concurrency int, logger logging.Logger) *Templater {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Templater{config: cfg, concurrency: concurrency, logger: logger.WithComponent("templater")}
}

func (t *Templater) names() Names {
	return Names{Shell: t.config.Shell, Homepage: t.config.Homepage, PageName: t.config.PageName}
}

// Render writes every page and the homepage under bc.OutputRoot. It returns
// only after every page has been written or has failed; any failure fails
// the render.
func (t *Templater) Render(ctx context.Context, bc *buildctx.Context) (*Result, error) {
	shell, err := t.readShell(bc.SourceRoot)
	if err != nil {
		return nil, err
	}

	pages, fragments, err := t.collect(bc.SourceRoot)
	if err != nil {
		return nil, err
	}

	stamper := cachebust.NewStamper(t.config.CachebustAttribute, bc.Token)
	includer := NewIncluder(bc.SourceRoot, t.config.IncludeTag)

	result := fanout.Run(ctx, t.concurrency, pages, func(ctx context.Context, _ int, page Page) error {
		return t.renderPage(ctx, bc, shell, page, stamper, includer)
	})

	if failed := result.Failed(); len(failed) > 0 {
		for _, f := range failed[1:] {
			t.logger.Error(ctx, f.Err, "Page failed", "page", pages[f.Index].Rel)
		}
		return nil, failed[0].Err
	}
	if err := result.FirstError(); err != nil {
		return nil, err
	}

	out := &Result{Pages: make([]string, len(pages)), Fragments: fragments}
	for i, p := range pages {
		out.Pages[i] = p.Output
	}

	t.logger.Info(ctx, "Rendered pages", "pages", len(pages), "fragments", fragments)
	return out, nil
}

func (t *Templater) readShell(sourceRoot string) (string, error) {
	path := filepath.Join(sourceRoot, filepath.FromSlash(t.config.Shell))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewValidationError(errors.ErrCodeShellMissing, "shell template not found").
				WithLocation(path, 0, 0)
		}
		return "", errors.ErrReadFailed(path, err)
	}

	shell := string(data)
	if !strings.Contains(shell, t.config.Placeholder) {
		return "", errors.NewValidationError(errors.ErrCodePlaceholderMissing,
			"shell template has no "+t.config.Placeholder+" placeholder").
			WithLocation(path, 0, 0)
	}
	return shell, nil
}

// collect materializes the listing into the read-only work list handed to
// the fan-out. The homepage is required and output paths must be unique.
func (t *Templater) collect(sourceRoot string) ([]Page, int, error) {
	var (
		pages     []Page
		fragments int
		homepage  bool
	)
	owners := make(map[string]string)

	for page, err := range Discover(sourceRoot, t.names()).All() {
		if err != nil {
			return nil, 0, err
		}
		switch page.Kind {
		case KindFragment:
			fragments++
			continue
		case KindShell:
			continue
		case KindHomepage:
			homepage = true
		}

		if other, ok := owners[page.Output]; ok {
			return nil, 0, errors.NewValidationError(errors.ErrCodeDuplicateOutput,
				"two pages render to "+page.Output).
				WithLocation(page.Path, 0, 0).
				WithContext("other", other)
		}
		owners[page.Output] = page.Rel
		pages = append(pages, page)
	}

	if !homepage {
		return nil, 0, errors.NewValidationError(errors.ErrCodeHomepageMissing, "homepage not found").
			WithLocation(filepath.Join(sourceRoot, filepath.FromSlash(t.config.Homepage)), 0, 0)
	}
	return pages, fragments, nil
}

func (t *Templater) renderPage(ctx context.Context, bc *buildctx.Context, shell string, page Page, stamper *cachebust.Stamper, includer *Includer) error {
	body, err := os.ReadFile(page.Path)
	if err != nil {
		return errors.ErrReadFailed(page.Path, err)
	}

	document := MergeShell(shell, string(body), t.config.Placeholder, stamper)

	document, err = includer.Expand(document)
	if err != nil {
		var be *errors.BuildError
		if errors.As(err, &be) && be.FilePath == "" {
			be.FilePath = page.Path
		}
		return err
	}

	// Included fragments may carry their own cache-bust attributes.
	document = stamper.Stamp(document)

	target := filepath.Join(bc.OutputRoot, filepath.FromSlash(page.Output))
	if err := workspace.WriteFile(target, []byte(document)); err != nil {
		return err
	}

	t.logger.Debug(ctx, "Rendered page", "page", page.Rel, "output", page.Output)
	return nil
}
