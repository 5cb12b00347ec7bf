// Package relocate places the upstream compiler's bundles into the output
// tree. Sources are copied; removing them is left to the publish step.
package relocate

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/conneroisu/sitepress/internal/buildctx"
	"github.com/conneroisu/sitepress/internal/config"
	"github.com/conneroisu/sitepress/internal/errors"
	"github.com/conneroisu/sitepress/internal/logging"
	"github.com/conneroisu/sitepress/internal/workspace"
)

// Relocate copies src to dst, creating dst's parent directories. The
// source stays in place until the build publishes, so a failed or canceled
// build can be retried from the same compiled output. A missing source is
// an ERR_MISSING_BUNDLE filesystem error.
func Relocate(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewFilesystemError(errors.ErrCodeMissingBundle, "compiled bundle not found", err).
				WithLocation(src, 0, 0)
		}
		return errors.ErrReadFailed(src, err)
	}
	if info.IsDir() {
		return errors.NewFilesystemError(errors.ErrCodeMissingBundle, "compiled bundle is a directory", nil).
			WithLocation(src, 0, 0)
	}
	return workspace.CopyFile(src, dst)
}

// Move is one planned relocation.
type Move struct {
	Source string
	Target string
}

// Relocator places the application and worker bundles and the compiled web
// components.
type Relocator struct {
	config config.BundlesConfig
	logger logging.Logger
}

// New creates a relocator.
func New(cfg config.BundlesConfig, logger logging.Logger) *Relocator {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Relocator{config: cfg, logger: logger.WithComponent("relocate")}
}

// Bundles copies the application and worker bundles from the compiled
// directory to their fixed output locations. It returns the output paths
// relative to the output root.
func (r *Relocator) Bundles(ctx context.Context, ws buildctx.Workspace) ([]string, error) {
	moves := []Move{
		{
			Source: filepath.Join(ws.CompiledDir, filepath.FromSlash(r.config.Application)),
			Target: filepath.FromSlash(r.config.ApplicationTarget),
		},
		{
			Source: filepath.Join(ws.CompiledDir, filepath.FromSlash(r.config.Worker)),
			Target: filepath.FromSlash(r.config.WorkerTarget),
		},
	}

	// Both sources must exist before either is copied.
	for _, m := range moves {
		if _, err := os.Stat(m.Source); err != nil {
			return nil, errors.NewFilesystemError(errors.ErrCodeMissingBundle, "compiled bundle not found", err).
				WithLocation(m.Source, 0, 0)
		}
	}

	out := make([]string, 0, len(moves))
	for _, m := range moves {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if err := Relocate(m.Source, filepath.Join(ws.OutputRoot, m.Target)); err != nil {
			return out, err
		}
		r.logger.Debug(ctx, "Relocated bundle", "from", m.Source, "to", m.Target)
		out = append(out, filepath.ToSlash(m.Target))
	}
	return out, nil
}

// Components copies every compiled web component matching the configured
// glob into the versioned asset directory, keyed by base name. The
// application and worker bundles never count as components. No matches is
// not an error; two components with the same base name are.
func (r *Relocator) Components(ctx context.Context, bc *buildctx.Context) ([]string, error) {
	if r.config.Components == "" {
		return nil, nil
	}
	if _, err := os.Stat(bc.CompiledDir); os.IsNotExist(err) {
		return nil, nil
	}

	matches, err := doublestar.Glob(os.DirFS(bc.CompiledDir), r.config.Components, doublestar.WithFilesOnly())
	if err != nil {
		return nil, errors.NewValidationError(errors.ErrCodeConfigInvalid, "invalid component pattern: "+err.Error())
	}
	matches = r.withoutBundles(matches)
	sort.Strings(matches)

	seen := make(map[string]string, len(matches))
	for _, m := range matches {
		base := filepath.Base(m)
		if prev, ok := seen[base]; ok {
			return nil, errors.NewValidationError(errors.ErrCodeDuplicateOutput,
				"two components share the output name "+base).
				WithLocation(m, 0, 0).
				WithContext("other", prev)
		}
		seen[base] = m
	}

	versioned := bc.VersionedDir()
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		base := filepath.Base(m)
		if err := Relocate(filepath.Join(bc.CompiledDir, filepath.FromSlash(m)), filepath.Join(versioned, base)); err != nil {
			return out, err
		}
		out = append(out, filepath.ToSlash(filepath.Join(bc.AssetsDir, bc.Token.String(), base)))
	}

	if len(out) > 0 {
		r.logger.Info(ctx, "Relocated components", "count", len(out), "dir", versioned)
	}
	return out, nil
}

func (r *Relocator) withoutBundles(matches []string) []string {
	bundles := map[string]bool{
		path.Clean(filepath.ToSlash(r.config.Application)): true,
		path.Clean(filepath.ToSlash(r.config.Worker)):      true,
	}
	kept := matches[:0]
	for _, m := range matches {
		if !bundles[path.Clean(m)] {
			kept = append(kept, m)
		}
	}
	return kept
}
