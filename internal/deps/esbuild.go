package deps

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/conneroisu/sitepress/internal/errors"
)

// Bundler builds one entry module into a single self-contained script.
type Bundler interface {
	Bundle(ctx context.Context, entry, outfile string) error
}

// EsbuildBundler bundles with esbuild's Go API. Packages are resolved from
// node_modules under the working directory.
type EsbuildBundler struct {
	workDir string
	minify  bool
}

// NewEsbuildBundler creates a bundler resolving packages from workDir.
func NewEsbuildBundler(workDir string, minify bool) (*EsbuildBundler, error) {
	abs, err := filepath.Abs(workDir)
	if err != nil {
		return nil, errors.NewFilesystemError(errors.ErrCodeReadFailed, "cannot resolve working directory", err).
			WithLocation(workDir, 0, 0)
	}
	return &EsbuildBundler{workDir: abs, minify: minify}, nil
}

func (b *EsbuildBundler) options(entry, outfile string) api.BuildOptions {
	return api.BuildOptions{
		AbsWorkingDir:     b.workDir,
		EntryPoints:       []string{entry},
		Outfile:           outfile,
		Bundle:            true,
		Write:             true,
		Format:            api.FormatIIFE,
		Platform:          api.PlatformBrowser,
		MainFields:        []string{"browser", "module", "jsnext:main", "main"},
		ResolveExtensions: []string{".mjs", ".js", ".json", ".cjs"},
		MinifyWhitespace:  b.minify,
		MinifyIdentifiers: b.minify,
		MinifySyntax:      b.minify,
		LogLevel:          api.LogLevelSilent,
	}
}

// Bundle builds entry into outfile. esbuild has no cancellation hook, so
// ctx is only checked before the build starts.
func (b *EsbuildBundler) Bundle(ctx context.Context, entry, outfile string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	result := api.Build(b.options(entry, outfile))
	if len(result.Errors) == 0 {
		return nil
	}
	return messageError(entry, result.Errors)
}

// messageError converts esbuild's diagnostics into a tool error pointing at
// the first reported location.
func messageError(entry string, msgs []api.Message) error {
	texts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		texts = append(texts, m.Text)
	}

	be := errors.NewToolInvocationError(errors.ErrCodeBundleFailed, strings.Join(texts, "; "), nil).
		WithContext("entry", entry).
		WithContext("error_count", len(msgs))

	first := msgs[0]
	if first.Location != nil {
		be = be.WithLocation(first.Location.File, first.Location.Line, first.Location.Column)
		if first.Location.LineText != "" {
			be = be.WithContext("source_line", first.Location.LineText)
		}
	} else {
		be = be.WithLocation(entry, 0, 0)
	}
	return be
}
