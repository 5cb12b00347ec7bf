package styles

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitepress/internal/buildctx"
	"github.com/conneroisu/sitepress/internal/config"
	"github.com/conneroisu/sitepress/internal/errors"
)

// fakePreprocessor echoes the source back as CSS and fails for any path
// listed in fail.
type fakePreprocessor struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls []string
}

func (f *fakePreprocessor) Compile(_ context.Context, path string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, filepath.Base(path))
	f.mu.Unlock()

	if f.fail[filepath.Base(path)] {
		return nil, fmt.Errorf("Undefined variable")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return []byte("/* " + filepath.Base(path) + " */" + string(data)), nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newContext(t *testing.T) *buildctx.Context {
	t.Helper()
	dir := t.TempDir()
	ws := buildctx.Workspace{
		ProjectDir: dir,
		SourceRoot: filepath.Join(dir, "src"),
		OutputRoot: filepath.Join(dir, "build"),
		FinalRoot:  filepath.Join(dir, "build"),
		AssetsDir:  "assets",
	}
	bc := ws.WithToken(1700000000000)
	require.NoError(t, os.MkdirAll(bc.VersionedDir(), 0o755))
	return bc
}

func TestOutputName(t *testing.T) {
	tests := []struct {
		path    string
		want    string
		wantErr bool
	}{
		{path: "src/Main.scss", want: "main"},
		{path: "src/theme/Dark.SASS", want: "dark"},
		{path: "src/ print.scss ", want: "print"},
		{path: "src/vendor.css.scss", want: "vendor.css"},
		{path: "src/.scss", wantErr: true},
		{path: "src/   .sass", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := OutputName(tt.path)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.HasCode(err, errors.ErrCodeEmptyOutputName))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "main.scss"), "")
	writeFile(t, filepath.Join(root, "theme", "dark.sass"), "")
	writeFile(t, filepath.Join(root, "theme", "_vars.scss"), "")
	writeFile(t, filepath.Join(root, "about", "index.html"), "")

	files, err := Discover(root, []string{"**/*.scss", "**/*.sass", "*.scss"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "main.scss"),
		filepath.Join(root, "theme", "dark.sass"),
	}, files)

	files, err = Discover(filepath.Join(root, "missing"), []string{"**/*.scss"})
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestPlanRejectsDuplicateNames(t *testing.T) {
	_, err := Plan([]string{"src/a/Site.scss", "src/b/site.sass"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeDuplicateOutput))
}

func TestCompileWritesVersionedCSS(t *testing.T) {
	bc := newContext(t)
	main := filepath.Join(bc.SourceRoot, "Main.scss")
	printSheet := filepath.Join(bc.SourceRoot, "print.sass")
	writeFile(t, main, "body{}")
	writeFile(t, printSheet, "p{}")

	c := NewCompiler(&fakePreprocessor{}, config.PolicyAbort, 2, nil)
	result, err := c.Compile(context.Background(), bc, []string{main, printSheet})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"assets/1700000000000/main.css",
		"assets/1700000000000/print.css",
	}, result.Compiled)
	assert.Empty(t, result.Failed)

	css, err := os.ReadFile(filepath.Join(bc.VersionedDir(), "main.css"))
	require.NoError(t, err)
	assert.Equal(t, "/* Main.scss */body{}", string(css))
}

func TestCompileFailurePolicies(t *testing.T) {
	tests := []struct {
		name    string
		policy  config.FailurePolicy
		wantErr bool
	}{
		{name: "abort", policy: config.PolicyAbort, wantErr: true},
		{name: "continue", policy: config.PolicyContinue, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bc := newContext(t)
			bad := filepath.Join(bc.SourceRoot, "bad.scss")
			good := filepath.Join(bc.SourceRoot, "good.scss")
			writeFile(t, bad, "")
			writeFile(t, good, "a{}")

			pre := &fakePreprocessor{fail: map[string]bool{"bad.scss": true}}
			c := NewCompiler(pre, tt.policy, 1, nil)
			result, err := c.Compile(context.Background(), bc, []string{bad, good})

			// The sibling is always attempted and written.
			assert.ElementsMatch(t, []string{"bad.scss", "good.scss"}, pre.calls)
			assert.FileExists(t, filepath.Join(bc.VersionedDir(), "good.css"))
			assert.NoFileExists(t, filepath.Join(bc.VersionedDir(), "bad.css"))

			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsToolInvocationError(err))
				assert.True(t, errors.HasCode(err, errors.ErrCodeStyleCompile))
				return
			}
			require.NoError(t, err)
			require.Len(t, result.Failed, 1)
			assert.Equal(t, bad, result.Failed[0].Source)
			assert.Equal(t, []string{"assets/1700000000000/good.css"}, result.Compiled)
		})
	}
}

func TestCompileEmptyNameIsItemFailure(t *testing.T) {
	bc := newContext(t)
	empty := filepath.Join(bc.SourceRoot, ".scss")
	good := filepath.Join(bc.SourceRoot, "good.scss")
	writeFile(t, empty, "")
	writeFile(t, good, "")

	c := NewCompiler(&fakePreprocessor{}, config.PolicyContinue, 2, nil)
	result, err := c.Compile(context.Background(), bc, []string{empty, good})
	require.NoError(t, err)
	require.Len(t, result.Failed, 1)
	assert.True(t, errors.HasCode(result.Failed[0].Err, errors.ErrCodeEmptyOutputName))
	assert.Equal(t, []string{"assets/1700000000000/good.css"}, result.Compiled)
}

func TestCompileCanceled(t *testing.T) {
	bc := newContext(t)
	a := filepath.Join(bc.SourceRoot, "a.scss")
	writeFile(t, a, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewCompiler(&fakePreprocessor{}, config.PolicyContinue, 1, nil)
	_, err := c.Compile(ctx, bc, []string{a})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewSassCLIRejectsCommand(t *testing.T) {
	cfg := config.Default().Styles

	cfg.Command = "node"
	_, err := NewSassCLI(cfg, t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeCommandRejected))

	cfg.Command = "sass"
	cfg.Args = []string{"--load-path=$(whoami)"}
	_, err = NewSassCLI(cfg, t.TempDir())
	require.Error(t, err)
}

func TestSassCLICompile(t *testing.T) {
	if _, err := exec.LookPath("sass"); err != nil {
		t.Skip("sass not installed")
	}

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src", "site.scss"), "$c: red;\nbody { color: $c; }\n")
	writeFile(t, filepath.Join(dir, "src", "broken.scss"), "body { color: $missing; }\n")

	s, err := NewSassCLI(config.Default().Styles, dir)
	require.NoError(t, err)

	css, err := s.Compile(context.Background(), filepath.Join(dir, "src", "site.scss"))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(css), "color:red"))

	_, err = s.Compile(context.Background(), filepath.Join(dir, "src", "broken.scss"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeStyleCompile))
}
