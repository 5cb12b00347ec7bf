package templater

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitepress/internal/buildctx"
	"github.com/conneroisu/sitepress/internal/cachebust"
	"github.com/conneroisu/sitepress/internal/config"
	"github.com/conneroisu/sitepress/internal/errors"
	"github.com/conneroisu/sitepress/internal/workspace"
)

const testShell = `<html><head><link rel="stylesheet" href="/assets/site.css" data-cachebust=""></head><body>REPLACE_WITH_HTML</body></html>`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func defaultNames() Names {
	cfg := config.Default().HTML
	return Names{Shell: cfg.Shell, Homepage: cfg.Homepage, PageName: cfg.PageName}
}

func newContext(t *testing.T) *buildctx.Context {
	t.Helper()
	dir := t.TempDir()
	ws := buildctx.Workspace{
		SourceRoot: filepath.Join(dir, "src"),
		OutputRoot: filepath.Join(dir, "build"),
		FinalRoot:  filepath.Join(dir, "build"),
		AssetsDir:  "assets",
	}
	require.NoError(t, os.MkdirAll(ws.SourceRoot, 0o755))
	return ws.WithToken(1700000000000)
}

func TestDiscoverPartitions(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "shell.html"), testShell)
	writeFile(t, filepath.Join(root, "homepage.html"), "<h1>home</h1>")
	writeFile(t, filepath.Join(root, "about", "index.html"), "about")
	writeFile(t, filepath.Join(root, "blog", "2024", "index.html"), "post")
	writeFile(t, filepath.Join(root, "partials", "nav.html"), "<nav></nav>")
	writeFile(t, filepath.Join(root, "styles", "site.scss"), "")
	writeFile(t, filepath.Join(root, ".cache", "index.html"), "hidden")

	kinds := map[string]Kind{}
	outputs := map[string]string{}
	for page, err := range Discover(root, defaultNames()).All() {
		require.NoError(t, err)
		kinds[page.Rel] = page.Kind
		outputs[page.Rel] = page.Output
	}

	assert.Equal(t, map[string]Kind{
		"shell.html":           KindShell,
		"homepage.html":        KindHomepage,
		"about/index.html":     KindPage,
		"blog/2024/index.html": KindPage,
		"partials/nav.html":    KindFragment,
	}, kinds)
	assert.Equal(t, "index.html", outputs["homepage.html"])
	assert.Equal(t, "blog/2024/index.html", outputs["blog/2024/index.html"])
	assert.Empty(t, outputs["partials/nav.html"])
}

func TestListingIsNotRestartable(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "about", "index.html"), "about")

	listing := Discover(root, defaultNames())
	count := 0
	for _, err := range listing.All() {
		require.NoError(t, err)
		count++
	}
	assert.Equal(t, 1, count)

	var second []error
	for _, err := range listing.All() {
		second = append(second, err)
	}
	require.Len(t, second, 1)
	assert.ErrorIs(t, second[0], ErrListingConsumed)
}

func TestListingStopsEarly(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 5; i++ {
		writeFile(t, filepath.Join(root, fmt.Sprintf("p%d", i), "index.html"), "x")
	}

	seen := 0
	for range Discover(root, defaultNames()).All() {
		seen++
		if seen == 2 {
			break
		}
	}
	assert.Equal(t, 2, seen)
}

func TestDiscoverMissingRoot(t *testing.T) {
	var got error
	for _, err := range Discover(filepath.Join(t.TempDir(), "nope"), defaultNames()).All() {
		got = err
	}
	require.Error(t, got)
	assert.True(t, errors.IsFilesystemError(got))
}

func TestMergeShell(t *testing.T) {
	stamper := cachebust.NewStamper("data-cachebust", 42)
	shell := `<body data-cachebust="1">REPLACE_WITH_HTML|REPLACE_WITH_HTML</body>`

	got := MergeShell(shell, `<p data-cachebust="">hi</p>`, "REPLACE_WITH_HTML", stamper)
	assert.Equal(t, `<body data-cachebust="42"><p data-cachebust="42">hi</p>|REPLACE_WITH_HTML</body>`, got)

	assert.Equal(t, "<b>x</b>", MergeShell("<b>REPLACE_WITH_HTML</b>", "x", "REPLACE_WITH_HTML", nil))
}

func TestOutputPath(t *testing.T) {
	src := filepath.Join("proj", "src")
	out := filepath.Join("proj", "build")

	assert.Equal(t, filepath.Join(out, "about", "index.html"),
		OutputPath(src, out, filepath.Join(src, "about", "index.html")))
	assert.Equal(t, filepath.Join(out, "index.html"),
		OutputPath(src, out, filepath.Join(src, "homepage.html")))
	assert.Equal(t, filepath.Join(out, "a", "b", "index.html"),
		OutputPath(src, out, filepath.Join(src, "a", "b", "index.html")))
}

func TestExpandIncludes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "partials", "nav.html"), `<nav><A HREF="/">Home</A></nav>`)
	writeFile(t, filepath.Join(root, "partials", "outer.html"), `<import-component src="/partials/nav.html"></import-component>`)

	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "element form",
			doc:  `<body><import-component src="/partials/nav.html">loading</import-component><main></main></body>`,
			want: `<body><nav><A HREF="/">Home</A></nav><main></main></body>`,
		},
		{
			name: "self closing",
			doc:  `<div><import-component src="partials/nav.html"/></div>`,
			want: `<div><nav><A HREF="/">Home</A></nav></div>`,
		},
		{
			name: "single pass",
			doc:  `<import-component src="/partials/outer.html"></import-component>`,
			want: `<import-component src="/partials/nav.html"></import-component>`,
		},
		{
			name: "case of surrounding markup preserved",
			doc:  `<DIV Class="x"><import-component src="/partials/nav.html"></import-component></DIV>`,
			want: `<DIV Class="x"><nav><A HREF="/">Home</A></nav></DIV>`,
		},
		{
			name: "script text untouched",
			doc:  `<script>const s = '<import-component src="/partials/nav.html">';</script>`,
			want: `<script>const s = '<import-component src="/partials/nav.html">';</script>`,
		},
		{
			name: "unclosed directive keeps trailing content",
			doc:  `<import-component src="/partials/nav.html"><footer>f</footer>`,
			want: `<nav><A HREF="/">Home</A></nav><footer>f</footer>`,
		},
		{
			name: "no directives",
			doc:  "<!DOCTYPE html>\n<p>plain &amp; simple</p>",
			want: "<!DOCTYPE html>\n<p>plain &amp; simple</p>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandIncludes(tt.doc, root, "import-component")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpandIncludesErrors(t *testing.T) {
	root := t.TempDir()

	_, err := ExpandIncludes("<p>\n</p>\n<import-component src=\"/missing.html\"></import-component>", root, "import-component")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeIncludeNotFound))
	assert.Equal(t, 3, errors.GetErrorContext(err)["line"])

	_, err = ExpandIncludes(`<import-component src="../../etc/passwd"></import-component>`, root, "import-component")
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
	assert.True(t, errors.HasCode(err, errors.ErrCodePathTraversal))

	_, err = ExpandIncludes(`<import-component></import-component>`, root, "import-component")
	assert.True(t, errors.HasCode(err, errors.ErrCodeIncludeNotFound))
}

func TestRenderWritesEveryPage(t *testing.T) {
	bc := newContext(t)
	writeFile(t, filepath.Join(bc.SourceRoot, "shell.html"), testShell)
	writeFile(t, filepath.Join(bc.SourceRoot, "homepage.html"), "<h1>home</h1>")

	const n = 25
	for i := 0; i < n; i++ {
		writeFile(t, filepath.Join(bc.SourceRoot, fmt.Sprintf("page%02d", i), "index.html"), fmt.Sprintf("<p>%d</p>", i))
	}

	tpl := New(config.Default().HTML, 4, nil)
	result, err := tpl.Render(context.Background(), bc)
	require.NoError(t, err)
	assert.Len(t, result.Pages, n+1)

	files, err := workspace.Files(bc.OutputRoot)
	require.NoError(t, err)
	assert.Len(t, files, n+1)

	got := readFile(t, filepath.Join(bc.OutputRoot, "page07", "index.html"))
	assert.Contains(t, got, "<p>7</p>")
	assert.Contains(t, got, `data-cachebust="1700000000000"`)
	assert.NotContains(t, got, "REPLACE_WITH_HTML")
}

func TestRenderScenario(t *testing.T) {
	bc := newContext(t)
	src := bc.SourceRoot
	writeFile(t, filepath.Join(src, "shell.html"), testShell)
	writeFile(t, filepath.Join(src, "homepage.html"), `<import-component src="/partials/hero.html"></import-component>`)
	writeFile(t, filepath.Join(src, "about", "index.html"), `<h1>About</h1><import-component src="/partials/nav.html"></import-component>`)
	writeFile(t, filepath.Join(src, "partials", "nav.html"), `<nav data-cachebust=""></nav>`)
	writeFile(t, filepath.Join(src, "partials", "hero.html"), `<section>hero</section>`)

	tpl := New(config.Default().HTML, 2, nil)
	result, err := tpl.Render(context.Background(), bc)
	require.NoError(t, err)

	pages := append([]string(nil), result.Pages...)
	sort.Strings(pages)
	assert.Equal(t, []string{"about/index.html", "index.html"}, pages)
	assert.Equal(t, 2, result.Fragments)

	home := readFile(t, filepath.Join(bc.OutputRoot, "index.html"))
	assert.Contains(t, home, "<body><section>hero</section></body>")

	about := readFile(t, filepath.Join(bc.OutputRoot, "about", "index.html"))
	assert.Contains(t, about, `<nav data-cachebust="1700000000000"></nav>`)

	assert.NoFileExists(t, filepath.Join(bc.OutputRoot, "partials", "index.html"))
}

func TestRenderFailures(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		code  string
	}{
		{
			name:  "shell missing",
			files: map[string]string{"homepage.html": "home"},
			code:  errors.ErrCodeShellMissing,
		},
		{
			name:  "placeholder missing",
			files: map[string]string{"shell.html": "<body></body>", "homepage.html": "home"},
			code:  errors.ErrCodePlaceholderMissing,
		},
		{
			name:  "homepage missing",
			files: map[string]string{"shell.html": testShell, "about/index.html": "about"},
			code:  errors.ErrCodeHomepageMissing,
		},
		{
			name:  "root index collides with homepage",
			files: map[string]string{"shell.html": testShell, "homepage.html": "home", "index.html": "dup"},
			code:  errors.ErrCodeDuplicateOutput,
		},
		{
			name: "one page with a missing include fails the stage",
			files: map[string]string{
				"shell.html":    testShell,
				"homepage.html": "home",
				"a/index.html":  "fine",
				"b/index.html":  `<import-component src="/gone.html"></import-component>`,
				"c/index.html":  "fine",
			},
			code: errors.ErrCodeIncludeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bc := newContext(t)
			for name, content := range tt.files {
				writeFile(t, filepath.Join(bc.SourceRoot, filepath.FromSlash(name)), content)
			}

			_, err := New(config.Default().HTML, 2, nil).Render(context.Background(), bc)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.code), err.Error())
		})
	}
}
