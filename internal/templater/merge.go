package templater

import (
	"path/filepath"
	"strings"

	"github.com/conneroisu/sitepress/internal/cachebust"
)

const pageFile = "index.html"

// MergeShell substitutes page for the first occurrence of placeholder in
// shell and stamps every cache-bust attribute of the result.
func MergeShell(shell, page, placeholder string, stamper *cachebust.Stamper) string {
	merged := strings.Replace(shell, placeholder, page, 1)
	if stamper == nil {
		return merged
	}
	return stamper.Stamp(merged)
}

// OutputPath maps a page source path to its rendered location: the page's
// directory mirrored under outputRoot with the file named index.html. A
// page at the source root maps to outputRoot/index.html.
func OutputPath(sourceRoot, outputRoot, sourcePath string) string {
	rel, err := filepath.Rel(sourceRoot, sourcePath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.Join(outputRoot, pageFile)
	}
	return filepath.Join(outputRoot, filepath.Dir(rel), pageFile)
}
