package templater

import (
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/conneroisu/sitepress/internal/errors"
)

// Kind classifies a discovered HTML source file.
type Kind int

const (
	// KindFragment is any HTML file that is neither a page nor the shell or
	// homepage. Fragments are only reachable through include directives.
	KindFragment Kind = iota
	KindPage
	KindHomepage
	KindShell
)

func (k Kind) String() string {
	switch k {
	case KindPage:
		return "page"
	case KindHomepage:
		return "homepage"
	case KindShell:
		return "shell"
	default:
		return "fragment"
	}
}

// Page is one HTML source file found under the source root.
type Page struct {
	// Path is the file path, rooted at the source root passed to Discover.
	Path string
	// Rel is Path relative to the source root, slash separated.
	Rel  string
	Kind Kind
	// Output is the rendered file's path relative to the output root.
	Output string
}

// Rendered reports whether the page is written to the output tree.
func (p Page) Rendered() bool {
	return p.Kind == KindPage || p.Kind == KindHomepage
}

// ErrListingConsumed is yielded when a Listing is iterated a second time.
var ErrListingConsumed = errors.New("page listing already consumed")

// Names configures how files are classified.
type Names struct {
	Shell    string
	Homepage string
	PageName string
}

// Listing is a lazy, single-use walk over the HTML files of a source tree.
type Listing struct {
	root     string
	names    Names
	consumed atomic.Bool
}

// Discover returns a listing of the HTML files under sourceRoot. Nothing is
// read until the listing is iterated.
func Discover(sourceRoot string, names Names) *Listing {
	return &Listing{root: sourceRoot, names: names}
}

// All walks the source tree in lexical order and yields every HTML file.
// Directories starting with a dot are skipped. A Listing can be iterated
// once; later iterations yield ErrListingConsumed.
func (l *Listing) All() iter.Seq2[Page, error] {
	return func(yield func(Page, error) bool) {
		if !l.consumed.CompareAndSwap(false, true) {
			yield(Page{}, ErrListingConsumed)
			return
		}

		err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == l.root && os.IsNotExist(err) {
					return errors.NewFilesystemError(errors.ErrCodeReadFailed, "source root not found", err).
						WithLocation(path, 0, 0)
				}
				return errors.ErrReadFailed(path, err)
			}
			if d.IsDir() {
				if path != l.root && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() || !strings.EqualFold(filepath.Ext(path), ".html") {
				return nil
			}

			rel, err := filepath.Rel(l.root, path)
			if err != nil {
				return errors.ErrReadFailed(path, err)
			}

			if !yield(l.classify(path, filepath.ToSlash(rel)), nil) {
				return fs.SkipAll
			}
			return nil
		})
		if err != nil {
			yield(Page{}, err)
		}
	}
}

func (l *Listing) classify(path, rel string) Page {
	p := Page{Path: path, Rel: rel, Kind: KindFragment}

	switch {
	case rel == l.names.Shell:
		p.Kind = KindShell
	case rel == l.names.Homepage:
		p.Kind = KindHomepage
		p.Output = pageFile
	case filepath.Base(path) == l.names.PageName:
		p.Kind = KindPage
		p.Output = filepath.ToSlash(filepath.Join(filepath.Dir(filepath.FromSlash(rel)), pageFile))
	}
	return p
}
