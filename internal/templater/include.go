package templater

import (
	"bytes"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/net/html"

	"github.com/conneroisu/sitepress/internal/errors"
	"github.com/conneroisu/sitepress/internal/validation"
)

// Includer expands include directives against one source root. File
// contents are cached so a fragment shared by many pages is read once.
type Includer struct {
	root string
	tag  string

	mu    sync.Mutex
	cache map[string][]byte
}

// NewIncluder creates an includer for directives named tag.
func NewIncluder(sourceRoot, tag string) *Includer {
	return &Includer{
		root:  sourceRoot,
		tag:   strings.ToLower(tag),
		cache: make(map[string][]byte),
	}
}

// ExpandIncludes replaces every <tag src="..."> directive in document with
// the raw contents of the referenced file. It is a convenience wrapper
// around a fresh Includer.
func ExpandIncludes(document, sourceRoot, tag string) (string, error) {
	return NewIncluder(sourceRoot, tag).Expand(document)
}

// Expand replaces every directive in document with the referenced file's
// contents. The element's own content is discarded; a self-closing
// directive is replaced as is. Included text is inserted verbatim and is
// not scanned again, so directives inside a fragment are left untouched.
// Directives inside raw-text elements such as <script> are not expanded.
func (in *Includer) Expand(document string) (string, error) {
	z := html.NewTokenizer(strings.NewReader(document))

	var (
		out     strings.Builder
		skipped strings.Builder
		depth   int
		line    = 1
		pending []byte
	)
	out.Grow(len(document))

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if err := z.Err(); err != io.EOF {
				return "", errors.NewValidationError(errors.ErrCodeIncludeNotFound, "malformed document: "+err.Error())
			}
			break
		}

		raw := z.Raw()
		if tt == html.StartTagToken || tt == html.EndTagToken || tt == html.SelfClosingTagToken {
			// TagName lower-cases the tokenizer buffer in place.
			raw = bytes.Clone(raw)
		}
		tokenLine := line
		line += bytes.Count(raw, []byte{'\n'})

		if depth > 0 {
			switch tt {
			case html.StartTagToken:
				if in.isDirective(z) {
					depth++
				}
			case html.EndTagToken:
				if in.isDirective(z) {
					depth--
				}
			}
			if depth == 0 {
				out.Write(pending)
				pending = nil
				skipped.Reset()
				continue
			}
			skipped.Write(raw)
			continue
		}

		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			out.Write(raw)
			continue
		}

		name, hasAttr := z.TagName()
		if string(name) != in.tag {
			out.Write(raw)
			continue
		}

		src := ""
		for hasAttr {
			var key, val []byte
			key, val, hasAttr = z.TagAttr()
			if string(key) == "src" {
				src = string(val)
			}
		}

		content, err := in.load(src)
		if err != nil {
			var be *errors.BuildError
			if errors.As(err, &be) {
				be.WithContext("line", tokenLine)
			}
			return "", err
		}

		if tt == html.SelfClosingTagToken {
			out.Write(content)
			continue
		}
		depth = 1
		pending = content
	}

	// An unclosed directive keeps whatever followed it.
	if depth > 0 {
		out.Write(pending)
		out.WriteString(skipped.String())
	}

	return out.String(), nil
}

func (in *Includer) isDirective(z *html.Tokenizer) bool {
	name, _ := z.TagName()
	return string(name) == in.tag
}

func (in *Includer) load(src string) ([]byte, error) {
	if strings.TrimSpace(src) == "" {
		return nil, errors.NewValidationError(errors.ErrCodeIncludeNotFound, "include directive without src")
	}

	path, err := validation.ResolveWithin(in.root, src)
	if err != nil {
		return nil, errors.ErrPathTraversal(src).WithContext("reason", err.Error())
	}

	in.mu.Lock()
	defer in.mu.Unlock()

	if data, ok := in.cache[path]; ok {
		return data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFilesystemError(errors.ErrCodeIncludeNotFound, "included file not found: "+src, err).
				WithContext("include", path)
		}
		return nil, errors.ErrReadFailed(path, err)
	}
	in.cache[path] = data
	return data, nil
}
