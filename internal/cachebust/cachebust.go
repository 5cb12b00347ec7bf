// Package cachebust allocates the per-build version token and stamps it
// into documents.
//
// A token is the wall-clock time of allocation in milliseconds. Every
// versioned asset of a build lives under <assets>/<token>/ and every
// data-cachebust attribute in the published HTML carries the same token.
package cachebust

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/conneroisu/sitepress/internal/errors"
)

// Token is a cache-bust version token.
type Token int64

// String returns the decimal form used in paths and attributes.
func (t Token) String() string {
	return strconv.FormatInt(int64(t), 10)
}

// ParseToken parses the decimal form of a token.
func ParseToken(s string) (Token, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return 0, errors.NewValidationError(errors.ErrCodeInvalidToken, "invalid cache-bust token: "+s)
	}
	return Token(v), nil
}

// Clock returns the current time.
type Clock func() time.Time

// Allocator hands out tokens. Tokens from one allocator strictly increase
// even when the clock stalls or steps backwards.
type Allocator struct {
	mu   sync.Mutex
	now  Clock
	last Token
}

// NewAllocator creates an allocator reading the given clock. A nil clock
// means time.Now.
func NewAllocator(clock Clock) *Allocator {
	if clock == nil {
		clock = time.Now
	}
	return &Allocator{now: clock}
}

// Allocate returns a new token.
func (a *Allocator) Allocate() Token {
	a.mu.Lock()
	defer a.mu.Unlock()

	t := Token(a.now().UnixMilli())
	if t <= a.last {
		t = a.last + 1
	}
	a.last = t
	return t
}

// VersionedDir returns <outputRoot>/<assetsDir>/<token>.
func VersionedDir(outputRoot, assetsDir string, token Token) string {
	return filepath.Join(outputRoot, assetsDir, token.String())
}

// CreateVersionedDirectory creates the versioned asset directory. The asset
// directory itself must already exist. An existing versioned directory is a
// token collision.
func CreateVersionedDirectory(outputRoot, assetsDir string, token Token) (string, error) {
	dir := VersionedDir(outputRoot, assetsDir, token)
	if err := os.Mkdir(dir, 0o755); err != nil {
		if os.IsExist(err) {
			return "", errors.NewValidationError(errors.ErrCodeTokenCollision,
				"versioned asset directory already exists").
				WithLocation(dir, 0, 0).
				WithContext("token", token.String())
		}
		return "", errors.NewFilesystemError(errors.ErrCodeWriteFailed,
			"failed to create versioned asset directory", err).
			WithLocation(dir, 0, 0)
	}
	return dir, nil
}

// Stamper rewrites cache-bust attributes in a document.
type Stamper struct {
	pattern *regexp.Regexp
	attr    string
	token   Token
}

// NewStamper builds a stamper for attribute (for example data-cachebust).
func NewStamper(attribute string, token Token) *Stamper {
	return &Stamper{
		pattern: regexp.MustCompile(regexp.QuoteMeta(attribute) + `="\d*"`),
		attr:    attribute,
		token:   token,
	}
}

// Stamp replaces every attribute="<digits>" occurrence with the token.
func (s *Stamper) Stamp(document string) string {
	return s.pattern.ReplaceAllLiteralString(document, s.attr+`="`+s.token.String()+`"`)
}

// Token returns the token the stamper writes.
func (s *Stamper) Token() Token { return s.token }

// Stamp is a convenience wrapper around NewStamper(attribute, token).Stamp.
func Stamp(document, attribute string, token Token) string {
	return NewStamper(attribute, token).Stamp(document)
}
