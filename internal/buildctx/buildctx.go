// Package buildctx holds the per-run values shared by every pipeline stage.
package buildctx

import (
	"path/filepath"

	"github.com/conneroisu/sitepress/internal/cachebust"
)

// Workspace describes where a build reads and writes. Stages that run
// before the token is allocated receive a Workspace and so cannot observe
// an unallocated token.
type Workspace struct {
	BuildID string
	// ProjectDir is the directory relative paths in the configuration
	// resolve against.
	ProjectDir string
	SourceRoot string
	// CompiledDir holds the upstream compiler's bundles.
	CompiledDir string
	// OutputRoot is where stages write: the staging root when publishing
	// atomically, FinalRoot otherwise.
	OutputRoot string
	FinalRoot  string
	AssetsDir  string
}

// AssetsRoot returns <OutputRoot>/<AssetsDir>.
func (w Workspace) AssetsRoot() string {
	return filepath.Join(w.OutputRoot, w.AssetsDir)
}

// Staged reports whether stages write to a staging root.
func (w Workspace) Staged() bool {
	return filepath.Clean(w.OutputRoot) != filepath.Clean(w.FinalRoot)
}

// WithToken returns the immutable build context for token.
func (w Workspace) WithToken(token cachebust.Token) *Context {
	return &Context{Workspace: w, Token: token}
}

// Context is the read-only value passed to every stage after token
// allocation.
type Context struct {
	Workspace
	Token cachebust.Token
}

// VersionedDir returns <OutputRoot>/<AssetsDir>/<Token>.
func (c *Context) VersionedDir() string {
	return cachebust.VersionedDir(c.OutputRoot, c.AssetsDir, c.Token)
}

// AssetURL returns the URL the runtime loader uses for a versioned asset.
func (c *Context) AssetURL(file string) string {
	return "/" + filepath.ToSlash(filepath.Join(c.AssetsDir, c.Token.String(), file))
}
