// Package validation provides the checks applied before a path is read or an
// external tool is executed.
package validation

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsafe marks input carrying shell metacharacters or an escape from
	// its root.
	ErrUnsafe = errors.New("unsafe input")
	// ErrNotAllowed marks a command or extension outside its allowlist.
	ErrNotAllowed = errors.New("not allowed")
)

const (
	// argumentMeta are rejected anywhere in a tool argument.
	argumentMeta = ";&|$`()<>\\\"'"
	// pathMeta are rejected in configured paths, which may contain
	// parentheses and quotes.
	pathMeta = ";&|$`<>"
)

// Tool binaries may be named by absolute path only under these directories.
var binDirs = []string{"/usr/bin/", "/usr/local/bin/", "/bin/"}

func unsafeInput(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrUnsafe, fmt.Sprintf(format, args...))
}

// escapes reports whether a cleaned relative path leaves its base.
func escapes(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// ValidateArgument rejects a tool argument that a shell could interpret,
// that climbs with "..", or that is an absolute path outside binDirs.
func ValidateArgument(arg string) error {
	if i := strings.IndexAny(arg, argumentMeta); i >= 0 {
		return unsafeInput("argument %q contains %q", arg, arg[i])
	}
	if strings.Contains(arg, "..") {
		return unsafeInput("argument %q contains path traversal", arg)
	}
	if !filepath.IsAbs(arg) {
		return nil
	}
	for _, dir := range binDirs {
		if strings.HasPrefix(arg, dir) {
			return nil
		}
	}
	return unsafeInput("absolute argument %q outside %s", arg, strings.Join(binDirs, ", "))
}

// ValidateCommand checks that command's base name is in allowed and that
// the command itself is a safe argument.
func ValidateCommand(command string, allowed map[string]bool) error {
	switch {
	case command == "":
		return fmt.Errorf("%w: empty command", ErrNotAllowed)
	case !allowed[filepath.Base(command)]:
		return fmt.Errorf("%w: command %q", ErrNotAllowed, command)
	}
	if err := ValidateArgument(command); err != nil {
		return fmt.Errorf("command %q: %w", command, err)
	}
	return nil
}

// ValidatePath checks a configured path: non-empty, relative, free of
// traversal and of shell metacharacters.
func ValidatePath(path string) error {
	if path == "" {
		return unsafeInput("empty path")
	}
	clean := filepath.Clean(path)
	if escapes(clean) {
		return unsafeInput("path %q leaves the project", path)
	}
	if filepath.IsAbs(clean) {
		return unsafeInput("path %q must be relative", path)
	}
	if i := strings.IndexAny(path, pathMeta); i >= 0 {
		return unsafeInput("path %q contains %q", path, path[i])
	}
	return nil
}

// ResolveWithin joins rel onto root and verifies the result stays inside
// root. A leading slash on rel is treated as root-relative.
func ResolveWithin(root, rel string) (string, error) {
	rel = strings.TrimSpace(rel)
	if rel == "" {
		return "", unsafeInput("empty path")
	}

	joined := filepath.Join(root, filepath.FromSlash(strings.TrimLeft(filepath.ToSlash(rel), "/")))
	inside, err := filepath.Rel(root, joined)
	if err != nil {
		return "", fmt.Errorf("resolving %q under %q: %w", rel, root, err)
	}
	if escapes(inside) {
		return "", unsafeInput("path %q leaves %q", rel, root)
	}
	return joined, nil
}

// ValidateFileExtension checks filename's extension, case-insensitively,
// against allowed.
func ValidateFileExtension(filename string, allowed []string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return fmt.Errorf("%w: %q has no extension", ErrNotAllowed, filename)
	}
	for _, a := range allowed {
		if strings.EqualFold(ext, a) {
			return nil
		}
	}
	return fmt.Errorf("%w: extension %s", ErrNotAllowed, ext)
}
