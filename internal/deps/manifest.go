// Package deps turns the project's web dependencies into self-contained
// browser scripts. Each dependency gets a generated shim module that puts
// its binding on window; the shim is then bundled into the versioned asset
// directory.
package deps

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/conneroisu/sitepress/internal/errors"
)

// ImportKind is the shape of an import specifier.
type ImportKind string

const (
	// ImportWildcard is `* as Name`; the shim assigns Name.default.
	ImportWildcard ImportKind = "wildcard"
	// ImportNamed is `{ Name }`.
	ImportNamed ImportKind = "named"
	// ImportDefault is `Name`.
	ImportDefault ImportKind = "default"
)

// ImportSpec is a parsed import specifier.
type ImportSpec struct {
	Kind    ImportKind `json:"kind" yaml:"kind"`
	Binding string     `json:"binding" yaml:"binding"`
}

// String renders the specifier as it appears in an import statement.
func (s ImportSpec) String() string {
	switch s.Kind {
	case ImportWildcard:
		return "* as " + s.Binding
	case ImportNamed:
		return "{ " + s.Binding + " }"
	default:
		return s.Binding
	}
}

// Descriptor is one entry of the manifest's dependency list.
type Descriptor struct {
	Package string     `json:"package" yaml:"package"`
	Import  string     `json:"import" yaml:"import"`
	Spec    ImportSpec `json:"-" yaml:"-"`
}

// Name returns the descriptor's bundle name.
func (d Descriptor) Name() string { return BundleName(d.Package) }

var (
	identifierPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)
	wildcardPattern   = regexp.MustCompile(`^\*\s+as\s+(\S+)$`)
)

// ParseImport parses an import specifier of the form `* as Name`,
// `{ Name }` or `Name`.
func ParseImport(raw string) (ImportSpec, error) {
	s := strings.TrimSpace(raw)

	var spec ImportSpec
	switch {
	case wildcardPattern.MatchString(s):
		spec = ImportSpec{Kind: ImportWildcard, Binding: wildcardPattern.FindStringSubmatch(s)[1]}
	case strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}"):
		spec = ImportSpec{Kind: ImportNamed, Binding: strings.TrimSpace(s[1 : len(s)-1])}
	default:
		spec = ImportSpec{Kind: ImportDefault, Binding: s}
	}

	if !identifierPattern.MatchString(spec.Binding) {
		return ImportSpec{}, fmt.Errorf("import %q does not bind a single identifier", raw)
	}
	return spec, nil
}

// ReadManifest reads the dependency list stored under key in the manifest
// at path. JSON is assumed unless the file ends in .yml or .yaml. A missing
// file or key yields an empty list.
func ReadManifest(path, key string) ([]Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.ErrReadFailed(path, err)
	}

	var doc map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		err = yaml.Unmarshal(data, &doc)
	default:
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, errors.NewManifestError(errors.ErrCodeManifestInvalid,
			"cannot parse manifest: "+err.Error()).
			WithLocation(path, 0, 0)
	}

	raw, ok := doc[key]
	if !ok || raw == nil {
		return nil, nil
	}
	entries, ok := raw.([]any)
	if !ok {
		return nil, errors.NewManifestError(errors.ErrCodeManifestInvalid,
			fmt.Sprintf("%s must be a list", key)).
			WithLocation(path, 0, 0)
	}

	descriptors := make([]Descriptor, 0, len(entries))
	for i, entry := range entries {
		d, err := parseEntry(entry)
		if err != nil {
			return nil, errors.NewManifestError(errors.ErrCodeManifestInvalid, err.Error()).
				WithLocation(path, 0, 0).
				WithContext("index", i)
		}
		descriptors = append(descriptors, d)
	}
	return descriptors, nil
}

func parseEntry(entry any) (Descriptor, error) {
	fields, ok := entry.(map[string]any)
	if !ok {
		return Descriptor{}, fmt.Errorf("entry must be an object with package and import")
	}

	pkg, _ := fields["package"].(string)
	pkg = strings.TrimSpace(pkg)
	if pkg == "" {
		return Descriptor{}, fmt.Errorf("entry has no package")
	}
	if strings.ContainsAny(pkg, "'\"\\` \n") {
		return Descriptor{}, fmt.Errorf("package %q contains characters not allowed in a module name", pkg)
	}

	imp, _ := fields["import"].(string)
	spec, err := ParseImport(imp)
	if err != nil {
		return Descriptor{}, err
	}

	return Descriptor{Package: pkg, Import: imp, Spec: spec}, nil
}
