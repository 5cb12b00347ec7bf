package deps

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/conneroisu/sitepress/internal/errors"
	"github.com/conneroisu/sitepress/internal/fanout"
	"github.com/conneroisu/sitepress/internal/workspace"
)

var bundleNameReplacer = strings.NewReplacer("@", "", "/", "-")

// BundleName derives the file name shared by a package's shim and bundle:
// lower-cased, namespace markers removed and path separators replaced by
// hyphens. "@scope/demo-pkg" becomes "scope-demo-pkg".
func BundleName(pkg string) string {
	return bundleNameReplacer.Replace(strings.ToLower(pkg))
}

// Shim returns the module source that imports d and assigns its binding to
// window. Wildcard imports expose the module's default export.
func Shim(d Descriptor) string {
	var b strings.Builder
	b.WriteString("import ")
	b.WriteString(d.Spec.String())
	b.WriteString(" from '")
	b.WriteString(strings.ToLower(d.Package))
	b.WriteString("'\n\nwindow.")
	b.WriteString(d.Spec.Binding)
	b.WriteString(" = ")
	b.WriteString(d.Spec.Binding)
	if d.Spec.Kind == ImportWildcard {
		b.WriteString(".default")
	}
	b.WriteString(";\n")
	return b.String()
}

// CheckNames returns the bundle names of descriptors in order, or a
// manifest error when two descriptors share a name.
func CheckNames(descriptors []Descriptor) ([]string, error) {
	names := make([]string, len(descriptors))
	owners := make(map[string]int, len(descriptors))
	for i, d := range descriptors {
		name := d.Name()
		if j, ok := owners[name]; ok {
			return nil, errors.NewManifestError(errors.ErrCodeBundleNameConflict,
				"packages "+descriptors[j].Package+" and "+d.Package+" share bundle name "+name).
				WithContext("index", i)
		}
		owners[name] = i
		names[i] = name
	}
	return names, nil
}

// WriteShims recreates dir and writes <name>.js for every descriptor. The
// names are returned in manifest order once every write has reported.
func WriteShims(ctx context.Context, dir string, descriptors []Descriptor, concurrency int) ([]string, error) {
	names, err := CheckNames(descriptors)
	if err != nil {
		return nil, err
	}

	if err := os.RemoveAll(dir); err != nil {
		return nil, errors.NewFilesystemError(errors.ErrCodeResetFailed, "cannot clear shim directory", err).
			WithLocation(dir, 0, 0)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.NewFilesystemError(errors.ErrCodeResetFailed, "cannot create shim directory", err).
			WithLocation(dir, 0, 0)
	}

	result := fanout.Run(ctx, concurrency, descriptors, func(_ context.Context, i int, d Descriptor) error {
		return workspace.WriteFile(filepath.Join(dir, names[i]+".js"), []byte(Shim(d)))
	})
	if err := result.FirstError(); err != nil {
		return nil, err
	}
	return names, nil
}
