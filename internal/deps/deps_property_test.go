//go:build property
// +build property

package deps

import (
	"reflect"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/conneroisu/sitepress/internal/errors"
)

// packageName generates npm-style names, scoped or not. Segments carry no
// hyphen so that a scoped and an unscoped name can only meet through the
// separator.
func packageName() gopter.Gen {
	segment := gen.RegexMatch(`^[a-z][a-z0-9]{0,6}$`)
	return gen.Bool().FlatMap(func(v interface{}) gopter.Gen {
		if v.(bool) {
			return gopter.CombineGens(segment, segment).Map(func(parts []interface{}) string {
				return "@" + parts[0].(string) + "/" + parts[1].(string)
			})
		}
		return segment
	}, reflect.TypeOf(""))
}

func TestBundleNameProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	// Property: deriving the name twice changes nothing
	properties.Property("idempotent", prop.ForAll(
		func(pkg string) bool {
			once := BundleName(pkg)
			return BundleName(once) == once && BundleName(pkg) == once
		},
		gen.RegexMatch(`^[@A-Za-z0-9/._-]{0,20}$`),
	))

	// Property: names carry no namespace marker, separator or upper case
	properties.Property("server safe", prop.ForAll(
		func(pkg string) bool {
			name := BundleName(pkg)
			return !strings.ContainsAny(name, "@/") && name == strings.ToLower(name)
		},
		packageName(),
	))

	// Property: distinct packages never share a name
	properties.Property("no collisions", prop.ForAll(
		func(a, b string) bool {
			if a == b {
				return BundleName(a) == BundleName(b)
			}
			return BundleName(a) != BundleName(b)
		},
		packageName(),
		packageName(),
	))

	// Property: the name does not depend on manifest order
	properties.Property("order independent", prop.ForAll(
		func(a, b string) bool {
			if BundleName(a) == BundleName(b) {
				return true
			}
			forward, err1 := CheckNames([]Descriptor{{Package: a}, {Package: b}})
			backward, err2 := CheckNames([]Descriptor{{Package: b}, {Package: a}})
			return err1 == nil && err2 == nil &&
				forward[0] == backward[1] && forward[1] == backward[0]
		},
		packageName(),
		packageName(),
	))

	// Property: a scoped package and its hyphenated twin are rejected
	properties.Property("scoped twin conflicts", prop.ForAll(
		func(scope, name string, scopedFirst bool) bool {
			scoped := Descriptor{Package: "@" + scope + "/" + name}
			plain := Descriptor{Package: scope + "-" + name}
			pair := []Descriptor{scoped, plain}
			if !scopedFirst {
				pair = []Descriptor{plain, scoped}
			}
			_, err := CheckNames(pair)
			return err != nil && errors.HasCode(err, errors.ErrCodeBundleNameConflict)
		},
		gen.RegexMatch(`^[a-z][a-z0-9]{0,6}$`),
		gen.RegexMatch(`^[a-z][a-z0-9-]{0,6}$`),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
