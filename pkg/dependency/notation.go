// Package dependency models declared and resolved dependencies.
//
// A [Notation] is what a project declares: an import path, optionally
// pinned, or explicit repository coordinates. The [Resolver] turns notations
// into [Resolved] dependencies bound to a revision, recursing through the
// requirements of each dependency. Resolved graphs are flattened into a
// [Set], which is what the vendor installer consumes.
package dependency

import (
	"path"
	"strings"

	"github.com/matzehuels/govend/pkg/errors"
	"github.com/matzehuels/govend/pkg/vcs"
)

// Dependency is anything identified by a name: notations and resolved
// dependencies alike.
type Dependency interface {
	Name() string
}

// Notation is a dependency declaration. The concrete types are
// [*PackageNotation], [*MapNotation] and [*UnrecognizedNotation].
type Notation interface {
	Dependency
	notation()
}

// PackageNotation declares a dependency by import path. Its origin is found
// through path resolution.
type PackageNotation struct {
	Path       string
	Ref        vcs.Ref
	FirstLevel bool
	Exclude    Exclusions
}

func (n *PackageNotation) Name() string { return n.Path }
func (*PackageNotation) notation()      {}

// MapNotation declares a dependency with explicit coordinates. When neither
// URL nor Dir is set the origin is found through path resolution, as for
// a PackageNotation.
type MapNotation struct {
	Path       string
	VCS        vcs.Type
	URL        string
	Dir        string
	Ref        vcs.Ref
	FirstLevel bool
	Exclude    Exclusions
}

func (n *MapNotation) Name() string { return n.Path }
func (*MapNotation) notation()      {}

// UnrecognizedNotation keeps a declaration that could not be parsed so it
// can be reported. It never resolves.
type UnrecognizedNotation struct {
	Path       string
	FirstLevel bool
}

func (n *UnrecognizedNotation) Name() string { return n.Path }
func (*UnrecognizedNotation) notation()      {}

// IsFirstLevel reports whether n was declared by the project itself.
func IsFirstLevel(n Notation) bool {
	switch n := n.(type) {
	case *PackageNotation:
		return n.FirstLevel
	case *MapNotation:
		return n.FirstLevel
	case *UnrecognizedNotation:
		return n.FirstLevel
	default:
		return false
	}
}

// ExclusionsOf returns the transitive exclusions declared on n.
func ExclusionsOf(n Notation) Exclusions {
	switch n := n.(type) {
	case *PackageNotation:
		return n.Exclude
	case *MapNotation:
		return n.Exclude
	default:
		return nil
	}
}

// Exclusion drops transitive candidates whose name and origin location
// match. An empty field matches anything; a name ending in "/..." matches
// the path and everything below it; otherwise fields are path.Match globs.
type Exclusion struct {
	Name string `toml:"name" yaml:"name" json:"name,omitempty"`
	URL  string `toml:"url" yaml:"url" json:"url,omitempty"`
}

// Validate rejects exclusions that would match everything or cannot be
// evaluated.
func (e Exclusion) Validate() error {
	if e.Name == "" && e.URL == "" {
		return errors.New(errors.ErrCodeConfig, "exclusion needs a name or url")
	}
	for _, p := range []string{strings.TrimSuffix(e.Name, "/..."), e.URL} {
		if _, err := path.Match(p, ""); err != nil {
			return errors.Wrap(errors.ErrCodeConfig, err, "exclusion pattern %q", p)
		}
	}
	return nil
}

// Matches reports whether a candidate with the given name and location is
// excluded.
func (e Exclusion) Matches(name, location string) bool {
	if e.Name == "" && e.URL == "" {
		return false
	}
	return matchName(e.Name, name) && matchGlob(e.URL, location)
}

func matchName(pattern, name string) bool {
	if tree, ok := strings.CutSuffix(pattern, "/..."); ok {
		return name == tree || strings.HasPrefix(name, tree+"/")
	}
	return matchGlob(pattern, name)
}

func matchGlob(pattern, s string) bool {
	if pattern == "" {
		return true
	}
	ok, _ := path.Match(pattern, s)
	return ok
}

// Exclusions is a set of exclusions with any-match semantics.
type Exclusions []Exclusion

// Matches reports whether any exclusion matches.
func (es Exclusions) Matches(name, location string) bool {
	for _, e := range es {
		if e.Matches(name, location) {
			return true
		}
	}
	return false
}
