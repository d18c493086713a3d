// Package vcs turns repository coordinates into pinned revisions and
// materializes source trees.
//
// A [Provider] answers two questions for an [Origin]: which revision does a
// requested [Ref] point at right now, and how is that revision written into a
// directory. [GitProvider] drives git repositories, [ProxyProvider] speaks the
// Go module proxy protocol and [LocalProvider] copies plain directories. A
// [Registry] selects one by [Type].
package vcs

import (
	"context"
	"strings"

	"github.com/matzehuels/govend/pkg/errors"
)

// Type names a kind of origin.
type Type string

const (
	Git        Type = "git"
	Mercurial  Type = "hg"
	Subversion Type = "svn"
	Bazaar     Type = "bzr"
	Module     Type = "mod"   // Go module proxy
	Local      Type = "local" // plain directory
)

// ParseType parses a configured VCS name. The empty string means git.
func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return Git, nil
	case Git, Mercurial, Subversion, Bazaar, Module, Local:
		return t, nil
	default:
		return "", errors.New(errors.ErrCodeConfig, "unknown vcs type %q", s)
	}
}

// Origin identifies where the source of a package root comes from.
type Origin struct {
	Type Type
	URL  string // repository or proxy URL; empty for Local
	Dir  string // source directory; only for Local
	Root string // root import path the origin serves
}

// String returns a stable identity used in snapshot fingerprints.
func (o Origin) String() string {
	switch o.Type {
	case Local:
		return "local+" + o.Dir
	case Module:
		return "mod+" + o.URL + "#" + o.Root
	default:
		return string(o.Type) + "+" + o.URL
	}
}

// Ref is a requested revision. At most one field is normally set; the zero
// Ref means the repository's default branch.
type Ref struct {
	Commit string
	Tag    string
	Branch string
}

// IsZero reports whether no revision was requested.
func (r Ref) IsZero() bool { return r.Commit == "" && r.Tag == "" && r.Branch == "" }

func (r Ref) String() string {
	switch {
	case r.Commit != "":
		return r.Commit
	case r.Tag != "":
		return r.Tag
	case r.Branch != "":
		return r.Branch
	default:
		return "default branch"
	}
}

// Version is a resolved revision.
type Version struct {
	Revision string // commit id, module version or directory identity
	Tag      string // tag the revision was requested by, if any
}

func (v Version) String() string {
	if v.Tag != "" && v.Tag != v.Revision {
		return v.Tag + "@" + v.Revision
	}
	return v.Revision
}

// Provider resolves refs and installs revisions for one origin type.
type Provider interface {
	// Resolve returns the revision ref currently points at.
	Resolve(ctx context.Context, o Origin, ref Ref) (Version, error)
	// Install writes the source tree of v into dir, which exists and is empty.
	Install(ctx context.Context, o Origin, v Version, dir string) error
}

// ModFileProvider is implemented by providers that can return a revision's
// go.mod without installing the whole tree.
type ModFileProvider interface {
	GoMod(ctx context.Context, o Origin, v Version) ([]byte, error)
}

// Registry maps origin types to providers.
type Registry struct {
	providers map[Type]Provider
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[Type]Provider)}
}

// Register installs p for t, replacing any previous provider.
func (r *Registry) Register(t Type, p Provider) *Registry {
	r.providers[t] = p
	return r
}

// Get returns the provider for t.
func (r *Registry) Get(t Type) (Provider, error) {
	if p, ok := r.providers[t]; ok {
		return p, nil
	}
	return nil, errors.New(errors.ErrCodeUnsupported, "no provider for vcs type %q", t)
}
