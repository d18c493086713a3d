// Package pack maps import paths to the packages that serve them.
//
// A [Package] records which part of an import path is the repository root
// and where that root comes from. Resolvers are tried in a [Chain]:
// configured repository rules first ([RepositoryResolver]), then well-known
// hosting conventions ([KnownHostResolver]), and finally an optional
// unrecognized fallback that preserves the path for diagnostics.
package pack

import (
	"strings"

	"github.com/matzehuels/govend/pkg/errors"
	"github.com/matzehuels/govend/pkg/vcs"
)

// Kind distinguishes the package variants.
type Kind int

const (
	KindVCS          Kind = iota // served by a repository or module proxy
	KindLocal                    // copied from a local directory
	KindIncomplete               // governed by a rule that cannot produce an origin
	KindUnrecognized             // no strategy knows the path
)

func (k Kind) String() string {
	switch k {
	case KindVCS:
		return "vcs"
	case KindLocal:
		return "local"
	case KindIncomplete:
		return "incomplete"
	case KindUnrecognized:
		return "unrecognized"
	default:
		return "unknown"
	}
}

// Package is the resolved identity of an import path. RootPath is always
// ImportPath itself or a segment prefix of it.
type Package struct {
	ImportPath string
	RootPath   string
	Kind       Kind
	VCS        vcs.Type // KindVCS only
	URL        string   // KindVCS only
	Dir        string   // KindLocal only
}

// NewVCS returns a repository-backed package. Module proxy packages may
// leave url empty to use the provider's configured proxy.
func NewVCS(importPath, rootPath string, t vcs.Type, url string) (Package, error) {
	if err := checkRoot(importPath, rootPath); err != nil {
		return Package{}, err
	}
	if url == "" && t != vcs.Module {
		return Package{}, errors.New(errors.ErrCodeConfig, "package %s: empty repository url", importPath)
	}
	if t == "" {
		t = vcs.Git
	}
	return Package{ImportPath: importPath, RootPath: rootPath, Kind: KindVCS, VCS: t, URL: url}, nil
}

// NewLocal returns a directory-backed package.
func NewLocal(importPath, rootPath, dir string) (Package, error) {
	if err := checkRoot(importPath, rootPath); err != nil {
		return Package{}, err
	}
	if dir == "" {
		return Package{}, errors.New(errors.ErrCodeConfig, "package %s: empty directory", importPath)
	}
	return Package{ImportPath: importPath, RootPath: rootPath, Kind: KindLocal, VCS: vcs.Local, Dir: dir}, nil
}

// Incomplete returns the marker for a path governed by an incomplete rule.
func Incomplete(importPath string) Package {
	return Package{ImportPath: importPath, RootPath: importPath, Kind: KindIncomplete}
}

// Unrecognized returns the marker for a path no strategy could map.
func Unrecognized(importPath string) Package {
	return Package{ImportPath: importPath, RootPath: importPath, Kind: KindUnrecognized}
}

// Origin returns the coordinates providers work with. Only KindVCS and
// KindLocal packages have a usable origin.
func (p Package) Origin() vcs.Origin {
	switch p.Kind {
	case KindVCS:
		return vcs.Origin{Type: p.VCS, URL: p.URL, Root: p.RootPath}
	case KindLocal:
		return vcs.Origin{Type: vcs.Local, Dir: p.Dir, Root: p.RootPath}
	default:
		return vcs.Origin{Root: p.RootPath}
	}
}

// Subpath returns the part of ImportPath below RootPath, or "".
func (p Package) Subpath() string {
	return strings.TrimPrefix(strings.TrimPrefix(p.ImportPath, p.RootPath), "/")
}

// IsConcrete reports whether the package can be fetched.
func (p Package) IsConcrete() bool {
	return p.Kind == KindVCS || p.Kind == KindLocal
}

// Location returns the URL or directory the package comes from.
func (p Package) Location() string {
	if p.Kind == KindLocal {
		return p.Dir
	}
	return p.URL
}

func checkRoot(importPath, rootPath string) error {
	if !IsSegmentPrefix(rootPath, importPath) {
		return errors.New(errors.ErrCodeInternal, "root %q is not a prefix of %q", rootPath, importPath)
	}
	return nil
}

// IsSegmentPrefix reports whether prefix equals p or is a whole-segment
// prefix of it.
func IsSegmentPrefix(prefix, p string) bool {
	if prefix == "" {
		return false
	}
	if prefix == p {
		return true
	}
	return strings.HasPrefix(p, prefix) && p[len(prefix)] == '/'
}

// Resolver maps an import path to a package. ok is false if the resolver
// does not know the path; err is reserved for configuration mistakes.
type Resolver interface {
	Resolve(importPath string) (pkg Package, ok bool, err error)
}

// ResolverFunc adapts a function to [Resolver].
type ResolverFunc func(importPath string) (Package, bool, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(importPath string) (Package, bool, error) { return f(importPath) }
