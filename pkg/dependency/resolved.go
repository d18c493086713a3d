package dependency

import (
	"context"

	"github.com/matzehuels/govend/pkg/pack"
	"github.com/matzehuels/govend/pkg/vcs"
)

// Resolved is a dependency bound to a revision. Its name is the package
// root path, so every import path served by one repository collapses into
// a single vendor entry.
type Resolved struct {
	pkg        pack.Package
	version    vcs.Version
	provider   vcs.Provider
	firstLevel bool
	children   []*Resolved
}

// NewResolved creates a resolved dependency. The provider must serve the
// package's origin type.
func NewResolved(pkg pack.Package, v vcs.Version, p vcs.Provider, firstLevel bool) *Resolved {
	return &Resolved{pkg: pkg, version: v, provider: p, firstLevel: firstLevel}
}

func (r *Resolved) Name() string            { return r.pkg.RootPath }
func (r *Resolved) Package() pack.Package   { return r.pkg }
func (r *Resolved) Version() vcs.Version    { return r.version }
func (r *Resolved) Provider() vcs.Provider  { return r.provider }
func (r *Resolved) FirstLevel() bool        { return r.firstLevel }
func (r *Resolved) Children() []*Resolved   { return r.children }
func (r *Resolved) Origin() vcs.Origin      { return r.pkg.Origin() }
func (r *Resolved) addChild(c *Resolved)    { r.children = append(r.children, c) }
func (r *Resolved) String() string          { return r.Name() + "@" + r.version.String() }

// InstallTo writes the dependency's source tree into dir.
func (r *Resolved) InstallTo(ctx context.Context, dir string) error {
	return r.provider.Install(ctx, r.pkg.Origin(), r.version, dir)
}
