package dependency

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/govend/pkg/errors"
	"github.com/matzehuels/govend/pkg/observability"
	"github.com/matzehuels/govend/pkg/pack"
	"github.com/matzehuels/govend/pkg/vcs"
)

// ManifestReader lists the requirements a resolved dependency declares.
type ManifestReader interface {
	Requirements(ctx context.Context, r *Resolved) ([]Notation, error)
}

// Context carries state through one resolution pass: the exclusions
// accumulated from the ancestors of the notation being resolved and the
// dependencies resolved so far.
type Context struct {
	exclusions Exclusions
	resolved   map[string]*Resolved
	expanded   map[*Resolved]bool
	depth      int
}

// NewContext returns an empty resolution context.
func NewContext() *Context {
	return &Context{resolved: make(map[string]*Resolved), expanded: make(map[*Resolved]bool)}
}

// child returns the context for the requirements of a dependency declaring
// exclusions ex.
func (c *Context) child(ex Exclusions) *Context {
	all := make(Exclusions, 0, len(c.exclusions)+len(ex))
	all = append(all, c.exclusions...)
	all = append(all, ex...)
	return &Context{exclusions: all, resolved: c.resolved, expanded: c.expanded, depth: c.depth + 1}
}

// Resolved returns the dependency already resolved for root, if any.
func (c *Context) Resolved(root string) (*Resolved, bool) {
	r, ok := c.resolved[root]
	return r, ok
}

// Resolver turns notations into resolved dependency graphs.
type Resolver struct {
	paths     pack.Resolver
	providers *vcs.Registry
	manifests ManifestReader
	logger    *log.Logger

	skipUnresolved bool
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithManifestReader enables transitive resolution.
func WithManifestReader(m ManifestReader) ResolverOption {
	return func(r *Resolver) { r.manifests = m }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = l }
}

// WithSkipUnresolved drops transitive requirements whose path cannot be
// resolved instead of failing. First-level notations always fail.
func WithSkipUnresolved(skip bool) ResolverOption {
	return func(r *Resolver) { r.skipUnresolved = skip }
}

// NewResolver returns a resolver mapping paths with paths and revisions with
// providers.
func NewResolver(paths pack.Resolver, providers *vcs.Registry, opts ...ResolverOption) *Resolver {
	r := &Resolver{paths: paths, providers: providers}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.Default()
	}
	return r
}

// ResolveAll resolves a list of declarations in a fresh context and returns
// the roots in declaration order.
func (r *Resolver) ResolveAll(ctx context.Context, notations []Notation) ([]*Resolved, error) {
	return r.ResolveRoots(ctx, notations, NewContext())
}

// ResolveRoots resolves declarations against rc level by level: every
// declaration is pinned before any requirement is expanded, so a declared
// version always beats a transitive one. A declaration replaces whatever rc
// holds for the same root from earlier passes; within notations the first
// declaration of a root wins. Roots are returned in declaration order.
func (r *Resolver) ResolveRoots(ctx context.Context, notations []Notation, rc *Context) ([]*Resolved, error) {
	declared := make(map[string]*Resolved, len(notations))
	roots := make([]*Resolved, 0, len(notations))
	for _, n := range notations {
		pkg, ref, err := r.target(n)
		if err != nil {
			return nil, err
		}
		res, ok := declared[pkg.RootPath]
		if !ok {
			if res, err = r.fetch(ctx, n, pkg, ref, rc); err != nil {
				return nil, err
			}
			declared[pkg.RootPath] = res
			rc.resolved[pkg.RootPath] = res
		}
		roots = append(roots, res)
	}

	for i, res := range roots {
		if err := r.expand(ctx, notations[i], res, rc); err != nil {
			return nil, err
		}
	}
	return roots, nil
}

// Resolve resolves n and, recursively, its requirements. A dependency
// already resolved in rc is returned as is, which also ends cycles.
func (r *Resolver) Resolve(ctx context.Context, n Notation, rc *Context) (*Resolved, error) {
	pkg, ref, err := r.target(n)
	if err != nil {
		return nil, err
	}
	return r.resolvePackage(ctx, n, pkg, ref, rc)
}

// target finds the package and requested ref for n.
func (r *Resolver) target(n Notation) (pack.Package, vcs.Ref, error) {
	switch n := n.(type) {
	case *UnrecognizedNotation:
		return pack.Package{}, vcs.Ref{}, errors.New(errors.ErrCodeUnrecognized,
			"cannot resolve unrecognized dependency %s", n.Path)
	case *PackageNotation:
		pkg, err := r.lookup(n.Path)
		return pkg, n.Ref, err
	case *MapNotation:
		pkg, err := r.explicit(n)
		return pkg, n.Ref, err
	default:
		return pack.Package{}, vcs.Ref{}, errors.New(errors.ErrCodeInternal, "unknown notation type %T", n)
	}
}

func (r *Resolver) explicit(n *MapNotation) (pack.Package, error) {
	if err := errors.ValidateImportPath(n.Path); err != nil {
		return pack.Package{}, err
	}
	switch {
	case n.URL != "":
		if err := errors.ValidateURL(n.URL); err != nil {
			return pack.Package{}, errors.Wrap(errors.ErrCodeConfig, err, "dependency %s", n.Path)
		}
		return pack.NewVCS(n.Path, n.Path, n.VCS, n.URL)
	case n.Dir != "":
		return pack.NewLocal(n.Path, n.Path, n.Dir)
	case n.VCS == vcs.Module:
		return pack.NewVCS(n.Path, n.Path, vcs.Module, "")
	default:
		return r.lookup(n.Path)
	}
}

func (r *Resolver) lookup(importPath string) (pack.Package, error) {
	if err := errors.ValidateImportPath(importPath); err != nil {
		return pack.Package{}, err
	}
	pkg, ok, err := r.paths.Resolve(importPath)
	if err != nil {
		return pack.Package{}, err
	}
	if !ok {
		return pack.Package{}, errors.New(errors.ErrCodeUnresolved, "cannot resolve package %s", importPath)
	}

	switch pkg.Kind {
	case pack.KindVCS, pack.KindLocal:
		return pkg, nil
	case pack.KindIncomplete:
		return pack.Package{}, errors.New(errors.ErrCodeIncomplete,
			"package %s matches an incomplete repository rule", importPath)
	case pack.KindUnrecognized:
		return pack.Package{}, errors.New(errors.ErrCodeUnrecognized, "unrecognized package %s", importPath)
	default:
		return pack.Package{}, errors.New(errors.ErrCodeInternal, "package %s has unknown kind %s", importPath, pkg.Kind)
	}
}

func (r *Resolver) resolvePackage(ctx context.Context, n Notation, pkg pack.Package, ref vcs.Ref, rc *Context) (*Resolved, error) {
	if prev, ok := rc.resolved[pkg.RootPath]; ok {
		return prev, nil
	}
	res, err := r.fetch(ctx, n, pkg, ref, rc)
	if err != nil {
		return nil, err
	}
	rc.resolved[pkg.RootPath] = res
	if err := r.expand(ctx, n, res, rc); err != nil {
		return nil, err
	}
	return res, nil
}

// fetch pins pkg to a revision without looking at its requirements.
func (r *Resolver) fetch(ctx context.Context, n Notation, pkg pack.Package, ref vcs.Ref, rc *Context) (*Resolved, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	provider, err := r.providers.Get(pkg.Origin().Type)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	observability.Vendor().OnResolveStart(ctx, pkg.RootPath)
	v, err := provider.Resolve(ctx, pkg.Origin(), ref)
	observability.Vendor().OnResolveComplete(ctx, pkg.RootPath, v.Revision, time.Since(start), err)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFetch, err, "resolve %s", n.Name())
	}
	r.logger.Debug("resolved", "name", pkg.RootPath, "revision", v.Revision, "depth", rc.depth)
	return NewResolved(pkg, v, provider, IsFirstLevel(n)), nil
}

// expand resolves the requirements of res, declared through n, once.
func (r *Resolver) expand(ctx context.Context, n Notation, res *Resolved, rc *Context) error {
	if r.manifests == nil || rc.expanded[res] {
		return nil
	}
	rc.expanded[res] = true

	reqs, err := r.manifests.Requirements(ctx, res)
	if err != nil {
		return errors.Wrap(errors.ErrCodeFetch, err, "read requirements of %s", res)
	}

	child := rc.child(ExclusionsOf(n))
	for _, req := range reqs {
		if child.exclusions.Matches(req.Name(), "") {
			r.logger.Debug("excluded", "name", req.Name(), "parent", res.Name())
			continue
		}
		cpkg, cref, err := r.target(req)
		if err != nil {
			if r.skipUnresolved && isResolutionError(err) {
				r.logger.Warn("skipping transitive dependency", "name", req.Name(), "parent", res.Name(), "err", errors.UserMessage(err))
				continue
			}
			return err
		}
		if child.exclusions.Matches(req.Name(), cpkg.Location()) {
			r.logger.Debug("excluded", "name", req.Name(), "parent", res.Name())
			continue
		}

		c, err := r.resolvePackage(ctx, req, cpkg, cref, child)
		if err != nil {
			return err
		}
		if c != res {
			res.addChild(c)
		}
	}
	return nil
}

func isResolutionError(err error) bool {
	switch errors.GetCode(err) {
	case errors.ErrCodeUnresolved, errors.ErrCodeUnrecognized, errors.ErrCodeIncomplete:
		return true
	}
	return false
}
