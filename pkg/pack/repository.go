package pack

import (
	"strings"

	"github.com/matzehuels/govend/pkg/errors"
	"github.com/matzehuels/govend/pkg/repository"
	"github.com/matzehuels/govend/pkg/vcs"
)

// RepositoryResolver resolves import paths against configured repository
// rules.
type RepositoryResolver struct {
	handler *repository.Handler
}

// NewRepositoryResolver returns a resolver over h.
func NewRepositoryResolver(h *repository.Handler) *RepositoryResolver {
	return &RepositoryResolver{handler: h}
}

// Resolve looks for a rule matching the full path first. An incomplete match
// there is final. Otherwise prefixes are tried from longest to shortest and
// the first complete match becomes the root; incomplete prefix matches are
// skipped.
func (r *RepositoryResolver) Resolve(importPath string) (Package, bool, error) {
	if p, ok := r.handler.FindMatched(importPath); ok {
		if p.Incomplete {
			return Incomplete(importPath), true, nil
		}
		pkg, err := build(importPath, importPath, p)
		return pkg, err == nil, err
	}

	segments := strings.Split(importPath, "/")
	for i := len(segments) - 1; i >= 1; i-- {
		root := strings.Join(segments[:i], "/")
		p, ok := r.handler.FindMatched(root)
		if !ok || p.Incomplete {
			continue
		}
		pkg, err := build(importPath, root, p)
		return pkg, err == nil, err
	}
	return Package{}, false, nil
}

// build creates the package for a matched rule. The URL wins when the rule
// yields both, unless the rule is for local directories. Module proxy rules
// need neither.
func build(importPath, root string, p *repository.Pattern) (Package, error) {
	url, dir := p.Expand(root)
	switch {
	case url != "" && p.Type() != vcs.Local:
		if err := errors.ValidateURL(url); err != nil {
			return Package{}, errors.Wrap(errors.ErrCodeConfig, err, "repository rule %q for %s", p.Match, importPath)
		}
		return NewVCS(importPath, root, p.Type(), url)
	case dir != "":
		return NewLocal(importPath, root, dir)
	case p.Type() == vcs.Module:
		return NewVCS(importPath, root, vcs.Module, "")
	default:
		return Package{}, errors.New(errors.ErrCodeConfig,
			"repository rule %q yields neither url nor dir for %s", p.Match, importPath)
	}
}
