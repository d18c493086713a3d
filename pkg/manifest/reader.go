package manifest

import (
	"context"
	"os"
	"path/filepath"

	"github.com/matzehuels/govend/pkg/dependency"
	"github.com/matzehuels/govend/pkg/errors"
	"github.com/matzehuels/govend/pkg/vcs"
)

// Reader lists the declared requirements of resolved dependencies by
// fetching their go.mod from the provider.
type Reader struct {
	// IncludeIndirect also follows requirements marked // indirect.
	IncludeIndirect bool
}

// NewReader returns a reader that follows direct requirements only.
func NewReader() *Reader { return &Reader{} }

// Requirements returns one notation per requirement of r. Providers that
// cannot serve a go.mod yield no requirements.
func (m *Reader) Requirements(ctx context.Context, r *dependency.Resolved) ([]dependency.Notation, error) {
	mp, ok := r.Provider().(vcs.ModFileProvider)
	if !ok {
		return nil, nil
	}
	data, err := mp.GoMod(ctx, r.Package().Origin(), r.Version())
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	return m.notations(ParseGoMod(data), false), nil
}

func (m *Reader) notations(mod *GoMod, firstLevel bool) []dependency.Notation {
	reqs := mod.Require
	if !m.IncludeIndirect {
		reqs = mod.Direct()
	}
	out := make([]dependency.Notation, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, &dependency.PackageNotation{
			Path:       req.Path,
			Ref:        RefFromVersion(req.Version),
			FirstLevel: firstLevel,
		})
	}
	return out
}

// ReadProject returns the module path and first-level notations declared by
// the go.mod in dir.
func (m *Reader) ReadProject(dir string) (string, []dependency.Notation, error) {
	path := filepath.Join(dir, "go.mod")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, errors.Filesystem(err, "read", path)
	}
	mod := ParseGoMod(data)
	return mod.Module, m.notations(mod, true), nil
}

var _ dependency.ManifestReader = (*Reader)(nil)
