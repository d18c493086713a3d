package vcs

import (
	"context"
	"os"
	"path/filepath"

	"github.com/matzehuels/govend/pkg/errors"
	"github.com/matzehuels/govend/pkg/fsutil"
)

// LocalProvider copies packages that live in a local directory.
//
// The revision of a local package is its absolute directory, so a snapshot
// only goes stale when the configured directory changes. Edits inside the
// directory are not detected.
type LocalProvider struct{}

// NewLocal returns a provider for directory-backed packages.
func NewLocal() *LocalProvider { return &LocalProvider{} }

// Resolve checks that the directory exists and returns its identity.
func (LocalProvider) Resolve(ctx context.Context, o Origin, ref Ref) (Version, error) {
	abs, err := filepath.Abs(o.Dir)
	if err != nil {
		return Version{}, errors.Filesystem(err, "resolve", o.Dir)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Version{}, errors.Wrap(errors.ErrCodeFetch, err, "local package %s", o.Root)
	}
	if !info.IsDir() {
		return Version{}, errors.New(errors.ErrCodeFetch, "local package %s: %s is not a directory", o.Root, abs)
	}
	return Version{Revision: "dir:" + filepath.ToSlash(abs)}, nil
}

// Install copies the directory, leaving out VCS metadata.
func (LocalProvider) Install(ctx context.Context, o Origin, v Version, dir string) error {
	return fsutil.CopyDir(o.Dir, dir, fsutil.SkipVCSMetadata)
}

// GoMod reads go.mod from the directory.
func (LocalProvider) GoMod(ctx context.Context, o Origin, v Version) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(o.Dir, "go.mod"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	return data, errors.Filesystem(err, "read", filepath.Join(o.Dir, "go.mod"))
}

var (
	_ Provider        = LocalProvider{}
	_ ModFileProvider = LocalProvider{}
)
