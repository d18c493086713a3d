// Package fsutil holds the filesystem primitives used by the installer and
// the providers. Every failure is reported as a FILESYSTEM_ERROR naming the
// offending path.
package fsutil

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/matzehuels/govend/pkg/errors"
)

// EnsureDir creates dir and any missing parents.
func EnsureDir(dir string) error {
	return errors.Filesystem(os.MkdirAll(dir, 0o755), "create directory", dir)
}

// RemoveAll deletes path and everything below it. A missing path is not an
// error.
func RemoveAll(path string) error {
	return errors.Filesystem(os.RemoveAll(path), "remove", path)
}

// IsEmptyDir reports whether dir is missing or has no entries.
func IsEmptyDir(dir string) (bool, error) {
	f, err := os.Open(dir)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, errors.Filesystem(err, "open", dir)
	}
	defer f.Close()

	_, err = f.Readdirnames(1)
	if err == io.EOF {
		return true, nil
	}
	if err != nil {
		return false, errors.Filesystem(err, "list", dir)
	}
	return false, nil
}

// ReadDir lists dir, returning nil for a missing directory.
func ReadDir(dir string) ([]os.DirEntry, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	return entries, errors.Filesystem(err, "list", dir)
}

// WriteFileAtomic writes data to a temporary file next to path and renames
// it over path, so readers never observe a partial write.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return errors.Filesystem(err, "create temp file in", filepath.Dir(path))
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return errors.Filesystem(err, "write", name)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return errors.Filesystem(err, "close", name)
	}
	if err := os.Chmod(name, perm); err != nil {
		os.Remove(name)
		return errors.Filesystem(err, "chmod", name)
	}
	return errors.Filesystem(os.Rename(name, path), "rename", path)
}

// SkipFunc decides whether a path below the copy source is left out. rel is
// slash-separated and relative to the source root.
type SkipFunc func(rel string, d fs.DirEntry) bool

// SkipVCSMetadata leaves out version-control bookkeeping directories.
func SkipVCSMetadata(rel string, d fs.DirEntry) bool {
	if !d.IsDir() {
		return false
	}
	switch d.Name() {
	case ".git", ".hg", ".svn", ".bzr":
		return true
	}
	return false
}

// CopyDir copies the tree rooted at src into dst, creating dst if needed.
// Regular files keep their permission bits and symlinks are recreated as
// symlinks.
func CopyDir(src, dst string, skip SkipFunc) error {
	if err := EnsureDir(dst); err != nil {
		return err
	}
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return errors.Filesystem(err, "walk", path)
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return errors.Filesystem(err, "relativize", path)
		}
		if rel == "." {
			return nil
		}
		if skip != nil && skip(filepath.ToSlash(rel), d) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		target := filepath.Join(dst, rel)
		switch {
		case d.IsDir():
			return errors.Filesystem(os.MkdirAll(target, 0o755), "create directory", target)
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return errors.Filesystem(err, "read link", path)
			}
			return errors.Filesystem(os.Symlink(link, target), "create link", target)
		case d.Type().IsRegular():
			return copyFile(path, target)
		default:
			return nil
		}
	})
}

func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return errors.Filesystem(err, "stat", src)
	}
	in, err := os.Open(src)
	if err != nil {
		return errors.Filesystem(err, "open", src)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return errors.Filesystem(err, "create", dst)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.Filesystem(err, "write", dst)
	}
	return errors.Filesystem(out.Close(), "close", dst)
}
