// Package installer installs a resolved dependency set into a vendor directory.
//
// The vendor directory holds one nested directory per dependency, named by
// its root path ("github.com/a/b" lives in vendor/github.com/a/b). An
// installation run:
//
//  1. creates the vendor directory and loads the snapshot
//  2. removes every directory that is not an up-to-date dependency, along
//     with dependencies nested inside a stale one
//  3. installs each dependency whose directory is empty or out of date
//  4. removes nested vendor directories and top-level plain files
//  5. saves the snapshot, only if everything above succeeded
//
// A run fails as a whole: the first fetch or filesystem error cancels the
// remaining installs and the previous snapshot stays in place.
package installer

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/govend/pkg/dependency"
	"github.com/matzehuels/govend/pkg/errors"
	"github.com/matzehuels/govend/pkg/fsutil"
	"github.com/matzehuels/govend/pkg/observability"
	"github.com/matzehuels/govend/pkg/pack"
	"github.com/matzehuels/govend/pkg/snapshot"
)

// nestedVendor is the directory name stripped from installed dependencies.
const nestedVendor = "vendor"

// Set is the input of an installation run.
type Set = dependency.Set[*dependency.Resolved]

// Report summarizes an installation run. Names are dependency names;
// Removed holds slash-separated paths relative to the vendor directory.
type Report struct {
	Installed []string
	Skipped   []string
	Removed   []string
	Duration  time.Duration
}

// Installer vendors dependency sets. One Installer must not run against the
// same vendor directory concurrently.
type Installer struct {
	snapshot    *snapshot.Cache
	logger      *log.Logger
	concurrency int
}

// Option configures an Installer.
type Option func(*Installer)

// WithConcurrency bounds parallel installs. Values below one mean
// runtime.NumCPU().
func WithConcurrency(n int) Option {
	return func(i *Installer) { i.concurrency = n }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(i *Installer) { i.logger = l }
}

// New returns an installer recording into snap.
func New(snap *snapshot.Cache, opts ...Option) *Installer {
	i := &Installer{snapshot: snap}
	for _, opt := range opts {
		opt(i)
	}
	if i.concurrency < 1 {
		i.concurrency = runtime.NumCPU()
	}
	if i.logger == nil {
		i.logger = log.Default()
	}
	return i
}

// TargetDir returns the directory dependency name is installed into.
func TargetDir(vendorDir, name string) string {
	return filepath.Join(vendorDir, filepath.FromSlash(name))
}

// Install vendors set into vendorDir.
func (i *Installer) Install(ctx context.Context, set *Set, vendorDir string) (*Report, error) {
	start := time.Now()
	vendorDir, err := filepath.Abs(vendorDir)
	if err != nil {
		return nil, errors.Filesystem(err, "resolve", vendorDir)
	}
	if err := validateNames(set); err != nil {
		return nil, err
	}
	if err := fsutil.EnsureDir(vendorDir); err != nil {
		return nil, err
	}
	i.snapshot.Load(ctx)

	report := &Report{}
	if report.Removed, err = i.sweep(ctx, set, vendorDir); err != nil {
		return nil, err
	}

	pending, skipped, err := i.plan(ctx, set, vendorDir)
	if err != nil {
		return nil, err
	}
	report.Skipped = skipped

	if report.Installed, err = i.installAll(ctx, pending, vendorDir); err != nil {
		return nil, err
	}

	if err := removeFiles(vendorDir); err != nil {
		return nil, err
	}
	if err := i.snapshot.Save(ctx); err != nil {
		return nil, err
	}

	report.Duration = time.Since(start)
	i.logger.Info("vendor up to date",
		"dir", vendorDir,
		"installed", len(report.Installed),
		"skipped", len(report.Skipped),
		"removed", len(report.Removed),
		"duration", report.Duration.Round(time.Millisecond))
	return report, nil
}

func validateNames(set *Set) error {
	for _, name := range set.Names() {
		if err := errors.ValidateImportPath(name); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidImport, err, "dependency %s cannot be vendored", name)
		}
	}
	return nil
}

// sweep removes everything below vendorDir that is neither an up-to-date
// dependency directory nor on the way to one. Top-level files are left for
// removeFiles.
func (i *Installer) sweep(ctx context.Context, set *Set, vendorDir string) ([]string, error) {
	upToDate := make(map[string]bool)
	set.ForEach(func(d *dependency.Resolved) {
		upToDate[d.Name()] = i.snapshot.IsUpToDate(d, TargetDir(vendorDir, d.Name()))
	})

	// A dependency is kept only if every dependency enclosing its root is
	// kept too. A stale outer root is removed as a whole and reinstalled
	// together with everything inside it.
	keep := make(map[string]bool)
	ancestors := make(map[string]bool)
	set.ForEach(func(d *dependency.Resolved) {
		if !upToDate[d.Name()] || enclosedByStale(d.Name(), upToDate) {
			return
		}
		keep[d.Name()] = true
		for p := d.Name(); strings.Contains(p, "/"); {
			p = p[:strings.LastIndex(p, "/")]
			ancestors[p] = true
		}
	})

	var removed []string
	remove := func(rel string) error {
		if err := fsutil.RemoveAll(TargetDir(vendorDir, rel)); err != nil {
			return err
		}
		removed = append(removed, rel)
		observability.Vendor().OnOrphanRemoved(ctx, rel)
		i.logger.Debug("removed stale vendor entry", "path", rel)
		return nil
	}

	var walk func(rel string) error
	walk = func(rel string) error {
		dir := TargetDir(vendorDir, rel)
		entries, err := fsutil.ReadDir(dir)
		if err != nil {
			return err
		}
		for _, e := range entries {
			child := e.Name()
			if rel != "" {
				child = rel + "/" + e.Name()
			}
			switch {
			case !e.IsDir() && rel == "":
				continue
			case keep[child]:
				continue
			case e.IsDir() && ancestors[child]:
				if err := walk(child); err != nil {
					return err
				}
				continue
			}
			if err := remove(child); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(""); err != nil {
		return nil, err
	}

	// A stale dependency nested inside a kept one was not visited above.
	for _, name := range set.Names() {
		if keep[name] || !insideKept(name, keep) {
			continue
		}
		if _, err := os.Lstat(TargetDir(vendorDir, name)); os.IsNotExist(err) {
			continue
		}
		if err := remove(name); err != nil {
			return nil, err
		}
	}

	// Entries of dependencies that left the set would otherwise stay in the
	// snapshot forever.
	for name := range i.snapshot.Entries() {
		if _, ok := upToDate[name]; !ok {
			i.snapshot.Forget(name)
		}
	}
	return removed, nil
}

func enclosedByStale(name string, upToDate map[string]bool) bool {
	for p := name; strings.Contains(p, "/"); {
		p = p[:strings.LastIndex(p, "/")]
		if ok, inSet := upToDate[p]; inSet && !ok {
			return true
		}
	}
	return false
}

func insideKept(name string, keep map[string]bool) bool {
	for p := name; strings.Contains(p, "/"); {
		p = p[:strings.LastIndex(p, "/")]
		if keep[p] {
			return true
		}
	}
	return false
}

// plan splits set into dependencies to install and up-to-date dependencies
// whose directory already has content. The latter get their nested vendor
// directory stripped right away.
func (i *Installer) plan(ctx context.Context, set *Set, vendorDir string) (pending []*dependency.Resolved, skipped []string, err error) {
	for _, d := range set.Items() {
		target := TargetDir(vendorDir, d.Name())
		empty, err := fsutil.IsEmptyDir(target)
		if err != nil {
			return nil, nil, err
		}
		if !empty && !i.snapshot.IsUpToDate(d, target) {
			if err := fsutil.RemoveAll(target); err != nil {
				return nil, nil, err
			}
			empty = true
		}
		if empty {
			pending = append(pending, d)
			continue
		}
		if err := fsutil.RemoveAll(filepath.Join(target, nestedVendor)); err != nil {
			return nil, nil, err
		}
		skipped = append(skipped, d.Name())
		observability.Vendor().OnInstallSkipped(ctx, d.Name())
		i.logger.Info("up-to-date, skip installing", "name", d.Name(), "revision", d.Version().Revision)
	}
	return pending, skipped, nil
}

// installAll installs pending dependencies in parallel. A dependency whose
// root lies inside another pending dependency's root waits for it, so the
// two never write the same tree at once.
func (i *Installer) installAll(ctx context.Context, pending []*dependency.Resolved, vendorDir string) ([]string, error) {
	var (
		mu        sync.Mutex
		installed []string
	)
	for _, wave := range nestingWaves(pending) {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(i.concurrency)
		for _, d := range wave {
			g.Go(func() error {
				if err := i.installOne(gctx, d, TargetDir(vendorDir, d.Name())); err != nil {
					return err
				}
				mu.Lock()
				installed = append(installed, d.Name())
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}
	slices.Sort(installed)
	return installed, nil
}

func (i *Installer) installOne(ctx context.Context, d *dependency.Resolved, target string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fsutil.EnsureDir(target); err != nil {
		return err
	}

	start := time.Now()
	observability.Vendor().OnInstallStart(ctx, d.Name())
	i.logger.Info("installing", "name", d.Name(), "version", d.Version().String())
	err := d.InstallTo(ctx, target)
	observability.Vendor().OnInstallComplete(ctx, d.Name(), time.Since(start), err)
	if err != nil {
		if errors.GetCode(err) == "" {
			err = errors.Wrap(errors.ErrCodeFetch, err, "install %s", d)
		}
		return err
	}

	if err := fsutil.RemoveAll(filepath.Join(target, nestedVendor)); err != nil {
		return err
	}
	i.snapshot.Update(d, target)
	return nil
}

// nestingWaves groups deps by how many other deps enclose their root.
func nestingWaves(deps []*dependency.Resolved) [][]*dependency.Resolved {
	var waves [][]*dependency.Resolved
	for _, d := range deps {
		depth := 0
		for _, other := range deps {
			if other != d && pack.IsSegmentPrefix(other.Name(), d.Name()) {
				depth++
			}
		}
		for len(waves) <= depth {
			waves = append(waves, nil)
		}
		waves[depth] = append(waves[depth], d)
	}
	return waves
}

// removeFiles deletes plain files directly under vendorDir.
func removeFiles(vendorDir string) error {
	entries, err := fsutil.ReadDir(vendorDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := fsutil.RemoveAll(filepath.Join(vendorDir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}
