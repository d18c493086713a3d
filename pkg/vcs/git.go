package vcs

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/matzehuels/govend/pkg/errors"
	"github.com/matzehuels/govend/pkg/fsutil"
	"github.com/matzehuels/govend/pkg/process"
)

// GitProvider drives the git binary. Reading go.mod and installing the same
// revision share one scratch checkout.
type GitProvider struct {
	runner process.Runner
	bin    string

	mu        sync.Mutex
	checkouts map[string]*checkout
}

// checkout is a scratch work tree of one url@revision.
type checkout struct {
	once  sync.Once
	dir   string
	err   error
	users int
	drop  bool
}

// NewGit returns a git provider running commands through r. A nil runner
// uses [process.ExecRunner].
func NewGit(r process.Runner) *GitProvider {
	if r == nil {
		r = process.ExecRunner{Env: []string{"GIT_TERMINAL_PROMPT=0"}}
	}
	return &GitProvider{runner: r, bin: "git", checkouts: make(map[string]*checkout)}
}

// Resolve maps ref to a commit with git ls-remote. A commit ref is trusted
// as-is.
func (g *GitProvider) Resolve(ctx context.Context, o Origin, ref Ref) (Version, error) {
	if ref.Commit != "" {
		return Version{Revision: ref.Commit, Tag: ref.Tag}, nil
	}

	var patterns []string
	switch {
	case ref.Tag != "":
		patterns = []string{"refs/tags/" + ref.Tag, "refs/tags/" + ref.Tag + "^{}"}
	case ref.Branch != "":
		patterns = []string{"refs/heads/" + ref.Branch}
	default:
		patterns = []string{"HEAD"}
	}

	args := append([]string{"ls-remote", o.URL}, patterns...)
	res, err := g.runner.Run(ctx, "", g.bin, args...)
	if err != nil {
		return Version{}, errors.Wrap(errors.ErrCodeFetch, err, "resolve %s in %s", ref, o.URL)
	}

	rev := pickRevision(res.Stdout)
	if rev == "" {
		return Version{}, errors.New(errors.ErrCodeFetch, "%s not found in %s", ref, o.URL)
	}
	return Version{Revision: rev, Tag: ref.Tag}, nil
}

// pickRevision returns the commit from ls-remote output, preferring the
// peeled entry of an annotated tag.
func pickRevision(out string) string {
	var rev string
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 {
			continue
		}
		if strings.HasSuffix(fields[1], "^{}") {
			return fields[0]
		}
		if rev == "" {
			rev = fields[0]
		}
	}
	return rev
}

// Install copies the work tree of v, without .git, into dir. The scratch
// checkout is removed afterwards.
func (g *GitProvider) Install(ctx context.Context, o Origin, v Version, dir string) error {
	key, c, err := g.acquire(ctx, o.URL, v.Revision)
	if err != nil {
		return err
	}
	defer g.release(key, c, true)
	return fsutil.CopyDir(c.dir, dir, fsutil.SkipVCSMetadata)
}

// GoMod returns the go.mod of v, or nil if the revision has none. The
// checkout is kept for a following Install.
func (g *GitProvider) GoMod(ctx context.Context, o Origin, v Version) ([]byte, error) {
	key, c, err := g.acquire(ctx, o.URL, v.Revision)
	if err != nil {
		return nil, err
	}
	defer g.release(key, c, false)

	path := filepath.Join(c.dir, "go.mod")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	return data, errors.Filesystem(err, "read", path)
}

// Close removes the scratch checkouts that no Install consumed.
func (g *GitProvider) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for key, c := range g.checkouts {
		if c.dir != "" {
			_ = os.RemoveAll(c.dir)
		}
		delete(g.checkouts, key)
	}
	return nil
}

// acquire returns the checkout of url@rev, cloning it on first use.
func (g *GitProvider) acquire(ctx context.Context, url, rev string) (string, *checkout, error) {
	key := url + "@" + rev
	g.mu.Lock()
	c, ok := g.checkouts[key]
	if !ok {
		c = &checkout{}
		g.checkouts[key] = c
	}
	c.users++
	g.mu.Unlock()

	c.once.Do(func() {
		work, err := os.MkdirTemp("", "govend-git-*")
		if err != nil {
			c.err = errors.Filesystem(err, "create temp dir", os.TempDir())
			return
		}
		c.dir = work
		c.err = g.checkout(ctx, work, url, rev)
	})
	if c.err != nil {
		err := c.err
		g.release(key, c, true)
		return "", nil, err
	}
	return key, c, nil
}

// release gives up one use of c. A checkout marked for dropping is removed
// once its last user is done.
func (g *GitProvider) release(key string, c *checkout, drop bool) {
	g.mu.Lock()
	c.users--
	c.drop = c.drop || drop
	remove := c.users == 0 && c.drop
	if remove && g.checkouts[key] == c {
		delete(g.checkouts, key)
	}
	g.mu.Unlock()
	if remove && c.dir != "" {
		_ = os.RemoveAll(c.dir)
	}
}

func (g *GitProvider) checkout(ctx context.Context, work, url, rev string) error {
	if _, err := g.runner.Run(ctx, work, g.bin, "init", "-q"); err != nil {
		return errors.Wrap(errors.ErrCodeFetch, err, "git init")
	}
	// Servers that refuse unadvertised commits need a full fetch.
	if _, err := g.runner.Run(ctx, work, g.bin, "fetch", "-q", "--depth", "1", url, rev); err != nil {
		if _, err := g.runner.Run(ctx, work, g.bin, "fetch", "-q", url,
			"+refs/heads/*:refs/remotes/origin/*", "+refs/tags/*:refs/tags/*"); err != nil {
			return errors.Wrap(errors.ErrCodeFetch, err, "git fetch %s", url)
		}
	}
	if _, err := g.runner.Run(ctx, work, g.bin, "-c", "advice.detachedHead=false", "checkout", "-q", rev); err != nil {
		return errors.Wrap(errors.ErrCodeFetch, err, "git checkout %s from %s", rev, url)
	}
	return nil
}

var (
	_ Provider        = (*GitProvider)(nil)
	_ ModFileProvider = (*GitProvider)(nil)
)
