package vcs

import (
	"context"
	stderrors "errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/matzehuels/govend/pkg/errors"
	"github.com/matzehuels/govend/pkg/process"
)

type fakeRunner struct {
	mu     sync.Mutex
	calls  []string
	handle func(dir string, args []string) (*process.Result, error)
}

func (f *fakeRunner) Run(ctx context.Context, dir, name string, args ...string) (*process.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, strings.Join(args, " "))
	f.mu.Unlock()
	if f.handle == nil {
		return &process.Result{}, nil
	}
	return f.handle(dir, args)
}

func (f *fakeRunner) count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func TestPickRevision(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want string
	}{
		{"empty", "", ""},
		{"head", "1111\tHEAD\n", "1111"},
		{"lightweight tag", "2222\trefs/tags/v1.0.0\n", "2222"},
		{"annotated tag prefers peeled", "3333\trefs/tags/v1.0.0\n4444\trefs/tags/v1.0.0^{}\n", "4444"},
		{"garbage lines ignored", "warning: something\n5555\tHEAD\n", "5555"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pickRevision(tt.out); got != tt.want {
				t.Errorf("pickRevision() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGitResolve(t *testing.T) {
	origin := Origin{Type: Git, URL: "https://example.com/a/b.git"}

	tests := []struct {
		name     string
		ref      Ref
		wantArgs string
	}{
		{"default branch", Ref{}, "ls-remote https://example.com/a/b.git HEAD"},
		{"branch", Ref{Branch: "dev"}, "ls-remote https://example.com/a/b.git refs/heads/dev"},
		{"tag", Ref{Tag: "v1.2.0"}, "ls-remote https://example.com/a/b.git refs/tags/v1.2.0 refs/tags/v1.2.0^{}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRunner{handle: func(string, []string) (*process.Result, error) {
				return &process.Result{Stdout: "abcdef\tsomething\n"}, nil
			}}
			v, err := NewGit(r).Resolve(context.Background(), origin, tt.ref)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if v.Revision != "abcdef" {
				t.Errorf("Revision = %q, want abcdef", v.Revision)
			}
			if len(r.calls) != 1 || r.calls[0] != tt.wantArgs {
				t.Errorf("calls = %q, want [%q]", r.calls, tt.wantArgs)
			}
		})
	}
}

func TestGitResolveCommitSkipsRemote(t *testing.T) {
	r := &fakeRunner{}
	v, err := NewGit(r).Resolve(context.Background(), Origin{Type: Git, URL: "u"}, Ref{Commit: "deadbeef"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v.Revision != "deadbeef" {
		t.Errorf("Revision = %q", v.Revision)
	}
	if len(r.calls) != 0 {
		t.Errorf("expected no git calls, got %q", r.calls)
	}
}

func TestGitResolveErrors(t *testing.T) {
	origin := Origin{Type: Git, URL: "u"}

	failing := &fakeRunner{handle: func(string, []string) (*process.Result, error) {
		return nil, stderrors.New("exit status 128")
	}}
	if _, err := NewGit(failing).Resolve(context.Background(), origin, Ref{}); !errors.Is(err, errors.ErrCodeFetch) {
		t.Errorf("failing ls-remote: error = %v, want FETCH_FAILED", err)
	}

	empty := &fakeRunner{}
	if _, err := NewGit(empty).Resolve(context.Background(), origin, Ref{Tag: "v9"}); !errors.Is(err, errors.ErrCodeFetch) {
		t.Errorf("missing ref: error = %v, want FETCH_FAILED", err)
	}
}

func TestGitInstallFallsBackToFullFetch(t *testing.T) {
	r := &fakeRunner{handle: func(dir string, args []string) (*process.Result, error) {
		switch {
		case args[0] == "fetch" && args[2] == "--depth":
			return nil, stderrors.New("unadvertised object")
		case len(args) > 2 && args[2] == "checkout":
			if err := os.MkdirAll(filepath.Join(dir, ".git"), 0o755); err != nil {
				return nil, err
			}
			if err := os.WriteFile(filepath.Join(dir, "lib.go"), []byte("package lib\n"), 0o644); err != nil {
				return nil, err
			}
		}
		return &process.Result{}, nil
	}}

	dst := t.TempDir()
	err := NewGit(r).Install(context.Background(), Origin{Type: Git, URL: "u"}, Version{Revision: "abc"}, dst)
	if err != nil {
		t.Fatalf("Install: %v", err)
	}

	if r.count("fetch") != 2 {
		t.Errorf("expected shallow then full fetch, calls = %q", r.calls)
	}
	if _, err := os.Stat(filepath.Join(dst, "lib.go")); err != nil {
		t.Errorf("lib.go not installed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, ".git")); !os.IsNotExist(err) {
		t.Error(".git should not be copied into the vendor tree")
	}
}

// checkoutRunner fakes a repository holding go.mod and lib.go and records
// the scratch directories it was run in.
func checkoutRunner() (*fakeRunner, *[]string) {
	var dirs []string
	var mu sync.Mutex
	r := &fakeRunner{handle: func(dir string, args []string) (*process.Result, error) {
		switch {
		case args[0] == "init":
			mu.Lock()
			dirs = append(dirs, dir)
			mu.Unlock()
		case len(args) > 2 && args[2] == "checkout":
			for name, content := range map[string]string{
				"go.mod": "module example.com/lib\n",
				"lib.go": "package lib\n",
			} {
				if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
					return nil, err
				}
			}
		}
		return &process.Result{}, nil
	}}
	return r, &dirs
}

func TestGitGoModThenInstallClonesOnce(t *testing.T) {
	r, dirs := checkoutRunner()
	g := NewGit(r)
	origin := Origin{Type: Git, URL: "https://example.com/lib.git", Root: "example.com/lib"}
	v := Version{Revision: "abc"}

	mod, err := g.GoMod(context.Background(), origin, v)
	if err != nil || !strings.Contains(string(mod), "example.com/lib") {
		t.Fatalf("GoMod = %q, %v", mod, err)
	}
	dst := t.TempDir()
	if err := g.Install(context.Background(), origin, v, dst); err != nil {
		t.Fatalf("Install: %v", err)
	}

	if n := r.count("init"); n != 1 {
		t.Errorf("git init ran %d times, want one shared checkout", n)
	}
	if _, err := os.Stat(filepath.Join(dst, "lib.go")); err != nil {
		t.Errorf("lib.go not installed: %v", err)
	}
	if _, err := os.Stat((*dirs)[0]); !os.IsNotExist(err) {
		t.Errorf("scratch checkout should be removed after Install: %v", err)
	}
}

func TestGitCloseRemovesUnusedCheckouts(t *testing.T) {
	r, dirs := checkoutRunner()
	g := NewGit(r)
	origin := Origin{Type: Git, URL: "https://example.com/lib.git", Root: "example.com/lib"}

	if _, err := g.GoMod(context.Background(), origin, Version{Revision: "abc"}); err != nil {
		t.Fatalf("GoMod: %v", err)
	}
	if _, err := os.Stat((*dirs)[0]); err != nil {
		t.Fatalf("checkout should be kept for a later Install: %v", err)
	}
	if err := g.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat((*dirs)[0]); !os.IsNotExist(err) {
		t.Errorf("Close left the scratch checkout behind: %v", err)
	}
}

func TestGitGoModMissing(t *testing.T) {
	data, err := NewGit(&fakeRunner{}).GoMod(context.Background(), Origin{Type: Git, URL: "u"}, Version{Revision: "abc"})
	if err != nil {
		t.Fatalf("GoMod: %v", err)
	}
	if data != nil {
		t.Errorf("GoMod = %q, want nil", data)
	}
}

func TestGitRoundTrip(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	ctx := context.Background()
	repo := t.TempDir()
	runner := process.ExecRunner{Env: []string{
		"GIT_AUTHOR_NAME=t", "GIT_AUTHOR_EMAIL=t@example.com",
		"GIT_COMMITTER_NAME=t", "GIT_COMMITTER_EMAIL=t@example.com",
		"GIT_TERMINAL_PROMPT=0",
	}}
	mustRun := func(args ...string) {
		t.Helper()
		if _, err := runner.Run(ctx, repo, "git", args...); err != nil {
			t.Fatalf("git %v: %v", args, err)
		}
	}

	mustRun("init", "-q")
	if err := os.WriteFile(filepath.Join(repo, "go.mod"), []byte("module example.com/b\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	mustRun("add", ".")
	mustRun("commit", "-q", "-m", "init")
	mustRun("tag", "v1.0.0")

	g := NewGit(runner)
	origin := Origin{Type: Git, URL: repo, Root: "example.com/b"}
	v, err := g.Resolve(ctx, origin, Ref{Tag: "v1.0.0"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(v.Revision) != 40 {
		t.Errorf("Revision = %q, want a full commit id", v.Revision)
	}

	dst := t.TempDir()
	if err := g.Install(ctx, origin, v, dst); err != nil {
		t.Fatalf("Install: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dst, "go.mod"))
	if err != nil || !strings.Contains(string(data), "example.com/b") {
		t.Errorf("installed go.mod = %q, %v", data, err)
	}
}
