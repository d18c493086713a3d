package pack

import (
	"testing"

	"github.com/matzehuels/govend/pkg/errors"
	"github.com/matzehuels/govend/pkg/repository"
	"github.com/matzehuels/govend/pkg/vcs"
)

func mustHandler(t *testing.T, patterns ...repository.Pattern) *repository.Handler {
	t.Helper()
	h, err := repository.NewHandler(patterns...)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	return h
}

func TestIsSegmentPrefix(t *testing.T) {
	tests := []struct {
		prefix, path string
		want         bool
	}{
		{"a/b", "a/b", true},
		{"a/b", "a/b/c", true},
		{"a/b", "a/bc", false},
		{"", "a", false},
		{"a/b/c", "a/b", false},
	}
	for _, tt := range tests {
		if got := IsSegmentPrefix(tt.prefix, tt.path); got != tt.want {
			t.Errorf("IsSegmentPrefix(%q, %q) = %v, want %v", tt.prefix, tt.path, got, tt.want)
		}
	}
}

func TestConstructorsEnforceRootPrefix(t *testing.T) {
	if _, err := NewVCS("a/b/c", "a/x", vcs.Git, "u"); err == nil {
		t.Error("NewVCS accepted a root that is not a prefix")
	}
	if _, err := NewLocal("a/b", "a/bb", "/src"); err == nil {
		t.Error("NewLocal accepted a root that is not a segment prefix")
	}

	pkg, err := NewVCS("a/b/c", "a/b", "", "https://a/b")
	if err != nil {
		t.Fatalf("NewVCS: %v", err)
	}
	if pkg.VCS != vcs.Git {
		t.Errorf("VCS = %q, want git default", pkg.VCS)
	}
	if pkg.Subpath() != "c" {
		t.Errorf("Subpath() = %q, want c", pkg.Subpath())
	}
	if got := pkg.Origin(); got.Root != "a/b" || got.URL != "https://a/b" || got.Type != vcs.Git {
		t.Errorf("Origin() = %+v", got)
	}
}

func TestRepositoryResolverExactMatch(t *testing.T) {
	r := NewRepositoryResolver(mustHandler(t,
		repository.Pattern{Match: "example.com/lib", URL: "https://git.example.com/lib.git"},
	))

	pkg, ok, err := r.Resolve("example.com/lib")
	if err != nil || !ok {
		t.Fatalf("Resolve = %v, %v", ok, err)
	}
	if pkg.RootPath != "example.com/lib" || pkg.ImportPath != "example.com/lib" {
		t.Errorf("got root %q import %q, want both example.com/lib", pkg.RootPath, pkg.ImportPath)
	}
	if pkg.Kind != KindVCS {
		t.Errorf("Kind = %s", pkg.Kind)
	}
}

func TestRepositoryResolverLongestPrefix(t *testing.T) {
	r := NewRepositoryResolver(mustHandler(t,
		repository.Pattern{Match: "github.com/a", URL: "https://short"},
		repository.Pattern{Match: "github.com/a/b", URL: "https://{root}"},
	))

	pkg, ok, err := r.Resolve("github.com/a/b/c/d")
	if err != nil || !ok {
		t.Fatalf("Resolve = %v, %v", ok, err)
	}
	if pkg.RootPath != "github.com/a/b" {
		t.Errorf("RootPath = %q, want the longest matching prefix", pkg.RootPath)
	}
	if pkg.ImportPath != "github.com/a/b/c/d" {
		t.Errorf("ImportPath = %q", pkg.ImportPath)
	}
	if pkg.URL != "https://github.com/a/b" {
		t.Errorf("URL = %q", pkg.URL)
	}
}

func TestRepositoryResolverScenario(t *testing.T) {
	r := NewRepositoryResolver(mustHandler(t,
		repository.Pattern{Match: "github.com/a/b", URL: "https://mirror.example.com/{name}.git"},
	))

	pkg, ok, err := r.Resolve("github.com/a/b/c")
	if err != nil || !ok {
		t.Fatalf("Resolve = %v, %v", ok, err)
	}
	want := Package{
		ImportPath: "github.com/a/b/c",
		RootPath:   "github.com/a/b",
		Kind:       KindVCS,
		VCS:        vcs.Git,
		URL:        "https://mirror.example.com/b.git",
	}
	if pkg != want {
		t.Errorf("got %+v, want %+v", pkg, want)
	}
}

func TestRepositoryResolverIncompleteShortCircuits(t *testing.T) {
	r := NewRepositoryResolver(mustHandler(t,
		repository.Pattern{Match: "github.com/a/b/c", Incomplete: true},
		repository.Pattern{Match: "github.com/a/b", URL: "https://{root}"},
	))

	pkg, ok, err := r.Resolve("github.com/a/b/c")
	if err != nil || !ok {
		t.Fatalf("Resolve = %v, %v", ok, err)
	}
	if pkg.Kind != KindIncomplete {
		t.Errorf("Kind = %s, want incomplete without prefix fallback", pkg.Kind)
	}
}

func TestRepositoryResolverSkipsIncompletePrefix(t *testing.T) {
	r := NewRepositoryResolver(mustHandler(t,
		repository.Pattern{Match: "github.com/a/b", Incomplete: true},
		repository.Pattern{Match: "github.com/a", URL: "https://{root}"},
	))

	pkg, ok, err := r.Resolve("github.com/a/b/c")
	if err != nil || !ok {
		t.Fatalf("Resolve = %v, %v", ok, err)
	}
	if pkg.Kind != KindVCS || pkg.RootPath != "github.com/a" {
		t.Errorf("got %+v, want vcs package rooted at github.com/a", pkg)
	}
}

func TestRepositoryResolverLocalDir(t *testing.T) {
	r := NewRepositoryResolver(mustHandler(t,
		repository.Pattern{Match: "corp.io/*", VCS: vcs.Local, Dir: "/src/{name}"},
	))

	pkg, ok, err := r.Resolve("corp.io/tools/cmd")
	if err != nil || !ok {
		t.Fatalf("Resolve = %v, %v", ok, err)
	}
	if pkg.Kind != KindLocal || pkg.Dir != "/src/tools" || pkg.RootPath != "corp.io/tools" {
		t.Errorf("got %+v", pkg)
	}
}

func TestRepositoryResolverNoMatch(t *testing.T) {
	r := NewRepositoryResolver(mustHandler(t,
		repository.Pattern{Match: "github.com/a/b", URL: "https://x"},
	))
	_, ok, err := r.Resolve("gitlab.com/a/b")
	if err != nil || ok {
		t.Errorf("Resolve = %v, %v; want not found", ok, err)
	}
}

func TestRepositoryResolverRuleWithoutOrigin(t *testing.T) {
	r := NewRepositoryResolver(mustHandler(t,
		repository.Pattern{Match: "github.com/a/b"},
	))
	_, _, err := r.Resolve("github.com/a/b/c")
	if !errors.Is(err, errors.ErrCodeConfig) {
		t.Errorf("error = %v, want INVALID_CONFIG", err)
	}
}

func TestRepositoryResolverModuleRuleUsesDefaultProxy(t *testing.T) {
	r := NewRepositoryResolver(mustHandler(t,
		repository.Pattern{Match: "golang.org/x/*", VCS: vcs.Module},
	))
	pkg, ok, err := r.Resolve("golang.org/x/text/unicode")
	if err != nil || !ok {
		t.Fatalf("Resolve = %v, %v", ok, err)
	}
	if pkg.VCS != vcs.Module || pkg.URL != "" || pkg.RootPath != "golang.org/x/text" {
		t.Errorf("package = %+v", pkg)
	}
}

func TestKnownHostResolver(t *testing.T) {
	tests := []struct {
		path     string
		wantOK   bool
		wantRoot string
		wantURL  string
	}{
		{"github.com/spf13/cobra/doc", true, "github.com/spf13/cobra", "https://github.com/spf13/cobra"},
		{"gitlab.com/g/p", true, "gitlab.com/g/p", "https://gitlab.com/g/p"},
		{"golang.org/x/sync/errgroup", true, "golang.org/x/sync", "https://go.googlesource.com/sync"},
		{"golang.org/y/sync", false, "", ""},
		{"github.com/short", false, "", ""},
		{"example.com/a/b", false, "", ""},
	}
	for _, tt := range tests {
		pkg, ok, err := KnownHostResolver{}.Resolve(tt.path)
		if err != nil {
			t.Errorf("Resolve(%q): %v", tt.path, err)
			continue
		}
		if ok != tt.wantOK {
			t.Errorf("Resolve(%q) ok = %v, want %v", tt.path, ok, tt.wantOK)
			continue
		}
		if ok && (pkg.RootPath != tt.wantRoot || pkg.URL != tt.wantURL) {
			t.Errorf("Resolve(%q) = root %q url %q", tt.path, pkg.RootPath, pkg.URL)
		}
	}
}

func TestChain(t *testing.T) {
	repo := NewRepositoryResolver(mustHandler(t,
		repository.Pattern{Match: "github.com/a/b", URL: "https://mirror/{name}"},
	))

	chain := NewChain([]Resolver{repo, KnownHostResolver{}})
	pkg, ok, _ := chain.Resolve("github.com/a/b")
	if !ok || pkg.URL != "https://mirror/b" {
		t.Errorf("configured rule should win, got %+v", pkg)
	}
	pkg, ok, _ = chain.Resolve("github.com/c/d")
	if !ok || pkg.URL != "https://github.com/c/d" {
		t.Errorf("known host should answer, got %+v", pkg)
	}
	if _, ok, _ := chain.Resolve("unknown.host/x"); ok {
		t.Error("expected not found without fallback")
	}

	fallback := NewChain([]Resolver{repo}, WithUnrecognizedFallback())
	pkg, ok, _ = fallback.Resolve("unknown.host/x")
	if !ok || pkg.Kind != KindUnrecognized {
		t.Errorf("fallback = %+v, %v", pkg, ok)
	}
}

func TestChainStopsOnError(t *testing.T) {
	failing := ResolverFunc(func(string) (Package, bool, error) {
		return Package{}, false, errors.New(errors.ErrCodeConfig, "bad rule")
	})
	chain := NewChain([]Resolver{failing, KnownHostResolver{}}, WithUnrecognizedFallback())
	if _, _, err := chain.Resolve("github.com/a/b"); !errors.Is(err, errors.ErrCodeConfig) {
		t.Errorf("error = %v, want INVALID_CONFIG", err)
	}
}
