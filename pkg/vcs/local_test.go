package vcs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/govend/pkg/errors"
)

func TestLocalProvider(t *testing.T) {
	ctx := context.Background()
	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "go.mod"), []byte("module local/b\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(src, ".hg"), 0o755); err != nil {
		t.Fatal(err)
	}

	origin := Origin{Type: Local, Dir: src, Root: "local/b"}
	p := NewLocal()

	v, err := p.Resolve(ctx, origin, Ref{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !strings.HasPrefix(v.Revision, "dir:") {
		t.Errorf("Revision = %q, want dir: prefix", v.Revision)
	}

	again, _ := p.Resolve(ctx, origin, Ref{})
	if again != v {
		t.Errorf("Resolve is not stable: %v vs %v", again, v)
	}

	mod, err := p.GoMod(ctx, origin, v)
	if err != nil || string(mod) != "module local/b\n" {
		t.Errorf("GoMod = %q, %v", mod, err)
	}

	dst := t.TempDir()
	if err := p.Install(ctx, origin, v, dst); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, "go.mod")); err != nil {
		t.Errorf("go.mod not copied: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, ".hg")); !os.IsNotExist(err) {
		t.Error(".hg should be skipped")
	}
}

func TestLocalProviderMissingDir(t *testing.T) {
	origin := Origin{Type: Local, Dir: filepath.Join(t.TempDir(), "nope"), Root: "local/x"}
	if _, err := NewLocal().Resolve(context.Background(), origin, Ref{}); !errors.Is(err, errors.ErrCodeFetch) {
		t.Errorf("error = %v, want FETCH_FAILED", err)
	}
}

func TestLocalProviderGoModAbsent(t *testing.T) {
	origin := Origin{Type: Local, Dir: t.TempDir()}
	data, err := NewLocal().GoMod(context.Background(), origin, Version{})
	if err != nil || data != nil {
		t.Errorf("GoMod = %q, %v; want nil, nil", data, err)
	}
}
