package snapshot

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/govend/pkg/cache"
	"github.com/matzehuels/govend/pkg/dependency"
	"github.com/matzehuels/govend/pkg/errors"
	"github.com/matzehuels/govend/pkg/pack"
	"github.com/matzehuels/govend/pkg/vcs"
)

func resolved(t *testing.T, root, url, rev string) *dependency.Resolved {
	t.Helper()
	pkg, err := pack.NewVCS(root, root, vcs.Git, url)
	if err != nil {
		t.Fatal(err)
	}
	return dependency.NewResolved(pkg, vcs.Version{Revision: rev}, nil, true)
}

func newCache(store Store) *Cache {
	return New(store, log.New(io.Discard))
}

func TestCacheUpToDate(t *testing.T) {
	c := newCache(NewFileStore(filepath.Join(t.TempDir(), "snapshot.json")))
	c.Load(context.Background())

	dep := resolved(t, "github.com/a/b", "https://github.com/a/b", "r1")
	if c.IsUpToDate(dep, "/v/github.com/a/b") {
		t.Error("empty cache should report stale")
	}

	c.Update(dep, "/v/github.com/a/b")
	if !c.IsUpToDate(dep, "/v/github.com/a/b") {
		t.Error("entry should be up to date after Update")
	}

	tests := []struct {
		name string
		dep  *dependency.Resolved
		dir  string
	}{
		{"new revision", resolved(t, "github.com/a/b", "https://github.com/a/b", "r2"), "/v/github.com/a/b"},
		{"new origin", resolved(t, "github.com/a/b", "https://mirror/b", "r1"), "/v/github.com/a/b"},
		{"new dir", dep, "/other/github.com/a/b"},
	}
	for _, tt := range tests {
		if c.IsUpToDate(tt.dep, tt.dir) {
			t.Errorf("%s: should be stale", tt.name)
		}
	}

	e, ok := c.Lookup("github.com/a/b")
	if !ok || e.RunID != c.RunID() || e.InstalledAt.IsZero() {
		t.Errorf("Lookup = %+v, %v", e, ok)
	}
}

func TestCacheUpdateOverwrites(t *testing.T) {
	c := newCache(NewFileStore(filepath.Join(t.TempDir(), "s.json")))
	c.Update(resolved(t, "x/y", "https://x/y", "r1"), "/v/x/y")
	c.Update(resolved(t, "x/y", "https://x/y", "r2"), "/v/x/y")

	entries := c.Entries()
	if len(entries) != 1 || entries["x/y"].Revision != "r2" {
		t.Errorf("Entries() = %+v", entries)
	}

	entries["x/y"] = Entry{}
	if e, _ := c.Lookup("x/y"); e.Revision != "r2" {
		t.Error("Entries() must return a copy")
	}

	c.Forget("x/y")
	if _, ok := c.Lookup("x/y"); ok {
		t.Error("Forget should drop the entry")
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), ".govend", "snapshot.json")
	dep := resolved(t, "github.com/a/b", "https://github.com/a/b", "r1")

	first := newCache(NewFileStore(path))
	first.Load(ctx)
	first.Update(dep, "/v/github.com/a/b")
	if err := first.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}

	second := newCache(NewFileStore(path))
	second.Load(ctx)
	if !second.IsUpToDate(dep, "/v/github.com/a/b") {
		t.Error("reloaded cache lost the entry")
	}
	if second.Location() != path {
		t.Errorf("Location() = %q", second.Location())
	}
}

func TestLoadCorruptStartsEmpty(t *testing.T) {
	tests := map[string]string{
		"garbage":       "{not json",
		"wrong version": `{"version": 99, "entries": {"a/b": {"origin": "git+u", "revision": "r"}}}`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "snapshot.json")
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatal(err)
			}
			c := newCache(NewFileStore(path))
			c.Load(context.Background())
			if n := len(c.Entries()); n != 0 {
				t.Errorf("expected empty cache, got %d entries", n)
			}
		})
	}
}

func TestSaveFailureIsCacheError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := newCache(NewFileStore(filepath.Join(blocker, "snapshot.json")))
	c.Update(resolved(t, "a/b", "https://a/b", "r"), "/v/a/b")
	if err := c.Save(context.Background()); !errors.Is(err, errors.ErrCodeCache) {
		t.Errorf("Save error = %v, want CACHE_ERROR", err)
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snapshot.json")
	c := newCache(NewFileStore(path))
	c.Update(resolved(t, "a/b", "https://a/b", "r"), "/v/a/b")
	if err := c.Save(ctx); err != nil {
		t.Fatal(err)
	}

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if len(c.Entries()) != 0 {
		t.Error("Clear should empty the cache")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Clear should remove the snapshot file")
	}
	if err := c.Clear(ctx); err != nil {
		t.Errorf("second Clear: %v", err)
	}
}

func TestCacheStore(t *testing.T) {
	ctx := context.Background()
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	keyer := cache.NewScopedKeyer(nil, "ci:")
	dep := resolved(t, "a/b", "https://a/b", "r")

	first := newCache(NewCacheStore(fc, keyer, "/work/project"))
	first.Load(ctx)
	first.Update(dep, "/v/a/b")
	if err := first.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}

	second := newCache(NewCacheStore(fc, keyer, "/work/project"))
	second.Load(ctx)
	if !second.IsUpToDate(dep, "/v/a/b") {
		t.Error("cache store lost the entry")
	}

	other := newCache(NewCacheStore(fc, keyer, "/work/other"))
	other.Load(ctx)
	if len(other.Entries()) != 0 {
		t.Error("projects must not share snapshots")
	}
}

func TestRedisCacheStore(t *testing.T) {
	addr := os.Getenv("GOVEND_REDIS_ADDR")
	if addr == "" {
		t.Skip("GOVEND_REDIS_ADDR not set")
	}
	ctx := context.Background()
	rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{Addr: addr})
	if err != nil {
		t.Fatalf("NewRedisCache: %v", err)
	}
	defer rc.Close()

	project := "test-" + time.Now().Format("150405.000000")
	c := newCache(NewCacheStore(rc, nil, project))
	defer c.Clear(ctx)

	dep := resolved(t, "a/b", "https://a/b", "r")
	c.Update(dep, "/v/a/b")
	if err := c.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}
	again := newCache(NewCacheStore(rc, nil, project))
	again.Load(ctx)
	if !again.IsUpToDate(dep, "/v/a/b") {
		t.Error("redis round trip lost the entry")
	}
}

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("GOVEND_MONGO_URI")
	if uri == "" {
		t.Skip("GOVEND_MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	project := "test-" + time.Now().Format("150405.000000")
	store, err := NewMongoStore(ctx, MongoConfig{URI: uri, Database: "govend_test"}, project)
	if err != nil {
		t.Fatalf("NewMongoStore: %v", err)
	}
	defer store.Close(ctx)

	c := newCache(store)
	defer c.Clear(ctx)

	dep := resolved(t, "github.com/a/b", "https://github.com/a/b", "r")
	c.Update(dep, "/v/github.com/a/b")
	if err := c.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}

	again := newCache(store)
	again.Load(ctx)
	if !again.IsUpToDate(dep, "/v/github.com/a/b") {
		t.Error("mongo round trip lost the entry")
	}
}
