package vcs

import (
	"archive/zip"
	"bytes"
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matzehuels/govend/pkg/cache"
	"github.com/matzehuels/govend/pkg/errors"
)

func buildModuleZip(t *testing.T, prefix string, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(prefix + name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newProxyServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	zipData := buildModuleZip(t, "github.com/Foo/bar@v1.2.0/", map[string]string{
		"go.mod":     "module github.com/Foo/bar\n",
		"bar.go":     "package bar\n",
		"sub/sub.go": "package sub\n",
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/github.com/!foo/bar/@latest", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		w.Write([]byte(`{"Version":"v1.2.0","Time":"2024-01-01T00:00:00Z"}`))
	})
	mux.HandleFunc("/github.com/!foo/bar/@v/v1.1.0.info", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		w.Write([]byte(`{"Version":"v1.1.0"}`))
	})
	mux.HandleFunc("/github.com/!foo/bar/@v/v1.2.0.mod", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		w.Write([]byte("module github.com/Foo/bar\n"))
	})
	mux.HandleFunc("/github.com/!foo/bar/@v/v1.2.0.zip", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		w.Write(zipData)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestProxy(t *testing.T, srv *httptest.Server, c cache.Cache) *ProxyProvider {
	t.Helper()
	p := NewProxy(c, WithHTTPClient(srv.Client()), WithRetry(1, time.Millisecond))
	t.Cleanup(func() { p.Close() })
	return p
}

func TestEscapePath(t *testing.T) {
	tests := []struct{ in, want string }{
		{"github.com/foo/bar", "github.com/foo/bar"},
		{"github.com/Azure/azure-sdk", "github.com/!azure/azure-sdk"},
		{"github.com/BurntSushi/toml", "github.com/!burnt!sushi/toml"},
	}
	for _, tt := range tests {
		if got := escapePath(tt.in); got != tt.want {
			t.Errorf("escapePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestProxyResolve(t *testing.T) {
	var hits int32
	srv := newProxyServer(t, &hits)
	p := newTestProxy(t, srv, nil)
	origin := Origin{Type: Module, URL: srv.URL, Root: "github.com/Foo/bar"}

	v, err := p.Resolve(context.Background(), origin, Ref{})
	if err != nil {
		t.Fatalf("Resolve latest: %v", err)
	}
	if v.Revision != "v1.2.0" {
		t.Errorf("latest = %q, want v1.2.0", v.Revision)
	}

	v, err = p.Resolve(context.Background(), origin, Ref{Tag: "v1.1.0"})
	if err != nil {
		t.Fatalf("Resolve tag: %v", err)
	}
	if v.Revision != "v1.1.0" || v.Tag != "v1.1.0" {
		t.Errorf("tag version = %+v", v)
	}
}

func TestProxyResolveUsesCache(t *testing.T) {
	var hits int32
	srv := newProxyServer(t, &hits)
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	p := newTestProxy(t, srv, fc)
	origin := Origin{Type: Module, URL: srv.URL, Root: "github.com/Foo/bar"}

	for i := 0; i < 3; i++ {
		if _, err := p.Resolve(context.Background(), origin, Ref{}); err != nil {
			t.Fatalf("Resolve #%d: %v", i, err)
		}
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("upstream hits = %d, want 1", got)
	}
}

func TestProxyNotFound(t *testing.T) {
	var hits int32
	srv := newProxyServer(t, &hits)
	p := newTestProxy(t, srv, nil)
	origin := Origin{Type: Module, URL: srv.URL, Root: "github.com/none/such"}

	_, err := p.Resolve(context.Background(), origin, Ref{})
	if !errors.Is(err, errors.ErrCodeFetch) {
		t.Errorf("error = %v, want FETCH_FAILED", err)
	}
}

func TestProxyGoModAndInstall(t *testing.T) {
	var hits int32
	srv := newProxyServer(t, &hits)
	p := newTestProxy(t, srv, nil)
	origin := Origin{Type: Module, URL: srv.URL, Root: "github.com/Foo/bar"}
	v := Version{Revision: "v1.2.0"}

	mod, err := p.GoMod(context.Background(), origin, v)
	if err != nil {
		t.Fatalf("GoMod: %v", err)
	}
	if string(mod) != "module github.com/Foo/bar\n" {
		t.Errorf("GoMod = %q", mod)
	}

	dst := t.TempDir()
	if err := p.Install(context.Background(), origin, v, dst); err != nil {
		t.Fatalf("Install: %v", err)
	}
	for _, f := range []string{"go.mod", "bar.go", "sub/sub.go"} {
		if _, err := os.Stat(filepath.Join(dst, filepath.FromSlash(f))); err != nil {
			t.Errorf("%s missing: %v", f, err)
		}
	}
}

func TestExtractModuleRejectsForeignEntries(t *testing.T) {
	tests := []struct {
		name  string
		entry string
	}{
		{"outside prefix", "evil@v1/x.go"},
		{"traversal", "m@v1/../escape.go"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := buildModuleZip(t, "", map[string]string{tt.entry: "x"})
			zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
			if err != nil && !stderrors.Is(err, zip.ErrInsecurePath) {
				t.Fatal(err)
			}
			dst := t.TempDir()
			if err := extractModule(zr, "m@v1/", dst); err == nil {
				t.Error("expected extraction to fail")
			}
			if _, err := os.Stat(filepath.Join(filepath.Dir(dst), "escape.go")); !os.IsNotExist(err) {
				t.Error("file escaped the target directory")
			}
		})
	}
}

func TestProxyBreakerState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := newTestProxy(t, srv, nil)
	origin := Origin{Type: Module, URL: srv.URL, Root: "example.com/m"}
	for i := 0; i < 6; i++ {
		_, _ = p.Resolve(context.Background(), origin, Ref{})
	}

	states := p.BreakerState()
	if len(states) != 1 {
		t.Fatalf("expected one breaker, got %v", states)
	}
	for host, state := range states {
		if state != "open" {
			t.Errorf("breaker for %s = %s, want open after repeated failures", host, state)
		}
	}
}
