package vcs

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenk/backoff"
	circuit "github.com/rubyist/circuitbreaker"
	"github.com/rs/dnscache"

	"github.com/matzehuels/govend/pkg/buildinfo"
	"github.com/matzehuels/govend/pkg/cache"
	"github.com/matzehuels/govend/pkg/errors"
	"github.com/matzehuels/govend/pkg/observability"
)

// DefaultProxyURL is used when a module origin has no URL and no base
// URL was configured.
const DefaultProxyURL = "https://proxy.golang.org"

// DefaultProxyCacheTTL bounds how long proxy metadata responses are reused.
const DefaultProxyCacheTTL = 24 * time.Hour

// ProxyProvider speaks the GOPROXY protocol: @latest and @v/<query>.info to
// resolve, @v/<version>.mod for manifests and @v/<version>.zip to install.
//
// Metadata responses go through a [cache.Cache]. Every upstream host gets its
// own circuit breaker so a dead mirror fails fast instead of stalling each
// dependency in turn. All methods are safe for concurrent use.
type ProxyProvider struct {
	baseURL  string
	client   *http.Client
	cache    cache.Cache
	keyer    cache.Keyer
	ttl      time.Duration
	attempts int
	delay    time.Duration

	mu       sync.Mutex
	breakers map[string]*circuit.Breaker

	stop     chan struct{}
	stopOnce sync.Once
}

// ProxyOption configures a ProxyProvider.
type ProxyOption func(*ProxyProvider)

// WithBaseURL sets the proxy used for origins without a URL.
func WithBaseURL(u string) ProxyOption {
	return func(p *ProxyProvider) { p.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient replaces the DNS-caching default client.
func WithHTTPClient(c *http.Client) ProxyOption {
	return func(p *ProxyProvider) { p.client = c }
}

// WithCacheTTL sets how long metadata responses are cached.
func WithCacheTTL(ttl time.Duration) ProxyOption {
	return func(p *ProxyProvider) { p.ttl = ttl }
}

// WithRetry sets the attempt count and initial backoff delay.
func WithRetry(attempts int, delay time.Duration) ProxyOption {
	return func(p *ProxyProvider) {
		p.attempts = attempts
		p.delay = delay
	}
}

// WithKeyer sets the cache keyer.
func WithKeyer(k cache.Keyer) ProxyOption {
	return func(p *ProxyProvider) { p.keyer = k }
}

// NewProxy creates a module proxy provider. A nil cache disables caching.
func NewProxy(c cache.Cache, opts ...ProxyOption) *ProxyProvider {
	if c == nil {
		c = cache.NewNullCache()
	}
	p := &ProxyProvider{
		baseURL:  DefaultProxyURL,
		cache:    c,
		keyer:    cache.NewDefaultKeyer(),
		ttl:      DefaultProxyCacheTTL,
		attempts: 3,
		delay:    time.Second,
		breakers: make(map[string]*circuit.Breaker),
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.client == nil {
		p.client = newDNSCachingClient(p.stop)
	}
	return p
}

// Close stops the DNS refresh loop of the default client.
func (p *ProxyProvider) Close() error {
	p.stopOnce.Do(func() { close(p.stop) })
	return nil
}

type proxyInfo struct {
	Version string `json:"Version"`
	Time    string `json:"Time"`
}

// Resolve asks the proxy which version the ref names. Commits and branches
// are passed through as queries; the proxy answers with a pseudo-version.
func (p *ProxyProvider) Resolve(ctx context.Context, o Origin, ref Ref) (Version, error) {
	query := ref.Commit
	if query == "" {
		query = ref.Tag
	}
	if query == "" {
		query = ref.Branch
	}

	endpoint := p.moduleURL(o) + "/@latest"
	if query != "" {
		endpoint = p.moduleURL(o) + "/@v/" + escapePath(query) + ".info"
	}

	data, err := p.get(ctx, endpoint)
	if err != nil {
		return Version{}, errors.Wrap(errors.ErrCodeFetch, err, "module %s at %s", o.Root, ref)
	}
	var info proxyInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return Version{}, errors.Wrap(errors.ErrCodeFetch, err, "decode %s", endpoint)
	}
	if info.Version == "" {
		return Version{}, errors.New(errors.ErrCodeFetch, "module %s at %s: empty version", o.Root, ref)
	}
	return Version{Revision: info.Version, Tag: ref.Tag}, nil
}

// GoMod returns the go.mod of the module version.
func (p *ProxyProvider) GoMod(ctx context.Context, o Origin, v Version) ([]byte, error) {
	endpoint := p.moduleURL(o) + "/@v/" + escapePath(v.Revision) + ".mod"
	data, err := p.get(ctx, endpoint)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFetch, err, "go.mod of %s@%s", o.Root, v.Revision)
	}
	return data, nil
}

// Install downloads the module zip and extracts it into dir.
func (p *ProxyProvider) Install(ctx context.Context, o Origin, v Version, dir string) error {
	tmp, err := os.CreateTemp("", "govend-mod-*.zip")
	if err != nil {
		return errors.Filesystem(err, "create temp file", os.TempDir())
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	endpoint := p.moduleURL(o) + "/@v/" + escapePath(v.Revision) + ".zip"
	err = p.fetch(ctx, endpoint, func(body io.Reader) error {
		if err := tmp.Truncate(0); err != nil {
			return err
		}
		if _, err := tmp.Seek(0, io.SeekStart); err != nil {
			return err
		}
		if _, err := io.Copy(tmp, body); err != nil {
			return cache.Retryable(fmt.Errorf("%w: %v", cache.ErrNetwork, err))
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(errors.ErrCodeFetch, err, "download %s@%s", o.Root, v.Revision)
	}

	info, err := tmp.Stat()
	if err != nil {
		return errors.Filesystem(err, "stat", tmp.Name())
	}
	zr, err := zip.NewReader(tmp, info.Size())
	if err != nil {
		return errors.Wrap(errors.ErrCodeFetch, err, "open zip of %s@%s", o.Root, v.Revision)
	}
	return extractModule(zr, o.Root+"@"+v.Revision+"/", dir)
}

// extractModule writes the files below prefix into dir.
func extractModule(zr *zip.Reader, prefix, dir string) error {
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, prefix) {
			return errors.New(errors.ErrCodeFetch, "zip entry %q outside module prefix %q", f.Name, prefix)
		}
		rel := strings.TrimPrefix(f.Name, prefix)
		if rel == "" || strings.HasSuffix(rel, "/") {
			continue
		}
		if err := errors.ValidatePath(rel); err != nil {
			return errors.Wrap(errors.ErrCodeFetch, err, "zip entry %q", f.Name)
		}

		target := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return errors.Filesystem(err, "create directory", filepath.Dir(target))
		}
		if err := extractFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return errors.Wrap(errors.ErrCodeFetch, err, "zip entry %q", f.Name)
	}
	defer rc.Close()

	perm := f.Mode().Perm()
	if perm == 0 {
		perm = 0o644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return errors.Filesystem(err, "create", target)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return errors.Filesystem(err, "write", target)
	}
	return errors.Filesystem(out.Close(), "close", target)
}

func (p *ProxyProvider) moduleURL(o Origin) string {
	base := strings.TrimSuffix(o.URL, "/")
	if base == "" {
		base = p.baseURL
	}
	return base + "/" + escapePath(o.Root)
}

// get returns the body of endpoint, consulting the cache first.
func (p *ProxyProvider) get(ctx context.Context, endpoint string) ([]byte, error) {
	key := p.keyer.HTTPKey("goproxy", endpoint)
	if data, ok, err := p.cache.Get(ctx, key); err == nil && ok {
		observability.Cache().OnCacheHit(ctx, "http")
		return data, nil
	}
	observability.Cache().OnCacheMiss(ctx, "http")

	var data []byte
	err := p.fetch(ctx, endpoint, func(body io.Reader) error {
		b, err := io.ReadAll(body)
		if err != nil {
			return cache.Retryable(fmt.Errorf("%w: %v", cache.ErrNetwork, err))
		}
		data = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := p.cache.Set(ctx, key, data, p.ttl); err == nil {
		observability.Cache().OnCacheSet(ctx, "http", len(data))
	}
	return data, nil
}

// fetch performs a GET through the host's circuit breaker with retries.
func (p *ProxyProvider) fetch(ctx context.Context, endpoint string, read func(io.Reader) error) error {
	host := hostOf(endpoint)
	breaker := p.breaker(host)
	if !breaker.Ready() {
		return fmt.Errorf("circuit breaker open for %s: %w", host, cache.ErrNetwork)
	}

	return cache.Retry(ctx, p.attempts, p.delay, func() error {
		return breaker.Call(func() error {
			return p.do(ctx, endpoint, read)
		}, 0)
	})
}

func (p *ProxyProvider) do(ctx context.Context, endpoint string, read func(io.Reader) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent())
	host, path := req.URL.Host, req.URL.Path

	start := time.Now()
	observability.HTTP().OnRequest(ctx, http.MethodGet, host, path)
	resp, err := p.client.Do(req)
	if err != nil {
		observability.HTTP().OnError(ctx, http.MethodGet, host, path, err)
		return cache.Retryable(fmt.Errorf("%w: %v", cache.ErrNetwork, err))
	}
	defer resp.Body.Close()
	observability.HTTP().OnResponse(ctx, http.MethodGet, host, path, resp.StatusCode, time.Since(start))

	switch code := resp.StatusCode; {
	case code == http.StatusOK:
		return read(resp.Body)
	case code == http.StatusNotFound || code == http.StatusGone:
		return fmt.Errorf("%w: %s", cache.ErrNotFound, endpoint)
	case code >= 500:
		return cache.Retryable(fmt.Errorf("%w: status %d", cache.ErrNetwork, code))
	default:
		return fmt.Errorf("%w: status %d", cache.ErrNetwork, code)
	}
}

// breaker returns or creates the circuit breaker for host. It trips after
// five consecutive failures and backs off exponentially.
func (p *ProxyProvider) breaker(host string) *circuit.Breaker {
	p.mu.Lock()
	defer p.mu.Unlock()

	if b, ok := p.breakers[host]; ok {
		return b
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Multiplier = 2.0
	expBackoff.Reset()

	b := circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ThresholdTripFunc(5),
	})
	p.breakers[host] = b
	return b
}

// BreakerState reports "open" or "closed" per upstream host.
func (p *ProxyProvider) BreakerState() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()

	states := make(map[string]string, len(p.breakers))
	for host, b := range p.breakers {
		if b.Tripped() {
			states[host] = "open"
		} else {
			states[host] = "closed"
		}
	}
	return states
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}

// escapePath applies the proxy case encoding: every upper-case letter
// becomes '!' followed by its lower-case form.
func escapePath(path string) string {
	var b strings.Builder
	for _, r := range path {
		if r >= 'A' && r <= 'Z' {
			b.WriteByte('!')
			b.WriteRune(r + ('a' - 'A'))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// newDNSCachingClient builds an HTTP client whose dialer resolves hosts
// through a cache refreshed every five minutes until stop is closed.
func newDNSCachingClient(stop <-chan struct{}) *http.Client {
	resolver := &dnscache.Resolver{}
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				resolver.Refresh(true)
			case <-stop:
				return
			}
		}
	}()

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	return &http.Client{
		Timeout: 5 * time.Minute,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				host, port, err := net.SplitHostPort(addr)
				if err != nil {
					return nil, err
				}
				ips, err := resolver.LookupHost(ctx, host)
				if err != nil {
					return nil, err
				}
				for _, ip := range ips {
					conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
					if err == nil {
						return conn, nil
					}
				}
				return nil, fmt.Errorf("failed to dial any resolved IP for %s", host)
			},
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

var (
	_ Provider        = (*ProxyProvider)(nil)
	_ ModFileProvider = (*ProxyProvider)(nil)
)
