package cli

import (
	"context"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/govend/pkg/cache"
	"github.com/matzehuels/govend/pkg/config"
	"github.com/matzehuels/govend/pkg/dependency"
	"github.com/matzehuels/govend/pkg/errors"
	"github.com/matzehuels/govend/pkg/manifest"
	"github.com/matzehuels/govend/pkg/pack"
	"github.com/matzehuels/govend/pkg/snapshot"
	"github.com/matzehuels/govend/pkg/vcs"
)

// project bundles the configuration and backends of one invocation.
type project struct {
	dir    string
	cfg    *config.Config
	flags  globalFlags
	logger *log.Logger

	redis   *cache.RedisCache
	closers []func(context.Context) error
}

// openProject loads the project file and applies flag overrides.
func (c *CLI) openProject(ctx context.Context) (*project, error) {
	dir, err := filepath.Abs(c.flags.project)
	if err != nil {
		return nil, errors.Filesystem(err, "resolve", c.flags.project)
	}

	var cfg *config.Config
	if c.flags.config != "" {
		cfg, err = config.Load(c.flags.config)
	} else {
		cfg, err = config.LoadDir(dir)
	}
	if err != nil {
		return nil, err
	}
	if c.flags.vendorDir != "" {
		cfg.Vendor.Dir = c.flags.vendorDir
	}
	if c.flags.concurrency > 0 {
		cfg.Vendor.Concurrency = c.flags.concurrency
	}

	logger := loggerFromContext(ctx)
	if p := cfg.Path(); p != "" {
		logger.Debug("loaded project file", "path", p)
	}
	return &project{dir: dir, cfg: cfg, flags: c.flags, logger: logger}, nil
}

// Close releases every backend opened for the project.
func (p *project) Close(ctx context.Context) {
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](ctx); err != nil {
			p.logger.Warn("close backend", "error", err)
		}
	}
	p.closers = nil
}

func (p *project) vendorDir() string { return p.cfg.VendorDir(p.dir) }

func (p *project) keyer() cache.Keyer {
	k := cache.NewDefaultKeyer()
	if prefix := p.cfg.Snapshot.Redis.Prefix; prefix != "" {
		k = cache.NewScopedKeyer(k, prefix)
	}
	return k
}

// redisCache connects to the configured Redis once per invocation.
func (p *project) redisCache(ctx context.Context) (*cache.RedisCache, error) {
	if p.redis != nil {
		return p.redis, nil
	}
	r := p.cfg.Snapshot.Redis
	rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{Addr: r.Addr, Password: r.Password, DB: r.DB})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCache, err, "connect to redis at %s", r.Addr)
	}
	p.redis = rc
	p.closers = append(p.closers, func(context.Context) error { return rc.Close() })
	return rc, nil
}

// httpCache returns the cache for module proxy responses. Projects that
// keep their snapshot in Redis share it for responses too.
func (p *project) httpCache(ctx context.Context) cache.Cache {
	if p.flags.noCache {
		return cache.NewNullCache()
	}
	if p.cfg.Snapshot.Backend == config.BackendRedis {
		if rc, err := p.redisCache(ctx); err == nil {
			return rc
		}
	}
	dir, err := config.CacheDir()
	if err != nil {
		p.logger.Warn("response cache disabled", "error", err)
		return cache.NewNullCache()
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		p.logger.Warn("response cache disabled", "error", err)
		return cache.NewNullCache()
	}
	return fc
}

// providers registers one provider per supported origin type.
func (p *project) providers(ctx context.Context) (*vcs.Registry, error) {
	ttl, err := p.cfg.ProxyTTL()
	if err != nil {
		return nil, err
	}
	proxy := vcs.NewProxy(p.httpCache(ctx),
		vcs.WithBaseURL(p.cfg.Proxy.URL),
		vcs.WithCacheTTL(ttl),
		vcs.WithRetry(p.cfg.Proxy.Retries, time.Second),
		vcs.WithKeyer(p.keyer()),
	)
	git := vcs.NewGit(nil)
	p.closers = append(p.closers,
		func(context.Context) error { return proxy.Close() },
		func(context.Context) error { return git.Close() },
	)

	return vcs.NewRegistry().
		Register(vcs.Git, git).
		Register(vcs.Module, proxy).
		Register(vcs.Local, vcs.NewLocal()), nil
}

// paths maps import paths through the configured rules, then the known
// hosting services.
func (p *project) paths() (pack.Resolver, error) {
	h, err := p.cfg.Handler()
	if err != nil {
		return nil, err
	}
	return pack.NewChain([]pack.Resolver{
		pack.NewRepositoryResolver(h),
		pack.KnownHostResolver{},
	}, pack.WithUnrecognizedFallback()), nil
}

func (p *project) manifests() *manifest.Reader {
	return &manifest.Reader{IncludeIndirect: p.cfg.Vendor.IncludeIndirect}
}

func (p *project) resolver(ctx context.Context) (*dependency.Resolver, error) {
	paths, err := p.paths()
	if err != nil {
		return nil, err
	}
	registry, err := p.providers(ctx)
	if err != nil {
		return nil, err
	}
	return dependency.NewResolver(paths, registry,
		dependency.WithManifestReader(p.manifests()),
		dependency.WithLogger(p.logger),
		dependency.WithSkipUnresolved(p.cfg.Vendor.SkipUnresolved),
	), nil
}

// notations returns the declared build and test dependencies. A project
// file without any falls back to the requirements of the project's go.mod.
func (p *project) notations() (build, test []dependency.Notation, err error) {
	if len(p.cfg.Build) > 0 || len(p.cfg.Test) > 0 {
		return p.cfg.BuildNotations(), p.cfg.TestNotations(), nil
	}
	module, build, err := p.manifests().ReadProject(p.dir)
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeConfig, err, "no dependencies declared and no go.mod in %s", p.dir)
	}
	p.logger.Debug("using go.mod requirements", "module", module, "count", len(build))
	return build, nil, nil
}

// snapshot opens the configured snapshot backend.
func (p *project) snapshot(ctx context.Context) (*snapshot.Cache, error) {
	var store snapshot.Store
	switch p.cfg.Snapshot.Backend {
	case config.BackendRedis:
		rc, err := p.redisCache(ctx)
		if err != nil {
			return nil, err
		}
		store = snapshot.NewCacheStore(rc, p.keyer(), p.dir)
	case config.BackendMongo:
		m := p.cfg.Snapshot.Mongo
		ms, err := snapshot.NewMongoStore(ctx, snapshot.MongoConfig{
			URI:        m.URI,
			Database:   m.Database,
			Collection: m.Collection,
		}, p.dir)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeCache, err, "open snapshot store")
		}
		p.closers = append(p.closers, ms.Close)
		store = ms
	default:
		store = snapshot.NewFileStore(p.cfg.SnapshotFile(p.dir))
	}
	return snapshot.New(store, p.logger), nil
}

// resolveSets resolves the build and test dependencies and flattens each
// graph into a set.
func (p *project) resolveSets(ctx context.Context) (build, test *installSet, err error) {
	r, err := p.resolver(ctx)
	if err != nil {
		return nil, nil, err
	}
	buildNotations, testNotations, err := p.notations()
	if err != nil {
		return nil, nil, err
	}

	// One context for both sets: a dependency reached from both resolves
	// once, except that a test declaration replaces the build entry of the
	// same name.
	rc := dependency.NewContext()
	resolveSet := func(ns []dependency.Notation) (*installSet, error) {
		roots, err := r.ResolveRoots(ctx, ns, rc)
		if err != nil {
			return nil, err
		}
		return &installSet{roots: roots, set: dependency.Flatten(roots)}, nil
	}

	if build, err = resolveSet(buildNotations); err != nil {
		return nil, nil, err
	}
	if test, err = resolveSet(testNotations); err != nil {
		return nil, nil, err
	}
	return build, test, nil
}

// installSet is a resolved graph and its flattened form.
type installSet struct {
	roots []*dependency.Resolved
	set   *dependency.Set[*dependency.Resolved]
}
