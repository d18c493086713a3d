// Package config loads the govend project file.
//
// The project file is either govend.toml or govend.yaml in the project
// directory. It declares repository rules, the build and test dependencies
// and the settings of the vendor directory, the snapshot backend and the
// module proxy:
//
//	[[repository]]
//	match = "corp.example.com/*"
//	url   = "https://git.corp.example.com/{name}.git"
//
//	[[build]]
//	path = "github.com/pkg/errors"
//	tag  = "v0.9.1"
//
//	[vendor]
//	dir = "vendor"
//
// Dependencies may also be written as plain strings, "path" or "path@ref".
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/govend/pkg/dependency"
	"github.com/matzehuels/govend/pkg/errors"
	"github.com/matzehuels/govend/pkg/repository"
	"github.com/matzehuels/govend/pkg/snapshot"
	"github.com/matzehuels/govend/pkg/vcs"
)

// AppName names the state directories under the XDG base directories.
const AppName = "govend"

// Project file names, in lookup order.
var FileNames = []string{"govend.toml", "govend.yaml", "govend.yml"}

// Snapshot backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendMongo = "mongo"
)

// Config is the content of a project file.
type Config struct {
	Repositories []repository.Pattern `toml:"repository" yaml:"repository"`
	Build        []Dependency         `toml:"build" yaml:"build"`
	Test         []Dependency         `toml:"test" yaml:"test"`
	Vendor       Vendor               `toml:"vendor" yaml:"vendor"`
	Snapshot     Snapshot             `toml:"snapshot" yaml:"snapshot"`
	Proxy        Proxy                `toml:"proxy" yaml:"proxy"`

	path string
}

// Vendor configures the installer and the resolver.
type Vendor struct {
	Dir             string `toml:"dir" yaml:"dir"`
	Concurrency     int    `toml:"concurrency" yaml:"concurrency"`
	SkipUnresolved  bool   `toml:"skip_unresolved" yaml:"skip_unresolved"`
	IncludeIndirect bool   `toml:"include_indirect" yaml:"include_indirect"`
}

// Snapshot selects where the vendor snapshot is persisted.
type Snapshot struct {
	Backend string `toml:"backend" yaml:"backend"`
	Path    string `toml:"path" yaml:"path"`
	Redis   Redis  `toml:"redis" yaml:"redis"`
	Mongo   Mongo  `toml:"mongo" yaml:"mongo"`
}

type Redis struct {
	Addr     string `toml:"addr" yaml:"addr"`
	Password string `toml:"password" yaml:"password"`
	DB       int    `toml:"db" yaml:"db"`
	Prefix   string `toml:"prefix" yaml:"prefix"`
}

type Mongo struct {
	URI        string `toml:"uri" yaml:"uri"`
	Database   string `toml:"database" yaml:"database"`
	Collection string `toml:"collection" yaml:"collection"`
}

// Proxy configures the module proxy provider.
type Proxy struct {
	URL     string `toml:"url" yaml:"url"`
	TTL     string `toml:"ttl" yaml:"ttl"`
	Retries int    `toml:"retries" yaml:"retries"`
}

// Default returns the configuration used when a project has no file.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Path returns the file the configuration was loaded from, or "".
func (c *Config) Path() string { return c.path }

// Find returns the project file in dir, or "" if there is none.
func Find(dir string) string {
	for _, name := range FileNames {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// Load reads and validates the project file at path. The format is chosen
// by extension.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Filesystem(err, "read", path)
	}
	c, err := Parse(data, formatOf(path))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfig, err, "load %s", path)
	}
	c.path = path
	return c, nil
}

// LoadDir loads the project file of dir, falling back to [Default].
func LoadDir(dir string) (*Config, error) {
	p := Find(dir)
	if p == "" {
		return Default(), nil
	}
	return Load(p)
}

// Format is a project file syntax.
type Format string

const (
	TOML Format = "toml"
	YAML Format = "yaml"
)

func formatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML
	default:
		return TOML
	}
}

// Parse decodes and validates a project file.
func Parse(data []byte, f Format) (*Config, error) {
	c := &Config{}
	switch f {
	case YAML:
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, errors.Wrap(errors.ErrCodeConfig, err, "parse yaml")
		}
	case TOML:
		if _, err := toml.Decode(string(data), c); err != nil {
			return nil, errors.Wrap(errors.ErrCodeConfig, err, "parse toml")
		}
	default:
		return nil, errors.New(errors.ErrCodeConfig, "unsupported format %q", f)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Vendor.Dir == "" {
		c.Vendor.Dir = "vendor"
	}
	if c.Snapshot.Backend == "" {
		c.Snapshot.Backend = BackendFile
	}
	if c.Proxy.URL == "" {
		c.Proxy.URL = vcs.DefaultProxyURL
	}
	if c.Proxy.Retries == 0 {
		c.Proxy.Retries = 3
	}
}

// Validate checks the values that decoding alone cannot.
func (c *Config) Validate() error {
	if _, err := repository.NewHandler(c.Repositories...); err != nil {
		return err
	}
	for _, set := range [][]Dependency{c.Build, c.Test} {
		for _, d := range set {
			for _, e := range d.Exclude {
				if err := e.Validate(); err != nil {
					return err
				}
			}
		}
	}
	if c.Vendor.Concurrency < 0 {
		return errors.New(errors.ErrCodeConfig, "vendor.concurrency must not be negative")
	}
	if err := errors.ValidatePath(c.Vendor.Dir); err != nil && !filepath.IsAbs(c.Vendor.Dir) {
		return errors.Wrap(errors.ErrCodeConfig, err, "vendor.dir")
	}

	switch c.Snapshot.Backend {
	case BackendFile:
	case BackendRedis:
		if c.Snapshot.Redis.Addr == "" {
			return errors.New(errors.ErrCodeConfig, "snapshot.redis.addr is required for the redis backend")
		}
	case BackendMongo:
		if c.Snapshot.Mongo.URI == "" {
			return errors.New(errors.ErrCodeConfig, "snapshot.mongo.uri is required for the mongo backend")
		}
	default:
		return errors.New(errors.ErrCodeConfig, "unknown snapshot backend %q", c.Snapshot.Backend)
	}

	if err := errors.ValidateURL(c.Proxy.URL); err != nil {
		return errors.Wrap(errors.ErrCodeConfig, err, "proxy.url")
	}
	if _, err := c.ProxyTTL(); err != nil {
		return err
	}
	if c.Proxy.Retries < 0 {
		return errors.New(errors.ErrCodeConfig, "proxy.retries must not be negative")
	}
	return nil
}

// ProxyTTL returns the configured metadata cache lifetime.
func (c *Config) ProxyTTL() (time.Duration, error) {
	if c.Proxy.TTL == "" {
		return vcs.DefaultProxyCacheTTL, nil
	}
	d, err := time.ParseDuration(c.Proxy.TTL)
	if err != nil || d < 0 {
		return 0, errors.New(errors.ErrCodeConfig, "proxy.ttl: invalid duration %q", c.Proxy.TTL)
	}
	return d, nil
}

// Handler returns the repository rules as a lookup handler.
func (c *Config) Handler() (*repository.Handler, error) {
	return repository.NewHandler(c.Repositories...)
}

// BuildNotations returns the declared build dependencies.
func (c *Config) BuildNotations() []dependency.Notation { return notations(c.Build) }

// TestNotations returns the declared test dependencies.
func (c *Config) TestNotations() []dependency.Notation { return notations(c.Test) }

func notations(ds []Dependency) []dependency.Notation {
	out := make([]dependency.Notation, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.Notation())
	}
	return out
}

// VendorDir returns the vendor directory for a project rooted at dir.
func (c *Config) VendorDir(dir string) string {
	if filepath.IsAbs(c.Vendor.Dir) {
		return c.Vendor.Dir
	}
	return filepath.Join(dir, c.Vendor.Dir)
}

// SnapshotFile returns the snapshot path of the file backend.
func (c *Config) SnapshotFile(dir string) string {
	p := c.Snapshot.Path
	if p == "" {
		p = snapshot.DefaultFile
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// CacheDir returns the directory for cached proxy responses, creating it
// if needed ($XDG_CACHE_HOME/govend/http).
func CacheDir() (string, error) {
	p, err := xdg.CacheFile(filepath.Join(AppName, "http", ".keep"))
	if err != nil {
		return "", errors.Filesystem(err, "create", filepath.Join(xdg.CacheHome, AppName))
	}
	return filepath.Dir(p), nil
}
