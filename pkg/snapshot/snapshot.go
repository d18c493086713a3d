// Package snapshot remembers what was installed into a vendor directory.
//
// Each entry records the fingerprint of a dependency (origin identity plus
// resolved revision) and the directory it was installed into. A later run
// compares fingerprints instead of hashing the vendor tree, so manual edits
// under vendor/ are not detected.
//
// Loading never fails: a missing or unreadable snapshot starts the run with
// an empty cache. Saving does fail, since a lost snapshot would make the
// next run reinstall or, worse, trust content it never recorded.
package snapshot

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/govend/pkg/dependency"
	"github.com/matzehuels/govend/pkg/errors"
	"github.com/matzehuels/govend/pkg/observability"
)

// Entry is the recorded state of one installed dependency.
type Entry struct {
	Origin      string    `json:"origin" bson:"origin"`
	Revision    string    `json:"revision" bson:"revision"`
	Dir         string    `json:"dir" bson:"dir"`
	InstalledAt time.Time `json:"installed_at" bson:"installed_at"`
	RunID       string    `json:"run_id" bson:"run_id"`
}

// Matches reports whether e records r installed at dir.
func (e Entry) Matches(r *dependency.Resolved, dir string) bool {
	return e.Origin == r.Origin().String() && e.Revision == r.Version().Revision && e.Dir == dir
}

// Store persists snapshot entries keyed by dependency name.
type Store interface {
	// Load returns the stored entries. A store with no snapshot returns an
	// empty map and no error.
	Load(ctx context.Context) (map[string]Entry, error)
	// Save replaces the stored entries.
	Save(ctx context.Context, entries map[string]Entry) error
	// Clear removes the stored snapshot.
	Clear(ctx context.Context) error
	// Location describes where the snapshot lives, for display.
	Location() string
}

// Cache is the in-memory snapshot of one vendoring run. It is safe for
// concurrent use.
type Cache struct {
	store  Store
	logger *log.Logger
	runID  string

	mu      sync.Mutex
	entries map[string]Entry
}

// New returns an empty cache backed by store. A nil logger uses
// log.Default().
func New(store Store, logger *log.Logger) *Cache {
	if logger == nil {
		logger = log.Default()
	}
	return &Cache{
		store:   store,
		logger:  logger,
		runID:   uuid.NewString(),
		entries: make(map[string]Entry),
	}
}

// RunID identifies the run that records entries through this cache.
func (c *Cache) RunID() string { return c.runID }

// Location returns the store location.
func (c *Cache) Location() string { return c.store.Location() }

// Load replaces the in-memory entries with the stored snapshot. Failures
// are logged and leave the cache empty.
func (c *Cache) Load(ctx context.Context) {
	entries, err := c.store.Load(ctx)
	if err != nil {
		c.logger.Warn("snapshot unreadable, starting empty", "location", c.store.Location(), "err", err)
		entries = nil
	}
	if len(entries) == 0 {
		observability.Cache().OnCacheMiss(ctx, "snapshot")
	} else {
		observability.Cache().OnCacheHit(ctx, "snapshot")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry, len(entries))
	maps.Copy(c.entries, entries)
	c.logger.Debug("snapshot loaded", "location", c.store.Location(), "entries", len(c.entries))
}

// IsUpToDate reports whether r was last installed at dir with the same
// origin and revision.
func (c *Cache) IsUpToDate(r *dependency.Resolved, dir string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[r.Name()]
	return ok && e.Matches(r, dir)
}

// Update records r as installed at dir, overwriting any previous entry.
func (c *Cache) Update(r *dependency.Resolved, dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[r.Name()] = Entry{
		Origin:      r.Origin().String(),
		Revision:    r.Version().Revision,
		Dir:         dir,
		InstalledAt: time.Now().UTC(),
		RunID:       c.runID,
	}
}

// Forget drops the entry for name.
func (c *Cache) Forget(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, name)
}

// Lookup returns the entry for name.
func (c *Cache) Lookup(name string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[name]
	return e, ok
}

// Entries returns a copy of all entries.
func (c *Cache) Entries() map[string]Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.entries)
}

// Save writes the entries to the store.
func (c *Cache) Save(ctx context.Context) error {
	entries := c.Entries()
	if err := c.store.Save(ctx, entries); err != nil {
		return errors.Wrap(errors.ErrCodeCache, err, "save snapshot to %s", c.store.Location())
	}
	observability.Cache().OnCacheSet(ctx, "snapshot", len(entries))
	c.logger.Debug("snapshot saved", "location", c.store.Location(), "entries", len(entries))
	return nil
}

// Clear empties the cache and removes the stored snapshot.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]Entry)
	c.mu.Unlock()
	if err := c.store.Clear(ctx); err != nil {
		return errors.Wrap(errors.ErrCodeCache, err, "clear snapshot at %s", c.store.Location())
	}
	return nil
}
