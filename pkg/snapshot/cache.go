package snapshot

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/matzehuels/govend/pkg/cache"
)

// CacheStore keeps the snapshot under one key of a [cache.Cache], which
// lets CI runners share a snapshot through Redis.
type CacheStore struct {
	cache cache.Cache
	key   string
}

// NewCacheStore returns a store for project in c. The key comes from keyer;
// a nil keyer uses the default.
func NewCacheStore(c cache.Cache, keyer cache.Keyer, project string) *CacheStore {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	return &CacheStore{cache: c, key: keyer.SnapshotKey(project)}
}

func (s *CacheStore) Location() string { return "cache:" + s.key }

func (s *CacheStore) Load(ctx context.Context) (map[string]Entry, error) {
	data, ok, err := s.cache.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	if !ok {
		return map[string]Entry{}, nil
	}
	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	if f.Version != formatVersion {
		return nil, fmt.Errorf("snapshot format version %d, want %d", f.Version, formatVersion)
	}
	if f.Entries == nil {
		f.Entries = map[string]Entry{}
	}
	return f.Entries, nil
}

// Save stores the snapshot without expiry.
func (s *CacheStore) Save(ctx context.Context, entries map[string]Entry) error {
	data, err := json.Marshal(fileFormat{Version: formatVersion, Entries: entries})
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return s.cache.Set(ctx, s.key, data, 0)
}

func (s *CacheStore) Clear(ctx context.Context) error {
	return s.cache.Delete(ctx, s.key)
}

var _ Store = (*CacheStore)(nil)
