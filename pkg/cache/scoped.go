package cache

// Keyer generates cache keys for the different kinds of cached data.
type Keyer interface {
	// HTTPKey generates a key for a cached HTTP response body.
	HTTPKey(namespace, key string) string
	// SnapshotKey generates a key for the vendor snapshot of a project.
	SnapshotKey(project string) string
}

// DefaultKeyer produces unprefixed keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// HTTPKey returns "http:<namespace>:<key>".
func (DefaultKeyer) HTTPKey(namespace, key string) string {
	return "http:" + namespace + ":" + key
}

// SnapshotKey returns "snapshot:<hash(project)>". The project identifier is
// usually an absolute directory, hashed to keep keys short and safe.
func (DefaultKeyer) SnapshotKey(project string) string {
	return hashKey("snapshot", project)
}

// ScopedKeyer wraps a Keyer with a prefix so that several projects or CI
// tenants can share one backend without colliding.
//
// Example usage:
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "ci:team-a:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// HTTPKey generates a prefixed key for HTTP response caching.
func (k *ScopedKeyer) HTTPKey(namespace, key string) string {
	return k.prefix + k.inner.HTTPKey(namespace, key)
}

// SnapshotKey generates a prefixed key for snapshot storage.
func (k *ScopedKeyer) SnapshotKey(project string) string {
	return k.prefix + k.inner.SnapshotKey(project)
}
