// Package observability provides hooks for metrics, tracing, and logging.
//
// Resolution, installation, caching and proxy traffic report events through
// small hook interfaces. Libraries call the hooks unconditionally; the
// defaults do nothing, and main registers real implementations at startup.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetVendorHooks(&myVendorHooks{})
//	    observability.SetCacheHooks(&myCacheHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Vendor().OnResolveStart(ctx, name)
//	// ... resolve ...
//	observability.Vendor().OnResolveComplete(ctx, name, revision, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Vendor Hooks
// =============================================================================

// VendorHooks receives events from dependency resolution and installation.
type VendorHooks interface {
	// Resolve events
	OnResolveStart(ctx context.Context, name string)
	OnResolveComplete(ctx context.Context, name, revision string, duration time.Duration, err error)

	// Install events
	OnInstallStart(ctx context.Context, name string)
	OnInstallComplete(ctx context.Context, name string, duration time.Duration, err error)
	OnInstallSkipped(ctx context.Context, name string)

	// OnOrphanRemoved records deletion of a vendor entry no dependency claims.
	OnOrphanRemoved(ctx context.Context, path string)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from HTTP client operations.
type HTTPHooks interface {
	// OnRequest records an outgoing HTTP request.
	OnRequest(ctx context.Context, method, host, path string)

	// OnResponse records an HTTP response.
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)

	// OnError records an HTTP error (network failure, timeout).
	OnError(ctx context.Context, method, host, path string, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopVendorHooks is a no-op implementation of VendorHooks.
type NoopVendorHooks struct{}

func (NoopVendorHooks) OnResolveStart(context.Context, string) {}
func (NoopVendorHooks) OnResolveComplete(context.Context, string, string, time.Duration, error) {
}
func (NoopVendorHooks) OnInstallStart(context.Context, string)                          {}
func (NoopVendorHooks) OnInstallComplete(context.Context, string, time.Duration, error) {}
func (NoopVendorHooks) OnInstallSkipped(context.Context, string)                        {}
func (NoopVendorHooks) OnOrphanRemoved(context.Context, string)                         {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	vendorHooks VendorHooks = NoopVendorHooks{}
	cacheHooks  CacheHooks  = NoopCacheHooks{}
	httpHooks   HTTPHooks   = NoopHTTPHooks{}
	hooksMu     sync.RWMutex
)

// SetVendorHooks registers custom resolve and install hooks.
// This should be called once at application startup.
func SetVendorHooks(h VendorHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		vendorHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetHTTPHooks registers custom HTTP hooks.
// This should be called once at application startup before any HTTP operations.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// Vendor returns the registered vendor hooks.
func Vendor() VendorHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return vendorHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	vendorHooks = NoopVendorHooks{}
	cacheHooks = NoopCacheHooks{}
	httpHooks = NoopHTTPHooks{}
}
