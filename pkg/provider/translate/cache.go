package translate

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Cache wraps a [Provider] with a TTL cache keyed by
// (normalized text, source, target). Live transcription re-translates the
// same growing prefix many times per second, so even a short TTL removes a
// large share of backend calls.
//
// Cache is safe for concurrent use.
type Cache struct {
	inner Provider
	ttl   time.Duration

	mu      sync.Mutex
	entries map[cacheKey]cacheEntry

	// now is swappable for tests.
	now func() time.Time
}

type cacheKey struct {
	text   string
	source string
	target string
}

type cacheEntry struct {
	text    string
	expires time.Time
}

// maxCacheEntries bounds memory use; when exceeded, expired entries are
// purged and, if still over the bound, the whole cache is reset.
const maxCacheEntries = 4096

// NewCache wraps inner with a TTL cache. ttl must be positive.
func NewCache(inner Provider, ttl time.Duration) *Cache {
	return &Cache{
		inner:   inner,
		ttl:     ttl,
		entries: make(map[cacheKey]cacheEntry),
		now:     time.Now,
	}
}

// Translate serves each requested target from the cache when possible and
// forwards the remaining targets to the wrapped provider in one call.
func (c *Cache) Translate(ctx context.Context, text, source string, targets []string) (map[string]string, error) {
	norm := normalizeKey(text)
	out := make(map[string]string, len(targets))
	var misses []string

	c.mu.Lock()
	now := c.now()
	for _, tgt := range targets {
		e, ok := c.entries[cacheKey{norm, source, tgt}]
		if ok && now.Before(e.expires) {
			out[tgt] = e.text
		} else {
			misses = append(misses, tgt)
		}
	}
	c.mu.Unlock()

	if len(misses) == 0 {
		return out, nil
	}

	fresh, err := c.inner.Translate(ctx, text, source, misses)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.evictLocked()
	expires := c.now().Add(c.ttl)
	for tgt, translated := range fresh {
		c.entries[cacheKey{norm, source, tgt}] = cacheEntry{text: translated, expires: expires}
		out[tgt] = translated
	}
	c.mu.Unlock()

	return out, nil
}

// TranslateBatch forwards to the wrapped provider without caching; batch
// calls are used for backfill, not the per-partial hot path.
func (c *Cache) TranslateBatch(ctx context.Context, texts []string, source string, targets []string) ([]map[string]string, error) {
	return c.inner.TranslateBatch(ctx, texts, source, targets)
}

// DetectLanguage forwards to the wrapped provider.
func (c *Cache) DetectLanguage(ctx context.Context, text string) (string, error) {
	return c.inner.DetectLanguage(ctx, text)
}

// Len returns the number of cached entries, including expired ones not yet
// evicted. Intended for tests.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictLocked drops expired entries once the cache grows past its bound.
// Must be called with c.mu held.
func (c *Cache) evictLocked() {
	if len(c.entries) < maxCacheEntries {
		return
	}
	now := c.now()
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
		}
	}
	if len(c.entries) >= maxCacheEntries {
		c.entries = make(map[cacheKey]cacheEntry)
	}
}

// normalizeKey canonicalises lookup text: lowercase with collapsed whitespace.
func normalizeKey(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// Compile-time interface assertion.
var _ Provider = (*Cache)(nil)
