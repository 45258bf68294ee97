package llm

import (
	"context"
	"crypto/sha1" //nolint:gosec // cache key fingerprint, not a security boundary
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"github.com/fodmapworks/fodmap-flow/internal/model"
)

// cacheEntry represents a cached classification result.
type cacheEntry struct {
	expiry time.Time
	result model.ClassificationResult
}

// resultCache provides thread-safe TTL caching for classification results.
type resultCache struct {
	entries map[string]cacheEntry
	stopCh  chan struct{}
	ttl     time.Duration
	hits    uint64
	misses  uint64
	mu      sync.RWMutex
}

// newResultCache creates a new cache with the specified TTL.
func newResultCache(ttl time.Duration) *resultCache {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour // Default TTL
	}

	cache := &resultCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}

	// Start cleanup goroutine
	go cache.cleanup()

	return cache
}

// CacheKey builds the lookup key for a product. The key ignores case and
// surrounding whitespace in both name and category so catalog re-imports with
// cosmetic differences still hit.
func CacheKey(name, category string) string {
	n, c := model.CacheKeyParts(name, category)
	sum := sha1.Sum([]byte(n + "|" + c)) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// get retrieves a result from the cache if it exists and hasn't expired.
func (c *resultCache) get(key string) (model.ClassificationResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[key]
	if !exists || time.Now().After(entry.expiry) {
		c.misses++
		return model.ClassificationResult{}, false
	}

	c.hits++
	return entry.result, true
}

// set stores a result in the cache. UNKNOWN results are never stored: an
// UNKNOWN is a transient failure to classify, and caching it would pin the
// failure for the full TTL.
func (c *resultCache) set(key string, result model.ClassificationResult) {
	if result.Status == model.StatusUnknown {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		result: result,
		expiry: time.Now().Add(c.ttl),
	}
}

// cleanup periodically removes expired entries.
func (c *resultCache) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for key, entry := range c.entries {
				if now.After(entry.expiry) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

// clear removes all entries from the cache.
func (c *resultCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// size returns the number of entries in the cache.
func (c *resultCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// stats returns the hit and miss counters.
func (c *resultCache) stats() (hits, misses uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

// close stops the cleanup goroutine.
func (c *resultCache) close() {
	close(c.stopCh)
}

// CachedClassifier wraps an AI classifier with a TTL result cache. Batch
// requests are partitioned into cache hits and misses so only the misses pay
// for an external call.
type CachedClassifier struct {
	inner  *Classifier
	cache  *resultCache
	logger *slog.Logger
}

// NewCachedClassifier wraps classifier with a cache holding results for ttl.
func NewCachedClassifier(classifier *Classifier, ttl time.Duration, logger *slog.Logger) *CachedClassifier {
	return &CachedClassifier{
		inner:  classifier,
		cache:  newResultCache(ttl),
		logger: logger,
	}
}

// Classify returns the cached result for the product if present, otherwise
// delegates to the underlying classifier and caches the outcome.
func (c *CachedClassifier) Classify(ctx context.Context, product model.Product) model.ClassificationResult {
	key := CacheKey(product.Name, product.Category)
	if result, ok := c.cache.get(key); ok {
		c.logger.Debug("cache hit", "product", product.Name)
		return result
	}

	result := c.inner.Classify(ctx, product)
	c.cache.set(key, result)
	return result
}

// ClassifyBatch serves what it can from the cache and sends only the misses
// to the underlying classifier.
func (c *CachedClassifier) ClassifyBatch(ctx context.Context, products []model.Product) (map[string]model.ClassificationResult, error) {
	results := make(map[string]model.ClassificationResult, len(products))
	var misses []model.Product

	for _, p := range products {
		if result, ok := c.cache.get(CacheKey(p.Name, p.Category)); ok {
			results[p.IdentityHash] = result
			continue
		}
		misses = append(misses, p)
	}

	if len(misses) > 0 {
		fresh, err := c.inner.ClassifyBatch(ctx, misses)
		if err != nil {
			return nil, err
		}
		for _, p := range misses {
			result, ok := fresh[p.IdentityHash]
			if !ok {
				result = model.UnknownResult("missing from batch response")
			}
			c.cache.set(CacheKey(p.Name, p.Category), result)
			results[p.IdentityHash] = result
		}
	}

	hits, missCount := c.cache.stats()
	c.logger.Info("batch classification complete",
		"total", len(products),
		"from_cache", len(products)-len(misses),
		"cache_hits", hits,
		"cache_misses", missCount,
		"cache_size", c.cache.size())

	return results, nil
}

// InvalidateAll drops every cached result.
func (c *CachedClassifier) InvalidateAll() {
	c.cache.clear()
	c.logger.Info("classification cache invalidated")
}

// Close stops the cache maintenance goroutine.
func (c *CachedClassifier) Close() {
	c.cache.close()
}
