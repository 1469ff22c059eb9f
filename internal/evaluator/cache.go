package evaluator

import (
	"crypto/sha256"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/timvw/vibecheck/internal/model"
)

// VerdictCache caches evaluation results keyed by artifact content,
// specification and backend. When the same screenshot is asserted against
// the same specification within the TTL, the cached verdict is reused,
// saving an LLM round trip.
//
// Entries expire after the TTL so a stale verdict cannot outlive a
// re-rendered artifact for long. A TTL of 0 disables caching.
type VerdictCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	ttl     time.Duration
}

type cacheEntry struct {
	result   model.EvaluationResult
	cachedAt time.Time
}

// NewVerdictCache creates a cache with the given TTL.
func NewVerdictCache(ttl time.Duration) *VerdictCache {
	return &VerdictCache{
		entries: make(map[string]*cacheEntry),
		ttl:     ttl,
	}
}

// Key derives the cache key for a request. Inline image data is hashed
// directly; file-backed artifacts key on path, size and mtime so an
// overwritten screenshot invalidates naturally. Returns false when no
// usable key exists (e.g. the file is missing), in which case the caller
// skips the cache and lets the runner surface the artifact error.
func (c *VerdictCache) Key(req model.EvaluationRequest, provider, modelName string) (string, bool) {
	if c == nil || c.ttl <= 0 {
		return "", false
	}

	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00", provider, modelName, req.Specification)
	if len(req.ImageData) > 0 {
		h.Write(req.ImageData)
	} else {
		info, err := os.Stat(req.ImagePath)
		if err != nil {
			return "", false
		}
		fmt.Fprintf(h, "%s\x00%d\x00%d", req.ImagePath, info.Size(), info.ModTime().UnixNano())
	}
	return fmt.Sprintf("%x", h.Sum(nil)), true
}

// Lookup returns a copy of the cached result for key, if present and
// within the TTL.
func (c *VerdictCache) Lookup(key string) (*model.EvaluationResult, bool) {
	if c == nil || c.ttl <= 0 {
		return nil, false
	}

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if time.Since(entry.cachedAt) > c.ttl {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}

	result := entry.result
	return &result, true
}

// Store records a result under key.
func (c *VerdictCache) Store(key string, result *model.EvaluationResult) {
	if c == nil || c.ttl <= 0 || result == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &cacheEntry{
		result:   *result,
		cachedAt: time.Now(),
	}
}

// Invalidate drops a single entry.
func (c *VerdictCache) Invalidate(key string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}
