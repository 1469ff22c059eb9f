package evaluator

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/timvw/vibecheck/internal/model"
)

func TestVerdictCacheDisabledWithZeroTTL(t *testing.T) {
	c := NewVerdictCache(0)
	req := model.EvaluationRequest{ImageData: []byte("img"), Specification: "spec"}
	if _, ok := c.Key(req, "p", "m"); ok {
		t.Error("zero-TTL cache should not produce keys")
	}
}

func TestVerdictCacheStoreAndLookup(t *testing.T) {
	c := NewVerdictCache(time.Minute)
	req := model.EvaluationRequest{ImageData: []byte("img"), Specification: "spec"}

	key, ok := c.Key(req, "p", "m")
	if !ok {
		t.Fatal("expected a key for inline image data")
	}
	if _, hit := c.Lookup(key); hit {
		t.Error("lookup before store should miss")
	}

	c.Store(key, yesResult(0.9))
	got, hit := c.Lookup(key)
	if !hit {
		t.Fatal("lookup after store should hit")
	}
	if got.Confidence != 0.9 {
		t.Errorf("Confidence: got %v, want 0.9", got.Confidence)
	}

	// Returned result is a copy; mutating it must not poison the cache.
	got.Confidence = 0
	again, _ := c.Lookup(key)
	if again.Confidence != 0.9 {
		t.Error("cached result was mutated through a lookup copy")
	}
}

func TestVerdictCacheKeyPartitions(t *testing.T) {
	c := NewVerdictCache(time.Minute)
	base := model.EvaluationRequest{ImageData: []byte("img"), Specification: "spec"}

	key1, _ := c.Key(base, "p", "m")

	otherSpec := base
	otherSpec.Specification = "different"
	key2, _ := c.Key(otherSpec, "p", "m")

	otherImage := base
	otherImage.ImageData = []byte("other")
	key3, _ := c.Key(otherImage, "p", "m")

	key4, _ := c.Key(base, "q", "m")

	keys := map[string]bool{key1: true, key2: true, key3: true, key4: true}
	if len(keys) != 4 {
		t.Errorf("expected 4 distinct keys, got %d", len(keys))
	}
}

func TestVerdictCacheExpiry(t *testing.T) {
	c := NewVerdictCache(10 * time.Millisecond)
	req := model.EvaluationRequest{ImageData: []byte("img"), Specification: "spec"}

	key, _ := c.Key(req, "p", "m")
	c.Store(key, yesResult(0.9))

	time.Sleep(20 * time.Millisecond)
	if _, hit := c.Lookup(key); hit {
		t.Error("lookup after TTL should miss")
	}
}

func TestVerdictCacheFileKeyTracksModTime(t *testing.T) {
	c := NewVerdictCache(time.Minute)
	path := filepath.Join(t.TempDir(), "shot.png")
	if err := os.WriteFile(path, []byte("one"), 0o644); err != nil {
		t.Fatal(err)
	}
	req := model.EvaluationRequest{ImagePath: path, Specification: "spec"}

	key1, ok := c.Key(req, "p", "m")
	if !ok {
		t.Fatal("expected a key for an existing file")
	}

	// Rewrite with different content and a newer mtime.
	if err := os.WriteFile(path, []byte("two!"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, time.Now().Add(time.Second), time.Now().Add(time.Second)); err != nil {
		t.Fatal(err)
	}

	key2, _ := c.Key(req, "p", "m")
	if key1 == key2 {
		t.Error("key should change when the artifact changes")
	}
}

func TestVerdictCacheMissingFileYieldsNoKey(t *testing.T) {
	c := NewVerdictCache(time.Minute)
	req := model.EvaluationRequest{ImagePath: "/nonexistent/shot.png", Specification: "spec"}
	if _, ok := c.Key(req, "p", "m"); ok {
		t.Error("missing artifact should not produce a cache key")
	}
}
