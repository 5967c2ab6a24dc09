package protosrc

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultCacheTTL bounds how long a compiled source set stays cached
const DefaultCacheTTL = 10 * time.Minute

// CacheStats reports cache effectiveness
type CacheStats struct {
	Hits      int64
	Misses    int64
	HitRate   float64
	ItemCount int64
}

// resultCache is an in-memory LRU of compiled source sets keyed by content hash.
// Cached results are shared and must not be modified.
type resultCache struct {
	lru    *lru.LRU[string, *Result]
	hits   atomic.Int64
	misses atomic.Int64
}

func newResultCache(size int, ttl time.Duration) *resultCache {
	if size < 1 {
		return nil
	}
	return &resultCache{lru: lru.NewLRU[string, *Result](size, nil, ttl)}
}

func (c *resultCache) get(key string) (*Result, bool) {
	if c == nil {
		return nil, false
	}
	r, ok := c.lru.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return r, ok
}

func (c *resultCache) add(key string, r *Result) {
	if c != nil {
		c.lru.Add(key, r)
	}
}

func (c *resultCache) stats() CacheStats {
	if c == nil {
		return CacheStats{}
	}
	s := CacheStats{Hits: c.hits.Load(), Misses: c.misses.Load(), ItemCount: int64(c.lru.Len())}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

// contentKey hashes the sources and the requested roots. Files are hashed sorted by
// path so map iteration order never changes the key.
//
// Format: sha256 over path \0 content \0 for each file, then \1 and root \0 per root
func contentKey(files map[string]string, roots []string) string {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	hasher := sha256.New()
	for _, p := range paths {
		hasher.Write([]byte(p))
		hasher.Write([]byte{0})
		hasher.Write([]byte(files[p]))
		hasher.Write([]byte{0})
	}
	hasher.Write([]byte{1})
	for _, r := range roots {
		hasher.Write([]byte(r))
		hasher.Write([]byte{0})
	}
	return hex.EncodeToString(hasher.Sum(nil))
}
