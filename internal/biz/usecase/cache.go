package usecase

import (
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/DevRickLin/feishu-relay/internal/biz/repo"
)

type ttlEntry[V any] struct {
	value   V
	expires time.Time
}

// ttlCache is a bounded LRU whose entries also expire.
// A read past expiry is treated as absent.
type ttlCache[V any] struct {
	mu    sync.Mutex
	ttl   time.Duration
	items *lru.Cache[string, ttlEntry[V]]
	now   func() time.Time
}

func newTTLCache[V any](size int, ttl time.Duration, now func() time.Time) *ttlCache[V] {
	if size <= 0 {
		size = 1024
	}
	items, _ := lru.New[string, ttlEntry[V]](size)
	return &ttlCache[V]{ttl: ttl, items: items, now: now}
}

func (c *ttlCache[V]) get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.items.Get(key)
	if !ok {
		return zero, false
	}
	if !c.now().Before(e.expires) {
		c.items.Remove(key)
		return zero, false
	}
	return e.value, true
}

func (c *ttlCache[V]) set(key string, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items.Add(key, ttlEntry[V]{value: v, expires: c.now().Add(c.ttl)})
}

func (c *ttlCache[V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.Len()
}

// CacheConfig configures the per-pipeline caches
type CacheConfig struct {
	DedupTTL  time.Duration
	Directory DirectoryConfig
}

// DefaultCacheConfig returns the default cache configuration
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		DedupTTL:  DefaultDedupTTL,
		Directory: DefaultDirectoryConfig(),
	}
}

// CacheManager owns every cache of one pipeline instance.
// Nothing here is package state, so pipelines never share entries.
type CacheManager struct {
	Dedup     *Deduper
	Directory *Directory
}

// NewCacheManager creates the caches for one pipeline
func NewCacheManager(dirRepo repo.DirectoryRepo, cfg CacheConfig, logger *slog.Logger) *CacheManager {
	return &CacheManager{
		Dedup:     NewDeduper(cfg.DedupTTL),
		Directory: NewDirectory(dirRepo, cfg.Directory, logger),
	}
}
