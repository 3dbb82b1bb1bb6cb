// internal/cache/cache.go
package cache

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Page is a fetched page body kept for reuse between a poll and the scan it triggers
type Page struct {
	URL       string
	Body      []byte
	Hash      string
	FetchedAt time.Time
}

// NewPage builds a Page and fingerprints its body
func NewPage(url string, body []byte) *Page {
	return &Page{URL: url, Body: body, Hash: Fingerprint(body), FetchedAt: time.Now()}
}

// Fingerprint returns the hex SHA-256 of body
func Fingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Cache stores recently fetched pages.
type Cache interface {
	// Get returns a page that has not expired yet
	Get(key string) (*Page, bool)

	// Set stores a page for ttl, replacing any previous entry
	Set(key string, page *Page, ttl time.Duration)

	// Delete removes an entry; missing keys are ignored
	Delete(key string)

	// Close stops background cleanup
	Close()
}

type entry struct {
	key       string
	page      *Page
	expiresAt time.Time
}

// MemoryCache is a size-bounded LRU of pages
type MemoryCache struct {
	mu      sync.Mutex
	store   map[string]*list.Element
	lru     *list.List
	maxSize int64
	size    int64
	hits    uint64
	misses  uint64
	cancel  context.CancelFunc
}

// NewMemoryCache creates a cache holding at most maxSizeBytes of page bodies
func NewMemoryCache(maxSizeBytes int64) *MemoryCache {
	if maxSizeBytes <= 0 {
		maxSizeBytes = 32 * 1024 * 1024
	}
	ctx, cancel := context.WithCancel(context.Background())
	mc := &MemoryCache{
		store:   make(map[string]*list.Element),
		lru:     list.New(),
		maxSize: maxSizeBytes,
		cancel:  cancel,
	}
	go mc.cleanup(ctx)
	return mc
}

// Get returns the page and marks it most recently used
func (mc *MemoryCache) Get(key string) (*Page, bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	el, ok := mc.store[key]
	if !ok {
		mc.misses++
		return nil, false
	}
	e := el.Value.(*entry)
	if time.Now().After(e.expiresAt) {
		mc.misses++
		mc.remove(el)
		return nil, false
	}
	mc.lru.MoveToFront(el)
	mc.hits++
	return e.page, true
}

// Set stores page under key, evicting least recently used pages as needed
func (mc *MemoryCache) Set(key string, page *Page, ttl time.Duration) {
	if page == nil || ttl <= 0 {
		return
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if el, ok := mc.store[key]; ok {
		mc.remove(el)
	}
	size := int64(len(page.Body))
	for mc.size+size > mc.maxSize && mc.lru.Len() > 0 {
		mc.remove(mc.lru.Back())
	}
	mc.store[key] = mc.lru.PushFront(&entry{key: key, page: page, expiresAt: time.Now().Add(ttl)})
	mc.size += size

	log.Debug().Str("key", key).Dur("ttl", ttl).Int64("size_bytes", size).Msg("Cached page")
}

// Delete removes key
func (mc *MemoryCache) Delete(key string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if el, ok := mc.store[key]; ok {
		mc.remove(el)
	}
}

// Close stops the cleanup goroutine
func (mc *MemoryCache) Close() {
	mc.cancel()
}

// Stats returns hit and miss counters
func (mc *MemoryCache) Stats() (hits, misses uint64, entries int) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.hits, mc.misses, mc.lru.Len()
}

// remove must be called with mc.mu held
func (mc *MemoryCache) remove(el *list.Element) {
	e := el.Value.(*entry)
	mc.lru.Remove(el)
	delete(mc.store, e.key)
	mc.size -= int64(len(e.page.Body))
}

func (mc *MemoryCache) cleanup(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			mc.mu.Lock()
			now := time.Now()
			var next *list.Element
			for el := mc.lru.Front(); el != nil; el = next {
				next = el.Next()
				if now.After(el.Value.(*entry).expiresAt) {
					mc.remove(el)
				}
			}
			mc.mu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}
