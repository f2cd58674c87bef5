package utils

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// CacheItem is one cached value with its expiry
type CacheItem struct {
	Value      interface{} `json:"value"`
	Expiration time.Time   `json:"expiration"`
}

func (i *CacheItem) expired(now time.Time) bool {
	return now.After(i.Expiration)
}

// MemoryCache is a TTL cache with optional disk spill. When diskPath is
// set, entries survive a restart: misses in memory fall back to the
// on-disk copy and promote it back into the map.
type MemoryCache struct {
	mu       sync.RWMutex
	items    map[string]*CacheItem
	diskPath string
}

// NewMemoryCache creates a cache. An empty diskPath disables the disk
// tier.
func NewMemoryCache(diskPath string) *MemoryCache {
	if diskPath != "" {
		os.MkdirAll(diskPath, 0755)
	}
	c := &MemoryCache{
		items:    make(map[string]*CacheItem),
		diskPath: diskPath,
	}
	go c.cleanupLoop()
	return c
}

// Set stores value under key for ttl
func (c *MemoryCache) Set(key string, value interface{}, ttl time.Duration) {
	item := &CacheItem{
		Value:      value,
		Expiration: time.Now().Add(ttl),
	}

	c.mu.Lock()
	c.items[key] = item
	c.mu.Unlock()

	if c.diskPath != "" {
		c.saveToDisk(key, item)
	}
}

// Get retrieves a live value, consulting disk on a memory miss
func (c *MemoryCache) Get(key string) (interface{}, bool) {
	now := time.Now()

	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()

	if ok {
		if item.expired(now) {
			c.Delete(key)
			return nil, false
		}
		return item.Value, true
	}

	if c.diskPath == "" {
		return nil, false
	}
	item, ok = c.loadFromDisk(key)
	if !ok {
		return nil, false
	}
	if item.expired(now) {
		c.deleteFromDisk(key)
		return nil, false
	}

	c.mu.Lock()
	c.items[key] = item
	c.mu.Unlock()
	return item.Value, true
}

// GetBytes retrieves a cached byte slice. Values restored from disk come
// back as base64-encoded strings, so both representations are handled.
func (c *MemoryCache) GetBytes(key string) ([]byte, bool) {
	value, ok := c.Get(key)
	if !ok {
		return nil, false
	}
	switch v := value.(type) {
	case []byte:
		return v, true
	case string:
		if decoded, err := base64.StdEncoding.DecodeString(v); err == nil {
			return decoded, true
		}
	}
	return nil, false
}

// Has reports whether key holds a live value
func (c *MemoryCache) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Delete removes key from both tiers
func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()

	if c.diskPath != "" {
		c.deleteFromDisk(key)
	}
}

// Clear drops every entry, including spilled ones
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	keys := make([]string, 0, len(c.items))
	for key := range c.items {
		keys = append(keys, key)
	}
	c.items = make(map[string]*CacheItem)
	c.mu.Unlock()

	if c.diskPath != "" {
		for _, key := range keys {
			c.deleteFromDisk(key)
		}
	}
}

// Size returns the number of in-memory entries
func (c *MemoryCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Keys returns the in-memory keys
func (c *MemoryCache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.items))
	for key := range c.items {
		keys = append(keys, key)
	}
	return keys
}

func (c *MemoryCache) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		c.cleanup()
	}
}

func (c *MemoryCache) cleanup() {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	for key, item := range c.items {
		if item.expired(now) {
			delete(c.items, key)
			if c.diskPath != "" {
				c.deleteFromDisk(key)
			}
		}
	}
}

// diskFile maps a key to its spill file. Keys are hashed because they
// may contain path separators (proxy keys embed whole URLs).
func (c *MemoryCache) diskFile(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(c.diskPath, hex.EncodeToString(sum[:])+".cache")
}

func (c *MemoryCache) saveToDisk(key string, item *CacheItem) {
	file, err := os.Create(c.diskFile(key))
	if err != nil {
		return
	}
	defer file.Close()
	json.NewEncoder(file).Encode(item)
}

func (c *MemoryCache) loadFromDisk(key string) (*CacheItem, bool) {
	file, err := os.Open(c.diskFile(key))
	if err != nil {
		return nil, false
	}
	defer file.Close()

	var item CacheItem
	if err := json.NewDecoder(file).Decode(&item); err != nil {
		return nil, false
	}
	return &item, true
}

func (c *MemoryCache) deleteFromDisk(key string) {
	os.Remove(c.diskFile(key))
}
