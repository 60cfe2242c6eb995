package cache

import (
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMemCacheSize is the number of entries kept by NewMemCache(0).
const DefaultMemCacheSize = 4096

// MemCache keeps entries in memory, evicting the least recently used
// entry once the size is reached.
type MemCache struct {
	entries *lru.Cache[string, Entry]
}

func NewMemCache(size int) (*MemCache, error) {
	if size <= 0 {
		size = DefaultMemCacheSize
	}
	entries, err := lru.New[string, Entry](size)
	if err != nil {
		return nil, err
	}
	return &MemCache{entries: entries}, nil
}

func (m *MemCache) All(prefix string) ([]Entry, error) {
	now := time.Now()
	entries := make([]Entry, 0)
	for _, key := range m.entries.Keys() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		// Get marks the entry as recently used
		if e, ok := m.entries.Get(key); ok && !e.Expired(now) {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (m *MemCache) Put(e Entry) error {
	m.entries.Add(e.Key, e)
	return nil
}

func (m *MemCache) Purge(key string) error {
	m.entries.Remove(key)
	return nil
}

func (m *MemCache) Has(key string) bool {
	return m.entries.Contains(key)
}

func (m *MemCache) Len() int {
	return m.entries.Len()
}

func (m *MemCache) Close() error {
	m.entries.Purge()
	return nil
}
