package activitypub

import (
	"sync"

	"github.com/deemkeen/aprelay/cache"
	"github.com/deemkeen/aprelay/domain"
	"github.com/deemkeen/aprelay/relayerr"
)

var _ cache.Cache = (*MockCache)(nil)

// MockCache is an in-memory cache.Cache for activitypub package tests.
type MockCache struct {
	mu    sync.Mutex
	items map[string]domain.CacheItem
}

func NewMockCache() *MockCache {
	return &MockCache{items: make(map[string]domain.CacheItem)}
}

func (c *MockCache) key(namespace, key string) string { return namespace + "\x00" + key }

func (c *MockCache) Get(namespace, key string) (*domain.CacheItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if item, ok := c.items[c.key(namespace, key)]; ok {
		cp := item
		return &cp, nil
	}
	return nil, relayerr.New(relayerr.NotFound, "cache miss")
}

func (c *MockCache) Set(item domain.CacheItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[c.key(item.Namespace, item.Key)] = item
	return nil
}

func (c *MockCache) Delete(namespace, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, c.key(namespace, key))
	return nil
}

func (c *MockCache) DeleteOld(maxAgeHours int) (int64, error) { return 0, nil }

func (c *MockCache) GetNamespaces() ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, item := range c.items {
		if !seen[item.Namespace] {
			seen[item.Namespace] = true
			out = append(out, item.Namespace)
		}
	}
	return out, nil
}

func (c *MockCache) GetKeys(namespace string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, item := range c.items {
		if item.Namespace == namespace {
			out = append(out, item.Key)
		}
	}
	return out, nil
}

func (c *MockCache) Close() error { return nil }
