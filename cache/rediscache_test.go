package cache

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/deemkeen/aprelay/domain"
	"github.com/deemkeen/aprelay/relayerr"
)

func openTestRedisCache(t *testing.T) *RedisCache {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedisCache(mr.Addr())
	if err != nil {
		t.Fatalf("new redis cache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestNewRedisCacheAcceptsValkeyScheme(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewRedisCache("valkey://" + mr.Addr())
	if err != nil {
		t.Fatalf("new redis cache with valkey scheme: %v", err)
	}
	defer c.Close()
}

func TestRedisCacheSetAndGet(t *testing.T) {
	c := openTestRedisCache(t)
	item := domain.CacheItem{Namespace: "request", Key: "https://peer.example/actor", Value: "hello", ValueType: "str", UpdatedAt: time.Now()}
	if err := c.Set(item); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := c.Get("request", "https://peer.example/actor")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Value != "hello" || got.ValueType != "str" {
		t.Errorf("unexpected round-trip %+v", got)
	}
}

func TestRedisCacheGetMiss(t *testing.T) {
	c := openTestRedisCache(t)
	if _, err := c.Get("request", "missing"); relayerr.KindOf(err) != relayerr.NotFound {
		t.Errorf("expected NotFound on a cache miss, got %v", err)
	}
}

func TestRedisCacheDelete(t *testing.T) {
	c := openTestRedisCache(t)
	_ = c.Set(domain.CacheItem{Namespace: "request", Key: "k", Value: "v", ValueType: "str", UpdatedAt: time.Now()})
	if err := c.Delete("request", "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := c.Get("request", "k"); relayerr.KindOf(err) != relayerr.NotFound {
		t.Errorf("expected NotFound after delete, got %v", err)
	}
}

func TestRedisCacheDeleteOldSweepsOnlyStale(t *testing.T) {
	c := openTestRedisCache(t)
	_ = c.Set(domain.CacheItem{Namespace: "request", Key: "old", Value: "v", ValueType: "str", UpdatedAt: time.Now().Add(-72 * time.Hour)})
	_ = c.Set(domain.CacheItem{Namespace: "request", Key: "fresh", Value: "v", ValueType: "str", UpdatedAt: time.Now()})

	n, err := c.DeleteOld(48)
	if err != nil {
		t.Fatalf("delete old: %v", err)
	}
	if n != 1 {
		t.Errorf("expected exactly one stale entry swept, got %d", n)
	}
	if _, err := c.Get("request", "fresh"); err != nil {
		t.Errorf("expected the fresh entry to survive, got %v", err)
	}
}

func TestRedisCacheNamespacesAndKeys(t *testing.T) {
	c := openTestRedisCache(t)
	_ = c.Set(domain.CacheItem{Namespace: "request", Key: "a", Value: "1", ValueType: "str", UpdatedAt: time.Now()})
	_ = c.Set(domain.CacheItem{Namespace: "request", Key: "b", Value: "1", ValueType: "str", UpdatedAt: time.Now()})
	_ = c.Set(domain.CacheItem{Namespace: "handle-forward", Key: "c", Value: "1", ValueType: "str", UpdatedAt: time.Now()})

	namespaces, err := c.GetNamespaces()
	if err != nil || len(namespaces) != 2 {
		t.Errorf("expected 2 namespaces, got %v, %v", namespaces, err)
	}
	keys, err := c.GetKeys("request")
	if err != nil || len(keys) != 2 {
		t.Errorf("expected 2 keys in the request namespace, got %v, %v", keys, err)
	}
}
