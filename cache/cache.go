// Package cache is the relay's namespaced key/value cache: signed actor
// documents, nodeinfo fetches, and the Create/Announce dedup set described
// by spec.md's digest-cache invariant. Two backends are provided: a SQLite
// one sharing the store's pool, and a Redis/Valkey one for multi-process
// deployments, grounded on uncord-chat-uncord-server's permission cache.
package cache

import "github.com/deemkeen/aprelay/domain"

// Cache stores namespaced string values with a recorded update time, so
// callers can apply their own freshness window (see domain.CacheItem.OlderThan).
type Cache interface {
	Get(namespace, key string) (*domain.CacheItem, error)
	Set(item domain.CacheItem) error
	Delete(namespace, key string) error

	// DeleteOld removes every entry last updated more than maxAge ago,
	// across all namespaces. Used to bound the dedup set and the response
	// cache without a per-entry TTL.
	DeleteOld(maxAgeHours int) (int64, error)

	GetNamespaces() ([]string, error)
	GetKeys(namespace string) ([]string, error)

	Close() error
}
