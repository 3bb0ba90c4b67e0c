package cache

import (
	"database/sql"
	"errors"
	"time"

	"github.com/deemkeen/aprelay/domain"
	"github.com/deemkeen/aprelay/relayerr"
)

// pool is the subset of *sql.DB a SQLiteCache needs; store.SQLiteStore.DB()
// satisfies it, so the cache shares the store's connection pool instead of
// opening a second one.
type pool interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// SQLiteCache is the cache table already created by store.Open's migration.
// It shares the pool, not a separate database.
type SQLiteCache struct {
	db pool
}

func NewSQLiteCache(db pool) *SQLiteCache {
	return &SQLiteCache{db: db}
}

func (c *SQLiteCache) Get(namespace, key string) (*domain.CacheItem, error) {
	var item domain.CacheItem
	err := c.db.QueryRow(`SELECT namespace, key, value, type, updated FROM cache
		WHERE namespace = ? AND key = ?`, namespace, key).
		Scan(&item.Namespace, &item.Key, &item.Value, &item.ValueType, &item.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, relayerr.New(relayerr.NotFound, "cache miss")
	}
	if err != nil {
		return nil, relayerr.Wrap(relayerr.Internal, "cache get", err)
	}
	return &item, nil
}

func (c *SQLiteCache) Set(item domain.CacheItem) error {
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = time.Now()
	}
	_, err := c.db.Exec(`INSERT INTO cache(namespace, key, value, type, updated) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET value=excluded.value, type=excluded.type, updated=excluded.updated`,
		item.Namespace, item.Key, item.Value, item.ValueType, item.UpdatedAt)
	if err != nil {
		return relayerr.Wrap(relayerr.Internal, "cache set", err)
	}
	return nil
}

func (c *SQLiteCache) Delete(namespace, key string) error {
	_, err := c.db.Exec(`DELETE FROM cache WHERE namespace = ? AND key = ?`, namespace, key)
	if err != nil {
		return relayerr.Wrap(relayerr.Internal, "cache delete", err)
	}
	return nil
}

func (c *SQLiteCache) DeleteOld(maxAgeHours int) (int64, error) {
	cutoff := time.Now().Add(-time.Duration(maxAgeHours) * time.Hour)
	res, err := c.db.Exec(`DELETE FROM cache WHERE updated < ?`, cutoff)
	if err != nil {
		return 0, relayerr.Wrap(relayerr.Internal, "cache sweep", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (c *SQLiteCache) GetNamespaces() ([]string, error) {
	rows, err := c.db.Query(`SELECT DISTINCT namespace FROM cache ORDER BY namespace`)
	if err != nil {
		return nil, relayerr.Wrap(relayerr.Internal, "cache namespaces", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var ns string
		if err := rows.Scan(&ns); err != nil {
			return nil, relayerr.Wrap(relayerr.Internal, "scan namespace", err)
		}
		out = append(out, ns)
	}
	return out, rows.Err()
}

func (c *SQLiteCache) GetKeys(namespace string) ([]string, error) {
	rows, err := c.db.Query(`SELECT key FROM cache WHERE namespace = ? ORDER BY key`, namespace)
	if err != nil {
		return nil, relayerr.Wrap(relayerr.Internal, "cache keys", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, relayerr.Wrap(relayerr.Internal, "scan key", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// Close is a no-op: the pool is owned by the store, not the cache.
func (c *SQLiteCache) Close() error { return nil }

var _ Cache = (*SQLiteCache)(nil)
