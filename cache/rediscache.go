package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/deemkeen/aprelay/domain"
	"github.com/deemkeen/aprelay/relayerr"
)

// RedisCache is the multi-process cache backend, grounded on
// uncord-chat-uncord-server's permission cache: keys are
// "{namespace}:{key}", values are "{type}:{unix}:{payload}" so a bare GET
// still carries the type and update time the Store-backed variant keeps in
// separate columns.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache normalizes addr (accepting bare host:port as well as
// redis://, rediss:// and valkey:// URLs), connects, and pings.
func NewRedisCache(addr string) (*RedisCache, error) {
	normalized := addr
	if !strings.Contains(addr, "://") {
		normalized = "redis://" + addr
	}
	normalized = strings.Replace(normalized, "valkey://", "redis://", 1)

	opts, err := redis.ParseURL(normalized)
	if err != nil {
		return nil, fmt.Errorf("cache: parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("cache: redis ping: %w", err)
	}
	return &RedisCache{client: client}, nil
}

func redisKey(namespace, key string) string {
	return namespace + ":" + key
}

func encodeValue(item domain.CacheItem) string {
	return fmt.Sprintf("%s:%d:%s", item.ValueType, item.UpdatedAt.Unix(), item.Value)
}

func decodeValue(namespace, key, raw string) (*domain.CacheItem, error) {
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("cache: malformed value %q", raw)
	}
	epoch, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("cache: malformed timestamp %q: %w", parts[1], err)
	}
	return &domain.CacheItem{
		Namespace: namespace,
		Key:       key,
		ValueType: parts[0],
		UpdatedAt: time.Unix(epoch, 0),
		Value:     parts[2],
	}, nil
}

func (c *RedisCache) Get(namespace, key string) (*domain.CacheItem, error) {
	ctx := context.Background()
	raw, err := c.client.Get(ctx, redisKey(namespace, key)).Result()
	if err == redis.Nil {
		return nil, relayerr.New(relayerr.NotFound, "cache miss")
	}
	if err != nil {
		return nil, relayerr.Wrap(relayerr.Internal, "cache get", err)
	}
	item, err := decodeValue(namespace, key, raw)
	if err != nil {
		return nil, relayerr.Wrap(relayerr.Internal, "cache decode", err)
	}
	return item, nil
}

func (c *RedisCache) Set(item domain.CacheItem) error {
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = time.Now()
	}
	ctx := context.Background()
	if err := c.client.Set(ctx, redisKey(item.Namespace, item.Key), encodeValue(item), 0).Err(); err != nil {
		return relayerr.Wrap(relayerr.Internal, "cache set", err)
	}
	return nil
}

func (c *RedisCache) Delete(namespace, key string) error {
	ctx := context.Background()
	if err := c.client.Del(ctx, redisKey(namespace, key)).Err(); err != nil {
		return relayerr.Wrap(relayerr.Internal, "cache delete", err)
	}
	return nil
}

// DeleteOld scans the whole keyspace with a cursor (never KEYS, to avoid
// blocking the server) and deletes entries whose encoded timestamp is older
// than maxAgeHours.
func (c *RedisCache) DeleteOld(maxAgeHours int) (int64, error) {
	ctx := context.Background()
	cutoff := time.Now().Add(-time.Duration(maxAgeHours) * time.Hour).Unix()

	var cursor uint64
	var deleted int64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, "*", 200).Result()
		if err != nil {
			return deleted, relayerr.Wrap(relayerr.Internal, "cache scan", err)
		}
		if len(keys) > 0 {
			vals, err := c.client.MGet(ctx, keys...).Result()
			if err != nil {
				return deleted, relayerr.Wrap(relayerr.Internal, "cache mget", err)
			}
			var stale []string
			for i, v := range vals {
				raw, ok := v.(string)
				if !ok {
					continue
				}
				parts := strings.SplitN(raw, ":", 3)
				if len(parts) != 3 {
					continue
				}
				if epoch, err := strconv.ParseInt(parts[1], 10, 64); err == nil && epoch < cutoff {
					stale = append(stale, keys[i])
				}
			}
			if len(stale) > 0 {
				if err := c.client.Del(ctx, stale...).Err(); err != nil {
					return deleted, relayerr.Wrap(relayerr.Internal, "cache sweep delete", err)
				}
				deleted += int64(len(stale))
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return deleted, nil
}

func (c *RedisCache) GetNamespaces() ([]string, error) {
	ctx := context.Background()
	seen := map[string]bool{}
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, "*", 200).Result()
		if err != nil {
			return nil, relayerr.Wrap(relayerr.Internal, "cache scan", err)
		}
		for _, k := range keys {
			if ns, _, ok := strings.Cut(k, ":"); ok {
				seen[ns] = true
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	out := make([]string, 0, len(seen))
	for ns := range seen {
		out = append(out, ns)
	}
	return out, nil
}

func (c *RedisCache) GetKeys(namespace string) ([]string, error) {
	ctx := context.Background()
	prefix := namespace + ":"
	var out []string
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, prefix+"*", 200).Result()
		if err != nil {
			return nil, relayerr.Wrap(relayerr.Internal, "cache scan", err)
		}
		for _, k := range keys {
			out = append(out, strings.TrimPrefix(k, prefix))
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return out, nil
}

func (c *RedisCache) Close() error { return c.client.Close() }

var _ Cache = (*RedisCache)(nil)
