package cache

import (
	"context"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	pkgredis "github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/redis"
)

// RedisBackend stores results in Redis with a TTL.
type RedisBackend struct {
	client *pkgredis.Client
}

func NewRedisBackend(client *pkgredis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

func (b *RedisBackend) Name() string { return "redis" }

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := b.client.Get(ctx, key)
	if pkgredis.IsNilError(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (b *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return b.client.Set(ctx, key, value, ttl)
}

func (b *RedisBackend) Flush(ctx context.Context, prefix string) (int64, error) {
	return b.client.FlushByPattern(ctx, prefix+"*")
}

type lruEntry struct {
	value   []byte
	expires time.Time
}

// LRUBackend keeps results in process. Entries expire lazily on Get.
type LRUBackend struct {
	cache *lru.Cache[string, lruEntry]
	now   func() time.Time
}

func NewLRUBackend(size int) *LRUBackend {
	if size <= 0 {
		size = 1024
	}
	c, _ := lru.New[string, lruEntry](size)
	return &LRUBackend{cache: c, now: time.Now}
}

func (b *LRUBackend) Name() string { return "lru" }

func (b *LRUBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := b.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && b.now().After(e.expires) {
		b.cache.Remove(key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (b *LRUBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := lruEntry{value: value}
	if ttl > 0 {
		e.expires = b.now().Add(ttl)
	}
	b.cache.Add(key, e)
	return nil
}

func (b *LRUBackend) Flush(_ context.Context, prefix string) (int64, error) {
	var n int64
	for _, k := range b.cache.Keys() {
		if strings.HasPrefix(k, prefix) {
			b.cache.Remove(k)
			n++
		}
	}
	return n, nil
}
