package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/zeebo/xxh3"
)

const keyPrefix = "pinjaman:"

// Memcached is the shared display cache for quotes and rates. Misses and
// backend errors both read as a miss.
type Memcached struct {
	mc *memcache.Client
}

func NewMemcached(mc *memcache.Client) *Memcached {
	return &Memcached{mc: mc}
}

// Key hashes arbitrary cache keys into memcached's key alphabet.
func Key(key string) string {
	return keyPrefix + strconv.FormatUint(xxh3.HashString(key), 36)
}

func (c *Memcached) Get(ctx context.Context, key string, out any) bool {
	item, err := c.mc.Get(Key(key))
	if err != nil {
		if !errors.Is(err, memcache.ErrCacheMiss) {
			slog.DebugContext(
				ctx, "memcached get failed",
				slog.String("error", err.Error()),
				slog.String("module", "cache"),
			)
		}
		return false
	}
	return json.Unmarshal(item.Value, out) == nil
}

func (c *Memcached) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	err = c.mc.Set(&memcache.Item{
		Key:        Key(key),
		Value:      data,
		Expiration: int32(ttl.Seconds()),
	})
	if err != nil {
		slog.DebugContext(
			ctx, "memcached set failed",
			slog.String("error", err.Error()),
			slog.String("module", "cache"),
		)
	}
}
