package toll

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"tollfee/internal/model"
)

// RedisCache shares group charges between API replicas. Lookups that fail for any
// reason are treated as misses.
type RedisCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisCache{rdb: rdb, ttl: ttl, prefix: "toll:charges:"}
}

func (c *RedisCache) Get(key string) ([]model.Charge, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	data, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		return nil, false
	}
	var out []model.Charge
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, false
	}
	return out, true
}

func (c *RedisCache) Put(key string, charges []model.Charge) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	data, err := json.Marshal(charges)
	if err != nil {
		return
	}
	_ = c.rdb.Set(ctx, c.prefix+key, data, c.ttl).Err()
}
