package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/ariefcatur/go-shop-orders/internal/redisx"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	client  redis.Cmdable
	baseTTL time.Duration
}

var _ Cache = (*RedisCache)(nil)

type cachedCart struct {
	Gen  int64 `json:"gen"`
	Cart *Cart `json:"cart"`
}

func NewRedisCache(client redis.Cmdable) *RedisCache {
	return &RedisCache{client: client, baseTTL: redisx.TTLCart}
}

// Get reads the snapshot and the current generation in one round trip.
func (r *RedisCache) Get(ctx context.Context, ownerID string) (*Cart, error) {
	vals, err := r.client.MGet(ctx, cacheKey(ownerID), genKey(ownerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget failed: %w", err)
	}
	raw, ok := vals[0].(string)
	if !ok {
		return nil, redisx.ErrCacheMiss
	}
	gen, err := parseGen(vals[1])
	if err != nil {
		return nil, err
	}

	var entry cachedCart
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	if entry.Cart == nil || entry.Gen != gen {
		return nil, redisx.ErrCacheMiss
	}
	return entry.Cart, nil
}

func (r *RedisCache) Generation(ctx context.Context, ownerID string) (int64, error) {
	v, err := r.client.Get(ctx, genKey(ownerID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get generation failed: %w", err)
	}
	return parseGen(v)
}

// Set stores c stamped with gen, the generation read before c was loaded.
// Expiry is spread over a minute so carts filled together don't expire together.
func (r *RedisCache) Set(ctx context.Context, c *Cart, gen int64) error {
	data, err := json.Marshal(cachedCart{Gen: gen, Cart: c})
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	jitter := time.Duration(rand.Intn(60)) * time.Second
	if err := r.client.Set(ctx, cacheKey(c.OwnerID), data, r.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, ownerID string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey(ownerID))
		pipe.Expire(ctx, genKey(ownerID), redisx.TTLCartGen)
		pipe.Del(ctx, cacheKey(ownerID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate failed: %w", err)
	}
	return nil
}

func parseGen(v any) (int64, error) {
	s, ok := v.(string)
	if !ok {
		return 0, nil
	}
	gen, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad cart generation %q: %w", s, err)
	}
	return gen, nil
}

func cacheKey(ownerID string) string {
	return fmt.Sprintf(redisx.KeyCart, ownerID)
}

func genKey(ownerID string) string {
	return fmt.Sprintf(redisx.KeyCartGen, ownerID)
}
