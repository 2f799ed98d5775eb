package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/BouzirJawad/cart-micro/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	defaultBaseTTL = 15 * time.Minute
	maxJitter      = 5 // minutes

	// tombstone marks a freshly invalidated key. It must outlive any GetCart that read the
	// store before the invalidation and has not filled the cache yet.
	tombstone    = "invalidated"
	tombstoneTTL = 10 * time.Second
)

func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: defaultBaseTTL,
	}
}

type RedisCache struct {
	client  redis.UniversalClient
	baseTTL time.Duration
}

func (r *RedisCache) Get(ctx context.Context, owner domain.Identity) (*domain.Cart, error) {
	data, err := r.client.Get(ctx, cacheKey(owner)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	if string(data) == tombstone {
		return nil, ErrCacheMiss
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}

	return &cart, nil
}

// Set stores the cart for baseTTL plus up to a few minutes of jitter so entries written
// together do not expire together. It only fills an empty key: a cached cart or a recent
// invalidation wins over the value being written.
func (r *RedisCache) Set(ctx context.Context, cart *domain.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	jitter := time.Duration(rand.Intn(maxJitter)) * time.Minute
	if err := r.client.SetNX(ctx, cacheKey(cart.Owner), data, r.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Delete replaces each owner's entry with a short-lived tombstone.
func (r *RedisCache) Delete(ctx context.Context, owners ...domain.Identity) error {
	if len(owners) == 0 {
		return nil
	}

	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, owner := range owners {
			pipe.Set(ctx, cacheKey(owner), tombstone, tombstoneTTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(owner domain.Identity) string {
	return fmt.Sprintf("cart:%s", owner.Key())
}
