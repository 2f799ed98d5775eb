package cache

import (
	"context"
	"errors"

	"github.com/BouzirJawad/cart-micro/internal/domain"
)

// CartCache is a read-through cache in front of the cart repository.
// Only persisted carts are cached.
type CartCache interface {
	Get(ctx context.Context, owner domain.Identity) (*domain.Cart, error)
	Set(ctx context.Context, cart *domain.Cart) error
	Delete(ctx context.Context, owners ...domain.Identity) error
}

var ErrCacheMiss = errors.New("cache miss")

// NopCache never stores anything. Used when no cache backend is configured.
type NopCache struct{}

func (NopCache) Get(context.Context, domain.Identity) (*domain.Cart, error) {
	return nil, ErrCacheMiss
}

func (NopCache) Set(context.Context, *domain.Cart) error { return nil }

func (NopCache) Delete(context.Context, ...domain.Identity) error { return nil }
