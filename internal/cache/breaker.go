package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/BouzirJawad/cart-micro/internal/domain"
	"github.com/sony/gobreaker/v2"
)

type BreakerSettings struct {
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

// BreakerCache stops reading from and writing to a failing cache backend for a while. While
// the breaker is open Get and Set fail fast with gobreaker.ErrOpenState, which callers treat
// like any other cache error.
type BreakerCache struct {
	next CartCache
	cb   *gobreaker.CircuitBreaker[*domain.Cart]
}

func NewBreakerCache(next CartCache, settings BreakerSettings, logger *slog.Logger) *BreakerCache {
	if settings.ConsecutiveFailures == 0 {
		settings.ConsecutiveFailures = 5
	}
	if settings.OpenTimeout <= 0 {
		settings.OpenTimeout = 30 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker[*domain.Cart](gobreaker.Settings{
		Name:        "cart-cache",
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrCacheMiss)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})

	return &BreakerCache{next: next, cb: cb}
}

func (b *BreakerCache) Get(ctx context.Context, owner domain.Identity) (*domain.Cart, error) {
	return b.cb.Execute(func() (*domain.Cart, error) {
		return b.next.Get(ctx, owner)
	})
}

func (b *BreakerCache) Set(ctx context.Context, cart *domain.Cart) error {
	_, err := b.cb.Execute(func() (*domain.Cart, error) {
		return nil, b.next.Set(ctx, cart)
	})
	return err
}

// Delete always reaches the backend. Skipping an invalidation would leave a stale cart behind
// once the backend recovers.
func (b *BreakerCache) Delete(ctx context.Context, owners ...domain.Identity) error {
	return b.next.Delete(ctx, owners...)
}

func (b *BreakerCache) State() gobreaker.State {
	return b.cb.State()
}
