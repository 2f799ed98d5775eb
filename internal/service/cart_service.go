package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/BouzirJawad/cart-micro/internal/cache"
	"github.com/BouzirJawad/cart-micro/internal/domain"
	"github.com/BouzirJawad/cart-micro/internal/logs"
	"github.com/BouzirJawad/cart-micro/internal/repository"
	"golang.org/x/sync/singleflight"
)

const cacheInvalidateTimeout = time.Second

type CartService struct {
	repo   repository.CartRepository
	cache  cache.CartCache
	sfg    singleflight.Group // Prevents cache stampede
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*CartService)

func WithClock(now func() time.Time) Option {
	return func(s *CartService) { s.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *CartService) { s.logger = logger }
}

func NewCartService(repo repository.CartRepository, cartCache cache.CartCache, opts ...Option) *CartService {
	s := &CartService{
		repo:   repo,
		cache:  cartCache,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = cache.NopCache{}
	}
	return s
}

// GetCart returns the stored cart, or an empty unsaved cart for owner when none exists.
// Neither the store nor the cache is written for a missing cart.
func (s *CartService) GetCart(ctx context.Context, owner domain.Identity) (*domain.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	v, err, _ := s.sfg.Do(owner.Key(), func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, owner)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log(ctx).Warn("cache get failed", slog.String("cart", owner.Key()), slog.Any("error", err))
		}

		cart, err = repository.FindByIdentity(ctx, s.repo, owner)
		if errors.Is(err, repository.ErrCartNotFound) {
			return domain.NewCart(owner), nil
		}
		if err != nil {
			return nil, domain.NewStorageError("find cart", err)
		}

		if err := s.cache.Set(ctx, cart); err != nil {
			s.log(ctx).Warn("cache set failed", slog.String("cart", owner.Key()), slog.Any("error", err))
		}
		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	// Concurrent callers share the result; each gets its own copy.
	return v.(*domain.Cart).Clone(), nil
}

// GetOrCreate returns the cart for owner, persisting an empty one first if needed.
func (s *CartService) GetOrCreate(ctx context.Context, owner domain.Identity) (*domain.Cart, error) {
	return s.loadOrCreate(ctx, owner)
}

// AddItem adds quantity to the line for productID, creating the cart and the line as needed.
func (s *CartService) AddItem(ctx context.Context, owner domain.Identity, productID string, quantity int) (*domain.Cart, error) {
	if err := validateItem(owner, productID, quantity); err != nil {
		return nil, err
	}

	cart, err := s.loadOrCreate(ctx, owner)
	if err != nil {
		return nil, err
	}

	if err := cart.AddItem(productID, quantity, s.now().UTC()); err != nil {
		return nil, err
	}
	return s.save(ctx, cart)
}

// UpdateItem sets the quantity of an existing line. The cart is created if missing, but a
// missing line is a NotFoundError.
func (s *CartService) UpdateItem(ctx context.Context, owner domain.Identity, productID string, quantity int) (*domain.Cart, error) {
	if err := validateItem(owner, productID, quantity); err != nil {
		return nil, err
	}

	cart, err := s.loadOrCreate(ctx, owner)
	if err != nil {
		return nil, err
	}

	if !cart.SetQuantity(productID, quantity) {
		return nil, domain.NewNotFoundError("item", "Item not in cart")
	}
	return s.save(ctx, cart)
}

// RemoveItem drops the line for productID. Removing an absent line succeeds without a write.
func (s *CartService) RemoveItem(ctx context.Context, owner domain.Identity, productID string) (*domain.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if productID == "" {
		return nil, domain.NewValidationError("productId", "productId is required")
	}

	cart, err := s.loadExisting(ctx, owner)
	if err != nil {
		return nil, err
	}

	if !cart.RemoveItem(productID) {
		return cart, nil
	}
	return s.save(ctx, cart)
}

// ReplaceCart swaps the whole item list. Every item is validated before anything is loaded.
func (s *CartService) ReplaceCart(ctx context.Context, owner domain.Identity, items []domain.CartItem) (*domain.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	for _, item := range items {
		if item.ProductID == "" {
			return nil, domain.NewValidationError("items", "each item.productId is required")
		}
		if item.Quantity < 1 {
			return nil, domain.NewValidationError("items", "each item.quantity must be >=1")
		}
	}

	cart, err := s.loadOrCreate(ctx, owner)
	if err != nil {
		return nil, err
	}

	if err := cart.ReplaceItems(items, s.now().UTC()); err != nil {
		return nil, err
	}
	return s.save(ctx, cart)
}

func (s *CartService) ClearCart(ctx context.Context, owner domain.Identity) (*domain.Cart, error) {
	cart, err := s.loadExisting(ctx, owner)
	if err != nil {
		return nil, err
	}

	cart.Clear()
	return s.save(ctx, cart)
}

// DeleteCart removes the cart for owner. Deleting a missing cart succeeds.
func (s *CartService) DeleteCart(ctx context.Context, owner domain.Identity) error {
	if err := owner.Validate(); err != nil {
		return err
	}

	err := repository.DeleteByIdentity(ctx, s.repo, owner)
	if err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		return domain.NewStorageError("delete cart", err)
	}

	s.invalidate(ctx, owner)
	return nil
}

func (s *CartService) loadOrCreate(ctx context.Context, owner domain.Identity) (*domain.Cart, error) {
	cart, err := s.find(ctx, owner)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, repository.ErrCartNotFound) {
		return nil, err
	}

	cart = domain.NewCart(owner)
	if err := s.repo.Save(ctx, cart); err != nil {
		return nil, domain.NewStorageError("create cart", err)
	}
	s.log(ctx).Debug("cart created", slog.String("cart", owner.Key()))
	return cart, nil
}

func (s *CartService) loadExisting(ctx context.Context, owner domain.Identity) (*domain.Cart, error) {
	cart, err := s.find(ctx, owner)
	if errors.Is(err, repository.ErrCartNotFound) {
		return nil, domain.NewNotFoundError("cart", "Cart not found")
	}
	return cart, err
}

// find reads straight from the store. Mutations never start from a cached copy.
func (s *CartService) find(ctx context.Context, owner domain.Identity) (*domain.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	cart, err := repository.FindByIdentity(ctx, s.repo, owner)
	if err != nil {
		if errors.Is(err, repository.ErrCartNotFound) {
			return nil, err
		}
		return nil, domain.NewStorageError("find cart", err)
	}
	return cart, nil
}

func (s *CartService) save(ctx context.Context, cart *domain.Cart) (*domain.Cart, error) {
	if err := s.repo.Save(ctx, cart); err != nil {
		return nil, domain.NewStorageError("save cart", err)
	}

	s.invalidate(ctx, cart.Owner)
	return cart, nil
}

func (s *CartService) invalidate(ctx context.Context, owners ...domain.Identity) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheInvalidateTimeout)
	defer cancel()

	if err := s.cache.Delete(ctx, owners...); err != nil {
		s.log(ctx).Warn("cache invalidate failed", slog.Any("error", err))
	}
}

func (s *CartService) log(ctx context.Context) *slog.Logger {
	return logs.FromContext(ctx, s.logger)
}

func validateItem(owner domain.Identity, productID string, quantity int) error {
	if err := owner.Validate(); err != nil {
		return err
	}
	if productID == "" {
		return domain.NewValidationError("productId", "productId is required")
	}
	if quantity < 1 {
		return domain.NewValidationError("quantity", "quantity must be an integer >= 1")
	}
	return nil
}
