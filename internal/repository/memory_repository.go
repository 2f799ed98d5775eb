package repository

import (
	"context"
	"sync"
	"time"

	"github.com/BouzirJawad/cart-micro/internal/domain"
	"github.com/google/uuid"
)

// MemoryRepository implements CartRepository with in-memory storage.
// Carts are cloned on the way in and out so callers never share state with the store.
type MemoryRepository struct {
	mu    sync.RWMutex
	carts map[string]*domain.Cart // identity key -> cart
	now   func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		carts: make(map[string]*domain.Cart),
		now:   time.Now,
	}
}

func (r *MemoryRepository) FindByUser(_ context.Context, userID string) (*domain.Cart, error) {
	return r.find(domain.User(userID))
}

func (r *MemoryRepository) FindByGuest(_ context.Context, guestID string) (*domain.Cart, error) {
	return r.find(domain.Guest(guestID))
}

func (r *MemoryRepository) find(owner domain.Identity) (*domain.Cart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cart, ok := r.carts[owner.Key()]
	if !ok {
		return nil, ErrCartNotFound
	}
	return cart.Clone(), nil
}

func (r *MemoryRepository) Save(ctx context.Context, cart *domain.Cart) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	key := cart.Owner.Key()

	if existing, ok := r.carts[key]; ok {
		cart.ID = existing.ID
		cart.CreatedAt = existing.CreatedAt
	} else {
		cart.ID = uuid.NewString()
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now
	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}

	r.carts[key] = cart.Clone()
	return nil
}

func (r *MemoryRepository) DeleteByUser(_ context.Context, userID string) error {
	return r.delete(domain.User(userID))
}

func (r *MemoryRepository) DeleteByGuest(_ context.Context, guestID string) error {
	return r.delete(domain.Guest(guestID))
}

func (r *MemoryRepository) delete(owner domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := owner.Key()
	if _, ok := r.carts[key]; !ok {
		return ErrCartNotFound
	}
	delete(r.carts, key)
	return nil
}

func (r *MemoryRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Len returns the number of stored carts.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.carts)
}
