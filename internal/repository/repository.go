package repository

import (
	"context"
	"errors"

	"github.com/BouzirJawad/cart-micro/internal/domain"
)

var ErrCartNotFound = errors.New("cart not found")

// CartRepository defines the interface for cart data operations.
// Find and Delete return ErrCartNotFound when no cart exists for the identity.
type CartRepository interface {
	FindByUser(ctx context.Context, userID string) (*domain.Cart, error)
	FindByGuest(ctx context.Context, guestID string) (*domain.Cart, error)
	// Save upserts the cart keyed by its owner and stamps CreatedAt/UpdatedAt.
	Save(ctx context.Context, cart *domain.Cart) error
	DeleteByUser(ctx context.Context, userID string) error
	DeleteByGuest(ctx context.Context, guestID string) error
	Ping(ctx context.Context) error
}

func FindByIdentity(ctx context.Context, repo CartRepository, owner domain.Identity) (*domain.Cart, error) {
	if owner.IsUser() {
		return repo.FindByUser(ctx, owner.ID())
	}
	return repo.FindByGuest(ctx, owner.ID())
}

func DeleteByIdentity(ctx context.Context, repo CartRepository, owner domain.Identity) error {
	if owner.IsUser() {
		return repo.DeleteByUser(ctx, owner.ID())
	}
	return repo.DeleteByGuest(ctx, owner.ID())
}
