package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/BouzirJawad/cart-micro/internal/domain"
	"github.com/BouzirJawad/cart-micro/internal/repository"
)

const (
	msgNothingToMerge = "No items in guest cart to merge"
	msgMergeSuccess   = "Merge successful"
)

// MergeGuestToUser folds the guest cart into the user cart and then deletes the guest cart.
// Lines already in the user cart have their quantities summed; new lines are appended in
// guest order. An absent or empty guest cart is a no-op and leaves both carts untouched.
func (s *CartService) MergeGuestToUser(ctx context.Context, userID, guestID string) (domain.MergeResult, error) {
	if userID == "" || guestID == "" {
		return domain.MergeResult{}, domain.NewValidationError("userId", "userId and guestId are required")
	}
	user, guest := domain.User(userID), domain.Guest(guestID)

	guestCart, err := s.find(ctx, guest)
	if errors.Is(err, repository.ErrCartNotFound) || (err == nil && guestCart.IsEmpty()) {
		return domain.MergeResult{Message: msgNothingToMerge}, nil
	}
	if err != nil {
		return domain.MergeResult{}, err
	}

	userCart, err := s.find(ctx, user)
	if errors.Is(err, repository.ErrCartNotFound) {
		userCart = domain.NewCart(user)
	} else if err != nil {
		return domain.MergeResult{}, err
	}

	now := s.now().UTC()
	for _, item := range guestCart.Items {
		if err := userCart.Absorb(item, now); err != nil {
			return domain.MergeResult{}, err
		}
	}

	if err := s.repo.Save(ctx, userCart); err != nil {
		return domain.MergeResult{}, domain.NewStorageError("save cart", err)
	}

	err = s.repo.DeleteByGuest(ctx, guestID)
	s.invalidate(ctx, user, guest)
	if err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		return domain.MergeResult{}, domain.NewStorageError("delete guest cart", err)
	}

	s.log(ctx).Info("guest cart merged",
		slog.String("user_id", userID),
		slog.String("guest_id", guestID),
		slog.Int("guest_items", len(guestCart.Items)),
	)

	return domain.MergeResult{Message: msgMergeSuccess, Cart: userCart}, nil
}
