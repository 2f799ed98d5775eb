package service

import (
	"context"
	"math"
	"testing"

	"github.com/BouzirJawad/cart-micro/internal/domain"
	"github.com/BouzirJawad/cart-micro/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeGuestToUser_SumsAndAppends(t *testing.T) {
	repo := repository.NewMemoryRepository()
	c := newMockCache()
	svc := newTestService(t, repo, c)
	ctx := context.Background()

	userAdded := fixedNow.AddDate(0, 0, -1)
	seedCart(t, repo, domain.Guest("g1"),
		domain.CartItem{ProductID: "p1", Quantity: 2, AddedAt: fixedNow},
		domain.CartItem{ProductID: "p3", Quantity: 4, AddedAt: fixedNow},
	)
	seedCart(t, repo, domain.User("u1"),
		domain.CartItem{ProductID: "p1", Quantity: 3, AddedAt: userAdded},
		domain.CartItem{ProductID: "p2", Quantity: 1, AddedAt: userAdded},
	)

	result, err := svc.MergeGuestToUser(ctx, "u1", "g1")
	require.NoError(t, err)
	assert.True(t, result.Merged())
	assert.Equal(t, "Merge successful", result.Message)

	items := result.Cart.Items
	require.Len(t, items, 3)
	assert.Equal(t, domain.CartItem{ProductID: "p1", Quantity: 5, AddedAt: userAdded}, items[0])
	assert.Equal(t, domain.CartItem{ProductID: "p2", Quantity: 1, AddedAt: userAdded}, items[1])
	assert.Equal(t, domain.CartItem{ProductID: "p3", Quantity: 4, AddedAt: fixedNow}, items[2])

	_, err = repo.FindByGuest(ctx, "g1")
	assert.ErrorIs(t, err, repository.ErrCartNotFound)

	stored, err := repo.FindByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, items, stored.Items)

	assert.Contains(t, c.deleted, "user:u1")
	assert.Contains(t, c.deleted, "guest:g1")
}

func TestMergeGuestToUser_OverlappingProduct(t *testing.T) {
	repo := repository.NewMemoryRepository()
	svc := newTestService(t, repo, nil)

	seedCart(t, repo, domain.Guest("g1"), domain.CartItem{ProductID: "p1", Quantity: 2})
	seedCart(t, repo, domain.User("u1"),
		domain.CartItem{ProductID: "p1", Quantity: 3},
		domain.CartItem{ProductID: "p2", Quantity: 1},
	)

	result, err := svc.MergeGuestToUser(context.Background(), "u1", "g1")
	require.NoError(t, err)
	require.Len(t, result.Cart.Items, 2)
	assert.Equal(t, "p1", result.Cart.Items[0].ProductID)
	assert.Equal(t, 5, result.Cart.Items[0].Quantity)
	assert.Equal(t, "p2", result.Cart.Items[1].ProductID)
	assert.Equal(t, 1, result.Cart.Items[1].Quantity)
	assert.Equal(t, 1, repo.Len())
}

func TestMergeGuestToUser_CreatesUserCart(t *testing.T) {
	repo := repository.NewMemoryRepository()
	svc := newTestService(t, repo, nil)
	ctx := context.Background()

	seedCart(t, repo, domain.Guest("g1"), domain.CartItem{ProductID: "p1", Quantity: 2})

	result, err := svc.MergeGuestToUser(ctx, "u1", "g1")
	require.NoError(t, err)
	assert.Equal(t, domain.User("u1"), result.Cart.Owner)
	assert.NotEmpty(t, result.Cart.ID)

	stored, err := repo.FindByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, 2, stored.Items[0].Quantity)
	assert.Equal(t, 1, repo.Len())
}

func TestMergeGuestToUser_NothingToMerge(t *testing.T) {
	tests := []struct {
		name      string
		seedGuest bool
	}{
		{name: "absent guest cart"},
		{name: "empty guest cart", seedGuest: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := repository.NewMemoryRepository()
			svc := newTestService(t, repo, nil)
			ctx := context.Background()

			seedCart(t, repo, domain.User("u1"), domain.CartItem{ProductID: "p1", Quantity: 3})
			if tt.seedGuest {
				seedCart(t, repo, domain.Guest("g1"))
			}
			before, err := repo.FindByUser(ctx, "u1")
			require.NoError(t, err)

			result, err := svc.MergeGuestToUser(ctx, "u1", "g1")
			require.NoError(t, err)
			assert.False(t, result.Merged())
			assert.Equal(t, "No items in guest cart to merge", result.Message)

			after, err := repo.FindByUser(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, before, after)

			if tt.seedGuest {
				_, err := repo.FindByGuest(ctx, "g1")
				assert.NoError(t, err, "empty guest cart must not be deleted")
			}
		})
	}
}

func TestMergeGuestToUser_SecondCallIsNoop(t *testing.T) {
	repo := repository.NewMemoryRepository()
	svc := newTestService(t, repo, nil)
	ctx := context.Background()

	seedCart(t, repo, domain.Guest("g1"), domain.CartItem{ProductID: "p1", Quantity: 2})

	_, err := svc.MergeGuestToUser(ctx, "u1", "g1")
	require.NoError(t, err)

	result, err := svc.MergeGuestToUser(ctx, "u1", "g1")
	require.NoError(t, err)
	assert.False(t, result.Merged())

	stored, err := repo.FindByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Items[0].Quantity)
}

func TestMergeGuestToUser_RequiresBothIDs(t *testing.T) {
	svc := newTestService(t, repository.NewMemoryRepository(), nil)

	for _, ids := range [][2]string{{"", "g1"}, {"u1", ""}, {"", ""}} {
		_, err := svc.MergeGuestToUser(context.Background(), ids[0], ids[1])
		var validationErr *domain.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "userId and guestId are required", validationErr.Error())
	}
}

func TestMergeGuestToUser_QuantityOverflowLeavesCartsUntouched(t *testing.T) {
	repo := repository.NewMemoryRepository()
	svc := newTestService(t, repo, nil)
	ctx := context.Background()

	seedCart(t, repo, domain.Guest("g1"), domain.CartItem{ProductID: "p1", Quantity: 1})
	seedCart(t, repo, domain.User("u1"), domain.CartItem{ProductID: "p1", Quantity: math.MaxInt})

	_, err := svc.MergeGuestToUser(ctx, "u1", "g1")
	var validationErr *domain.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "quantity is too large", validationErr.Error())

	user, err := repo.FindByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, math.MaxInt, user.Items[0].Quantity)

	_, err = repo.FindByGuest(ctx, "g1")
	assert.NoError(t, err, "guest cart must survive a failed merge")
}
