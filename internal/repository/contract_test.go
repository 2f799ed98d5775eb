package repository

import (
	"context"
	"testing"
	"time"

	"github.com/BouzirJawad/cart-micro/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runRepositoryTests exercises behaviour every CartRepository must share.
// newRepo must return an empty store on every call.
func runRepositoryTests(t *testing.T, newRepo func(t *testing.T) CartRepository) {
	t.Run("find missing cart", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		cart, err := repo.FindByUser(ctx, "nobody")
		assert.ErrorIs(t, err, ErrCartNotFound)
		assert.Nil(t, cart)

		cart, err = repo.FindByGuest(ctx, "nobody")
		assert.ErrorIs(t, err, ErrCartNotFound)
		assert.Nil(t, cart)
	})

	t.Run("save inserts then updates", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		added := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

		cart := domain.NewCart(domain.User("user123"))
		cart.AddItem("sku-1", 3, added)
		require.NoError(t, repo.Save(ctx, cart))
		assert.NotEmpty(t, cart.ID)
		assert.False(t, cart.CreatedAt.IsZero())
		assert.False(t, cart.UpdatedAt.IsZero())

		firstID := cart.ID
		createdAt := cart.CreatedAt

		cart.AddItem("sku-2", 1, added)
		require.NoError(t, repo.Save(ctx, cart))
		assert.Equal(t, firstID, cart.ID)
		assert.True(t, createdAt.Equal(cart.CreatedAt))
		assert.False(t, cart.UpdatedAt.Before(createdAt))

		found, err := repo.FindByUser(ctx, "user123")
		require.NoError(t, err)
		assert.Equal(t, firstID, found.ID)
		assert.Equal(t, domain.User("user123"), found.Owner)
		require.Len(t, found.Items, 2)
		assert.Equal(t, "sku-1", found.Items[0].ProductID)
		assert.Equal(t, 3, found.Items[0].Quantity)
		assert.True(t, added.Equal(found.Items[0].AddedAt))
		assert.Equal(t, "sku-2", found.Items[1].ProductID)
	})

	t.Run("user and guest with same id are separate carts", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		userCart := domain.NewCart(domain.User("42"))
		userCart.AddItem("p1", 1, time.Now())
		require.NoError(t, repo.Save(ctx, userCart))

		guestCart := domain.NewCart(domain.Guest("42"))
		guestCart.AddItem("p2", 5, time.Now())
		require.NoError(t, repo.Save(ctx, guestCart))

		assert.NotEqual(t, userCart.ID, guestCart.ID)

		found, err := FindByIdentity(ctx, repo, domain.User("42"))
		require.NoError(t, err)
		require.Len(t, found.Items, 1)
		assert.Equal(t, "p1", found.Items[0].ProductID)

		found, err = FindByIdentity(ctx, repo, domain.Guest("42"))
		require.NoError(t, err)
		require.Len(t, found.Items, 1)
		assert.Equal(t, "p2", found.Items[0].ProductID)
	})

	t.Run("empty item list is persisted", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		cart := domain.NewCart(domain.Guest("g1"))
		cart.AddItem("p1", 1, time.Now())
		require.NoError(t, repo.Save(ctx, cart))

		cart.Clear()
		require.NoError(t, repo.Save(ctx, cart))

		found, err := repo.FindByGuest(ctx, "g1")
		require.NoError(t, err)
		assert.NotNil(t, found.Items)
		assert.Empty(t, found.Items)
	})

	t.Run("delete", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		cart := domain.NewCart(domain.User("u1"))
		require.NoError(t, repo.Save(ctx, cart))

		require.NoError(t, DeleteByIdentity(ctx, repo, domain.User("u1")))

		_, err := repo.FindByUser(ctx, "u1")
		assert.ErrorIs(t, err, ErrCartNotFound)

		err = repo.DeleteByUser(ctx, "u1")
		assert.ErrorIs(t, err, ErrCartNotFound)

		err = repo.DeleteByGuest(ctx, "u1")
		assert.ErrorIs(t, err, ErrCartNotFound)
	})

	t.Run("returned carts are not shared", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		cart := domain.NewCart(domain.User("u1"))
		cart.AddItem("p1", 1, time.Now())
		require.NoError(t, repo.Save(ctx, cart))

		cart.Items[0].Quantity = 99

		found, err := repo.FindByUser(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 1, found.Items[0].Quantity)
	})

	t.Run("ping", func(t *testing.T) {
		repo := newRepo(t)
		assert.NoError(t, repo.Ping(context.Background()))
	})
}
