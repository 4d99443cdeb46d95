package store

import (
	"context"
	"errors"
	"testing"

	"github.com/safar/shopcraft/internal/database"
	"github.com/safar/shopcraft/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWishlist(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()

	user := mustUser(t, db, "wish@example.com")
	first := mustProduct(t, db, "WISH-001", "10.00", 1)
	second := mustProduct(t, db, "WISH-002", "20.00", 1)

	added, err := AddToWishlist(ctx, db, user.ID, first.ID)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = AddToWishlist(ctx, db, user.ID, first.ID)
	require.NoError(t, err)
	assert.False(t, added, "adding twice is a no-op")

	_, err = AddToWishlist(ctx, db, user.ID, second.ID)
	require.NoError(t, err)

	_, err = AddToWishlist(ctx, db, user.ID, 424242)
	assert.True(t, errors.Is(err, database.ErrProductNotFound))

	in, err := InWishlist(ctx, db, user.ID, first.ID)
	require.NoError(t, err)
	assert.True(t, in)

	products, err := ListWishlist(ctx, db, user.ID)
	require.NoError(t, err)
	require.Len(t, products, 2)

	removed, err := RemoveFromWishlist(ctx, db, user.ID, first.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = RemoveFromWishlist(ctx, db, user.ID, first.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	in, err = InWishlist(ctx, db, user.ID, first.ID)
	require.NoError(t, err)
	assert.False(t, in)

	products, err = ListWishlist(ctx, db, user.ID)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, second.ID, products[0].ID)
}
