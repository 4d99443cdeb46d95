package store

import (
	"context"
	"errors"
	"testing"

	"github.com/safar/shopcraft/internal/database"
	"github.com/safar/shopcraft/internal/models"
	"github.com/safar/shopcraft/internal/pricing"
	"github.com/safar/shopcraft/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsers(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()

	user := mustUser(t, db, "  Mixed.Case@Example.com ")
	assert.Equal(t, "mixed.case@example.com", user.Email)
	assert.Equal(t, models.RoleUser, user.Role)

	_, err := CreateUser(ctx, db, CreateUserParams{Email: "MIXED.CASE@example.com", PasswordHash: "x"})
	assert.True(t, errors.Is(err, database.ErrEmailTaken))

	byEmail, err := GetUserByEmail(ctx, db, "Mixed.Case@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	_, err = GetUser(ctx, db, 424242)
	assert.True(t, errors.Is(err, database.ErrUserNotFound))

	_, err = CreateUser(ctx, db, CreateUserParams{Email: "boss@example.com", PasswordHash: "x", Role: models.RoleAdmin})
	require.NoError(t, err)

	page, err := ListUsers(ctx, db, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 2, page.TotalPages)
}

func TestGetStats(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()

	buyer := mustUser(t, db, "stats@example.com")
	_, err := CreateUser(ctx, db, CreateUserParams{Email: "admin@example.com", PasswordHash: "x", Role: models.RoleAdmin})
	require.NoError(t, err)
	product := mustProduct(t, db, "STAT-001", "100.00", 10)

	kept, err := CommitOrder(ctx, db, commitRequest(buyer.ID, snapshotItem(product, 2)))
	require.NoError(t, err)
	cancelled, err := CommitOrder(ctx, db, commitRequest(buyer.ID, snapshotItem(product, 1)))
	require.NoError(t, err)
	_, err = UpdateOrderStatus(ctx, db, cancelled.Order.ID, models.OrderStatusCancelled)
	require.NoError(t, err)

	stats, err := GetStats(ctx, db)
	require.NoError(t, err)
	assert.True(t, stats.TotalSales.Equal(kept.Order.Total), stats.TotalSales.String())
	assert.Equal(t, int64(1), stats.TotalProducts)
	assert.Equal(t, int64(2), stats.TotalOrders)
	assert.Equal(t, int64(1), stats.TotalCustomers)
}

func TestStoreMethods(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	s := New(db)

	user := mustUser(t, db, "repo@example.com")
	product := mustProduct(t, db, "REPO-001", "12.50", 4)
	_, err := AddToCart(ctx, db, user.ID, product.ID, 2)
	require.NoError(t, err)

	items, err := s.CartItems(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	result, err := s.CommitOrder(ctx, CommitRequest{
		UserID:           user.ID,
		Items:            []models.OrderItem{{ProductID: item.ProductID, Name: item.Product.Name, UnitPrice: item.Product.Price, Quantity: item.Quantity}},
		Totals:           pricing.Totals{Subtotal: decimal.RequireFromString("25"), Tax: decimal.Zero, Shipping: decimal.Zero, Total: decimal.RequireFromString("25")},
		ShippingAddress:  testAddress,
		PaymentReference: "sim_repo",
	})
	require.NoError(t, err)
	assert.True(t, result.Created)
}
