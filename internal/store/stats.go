package store

import (
	"context"
	"fmt"

	"github.com/safar/shopcraft/internal/models"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

type Stats struct {
	TotalSales     decimal.Decimal `json:"total_sales"`
	TotalProducts  int64           `json:"total_products"`
	TotalOrders    int64           `json:"total_orders"`
	TotalCustomers int64           `json:"total_customers"`
}

// GetStats runs the dashboard aggregates concurrently. Cancelled orders do
// not count towards sales.
func GetStats(ctx context.Context, db DBTX) (*Stats, error) {
	stats := &Stats{}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := db.QueryRowContext(ctx,
			`SELECT COALESCE(SUM(total), 0) FROM orders WHERE status <> $1`,
			models.OrderStatusCancelled).Scan(&stats.TotalSales)
		if err != nil {
			return fmt.Errorf("sum sales: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&stats.TotalProducts); err != nil {
			return fmt.Errorf("count products: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&stats.TotalOrders); err != nil {
			return fmt.Errorf("count orders: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		err := db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM users WHERE role = $1`, models.RoleUser).Scan(&stats.TotalCustomers)
		if err != nil {
			return fmt.Errorf("count customers: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return stats, nil
}
