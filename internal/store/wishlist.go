package store

import (
	"context"
	"fmt"

	"github.com/safar/shopcraft/internal/database"
	"github.com/safar/shopcraft/internal/models"
)

// AddToWishlist reports whether the product was newly added; adding a
// product twice is not an error.
func AddToWishlist(ctx context.Context, db DBTX, userID, productID int64) (bool, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO wishlist (user_id, product_id, created_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (user_id, product_id) DO NOTHING`,
		userID, productID)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return false, database.ErrProductNotFound
		}
		return false, fmt.Errorf("add to wishlist: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

func RemoveFromWishlist(ctx context.Context, db DBTX, userID, productID int64) (bool, error) {
	result, err := db.ExecContext(ctx,
		`DELETE FROM wishlist WHERE user_id = $1 AND product_id = $2`,
		userID, productID)
	if err != nil {
		return false, fmt.Errorf("remove from wishlist: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

func InWishlist(ctx context.Context, db DBTX, userID, productID int64) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM wishlist WHERE user_id = $1 AND product_id = $2)`,
		userID, productID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check wishlist: %w", err)
	}
	return exists, nil
}

func ListWishlist(ctx context.Context, db DBTX, userID int64) ([]models.Product, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT p.id, p.sku, p.name, p.description, p.category, p.image_url, p.price, p.stock,
		        p.status, p.created_at, p.updated_at, p.version
		 FROM wishlist w
		 JOIN products p ON p.id = w.product_id
		 WHERE w.user_id = $1
		 ORDER BY w.created_at DESC, p.id`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list wishlist: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return products, nil
}
