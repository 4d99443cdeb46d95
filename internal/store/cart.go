package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/safar/shopcraft/internal/database"
	"github.com/safar/shopcraft/internal/models"
)

const cartLineColumns = `id, user_id, product_id, quantity, created_at, updated_at`

func scanCartLine(row rowScanner) (*models.CartLine, error) {
	line := &models.CartLine{}
	err := row.Scan(
		&line.ID,
		&line.UserID,
		&line.ProductID,
		&line.Quantity,
		&line.CreatedAt,
		&line.UpdatedAt,
	)
	return line, err
}

// Every cart write runs in a transaction holding the owner's user row lock,
// so two requests for the same user are applied one after the other.
func withUserCart(ctx context.Context, db *sql.DB, userID int64, fn func(*sql.Tx) error) error {
	return database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		if err := lockUser(ctx, tx, userID); err != nil {
			return err
		}
		return fn(tx)
	})
}

// AddToCart merges into the existing line for the product if there is one.
// Stock is not checked here; checkout does that.
func AddToCart(ctx context.Context, db *sql.DB, userID, productID int64, quantity int) (*models.CartLine, error) {
	if quantity < 1 {
		return nil, database.ErrInvalidQuantity
	}

	var line *models.CartLine
	err := withUserCart(ctx, db, userID, func(tx *sql.Tx) error {
		product, err := GetProduct(ctx, tx, productID)
		if err != nil {
			return err
		}
		if product.Status != models.ProductStatusActive {
			return database.ErrProductInactive
		}

		line, err = scanCartLine(tx.QueryRowContext(ctx,
			`INSERT INTO cart_items (user_id, product_id, quantity, created_at, updated_at)
			 VALUES ($1, $2, $3, NOW(), NOW())
			 ON CONFLICT (user_id, product_id)
			 DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = NOW()
			 RETURNING `+cartLineColumns,
			userID, productID, quantity))
		if err != nil {
			return fmt.Errorf("upsert cart item: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return line, nil
}

// ownCartLine locks the line and checks it belongs to userID.
func ownCartLine(ctx context.Context, tx *sql.Tx, userID, lineID int64) error {
	var owner int64
	err := tx.QueryRowContext(ctx,
		`SELECT user_id FROM cart_items WHERE id = $1 FOR UPDATE`, lineID).Scan(&owner)
	if err != nil {
		if database.IsNoRows(err) {
			return database.ErrCartLineNotFound
		}
		return fmt.Errorf("get cart item: %w", err)
	}
	if owner != userID {
		return database.ErrCartLineForbidden
	}
	return nil
}

// UpdateCartQuantity sets an absolute quantity. Zero is rejected rather than
// treated as removal; callers remove lines explicitly.
func UpdateCartQuantity(ctx context.Context, db *sql.DB, userID, lineID int64, quantity int) (*models.CartLine, error) {
	if quantity < 1 {
		return nil, database.ErrInvalidQuantity
	}

	var line *models.CartLine
	err := withUserCart(ctx, db, userID, func(tx *sql.Tx) error {
		if err := ownCartLine(ctx, tx, userID, lineID); err != nil {
			return err
		}

		var err error
		line, err = scanCartLine(tx.QueryRowContext(ctx,
			`UPDATE cart_items
			 SET quantity = $1, updated_at = NOW()
			 WHERE id = $2
			 RETURNING `+cartLineColumns,
			quantity, lineID))
		if err != nil {
			return fmt.Errorf("update cart item: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return line, nil
}

func RemoveCartLine(ctx context.Context, db *sql.DB, userID, lineID int64) error {
	return withUserCart(ctx, db, userID, func(tx *sql.Tx) error {
		if err := ownCartLine(ctx, tx, userID, lineID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE id = $1`, lineID); err != nil {
			return fmt.Errorf("delete cart item: %w", err)
		}
		return nil
	})
}

// ClearCart is a no-op on an empty cart. It returns the number of lines
// removed.
func ClearCart(ctx context.Context, db *sql.DB, userID int64) (int64, error) {
	var removed int64
	err := withUserCart(ctx, db, userID, func(tx *sql.Tx) error {
		var err error
		removed, err = clearCart(ctx, tx, userID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func clearCart(ctx context.Context, tx *sql.Tx, userID int64) (int64, error) {
	result, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("clear cart: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return removed, nil
}

func removeCartProducts(ctx context.Context, tx *sql.Tx, userID int64, productIDs []int64) error {
	_, err := tx.ExecContext(ctx,
		`DELETE FROM cart_items WHERE user_id = $1 AND product_id = ANY($2)`,
		userID, pq.Array(productIDs))
	if err != nil {
		return fmt.Errorf("remove purchased cart lines: %w", err)
	}
	return nil
}

// GetCart joins each line with the live product row. The result is for
// display and for building a checkout snapshot; prices here are not frozen.
func GetCart(ctx context.Context, db DBTX, userID int64) ([]models.CartItem, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT c.id, c.user_id, c.product_id, c.quantity, c.created_at, c.updated_at,
		        p.id, p.sku, p.name, p.description, p.category, p.image_url, p.price, p.stock,
		        p.status, p.created_at, p.updated_at, p.version
		 FROM cart_items c
		 JOIN products p ON p.id = c.product_id
		 WHERE c.user_id = $1
		 ORDER BY c.created_at, c.id`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	defer rows.Close()

	items := []models.CartItem{}
	for rows.Next() {
		var item models.CartItem
		err := rows.Scan(
			&item.ID,
			&item.UserID,
			&item.ProductID,
			&item.Quantity,
			&item.CreatedAt,
			&item.UpdatedAt,
			&item.Product.ID,
			&item.Product.SKU,
			&item.Product.Name,
			&item.Product.Description,
			&item.Product.Category,
			&item.Product.ImageURL,
			&item.Product.Price,
			&item.Product.Stock,
			&item.Product.Status,
			&item.Product.CreatedAt,
			&item.Product.UpdatedAt,
			&item.Product.Version,
		)
		if err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}
