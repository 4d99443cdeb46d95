package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/safar/shopcraft/internal/database"
	"github.com/safar/shopcraft/internal/models"
	"github.com/shopspring/decimal"
)

const productColumns = `id, sku, name, description, category, image_url, price, stock, status, created_at, updated_at, version`

type CreateProductParams struct {
	SKU         string
	Name        string
	Description string
	Category    string
	ImageURL    string
	Price       decimal.Decimal
	Stock       int
	Status      models.ProductStatus
}

// UpdateProductParams is a partial update; nil fields are left unchanged.
type UpdateProductParams struct {
	SKU         *string
	Name        *string
	Description *string
	Category    *string
	ImageURL    *string
	Price       *decimal.Decimal
	Stock       *int
	Status      *models.ProductStatus
}

type ProductFilter struct {
	Search   string
	Category string
	Status   models.ProductStatus
	Page     int
	PageSize int
}

func scanProduct(row rowScanner) (*models.Product, error) {
	product := &models.Product{}
	err := row.Scan(
		&product.ID,
		&product.SKU,
		&product.Name,
		&product.Description,
		&product.Category,
		&product.ImageURL,
		&product.Price,
		&product.Stock,
		&product.Status,
		&product.CreatedAt,
		&product.UpdatedAt,
		&product.Version,
	)
	return product, err
}

func CreateProduct(ctx context.Context, db DBTX, params CreateProductParams) (*models.Product, error) {
	if params.Status == "" {
		params.Status = models.ProductStatusActive
	}

	query := `
		INSERT INTO products (sku, name, description, category, image_url, price, stock, status, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW(), 1)
		RETURNING ` + productColumns

	product, err := scanProduct(db.QueryRowContext(ctx, query,
		params.SKU,
		params.Name,
		params.Description,
		params.Category,
		params.ImageURL,
		params.Price,
		params.Stock,
		params.Status,
	))
	if err != nil {
		if database.IsUniqueViolation(err, "products_sku_key") {
			return nil, database.ErrDuplicateSKU
		}
		return nil, fmt.Errorf("create product: %w", err)
	}

	return product, nil
}

func GetProduct(ctx context.Context, db DBTX, id int64) (*models.Product, error) {
	product, err := scanProduct(db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

func ListProducts(ctx context.Context, db DBTX, filter ProductFilter) (*OffsetPage[models.Product], error) {
	page, pageSize := NormalizePage(filter.Page, filter.PageSize)

	var conditions []string
	var args []interface{}

	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+search+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf(
			"(name ILIKE $%d OR description ILIKE $%d OR category ILIKE $%d OR sku ILIKE $%d)", n, n, n, n))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM products%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		productColumns, where, len(args)+1, len(args)+2)
	args = append(args, pageSize, offset(page, pageSize))

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
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

	return newOffsetPage(products, total, page, pageSize), nil
}

func UpdateProduct(ctx context.Context, db DBTX, id int64, params UpdateProductParams) (*models.Product, error) {
	query := `
		UPDATE products
		SET sku = COALESCE($2, sku),
		    name = COALESCE($3, name),
		    description = COALESCE($4, description),
		    category = COALESCE($5, category),
		    image_url = COALESCE($6, image_url),
		    price = COALESCE($7::numeric, price),
		    stock = COALESCE($8::integer, stock),
		    status = COALESCE($9, status),
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + productColumns

	product, err := scanProduct(db.QueryRowContext(ctx, query,
		id,
		params.SKU,
		params.Name,
		params.Description,
		params.Category,
		params.ImageURL,
		params.Price,
		params.Stock,
		params.Status,
	))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, database.ErrProductNotFound
		}
		if database.IsUniqueViolation(err, "products_sku_key") {
			return nil, database.ErrDuplicateSKU
		}
		return nil, fmt.Errorf("update product: %w", err)
	}

	return product, nil
}

// DeleteProduct refuses to remove a product that any order snapshot still
// names, even though orders hold no foreign key to products.
func DeleteProduct(ctx context.Context, db *sql.DB, id int64) error {
	return database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `LOCK TABLE orders IN SHARE MODE`); err != nil {
			return fmt.Errorf("lock orders: %w", err)
		}

		var referenced bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM orders WHERE items @> jsonb_build_array(jsonb_build_object('product_id', $1::bigint)))`,
			id).Scan(&referenced)
		if err != nil {
			return fmt.Errorf("check product references: %w", err)
		}
		if referenced {
			return database.ErrProductReferenced
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete product: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return database.ErrProductNotFound
		}

		return nil
	})
}

// UpdateStockOptimistic overwrites stock only if the caller saw the current
// version.
func UpdateStockOptimistic(ctx context.Context, db DBTX, productID int64, newStock int, version int) (*models.Product, error) {
	product, err := scanProduct(db.QueryRowContext(ctx,
		`UPDATE products
		 SET stock = $1, version = version + 1, updated_at = NOW()
		 WHERE id = $2 AND version = $3
		 RETURNING `+productColumns,
		newStock, productID, version))
	if err == nil {
		return product, nil
	}
	if !database.IsNoRows(err) {
		if database.IsCheckViolation(err) {
			return nil, database.ErrInvalidStock
		}
		return nil, fmt.Errorf("update stock: %w", err)
	}

	if _, err := GetProduct(ctx, db, productID); err != nil {
		return nil, err
	}
	return nil, database.ErrOptimisticLockFailed
}

// lockProducts takes row locks in id order so concurrent checkouts over
// overlapping products cannot deadlock. A held lock fails fast with
// ErrLockTimeout, which WithRetry treats as transient.
func lockProducts(ctx context.Context, tx *sql.Tx, ids []int64) (map[int64]*models.Product, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+productColumns+`
		 FROM products
		 WHERE id = ANY($1)
		 ORDER BY id
		 FOR UPDATE NOWAIT`,
		pq.Array(ids))
	if err != nil {
		if database.ClassifyError(err) == database.ErrorClassTransient {
			return nil, database.ErrLockTimeout
		}
		return nil, fmt.Errorf("lock products: %w", err)
	}
	defer rows.Close()

	products := make(map[int64]*models.Product, len(ids))
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products[product.ID] = product
	}

	if err := rows.Err(); err != nil {
		if database.ClassifyError(err) == database.ErrorClassTransient {
			return nil, database.ErrLockTimeout
		}
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return products, nil
}

func decrementStock(ctx context.Context, tx *sql.Tx, productID int64, quantity int) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE products
		 SET stock = stock - $1,
		     version = version + 1,
		     updated_at = NOW()
		 WHERE id = $2
		   AND stock >= $1`,
		quantity, productID)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrInsufficientStock
	}

	return nil
}
