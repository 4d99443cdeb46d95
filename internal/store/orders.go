package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/safar/shopcraft/internal/apperr"
	"github.com/safar/shopcraft/internal/database"
	"github.com/safar/shopcraft/internal/models"
	"github.com/safar/shopcraft/internal/pricing"
)

const orderColumns = `id, user_id, order_number, items, subtotal, tax, shipping, total, status,
	shipping_address, payment_reference, created_at, updated_at, version`

// CommitRequest carries a priced, paid-for cart snapshot.
type CommitRequest struct {
	AttemptID        string
	UserID           int64
	Items            []models.OrderItem
	Totals           pricing.Totals
	ShippingAddress  models.ShippingAddress
	PaymentReference string
}

type CommitResult struct {
	Order *models.Order
	// Created is false when an order already existed for the payment
	// reference and was returned instead of writing a new one.
	Created bool
}

type OrderFilter struct {
	Status   models.OrderStatus
	Page     int
	PageSize int
}

func generateOrderNumber() string {
	return fmt.Sprintf("ORD-%s-%s",
		time.Now().UTC().Format("20060102"),
		strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10]))
}

func scanOrder(row rowScanner) (*models.Order, error) {
	order := &models.Order{}
	var reference sql.NullString
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.OrderNumber,
		&order.Items,
		&order.Subtotal,
		&order.Tax,
		&order.Shipping,
		&order.Total,
		&order.Status,
		&order.ShippingAddress,
		&reference,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.Version,
	)
	if reference.Valid {
		order.PaymentReference = &reference.String
	}
	return order, err
}

// CommitOrder turns a paid snapshot into an order in one serializable
// transaction: stock is rechecked and decremented, the order is inserted,
// the purchased products leave the user's cart and the payment attempt is
// marked committed. Lines added after the snapshot was taken stay.
// A payment reference that already has an order returns that order.
func CommitOrder(ctx context.Context, db *sql.DB, req CommitRequest) (*CommitResult, error) {
	if len(req.Items) == 0 {
		return nil, apperr.New(apperr.EmptyCart, "nothing to commit")
	}

	var result *CommitResult
	err := database.WithRetry(ctx, db, database.SerializableTxOptions(), func(tx *sql.Tx) error {
		result = nil

		if req.PaymentReference != "" {
			existing, err := GetOrderByPaymentReference(ctx, tx, req.PaymentReference)
			switch {
			case err == nil:
				if existing.UserID != req.UserID {
					return apperr.New(apperr.Conflict, "payment reference belongs to another order")
				}
				if err := markAttemptCommitted(ctx, tx, req.AttemptID, req.PaymentReference, existing.ID); err != nil {
					return err
				}
				result = &CommitResult{Order: existing}
				return nil
			case !errors.Is(err, database.ErrOrderNotFound):
				return err
			}
		}

		if err := lockUser(ctx, tx, req.UserID); err != nil {
			return err
		}

		quantities := make(map[int64]int, len(req.Items))
		for _, item := range req.Items {
			quantities[item.ProductID] += item.Quantity
		}
		ids := make([]int64, 0, len(quantities))
		for id := range quantities {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		products, err := lockProducts(ctx, tx, ids)
		if err != nil {
			return err
		}

		for _, id := range ids {
			product, ok := products[id]
			if !ok {
				return fmt.Errorf("product %d: %w", id, database.ErrProductNotFound)
			}
			if product.Stock < quantities[id] {
				return fmt.Errorf("%w: %s has %d, requested %d",
					database.ErrInsufficientStock, product.Name, product.Stock, quantities[id])
			}
		}

		for _, id := range ids {
			if err := decrementStock(ctx, tx, id, quantities[id]); err != nil {
				return err
			}
		}

		order, err := insertOrder(ctx, tx, req)
		if err != nil {
			return err
		}

		if err := removeCartProducts(ctx, tx, req.UserID, ids); err != nil {
			return err
		}

		if err := markAttemptCommitted(ctx, tx, req.AttemptID, req.PaymentReference, order.ID); err != nil {
			return err
		}

		result = &CommitResult{Order: order, Created: true}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func insertOrder(ctx context.Context, tx *sql.Tx, req CommitRequest) (*models.Order, error) {
	var reference interface{}
	if req.PaymentReference != "" {
		reference = req.PaymentReference
	}

	order, err := scanOrder(tx.QueryRowContext(ctx,
		`INSERT INTO orders (user_id, order_number, items, subtotal, tax, shipping, total, status,
		                     shipping_address, payment_reference, created_at, updated_at, version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW(), 1)
		 RETURNING `+orderColumns,
		req.UserID,
		generateOrderNumber(),
		models.LineItems(req.Items),
		req.Totals.Subtotal,
		req.Totals.Tax,
		req.Totals.Shipping,
		req.Totals.Total,
		models.OrderStatusPending,
		req.ShippingAddress,
		reference,
	))
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	return order, nil
}

func GetOrder(ctx context.Context, db DBTX, id int64) (*models.Order, error) {
	order, err := scanOrder(db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	return order, nil
}

func GetOrderByPaymentReference(ctx context.Context, db DBTX, reference string) (*models.Order, error) {
	order, err := scanOrder(db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE payment_reference = $1`, reference))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order by payment reference: %w", err)
	}

	return order, nil
}

func ListOrdersCursor(ctx context.Context, db DBTX, userID int64, cursor string, limit int) (*CursorPage[models.Order], error) {
	_, limit = NormalizePage(1, limit)

	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE user_id = $1
		   AND (created_at, id) < ($2, $3)
		 ORDER BY created_at DESC, id DESC
		 LIMIT $4`,
		userID, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	var nextCursor string
	if hasMore {
		last := orders[len(orders)-1]
		nextCursor = EncodeCursor(KeysetCursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}

	return &CursorPage[models.Order]{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

func ListOrders(ctx context.Context, db DBTX, filter OrderFilter) (*OffsetPage[models.Order], error) {
	page, pageSize := NormalizePage(filter.Page, filter.PageSize)

	where := ""
	var args []interface{}
	if filter.Status != "" {
		where = " WHERE status = $1"
		args = append(args, filter.Status)
	}

	var total int64
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)+1, len(args)+2)
	args = append(args, pageSize, offset(page, pageSize))

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return newOffsetPage(orders, total, page, pageSize), nil
}

// UpdateOrderStatus applies one edge of the forward-only status machine.
// Everything but status is immutable once written.
func UpdateOrderStatus(ctx context.Context, db *sql.DB, id int64, next models.OrderStatus) (*models.Order, error) {
	if !next.Valid() {
		return nil, apperr.Newf(apperr.InvalidArgument, "unknown order status %q", next)
	}

	var order *models.Order
	err := database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		current, err := scanOrder(tx.QueryRowContext(ctx,
			`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			if database.IsNoRows(err) {
				return database.ErrOrderNotFound
			}
			return fmt.Errorf("lock order: %w", err)
		}

		if !current.Status.CanTransitionTo(next) {
			return apperr.Newf(apperr.InvalidTransition,
				"order %d cannot move from %s to %s", id, current.Status, next)
		}

		order, err = scanOrder(tx.QueryRowContext(ctx,
			`UPDATE orders
			 SET status = $1, version = version + 1, updated_at = NOW()
			 WHERE id = $2
			 RETURNING `+orderColumns,
			next, id))
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}
