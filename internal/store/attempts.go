package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/shopcraft/internal/database"
	"github.com/safar/shopcraft/internal/models"
)

const attemptColumns = `id, user_id, payment_reference, amount, currency, payload, outcome, error_message, order_id, created_at, updated_at`

type AttemptUpdate struct {
	Outcome          models.AttemptOutcome
	PaymentReference string
	Error            string
}

type AttemptFilter struct {
	Outcome  models.AttemptOutcome
	Page     int
	PageSize int
}

func scanAttempt(row rowScanner) (*models.PaymentAttempt, error) {
	attempt := &models.PaymentAttempt{}
	var (
		reference sql.NullString
		orderID   sql.NullInt64
		payload   []byte
	)
	err := row.Scan(
		&attempt.ID,
		&attempt.UserID,
		&reference,
		&attempt.Amount,
		&attempt.Currency,
		&payload,
		&attempt.Outcome,
		&attempt.Error,
		&orderID,
		&attempt.CreatedAt,
		&attempt.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	attempt.Payload = payload
	if reference.Valid {
		attempt.PaymentReference = &reference.String
	}
	if orderID.Valid {
		attempt.OrderID = &orderID.Int64
	}
	return attempt, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// CreateAttempt writes the pending row before any money moves, so every
// charge has a durable record of what it was for.
func CreateAttempt(ctx context.Context, db DBTX, attempt *models.PaymentAttempt) (*models.PaymentAttempt, error) {
	var reference string
	if attempt.PaymentReference != nil {
		reference = *attempt.PaymentReference
	}

	created, err := scanAttempt(db.QueryRowContext(ctx,
		`INSERT INTO payment_attempts (id, user_id, payment_reference, amount, currency, payload, outcome, error_message, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, '', NOW(), NOW())
		 RETURNING `+attemptColumns,
		attempt.ID,
		attempt.UserID,
		nullableString(reference),
		attempt.Amount,
		attempt.Currency,
		string(attempt.Payload),
		models.AttemptPending,
	))
	if err != nil {
		return nil, fmt.Errorf("create payment attempt: %w", err)
	}

	return created, nil
}

// UpdateAttempt records how an attempt ended. An empty reference keeps the
// stored one.
func UpdateAttempt(ctx context.Context, db DBTX, id string, update AttemptUpdate) error {
	result, err := db.ExecContext(ctx,
		`UPDATE payment_attempts
		 SET outcome = $1,
		     payment_reference = COALESCE($2, payment_reference),
		     error_message = $3,
		     updated_at = NOW()
		 WHERE id = $4`,
		update.Outcome, nullableString(update.PaymentReference), update.Error, id)
	if err != nil {
		return fmt.Errorf("update payment attempt: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrAttemptNotFound
	}

	return nil
}

func markAttemptCommitted(ctx context.Context, tx *sql.Tx, id, reference string, orderID int64) error {
	if id == "" {
		return nil
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE payment_attempts
		 SET outcome = $1,
		     payment_reference = COALESCE($2, payment_reference),
		     order_id = $3,
		     error_message = '',
		     updated_at = NOW()
		 WHERE id = $4`,
		models.AttemptCommitted, nullableString(reference), orderID, id)
	if err != nil {
		return fmt.Errorf("mark payment attempt committed: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrAttemptNotFound
	}

	return nil
}

// GetAttempt finds an attempt by its id or, failing that, the most recent
// attempt carrying the payment reference.
func GetAttempt(ctx context.Context, db DBTX, idOrReference string) (*models.PaymentAttempt, error) {
	attempt, err := scanAttempt(db.QueryRowContext(ctx,
		`SELECT `+attemptColumns+`
		 FROM payment_attempts
		 WHERE id::text = $1 OR payment_reference = $1
		 ORDER BY (id::text = $1) DESC, created_at DESC
		 LIMIT 1`,
		idOrReference))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, database.ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get payment attempt: %w", err)
	}

	return attempt, nil
}

func ListAttempts(ctx context.Context, db DBTX, filter AttemptFilter) (*OffsetPage[models.PaymentAttempt], error) {
	page, pageSize := NormalizePage(filter.Page, filter.PageSize)

	where := ""
	var args []interface{}
	if filter.Outcome != "" {
		where = " WHERE outcome = $1"
		args = append(args, filter.Outcome)
	}

	var total int64
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM payment_attempts`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count payment attempts: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM payment_attempts%s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		attemptColumns, where, len(args)+1, len(args)+2)
	args = append(args, pageSize, offset(page, pageSize))

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list payment attempts: %w", err)
	}
	defer rows.Close()

	var attempts []models.PaymentAttempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment attempt: %w", err)
		}
		attempts = append(attempts, *attempt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return newOffsetPage(attempts, total, page, pageSize), nil
}
