package database

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/safar/shopcraft/internal/apperr"
)

type ErrorClass int

const (
	ErrorClassPermanent ErrorClass = iota
	ErrorClassTransient
	ErrorClassDeadlock
	ErrorClassSerialization
)

const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeNotNullViolation     = "23502"
	codeCheckViolation       = "23514"
)

func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassPermanent
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeSerializationFailure:
			return ErrorClassSerialization
		case codeDeadlockDetected:
			return ErrorClassDeadlock
		case codeLockNotAvailable:
			return ErrorClassTransient
		}
	}

	if errors.Is(err, ErrLockTimeout) {
		return ErrorClassTransient
	}

	return ErrorClassPermanent
}

func IsRetryable(err error) bool {
	class := ClassifyError(err)
	return class == ErrorClassTransient ||
		class == ErrorClassDeadlock ||
		class == ErrorClassSerialization
}

// IsUniqueViolation reports whether err is a unique constraint failure,
// optionally restricted to one named constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != codeUniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

func IsForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == codeForeignKeyViolation
}

func IsCheckViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == codeCheckViolation
}

func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

var (
	ErrUserNotFound         = apperr.New(apperr.NotFound, "user not found")
	ErrEmailTaken           = apperr.New(apperr.Conflict, "email already registered")
	ErrProductNotFound      = apperr.New(apperr.NotFound, "product not found")
	ErrProductInactive      = apperr.New(apperr.InvalidArgument, "product is not available")
	ErrProductReferenced    = apperr.New(apperr.Conflict, "product is referenced by existing orders")
	ErrDuplicateSKU         = apperr.New(apperr.Conflict, "sku already exists")
	ErrCartLineNotFound     = apperr.New(apperr.NotFound, "cart item not found")
	ErrCartLineForbidden    = apperr.New(apperr.Forbidden, "cart item belongs to another user")
	ErrInvalidQuantity      = apperr.New(apperr.InvalidArgument, "quantity must be at least 1")
	ErrInvalidStock         = apperr.New(apperr.InvalidArgument, "stock must not be negative")
	ErrOrderNotFound        = apperr.New(apperr.NotFound, "order not found")
	ErrAttemptNotFound      = apperr.New(apperr.NotFound, "payment attempt not found")
	ErrInsufficientStock    = apperr.New(apperr.InsufficientStock, "insufficient stock")
	ErrOptimisticLockFailed = apperr.New(apperr.Conflict, "optimistic lock failed")
	ErrLockTimeout          = apperr.New(apperr.Conflict, "lock timeout")
)
