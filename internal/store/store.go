package store

import (
	"context"
	"database/sql"

	"github.com/safar/shopcraft/internal/models"
)

// Store binds the package functions to one pool for callers that depend on
// an interface, such as the checkout orchestrator.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) CartItems(ctx context.Context, userID int64) ([]models.CartItem, error) {
	return GetCart(ctx, s.db, userID)
}

func (s *Store) CommitOrder(ctx context.Context, req CommitRequest) (*CommitResult, error) {
	return CommitOrder(ctx, s.db, req)
}

func (s *Store) CreateAttempt(ctx context.Context, attempt *models.PaymentAttempt) (*models.PaymentAttempt, error) {
	return CreateAttempt(ctx, s.db, attempt)
}

func (s *Store) UpdateAttempt(ctx context.Context, id string, update AttemptUpdate) error {
	return UpdateAttempt(ctx, s.db, id, update)
}

func (s *Store) GetAttempt(ctx context.Context, id string) (*models.PaymentAttempt, error) {
	return GetAttempt(ctx, s.db, id)
}

func (s *Store) OrderByPaymentReference(ctx context.Context, reference string) (*models.Order, error) {
	return GetOrderByPaymentReference(ctx, s.db, reference)
}
