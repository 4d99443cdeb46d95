package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/safar/shopcraft/internal/apperr"
	"github.com/safar/shopcraft/internal/database"
	"github.com/safar/shopcraft/internal/models"
	"github.com/safar/shopcraft/internal/payment"
	"github.com/safar/shopcraft/internal/store"
	"github.com/shopspring/decimal"
)

type fakeRepo struct {
	mu        sync.Mutex
	products  map[int64]*models.Product
	cart      map[int64][]models.CartLine
	orders    []*models.Order
	attempts  map[string]*models.PaymentAttempt
	commitErr error
	nextID    int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		products: make(map[int64]*models.Product),
		cart:     make(map[int64][]models.CartLine),
		attempts: make(map[string]*models.PaymentAttempt),
	}
}

func (r *fakeRepo) addProduct(id int64, name, price string, stock int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[id] = &models.Product{
		ID:     id,
		Name:   name,
		Price:  decimal.RequireFromString(price),
		Stock:  stock,
		Status: models.ProductStatusActive,
	}
}

func (r *fakeRepo) addToCart(userID, productID int64, quantity int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.cart[userID] = append(r.cart[userID], models.CartLine{
		ID:        r.nextID,
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
	})
}

func (r *fakeRepo) setPrice(productID int64, price string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[productID].Price = decimal.RequireFromString(price)
}

func (r *fakeRepo) cartSize(userID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cart[userID])
}

func (r *fakeRepo) stock(productID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.products[productID].Stock
}

func (r *fakeRepo) orderCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

func (r *fakeRepo) attempt(id string) *models.PaymentAttempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts[id]
}

func (r *fakeRepo) CartItems(ctx context.Context, userID int64) ([]models.CartItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var items []models.CartItem
	for _, line := range r.cart[userID] {
		items = append(items, models.CartItem{CartLine: line, Product: *r.products[line.ProductID]})
	}
	return items, nil
}

func (r *fakeRepo) CommitOrder(ctx context.Context, req store.CommitRequest) (*store.CommitResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.commitErr != nil {
		return nil, r.commitErr
	}

	for _, order := range r.orders {
		if order.PaymentReference != nil && *order.PaymentReference == req.PaymentReference {
			r.markCommitted(req.AttemptID, order.ID)
			return &store.CommitResult{Order: order}, nil
		}
	}

	for _, item := range req.Items {
		if r.products[item.ProductID].Stock < item.Quantity {
			return nil, database.ErrInsufficientStock
		}
	}
	for _, item := range req.Items {
		r.products[item.ProductID].Stock -= item.Quantity
	}

	reference := req.PaymentReference
	r.nextID++
	order := &models.Order{
		ID:               r.nextID,
		UserID:           req.UserID,
		OrderNumber:      "ORD-TEST",
		Items:            append(models.LineItems(nil), req.Items...),
		Subtotal:         req.Totals.Subtotal,
		Tax:              req.Totals.Tax,
		Shipping:         req.Totals.Shipping,
		Total:            req.Totals.Total,
		Status:           models.OrderStatusPending,
		ShippingAddress:  req.ShippingAddress,
		PaymentReference: &reference,
		CreatedAt:        time.Now(),
	}
	r.orders = append(r.orders, order)

	bought := make(map[int64]bool, len(req.Items))
	for _, item := range req.Items {
		bought[item.ProductID] = true
	}
	var kept []models.CartLine
	for _, line := range r.cart[req.UserID] {
		if !bought[line.ProductID] {
			kept = append(kept, line)
		}
	}
	r.cart[req.UserID] = kept
	r.markCommitted(req.AttemptID, order.ID)

	return &store.CommitResult{Order: order, Created: true}, nil
}

func (r *fakeRepo) OrderByPaymentReference(ctx context.Context, reference string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, order := range r.orders {
		if order.PaymentReference != nil && *order.PaymentReference == reference {
			return order, nil
		}
	}
	return nil, database.ErrOrderNotFound
}

func (r *fakeRepo) markCommitted(attemptID string, orderID int64) {
	if attempt, ok := r.attempts[attemptID]; ok {
		attempt.Outcome = models.AttemptCommitted
		attempt.OrderID = &orderID
	}
}

func (r *fakeRepo) CreateAttempt(ctx context.Context, attempt *models.PaymentAttempt) (*models.PaymentAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *attempt
	stored.Outcome = models.AttemptPending
	r.attempts[attempt.ID] = &stored
	return &stored, nil
}

func (r *fakeRepo) UpdateAttempt(ctx context.Context, id string, update store.AttemptUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	attempt, ok := r.attempts[id]
	if !ok {
		return database.ErrAttemptNotFound
	}
	attempt.Outcome = update.Outcome
	attempt.Error = update.Error
	if update.PaymentReference != "" {
		reference := update.PaymentReference
		attempt.PaymentReference = &reference
	}
	return nil
}

// fakeGateway wraps the simulated gateway to count calls and inject
// behaviour.
type fakeGateway struct {
	*payment.SimulatedGateway

	mu       sync.Mutex
	charges  int
	block    bool
	onCharge func()
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{SimulatedGateway: payment.NewSimulatedGateway()}
}

func (g *fakeGateway) Charge(ctx context.Context, req payment.ChargeRequest) (*payment.Charge, error) {
	g.mu.Lock()
	g.charges++
	block, hook := g.block, g.onCharge
	g.mu.Unlock()

	if hook != nil {
		hook()
	}
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return g.SimulatedGateway.Charge(ctx, req)
}

func (g *fakeGateway) chargeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.charges
}

var errDatabaseDown = apperr.New(apperr.Internal, "database unavailable")
