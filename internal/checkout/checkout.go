// Package checkout turns a user's cart into a paid order.
//
// A run moves Idle -> Pricing -> AwaitingPayment -> Committing -> Done and
// can leave through PricingFailed, PaymentFailed or CommitFailed. The
// payment call is the only step that honours caller cancellation; once
// money is captured the commit runs to completion on its own context.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/safar/shopcraft/internal/apperr"
	"github.com/safar/shopcraft/internal/config"
	"github.com/safar/shopcraft/internal/models"
	"github.com/safar/shopcraft/internal/payment"
	"github.com/safar/shopcraft/internal/pricing"
	"github.com/safar/shopcraft/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type State string

const (
	StateIdle            State = "idle"
	StatePricing         State = "pricing"
	StateAwaitingPayment State = "awaiting_payment"
	StateCommitting      State = "committing"
	StateDone            State = "done"
	StatePricingFailed   State = "pricing_failed"
	StatePaymentFailed   State = "payment_failed"
	StateCommitFailed    State = "commit_failed"
)

type Repository interface {
	CartItems(ctx context.Context, userID int64) ([]models.CartItem, error)
	CommitOrder(ctx context.Context, req store.CommitRequest) (*store.CommitResult, error)
	CreateAttempt(ctx context.Context, attempt *models.PaymentAttempt) (*models.PaymentAttempt, error)
	UpdateAttempt(ctx context.Context, id string, update store.AttemptUpdate) error
	OrderByPaymentReference(ctx context.Context, reference string) (*models.Order, error)
}

type Request struct {
	UserID          int64
	ShippingAddress models.ShippingAddress
	PaymentMethod   string
	// ExpectedTotal is the total the client showed the user. A mismatch
	// fails the run before any charge.
	ExpectedTotal *decimal.Decimal
	// PaymentReference resumes a run whose payment was captured but whose
	// order was not recorded. No new charge is made.
	PaymentReference string
}

type Result struct {
	Order            *models.Order  `json:"order"`
	Totals           pricing.Totals `json:"totals"`
	AttemptID        string         `json:"attempt_id"`
	PaymentReference string         `json:"payment_reference"`
	// Existing is true when the payment reference already had an order.
	Existing bool `json:"existing"`
}

type Orchestrator struct {
	repo           Repository
	gateway        payment.Gateway
	calculator     *pricing.Calculator
	currency       string
	paymentTimeout time.Duration
	logger         *zap.Logger
	newAttemptID   func() string
}

const defaultPaymentTimeout = 15 * time.Second

func NewOrchestrator(repo Repository, gateway payment.Gateway, calculator *pricing.Calculator, cfg config.PaymentConfig, logger *zap.Logger) *Orchestrator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultPaymentTimeout
	}
	return &Orchestrator{
		repo:           repo,
		gateway:        gateway,
		calculator:     calculator,
		currency:       strings.ToLower(cfg.Currency),
		paymentTimeout: cfg.Timeout,
		logger:         logger.Named("checkout"),
		newAttemptID:   uuid.NewString,
	}
}

type run struct {
	attemptID string
	state     State
	logger    *zap.Logger
}

func (r *run) enter(state State) {
	r.logger.Debug("checkout state", zap.String("from", string(r.state)), zap.String("to", string(state)))
	r.state = state
}

type attemptPayload struct {
	Items           []models.OrderItem     `json:"items"`
	Totals          pricing.Totals         `json:"totals"`
	ShippingAddress models.ShippingAddress `json:"shipping_address"`
}

func (o *Orchestrator) Checkout(ctx context.Context, req Request) (*Result, error) {
	r := &run{attemptID: o.newAttemptID(), state: StateIdle}
	r.logger = o.logger.With(zap.String("attempt_id", r.attemptID), zap.Int64("user_id", req.UserID))

	r.enter(StatePricing)
	if req.PaymentReference != "" {
		existing, err := o.existingOrder(ctx, req)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			r.enter(StateDone)
			r.logger.Info("checkout replayed",
				zap.Int64("order_id", existing.Order.ID),
				zap.String("payment_reference", req.PaymentReference),
			)
			return existing, nil
		}
	}

	items, err := o.freeze(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	totals, err := o.calculator.Price(items)
	if err != nil {
		r.enter(StatePricingFailed)
		return nil, apperr.Wrap(apperr.PricingFailed, err, "cannot price cart")
	}
	if req.ExpectedTotal != nil && !req.ExpectedTotal.Equal(totals.Total) {
		r.enter(StatePricingFailed)
		return nil, apperr.Newf(apperr.PricingFailed,
			"cart total changed: expected %s, now %s", req.ExpectedTotal.StringFixed(2), totals.Total.StringFixed(2))
	}

	// A resumed payment must belong to this user before anything is
	// recorded against its reference.
	var resumed *payment.Charge
	if req.PaymentReference != "" {
		resumed, err = o.ownCharge(ctx, r, req)
		if err != nil {
			return nil, err
		}
	}

	payload, err := json.Marshal(attemptPayload{Items: items, Totals: totals, ShippingAddress: req.ShippingAddress})
	if err != nil {
		return nil, fmt.Errorf("encode attempt payload: %w", err)
	}

	attempt := &models.PaymentAttempt{
		ID:       r.attemptID,
		UserID:   req.UserID,
		Amount:   totals.Total,
		Currency: o.currency,
		Payload:  payload,
	}
	if req.PaymentReference != "" {
		attempt.PaymentReference = &req.PaymentReference
	}
	if _, err := o.repo.CreateAttempt(ctx, attempt); err != nil {
		return nil, fmt.Errorf("record payment attempt: %w", err)
	}

	r.enter(StateAwaitingPayment)
	charge, err := o.pay(ctx, r, req, totals, resumed)
	if err != nil {
		r.enter(StatePaymentFailed)
		o.recordOutcome(ctx, r, store.AttemptUpdate{
			Outcome:          models.AttemptPaymentFailed,
			PaymentReference: apperrReference(err),
			Error:            err.Error(),
		})
		r.logger.Warn("checkout payment failed", zap.Error(err))
		return nil, err
	}

	// Money has moved. The commit must not be abandoned because the
	// client went away.
	commitCtx := context.WithoutCancel(ctx)

	r.enter(StateCommitting)
	result, err := o.repo.CommitOrder(commitCtx, store.CommitRequest{
		AttemptID:        r.attemptID,
		UserID:           req.UserID,
		Items:            items,
		Totals:           totals,
		ShippingAddress:  req.ShippingAddress,
		PaymentReference: charge.Reference,
	})
	if err != nil {
		r.enter(StateCommitFailed)
		o.recordOutcome(commitCtx, r, store.AttemptUpdate{
			Outcome:          models.AttemptCommitFailed,
			PaymentReference: charge.Reference,
			Error:            err.Error(),
		})
		r.logger.Error("checkout commit failed after payment capture",
			zap.String("payment_reference", charge.Reference),
			zap.String("amount", totals.Total.StringFixed(2)),
			zap.Error(err),
		)
		return nil, &apperr.Error{
			Kind:             apperr.CommitFailed,
			Message:          "payment captured but the order could not be recorded",
			PaymentReference: charge.Reference,
			AttemptID:        r.attemptID,
			Err:              err,
		}
	}

	r.enter(StateDone)
	r.logger.Info("order placed",
		zap.Int64("order_id", result.Order.ID),
		zap.String("order_number", result.Order.OrderNumber),
		zap.String("payment_reference", charge.Reference),
		zap.Bool("existing", !result.Created),
	)

	return &Result{
		Order:            result.Order,
		Totals:           totals,
		AttemptID:        r.attemptID,
		PaymentReference: charge.Reference,
		Existing:         !result.Created,
	}, nil
}

// freeze copies the live product data of every cart line into an order
// snapshot. Later catalog edits do not reach it.
func (o *Orchestrator) freeze(ctx context.Context, userID int64) ([]models.OrderItem, error) {
	cart, err := o.repo.CartItems(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if len(cart) == 0 {
		return nil, apperr.New(apperr.EmptyCart, "cart is empty")
	}

	items := make([]models.OrderItem, 0, len(cart))
	for _, line := range cart {
		if line.Product.Status != models.ProductStatusActive {
			return nil, apperr.Newf(apperr.InvalidArgument, "%s is no longer available", line.Product.Name)
		}
		if line.Quantity > line.Product.Stock {
			return nil, apperr.Newf(apperr.InsufficientStock,
				"only %d of %s left in stock", line.Product.Stock, line.Product.Name)
		}
		items = append(items, models.OrderItem{
			ProductID: line.ProductID,
			Name:      line.Product.Name,
			UnitPrice: line.Product.Price,
			Quantity:  line.Quantity,
		})
	}

	return items, nil
}

// existingOrder returns the order already booked for the request's payment
// reference, or nil when there is none.
func (o *Orchestrator) existingOrder(ctx context.Context, req Request) (*Result, error) {
	order, err := o.repo.OrderByPaymentReference(ctx, req.PaymentReference)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("look up order by payment reference: %w", err)
	}
	if order.UserID != req.UserID {
		return nil, errForeignPayment
	}

	return &Result{
		Order: order,
		Totals: pricing.Totals{
			Subtotal: order.Subtotal,
			Tax:      order.Tax,
			Shipping: order.Shipping,
			Total:    order.Total,
		},
		PaymentReference: req.PaymentReference,
		Existing:         true,
	}, nil
}

var errForeignPayment = apperr.New(apperr.Forbidden, "payment reference belongs to another user")

// ownCharge loads the charge being resumed and refuses one made for
// another user.
func (o *Orchestrator) ownCharge(ctx context.Context, r *run, req Request) (*payment.Charge, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, o.paymentTimeout)
	defer cancel()

	charge, err := o.gateway.Lookup(lookupCtx, req.PaymentReference)
	if err != nil {
		if errors.Is(err, payment.ErrChargeNotFound) {
			return nil, apperr.Newf(apperr.InvalidArgument, "unknown payment reference %q", req.PaymentReference)
		}
		return nil, o.paymentError(r, err)
	}
	if charge.UserID != req.UserID {
		r.logger.Warn("checkout resumed with a foreign payment",
			zap.String("payment_reference", charge.Reference),
			zap.Int64("charge_user_id", charge.UserID),
		)
		return nil, errForeignPayment
	}

	return charge, nil
}

func (o *Orchestrator) pay(ctx context.Context, r *run, req Request, totals pricing.Totals, resumed *payment.Charge) (*payment.Charge, error) {
	if resumed != nil {
		return o.verifyCapture(r, resumed, totals.Total)
	}

	payCtx, cancel := context.WithTimeout(ctx, o.paymentTimeout)
	defer cancel()

	charge, err := o.gateway.Charge(payCtx, payment.ChargeRequest{
		AttemptID:     r.attemptID,
		UserID:        req.UserID,
		Amount:        totals.Total,
		Currency:      o.currency,
		PaymentMethod: req.PaymentMethod,
		Description:   fmt.Sprintf("order payment %s", r.attemptID),
	})
	if err != nil {
		return nil, o.paymentError(r, err)
	}
	if !charge.Captured() {
		return nil, &apperr.Error{
			Kind:             apperr.PaymentFailed,
			Message:          fmt.Sprintf("payment not captured: %s", charge.Status),
			PaymentReference: charge.Reference,
			AttemptID:        r.attemptID,
		}
	}

	return charge, nil
}

// verifyCapture resumes from an earlier capture instead of charging again.
func (o *Orchestrator) verifyCapture(r *run, charge *payment.Charge, total decimal.Decimal) (*payment.Charge, error) {
	fail := func(msg string) error {
		return &apperr.Error{Kind: apperr.PaymentFailed, Message: msg, PaymentReference: charge.Reference, AttemptID: r.attemptID}
	}
	if !charge.Captured() {
		return nil, fail(fmt.Sprintf("payment %s is %s", charge.Reference, charge.Status))
	}
	if !charge.Amount.Equal(total) || !strings.EqualFold(charge.Currency, o.currency) {
		return nil, fail(fmt.Sprintf("payment %s covers %s %s, cart total is %s %s",
			charge.Reference, charge.Amount.StringFixed(2), charge.Currency, total.StringFixed(2), o.currency))
	}

	return charge, nil
}

func (o *Orchestrator) paymentError(r *run, err error) error {
	appErr := &apperr.Error{Kind: apperr.PaymentFailed, AttemptID: r.attemptID, Err: err}

	var declined *payment.DeclinedError
	switch {
	case errors.As(err, &declined):
		appErr.Message = "payment declined"
		appErr.PaymentReference = declined.Reference
	case errors.Is(err, context.DeadlineExceeded):
		appErr.Message = "payment timed out; query the attempt id for its final status"
	case errors.Is(err, context.Canceled):
		appErr.Message = "payment cancelled"
	default:
		appErr.Message = "payment failed"
	}
	return appErr
}

func (o *Orchestrator) recordOutcome(ctx context.Context, r *run, update store.AttemptUpdate) {
	ctx = context.WithoutCancel(ctx)
	if err := o.repo.UpdateAttempt(ctx, r.attemptID, update); err != nil {
		r.logger.Error("record payment attempt outcome",
			zap.String("outcome", string(update.Outcome)),
			zap.Error(err),
		)
	}
}

func apperrReference(err error) string {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr.PaymentReference
	}
	return ""
}

// Status resolves a payment reference or attempt id with the gateway.
func (o *Orchestrator) Status(ctx context.Context, reference string) (*payment.Charge, error) {
	ctx, cancel := context.WithTimeout(ctx, o.paymentTimeout)
	defer cancel()

	charge, err := o.gateway.Lookup(ctx, reference)
	if err != nil {
		if errors.Is(err, payment.ErrChargeNotFound) {
			return nil, apperr.Newf(apperr.NotFound, "no payment for %q", reference)
		}
		return nil, apperr.Wrap(apperr.Internal, err, "payment lookup failed")
	}
	return charge, nil
}
