package payment

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// DeclinedPaymentMethod mirrors the provider's test token for a card that is
// always refused.
const DeclinedPaymentMethod = "pm_card_chargeDeclined"

// SimulatedGateway captures every charge in memory. It is used when no
// provider key is configured.
type SimulatedGateway struct {
	mu          sync.Mutex
	byReference map[string]*Charge
	byAttempt   map[string]*Charge
}

func NewSimulatedGateway() *SimulatedGateway {
	return &SimulatedGateway{
		byReference: make(map[string]*Charge),
		byAttempt:   make(map[string]*Charge),
	}
}

func (g *SimulatedGateway) Charge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if existing, ok := g.byAttempt[req.AttemptID]; ok {
		if !existing.Captured() {
			return nil, &DeclinedError{Reference: existing.Reference, Reason: existing.FailureReason}
		}
		copied := *existing
		return &copied, nil
	}

	charge := &Charge{
		Reference: "sim_" + uuid.NewString(),
		AttemptID: req.AttemptID,
		UserID:    req.UserID,
		Status:    StatusSucceeded,
		Amount:    req.Amount,
		Currency:  req.Currency,
	}
	if req.PaymentMethod == DeclinedPaymentMethod {
		charge.Status = StatusFailed
		charge.FailureReason = "card declined"
	}

	g.byReference[charge.Reference] = charge
	g.byAttempt[req.AttemptID] = charge

	if !charge.Captured() {
		return nil, &DeclinedError{Reference: charge.Reference, Reason: charge.FailureReason}
	}

	copied := *charge
	return &copied, nil
}

func (g *SimulatedGateway) Lookup(ctx context.Context, reference string) (*Charge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	charge, ok := g.byReference[reference]
	if !ok {
		charge, ok = g.byAttempt[reference]
	}
	if !ok {
		return nil, ErrChargeNotFound
	}

	copied := *charge
	return &copied, nil
}
