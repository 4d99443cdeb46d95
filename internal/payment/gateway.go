// Package payment talks to the external payment provider. Every charge is
// keyed by a checkout attempt id so a repeated request for the same attempt
// never captures funds twice.
package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusSucceeded      Status = "succeeded"
	StatusProcessing     Status = "processing"
	StatusRequiresAction Status = "requires_action"
	StatusCanceled       Status = "canceled"
	StatusFailed         Status = "failed"
)

type ChargeRequest struct {
	AttemptID     string
	UserID        int64
	Amount        decimal.Decimal
	Currency      string
	PaymentMethod string
	Description   string
}

type Charge struct {
	Reference     string          `json:"reference"`
	AttemptID     string          `json:"attempt_id"`
	// UserID is the shopper the charge was made for; zero when the provider
	// record carries no owner.
	UserID        int64           `json:"user_id,omitempty"`
	Status        Status          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	FailureReason string          `json:"failure_reason,omitempty"`
}

func (c *Charge) Captured() bool {
	return c.Status == StatusSucceeded
}

type Gateway interface {
	// Charge authorizes and captures req.Amount. It returns a *DeclinedError
	// when the provider refused the payment.
	Charge(ctx context.Context, req ChargeRequest) (*Charge, error)
	// Lookup resolves a provider reference or a checkout attempt id.
	Lookup(ctx context.Context, reference string) (*Charge, error)
}

var ErrChargeNotFound = errors.New("charge not found")

type DeclinedError struct {
	Reference string
	Reason    string
}

func (e *DeclinedError) Error() string {
	if e.Reference == "" {
		return fmt.Sprintf("payment declined: %s", e.Reason)
	}
	return fmt.Sprintf("payment %s declined: %s", e.Reference, e.Reason)
}

func IsDeclined(err error) bool {
	var declined *DeclinedError
	return errors.As(err, &declined)
}
