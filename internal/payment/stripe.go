package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/safar/shopcraft/internal/pricing"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

const (
	metadataAttemptID = "attempt_id"
	metadataUserID    = "user_id"
)

type StripeGateway struct {
	api *client.API
}

func NewStripeGateway(secretKey string) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{api: api}
}

func (g *StripeGateway) Charge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(pricing.MinorUnits(req.Amount)),
		Currency:      stripe.String(strings.ToLower(req.Currency)),
		PaymentMethod: stripe.String(req.PaymentMethod),
		Description:   stripe.String(req.Description),
		Confirm:       stripe.Bool(true),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String(string(stripe.PaymentIntentAutomaticPaymentMethodsAllowRedirectsNever)),
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.AttemptID)
	params.AddMetadata(metadataAttemptID, req.AttemptID)
	params.AddMetadata(metadataUserID, strconv.FormatInt(req.UserID, 10))

	intent, err := g.api.PaymentIntents.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			declined := &DeclinedError{Reason: stripeErr.Msg}
			if stripeErr.PaymentIntent != nil {
				declined.Reference = stripeErr.PaymentIntent.ID
			}
			return nil, declined
		}
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	charge := chargeFromIntent(intent)
	if !charge.Captured() {
		// Anything short of succeeded needs the customer, and checkout is
		// synchronous, so the intent is abandoned.
		cancelParams := &stripe.PaymentIntentCancelParams{
			CancellationReason: stripe.String(string(stripe.PaymentIntentCancellationReasonAbandoned)),
		}
		cancelParams.Context = ctx
		if _, err := g.api.PaymentIntents.Cancel(intent.ID, cancelParams); err != nil {
			return nil, fmt.Errorf("cancel payment intent %s: %w", intent.ID, err)
		}
		return nil, &DeclinedError{Reference: intent.ID, Reason: fmt.Sprintf("payment intent %s", intent.Status)}
	}

	return charge, nil
}

func (g *StripeGateway) Lookup(ctx context.Context, reference string) (*Charge, error) {
	if strings.HasPrefix(reference, "pi_") {
		params := &stripe.PaymentIntentParams{}
		params.Context = ctx
		intent, err := g.api.PaymentIntents.Get(reference, params)
		if err != nil {
			var stripeErr *stripe.Error
			if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == http.StatusNotFound {
				return nil, ErrChargeNotFound
			}
			return nil, fmt.Errorf("get payment intent: %w", err)
		}
		return chargeFromIntent(intent), nil
	}

	params := &stripe.PaymentIntentSearchParams{}
	params.Context = ctx
	params.Query = fmt.Sprintf("metadata['%s']:'%s'", metadataAttemptID, reference)
	params.Limit = stripe.Int64(1)
	params.Single = true

	iter := g.api.PaymentIntents.Search(params)
	if iter.Next() {
		return chargeFromIntent(iter.PaymentIntent()), nil
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("search payment intents: %w", err)
	}
	return nil, ErrChargeNotFound
}

func chargeFromIntent(intent *stripe.PaymentIntent) *Charge {
	charge := &Charge{
		Reference: intent.ID,
		AttemptID: intent.Metadata[metadataAttemptID],
		Amount:    pricing.FromMinorUnits(intent.Amount),
		Currency:  string(intent.Currency),
	}
	if userID, err := strconv.ParseInt(intent.Metadata[metadataUserID], 10, 64); err == nil {
		charge.UserID = userID
	}

	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded:
		charge.Status = StatusSucceeded
	case stripe.PaymentIntentStatusProcessing:
		charge.Status = StatusProcessing
	case stripe.PaymentIntentStatusRequiresAction:
		charge.Status = StatusRequiresAction
	case stripe.PaymentIntentStatusCanceled:
		charge.Status = StatusCanceled
	default:
		charge.Status = StatusFailed
	}

	if intent.LastPaymentError != nil {
		charge.FailureReason = intent.LastPaymentError.Msg
	}

	return charge
}
