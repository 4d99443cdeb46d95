package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chargeRequest(attemptID, method string) ChargeRequest {
	return ChargeRequest{
		AttemptID:     attemptID,
		UserID:        7,
		Amount:        decimal.RequireFromString("2259.00"),
		Currency:      "inr",
		PaymentMethod: method,
	}
}

func TestSimulatedGatewayCharge(t *testing.T) {
	ctx := context.Background()
	gw := NewSimulatedGateway()

	charge, err := gw.Charge(ctx, chargeRequest("attempt-1", "pm_card_visa"))
	require.NoError(t, err)
	assert.True(t, charge.Captured())
	assert.Equal(t, "attempt-1", charge.AttemptID)
	assert.Equal(t, int64(7), charge.UserID)
	assert.True(t, charge.Amount.Equal(decimal.RequireFromString("2259.00")))

	t.Run("same attempt returns same charge", func(t *testing.T) {
		again, err := gw.Charge(ctx, chargeRequest("attempt-1", "pm_card_visa"))
		require.NoError(t, err)
		assert.Equal(t, charge.Reference, again.Reference)
	})

	t.Run("lookup by reference and attempt", func(t *testing.T) {
		byRef, err := gw.Lookup(ctx, charge.Reference)
		require.NoError(t, err)
		assert.Equal(t, StatusSucceeded, byRef.Status)
		assert.Equal(t, int64(7), byRef.UserID)

		byAttempt, err := gw.Lookup(ctx, "attempt-1")
		require.NoError(t, err)
		assert.Equal(t, charge.Reference, byAttempt.Reference)
	})
}

func TestSimulatedGatewayDecline(t *testing.T) {
	ctx := context.Background()
	gw := NewSimulatedGateway()

	_, err := gw.Charge(ctx, chargeRequest("attempt-2", DeclinedPaymentMethod))
	require.Error(t, err)
	assert.True(t, IsDeclined(err))

	var declined *DeclinedError
	require.True(t, errors.As(err, &declined))
	assert.NotEmpty(t, declined.Reference)

	charge, err := gw.Lookup(ctx, "attempt-2")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, charge.Status)
	assert.False(t, charge.Captured())
}

func TestSimulatedGatewayLookupUnknown(t *testing.T) {
	_, err := NewSimulatedGateway().Lookup(context.Background(), "sim_missing")
	assert.ErrorIs(t, err, ErrChargeNotFound)
}

func TestSimulatedGatewayCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSimulatedGateway().Charge(ctx, chargeRequest("attempt-3", "pm_card_visa"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDeclinedErrorMessage(t *testing.T) {
	assert.Equal(t, "payment declined: insufficient funds",
		(&DeclinedError{Reason: "insufficient funds"}).Error())
	assert.Equal(t, "payment pi_123 declined: expired card",
		(&DeclinedError{Reference: "pi_123", Reason: "expired card"}).Error())
}
