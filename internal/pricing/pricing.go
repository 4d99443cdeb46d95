// Package pricing turns a cart snapshot into subtotal, tax, shipping and
// total using exact decimal arithmetic. The same Calculator backs the cart
// preview and the order record, so the two always agree.
package pricing

import (
	"errors"
	"fmt"

	"github.com/safar/shopcraft/internal/config"
	"github.com/safar/shopcraft/internal/models"
	"github.com/shopspring/decimal"
)

// Amounts are rounded to this many decimal places, the minor unit of the
// supported currencies.
const currencyScale = 2

var (
	ErrNoItems         = errors.New("cannot price an empty cart")
	ErrNegativePrice   = errors.New("unit price must not be negative")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}

func (t Totals) Equal(other Totals) bool {
	return t.Subtotal.Equal(other.Subtotal) &&
		t.Tax.Equal(other.Tax) &&
		t.Shipping.Equal(other.Shipping) &&
		t.Total.Equal(other.Total)
}

type Calculator struct {
	taxRate               decimal.Decimal
	freeShippingThreshold decimal.Decimal
	flatShippingFee       decimal.Decimal
}

func NewCalculator(cfg config.PricingConfig) *Calculator {
	return &Calculator{
		taxRate:               cfg.TaxRate,
		freeShippingThreshold: cfg.FreeShippingThreshold,
		flatShippingFee:       cfg.ShippingFlatFee,
	}
}

// Price computes totals for items. Shipping is free only when the subtotal
// strictly exceeds the threshold.
func (c *Calculator) Price(items []models.OrderItem) (Totals, error) {
	if len(items) == 0 {
		return Totals{}, ErrNoItems
	}

	subtotal := decimal.Zero
	for _, item := range items {
		if item.UnitPrice.IsNegative() {
			return Totals{}, fmt.Errorf("product %d: %w", item.ProductID, ErrNegativePrice)
		}
		if item.Quantity < 1 {
			return Totals{}, fmt.Errorf("product %d: %w", item.ProductID, ErrInvalidQuantity)
		}
		subtotal = subtotal.Add(item.LineTotal())
	}

	return c.totals(subtotal), nil
}

// Preview prices whatever is in the cart and returns zero totals for an
// empty cart instead of an error.
func (c *Calculator) Preview(items []models.OrderItem) (Totals, error) {
	if len(items) == 0 {
		zero := decimal.Zero.Round(currencyScale)
		return Totals{Subtotal: zero, Tax: zero, Shipping: zero, Total: zero}, nil
	}
	return c.Price(items)
}

func (c *Calculator) totals(subtotal decimal.Decimal) Totals {
	subtotal = subtotal.Round(currencyScale)

	shipping := c.flatShippingFee
	if subtotal.GreaterThan(c.freeShippingThreshold) {
		shipping = decimal.Zero
	}
	shipping = shipping.Round(currencyScale)

	tax := subtotal.Mul(c.taxRate).Round(currencyScale)

	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Total:    subtotal.Add(tax).Add(shipping),
	}
}

// MinorUnits converts an amount to the integer minor-unit count payment
// gateways expect, e.g. 2259.00 -> 225900.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(currencyScale).Round(0).IntPart()
}

func FromMinorUnits(amount int64) decimal.Decimal {
	return decimal.New(amount, -currencyScale)
}
