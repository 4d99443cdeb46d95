package pricing

import (
	"testing"

	"github.com/safar/shopcraft/internal/config"
	"github.com/safar/shopcraft/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestCalculator() *Calculator {
	return NewCalculator(config.PricingConfig{
		TaxRate:               dec("0.08"),
		FreeShippingThreshold: dec("5000"),
		ShippingFlatFee:       dec("99.00"),
	})
}

func TestPrice_widgetScenario(t *testing.T) {
	calc := newTestCalculator()

	totals, err := calc.Price([]models.OrderItem{
		{ProductID: 1, Name: "Widget", UnitPrice: dec("1000.00"), Quantity: 2},
	})
	require.NoError(t, err)

	assert.Equal(t, "2000.00", totals.Subtotal.StringFixed(2))
	assert.Equal(t, "160.00", totals.Tax.StringFixed(2))
	assert.Equal(t, "99.00", totals.Shipping.StringFixed(2))
	assert.Equal(t, "2259.00", totals.Total.StringFixed(2))
	assert.True(t, totals.Subtotal.Equal(dec("2000")))
	assert.True(t, totals.Total.Equal(dec("2259")))
}

func TestPrice_noFloatDrift(t *testing.T) {
	calc := newTestCalculator()

	totals, err := calc.Price([]models.OrderItem{
		{ProductID: 1, UnitPrice: dec("0.10"), Quantity: 3},
		{ProductID: 2, UnitPrice: dec("0.20"), Quantity: 1},
	})
	require.NoError(t, err)

	assert.True(t, totals.Subtotal.Equal(dec("0.50")), "got %s", totals.Subtotal)
}

func TestPrice_freeShippingOnlyAboveThreshold(t *testing.T) {
	calc := newTestCalculator()

	tests := []struct {
		name         string
		unitPrice    string
		wantShipping string
	}{
		{"below", "4999.99", "99"},
		{"at threshold", "5000.00", "99"},
		{"above", "5000.01", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			totals, err := calc.Price([]models.OrderItem{{ProductID: 1, UnitPrice: dec(tt.unitPrice), Quantity: 1}})
			require.NoError(t, err)
			assert.True(t, totals.Shipping.Equal(dec(tt.wantShipping)), "shipping %s", totals.Shipping)
			assert.True(t, totals.Total.Equal(totals.Subtotal.Add(totals.Tax).Add(totals.Shipping)))
		})
	}
}

func TestPrice_isDeterministic(t *testing.T) {
	calc := newTestCalculator()
	items := []models.OrderItem{
		{ProductID: 1, UnitPrice: dec("199.99"), Quantity: 3},
		{ProductID: 2, UnitPrice: dec("79.99"), Quantity: 7},
		{ProductID: 3, UnitPrice: dec("0.01"), Quantity: 1},
	}

	first, err := calc.Price(items)
	require.NoError(t, err)
	second, err := calc.Price(items)
	require.NoError(t, err)

	assert.True(t, first.Equal(second))
	assert.Equal(t, first.Total.String(), second.Total.String())
}

func TestPrice_taxRoundsToMinorUnit(t *testing.T) {
	calc := newTestCalculator()

	totals, err := calc.Price([]models.OrderItem{{ProductID: 1, UnitPrice: dec("199.99"), Quantity: 1}})
	require.NoError(t, err)

	// 199.99 * 0.08 = 15.9992
	assert.True(t, totals.Tax.Equal(dec("16.00")), "tax %s", totals.Tax)
	assert.True(t, totals.Total.Equal(dec("314.99")), "total %s", totals.Total)
}

func TestPrice_rejectsInvalidInput(t *testing.T) {
	calc := newTestCalculator()

	_, err := calc.Price(nil)
	assert.ErrorIs(t, err, ErrNoItems)

	_, err = calc.Price([]models.OrderItem{{ProductID: 1, UnitPrice: dec("-1"), Quantity: 1}})
	assert.ErrorIs(t, err, ErrNegativePrice)

	_, err = calc.Price([]models.OrderItem{{ProductID: 1, UnitPrice: dec("1"), Quantity: 0}})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestPreview_emptyCartIsZero(t *testing.T) {
	totals, err := newTestCalculator().Preview(nil)
	require.NoError(t, err)
	assert.True(t, totals.Total.IsZero())
	assert.True(t, totals.Shipping.IsZero())
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(225900), MinorUnits(dec("2259.00")))
	assert.Equal(t, int64(31499), MinorUnits(dec("314.99")))
	assert.Equal(t, int64(1), MinorUnits(dec("0.005")))
}
