package money_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/zmanup/invoicing-api/internal/domain"
	"github.com/zmanup/invoicing-api/internal/money"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func lines(pairs ...interface{}) []decimal.Decimal {
	var totals []decimal.Decimal
	for i := 0; i < len(pairs); i += 2 {
		totals = append(totals, money.LineTotal(pairs[i].(int), d(pairs[i+1].(string))))
	}
	return totals
}

func TestComputeTotals_Morsheh(t *testing.T) {
	totals := money.ComputeForBusiness(lines(2, "100", 1, "50"), domain.BusinessTypeMorsheh)

	assert.True(t, totals.Subtotal.Equal(d("250")), "subtotal %s", totals.Subtotal)
	assert.True(t, totals.VATAmount.Equal(d("45")), "vat %s", totals.VATAmount)
	assert.True(t, totals.Total.Equal(d("295")), "total %s", totals.Total)
	assert.True(t, totals.VATRate.Equal(d("0.18")))
}

func TestComputeTotals_PaturHasNoVAT(t *testing.T) {
	totals := money.ComputeForBusiness(lines(3, "99.90"), domain.BusinessTypePatur)

	assert.True(t, totals.Subtotal.Equal(d("299.70")))
	assert.True(t, totals.VATAmount.IsZero())
	assert.True(t, totals.Total.Equal(totals.Subtotal))
}

func TestComputeTotals_CreditKeepsSign(t *testing.T) {
	totals := money.ComputeTotals(lines(-2, "100", -1, "50"), d("0.18"))

	assert.True(t, totals.Subtotal.Equal(d("-250")))
	assert.True(t, totals.VATAmount.Equal(d("-45")))
	assert.True(t, totals.Total.Equal(d("-295")))
}

func TestComputeTotals_Idempotent(t *testing.T) {
	in := lines(3, "33.335", 7, "0.015", 1, "1999.99")
	first := money.ComputeTotals(in, d("0.18"))
	second := money.ComputeTotals(in, d("0.18"))

	assert.Equal(t, first.Subtotal.String(), second.Subtotal.String())
	assert.Equal(t, first.VATAmount.String(), second.VATAmount.String())
	assert.Equal(t, first.Total.String(), second.Total.String())
}

func TestComputeTotals_TotalIdentity(t *testing.T) {
	cases := [][]decimal.Decimal{
		lines(1, "0.01"),
		lines(3, "33.33", 2, "0.07"),
		lines(17, "12.345"),
		lines(1, "19999.99", 4, "0.5"),
	}
	for _, in := range cases {
		totals := money.ComputeTotals(in, money.StandardVATRate)
		assert.True(t, totals.Total.Equal(totals.Subtotal.Add(totals.VATAmount)))
		assert.Equal(t, int32(-2), totals.Total.Exponent())
	}
}

func TestComputeTotals_Empty(t *testing.T) {
	totals := money.ComputeTotals(nil, d("0.18"))
	assert.True(t, totals.Subtotal.IsZero())
	assert.True(t, totals.Total.IsZero())
}

func TestLineTotal_RoundsPerLine(t *testing.T) {
	// 3 x 0.335 = 1.005 -> 1.01
	assert.Equal(t, "1.01", money.LineTotal(3, d("0.335")).StringFixed(2))
	// half away from zero for credits
	assert.Equal(t, "-1.01", money.LineTotal(-3, d("0.335")).StringFixed(2))

	// rounding happens per line, not on the sum: 2 x 1.005 rounds each line to 1.01
	totals := money.ComputeTotals(lines(1, "1.005", 1, "1.005"), decimal.Zero)
	assert.Equal(t, "2.02", totals.Subtotal.StringFixed(2))
}

func TestRound2(t *testing.T) {
	assert.Equal(t, "2.35", money.Round2(d("2.345")).StringFixed(2))
	assert.Equal(t, "-2.35", money.Round2(d("-2.345")).StringFixed(2))
	assert.Equal(t, "2.34", money.Round2(d("2.344")).StringFixed(2))
}

func TestVATRateFor(t *testing.T) {
	assert.True(t, money.VATRateFor(domain.BusinessTypePatur).IsZero())
	assert.True(t, money.VATRateFor(domain.BusinessTypeMorsheh).Equal(d("0.18")))
	assert.True(t, money.VATRateFor(domain.BusinessTypeBaam).Equal(d("0.18")))
}

func TestPartialCreditTotals(t *testing.T) {
	totals := money.PartialCreditTotals(d("100"))

	assert.True(t, totals.Subtotal.Equal(d("-100")))
	assert.True(t, totals.VATAmount.IsZero())
	assert.True(t, totals.VATRate.IsZero())
	assert.True(t, totals.Total.Equal(d("-100")))
}

func TestAgorotAndFormat(t *testing.T) {
	assert.Equal(t, int64(29500), money.Agorot(d("295")))
	assert.Equal(t, int64(-1001), money.Agorot(d("-10.005")))
	assert.Equal(t, "1180.00", money.Format(d("1180")))
	assert.Equal(t, "0.10", money.Format(d("0.1")))
}
