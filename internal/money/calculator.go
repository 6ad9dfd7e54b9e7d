// Package money owns every monetary computation: rounding, line totals and VAT.
// No other package multiplies amounts or decides a VAT rate.
package money

import (
	"github.com/shopspring/decimal"
	"github.com/zmanup/invoicing-api/internal/domain"
)

var (
	// StandardVATRate is the Israeli VAT rate applied to registered dealers
	StandardVATRate = decimal.RequireFromString("0.18")

	hundred = decimal.NewFromInt(100)
)

// Totals is the derived money block of a document
type Totals struct {
	Subtotal  decimal.Decimal
	VATRate   decimal.Decimal
	VATAmount decimal.Decimal
	Total     decimal.Decimal
}

// Round2 rounds to agorot, half away from zero (2.345 -> 2.35, -2.345 -> -2.35).
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// VATRateFor returns the VAT rate a business charges. Exempt dealers charge none.
func VATRateFor(b domain.BusinessType) decimal.Decimal {
	if b == domain.BusinessTypePatur {
		return decimal.Zero
	}
	return StandardVATRate
}

// LineTotal is quantity times unit price, rounded to agorot
func LineTotal(quantity int, unitPrice decimal.Decimal) decimal.Decimal {
	return Round2(unitPrice.Mul(decimal.NewFromInt(int64(quantity))))
}

// ComputeTotals derives the money block from already rounded line totals.
// VAT is computed once on the subtotal, never per line.
func ComputeTotals(lineTotals []decimal.Decimal, vatRate decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, lt := range lineTotals {
		subtotal = subtotal.Add(lt)
	}
	subtotal = Round2(subtotal)
	vat := Round2(subtotal.Mul(vatRate))
	return Totals{
		Subtotal:  subtotal,
		VATRate:   vatRate,
		VATAmount: vat,
		Total:     subtotal.Add(vat),
	}
}

// ComputeForBusiness is ComputeTotals with the rate of the business type
func ComputeForBusiness(lineTotals []decimal.Decimal, b domain.BusinessType) Totals {
	return ComputeTotals(lineTotals, VATRateFor(b))
}

// Agorot converts an amount to integer agorot, rounding first
func Agorot(d decimal.Decimal) int64 {
	return Round2(d).Mul(hundred).IntPart()
}

// Format renders an amount with exactly two decimals and no grouping, e.g. "1180.00"
func Format(d decimal.Decimal) string {
	return Round2(d).StringFixed(2)
}

// PartialCreditTotals is the money block of a partial credit: the amount negated, without VAT
func PartialCreditTotals(amount decimal.Decimal) Totals {
	return ComputeTotals([]decimal.Decimal{LineTotal(-1, amount)}, decimal.Zero)
}
