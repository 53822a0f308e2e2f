// Package pricing implements the tax-inclusive price model: sticker prices
// already contain the tax component, and the pre-tax base is derived by
// dividing by the tax factor. All totals shown or persisted are computed
// here so the arithmetic has one home.
package pricing

import "ichiboo/backend/internal/domain"

type Totals struct {
	Subtotal float64 // tax-exclusive base
	Tax      float64
	Total    float64 // tax-inclusive grand total
	Cost     float64
	Profit   float64
}

func TaxFactor(taxRate float64) float64 {
	return 1 + taxRate/100
}

// BaseOf extracts the pre-tax base from a tax-inclusive amount.
func BaseOf(inclusive float64, taxRate float64) float64 {
	return inclusive / TaxFactor(taxRate)
}

func CartTotals(lines []domain.CartLine, taxRate float64) Totals {
	var inclusive, base, cost float64
	for _, line := range lines {
		lineTotal := float64(line.Qty) * line.Price
		inclusive += lineTotal
		base += BaseOf(lineTotal, taxRate)
		cost += float64(line.Qty) * line.CostPrice
	}

	return Totals{
		Subtotal: base,
		Tax:      inclusive - base,
		Total:    inclusive,
		Cost:     cost,
		Profit:   base - cost,
	}
}
