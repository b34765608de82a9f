package service

import (
	"github.com/cavelier-wines/cavelier-orders-service/internal/models"
	"github.com/cavelier-wines/cavelier-orders-service/internal/vat"
)

// ReconcileToleranceCents is the maximum absolute difference, per field,
// between the client-submitted breakdown and the server-computed one. It
// absorbs rounding noise only, never business drift.
const ReconcileToleranceCents = 10

// ReconcileTotals compares the client-submitted price breakdown against the
// server-computed VAT result, field by field. It is a pure comparator: it
// never recomputes any figure, so the calculator's arithmetic exists in
// exactly one place. Fails closed with a TotalMismatchError when any field
// deviates by more than the tolerance.
func ReconcileTotals(computed vat.Result, submitted models.Totals) error {
	calculated := models.Totals{
		SubtotalCents: computed.BaseAmountCents,
		VatCents:      computed.VatAmountCents,
		ShippingCents: computed.ShippingAmountCents,
		TotalCents:    computed.TotalAmountCents,
	}

	diffs := map[string]int64{
		"subtotal":      absDiff(calculated.SubtotalCents, submitted.SubtotalCents),
		"vat_amount":    absDiff(calculated.VatCents, submitted.VatCents),
		"shipping_cost": absDiff(calculated.ShippingCents, submitted.ShippingCents),
		"total":         absDiff(calculated.TotalCents, submitted.TotalCents),
	}

	for _, diff := range diffs {
		if diff > ReconcileToleranceCents {
			return &models.TotalMismatchError{
				Calculated: calculated,
				Provided:   submitted,
				Diffs:      diffs,
			}
		}
	}
	return nil
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}
