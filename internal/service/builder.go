package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cavelier-wines/cavelier-orders-service/internal/models"
	"github.com/cavelier-wines/cavelier-orders-service/internal/vat"
)

// BuildOrder assembles the immutable order aggregate from cart lines, the
// locked product rows and the computed VAT result. Every line must resolve
// to a live product; partial orders are not permitted. Each line charges
// the live catalog price and embeds a frozen product snapshot, so later
// catalog edits cannot retroactively alter the invoice.
//
// The computed line subtotal is cross-checked against the VAT result's base
// amount: a disagreement means the caller and the calculator forked and the
// build fails rather than persisting inconsistent money.
func BuildOrder(
	customerID string,
	lines []models.CartLine,
	products map[string]models.Product,
	shippingAddr, billingAddr models.Address,
	vatResult vat.Result,
	paymentMethod, idempotencyKey string,
) (*models.Order, error) {
	orderLines := make([]models.OrderLine, 0, len(lines))
	var subtotal int64

	for _, line := range lines {
		product, ok := products[line.ProductID]
		if !ok {
			return nil, models.NewValidationError("items",
				fmt.Sprintf("product %s not found", line.ProductID))
		}

		lineTotal := int64(line.Quantity) * product.PriceCents
		orderLines = append(orderLines, models.OrderLine{
			ProductID:      product.ID,
			Quantity:       line.Quantity,
			UnitPriceCents: product.PriceCents,
			LineTotalCents: lineTotal,
			Snapshot:       product.Snapshot(),
		})
		subtotal += lineTotal
	}

	if subtotal != vatResult.BaseAmountCents {
		return nil, fmt.Errorf("order subtotal %d diverges from VAT base amount %d",
			subtotal, vatResult.BaseAmountCents)
	}

	now := time.Now().UTC()
	order := &models.Order{
		ID:              uuid.NewString(),
		CustomerID:      customerID,
		IdempotencyKey:  idempotencyKey,
		ShippingAddress: shippingAddr,
		BillingAddress:  billingAddr,
		Lines:           orderLines,
		SubtotalCents:   subtotal,
		VatRate:         vatResult.VatRate.String(),
		VatAmountCents:  vatResult.VatAmountCents,
		ShippingCents:   vatResult.ShippingAmountCents,
		TotalCents:      vatResult.TotalAmountCents,
		IsReverseCharge: vatResult.IsReverseCharge,
		PaymentMethod:   paymentMethod,
		Status:          models.OrderStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if !order.TotalsConsistent() {
		return nil, fmt.Errorf("order %s total %d does not equal subtotal+vat+shipping",
			order.ID, order.TotalCents)
	}

	return order, nil
}
