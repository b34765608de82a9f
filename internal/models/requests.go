package models

// OrderItemInput is one cart position as submitted by the checkout UI.
// unitPrice is what the client believes the price is; the engine charges
// the live catalog price and relies on reconciliation to reject drift.
type OrderItemInput struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
	UnitPrice int64  `json:"unitPrice" binding:"gte=0"`
}

// CreateOrderRequest is the order creation payload. All monetary fields
// are integer euro cents.
type CreateOrderRequest struct {
	CustomerID      string           `json:"customerId"`
	ShippingAddress Address          `json:"shippingAddress" binding:"required"`
	BillingAddress  Address          `json:"billingAddress" binding:"required"`
	Items           []OrderItemInput `json:"items" binding:"required,min=1,dive"`
	Subtotal        int64            `json:"subtotal"`
	VatAmount       int64            `json:"vatAmount"`
	ShippingCost    int64            `json:"shippingCost"`
	TotalAmount     int64            `json:"totalAmount"`
	PaymentMethod   string           `json:"paymentMethod" binding:"required"`
	ShippingOption  string           `json:"shippingOption"`
	CustomerType    string           `json:"customerType"`
	VatNumber       string           `json:"vatNumber"`
	IdempotencyKey  string           `json:"idempotencyKey"`
}

// ClientTotals extracts the client-submitted breakdown for reconciliation.
func (r *CreateOrderRequest) ClientTotals() Totals {
	return Totals{
		SubtotalCents: r.Subtotal,
		VatCents:      r.VatAmount,
		ShippingCents: r.ShippingCost,
		TotalCents:    r.TotalAmount,
	}
}

// CartLines converts the submitted items into cart lines.
func (r *CreateOrderRequest) CartLines() []CartLine {
	lines := make([]CartLine, len(r.Items))
	for i, item := range r.Items {
		lines[i] = CartLine{
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPrice,
		}
	}
	return lines
}

// UpdateOrderStatusRequest moves an order along the state machine.
type UpdateOrderStatusRequest struct {
	Status OrderStatus `json:"status" binding:"required"`
	Notes  string      `json:"notes"`
}

// VatPreviewRequest is the advisory VAT calculation payload used by the
// checkout UI before final submission. The authoritative calculation runs
// again inside order creation.
type VatPreviewRequest struct {
	Amount       int64  `json:"amount" binding:"gte=0"`
	ShippingCost int64  `json:"shippingCost" binding:"gte=0"`
	CountryCode  string `json:"countryCode" binding:"required"`
	CustomerType string `json:"customerType"`
	VatNumber    string `json:"vatNumber"`
}

// PaymentInfo is returned alongside a created order so the customer can be
// redirected to the payment provider.
type PaymentInfo struct {
	PaymentID  string `json:"payment_id"`
	PaymentURL string `json:"payment_url"`
}

// Buyer types accepted by the VAT calculator.
const (
	BuyerTypeConsumer = "consumer"
	BuyerTypeBusiness = "business"
)
