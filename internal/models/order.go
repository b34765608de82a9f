package models

import "time"

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusAwaitingPayment OrderStatus = "awaiting_payment"
	OrderStatusConfirmed       OrderStatus = "confirmed"
	OrderStatusShipped         OrderStatus = "shipped"
	OrderStatusDelivered       OrderStatus = "delivered"
	OrderStatusPaymentFailed   OrderStatus = "payment_failed"
	OrderStatusCancelled       OrderStatus = "cancelled"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusAwaitingPayment, OrderStatusConfirmed,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusPaymentFailed,
		OrderStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed from s.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// statusTransitions encodes the one-directional order state machine.
// Any pre-shipped state may be cancelled; payment_failed is recoverable
// through a payment retry, which moves the order back to awaiting_payment.
var statusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:         {OrderStatusAwaitingPayment, OrderStatusPaymentFailed, OrderStatusCancelled},
	OrderStatusAwaitingPayment: {OrderStatusConfirmed, OrderStatusPaymentFailed, OrderStatusCancelled},
	OrderStatusPaymentFailed:   {OrderStatusAwaitingPayment, OrderStatusCancelled},
	OrderStatusConfirmed:       {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:         {OrderStatusDelivered},
	OrderStatusDelivered:       {},
	OrderStatusCancelled:       {},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Address is a postal address captured at order time.
type Address struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// ProductSnapshot is an immutable copy of catalog fields embedded in an
// order line at creation time. It never changes, even when the live
// catalog row does.
type ProductSnapshot struct {
	Name           string   `json:"name"`
	SKU            string   `json:"sku"`
	Vintage        int      `json:"vintage"`
	Varietal       string   `json:"varietal"`
	Region         string   `json:"region"`
	AlcoholContent float64  `json:"alcohol_content"`
	VolumeML       int      `json:"volume_ml"`
	Certifications []string `json:"certifications,omitempty"`
	ImageURL       string   `json:"image_url,omitempty"`
	UnitPriceCents int64    `json:"unit_price_cents"`
}

// OrderLine is one purchased position with its frozen product snapshot.
type OrderLine struct {
	ProductID      string          `json:"product_id"`
	Quantity       int             `json:"quantity"`
	UnitPriceCents int64           `json:"unit_price_cents"`
	LineTotalCents int64           `json:"line_total_cents"`
	Snapshot       ProductSnapshot `json:"snapshot"`
}

// Order is the aggregate root written by the checkout pipeline. All
// monetary fields are integer euro cents. total_cents equals
// subtotal + vat + shipping by construction; the builder enforces this once
// and nothing recomputes it afterwards.
type Order struct {
	ID              string      `json:"id"`
	CustomerID      string      `json:"customer_id"`
	IdempotencyKey  string      `json:"-"`
	ShippingAddress Address     `json:"shipping_address"`
	BillingAddress  Address     `json:"billing_address"`
	Lines           []OrderLine `json:"lines"`
	SubtotalCents   int64       `json:"subtotal_cents"`
	VatRate         string      `json:"vat_rate"`
	VatAmountCents  int64       `json:"vat_amount_cents"`
	ShippingCents   int64       `json:"shipping_cost_cents"`
	TotalCents      int64       `json:"total_cents"`
	IsReverseCharge bool        `json:"is_reverse_charge"`
	PaymentMethod   string      `json:"payment_method"`
	PaymentID       string      `json:"payment_id,omitempty"`
	Status          OrderStatus `json:"status"`
	Notes           string      `json:"notes,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// TotalsConsistent reports whether the order total equals the sum of its
// parts exactly.
func (o *Order) TotalsConsistent() bool {
	return o.TotalCents == o.SubtotalCents+o.VatAmountCents+o.ShippingCents
}

// CanCancel reports whether the order is still in a cancellable state.
func (o *Order) CanCancel() bool {
	return CanTransition(o.Status, OrderStatusCancelled)
}
