package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from    OrderStatus
		to      OrderStatus
		allowed bool
	}{
		{OrderStatusPending, OrderStatusAwaitingPayment, true},
		{OrderStatusPending, OrderStatusPaymentFailed, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusConfirmed, false},
		{OrderStatusPending, OrderStatusDelivered, false},

		{OrderStatusAwaitingPayment, OrderStatusConfirmed, true},
		{OrderStatusAwaitingPayment, OrderStatusPaymentFailed, true},
		{OrderStatusAwaitingPayment, OrderStatusShipped, false},

		// payment_failed is the only state an order can re-enter payment from.
		{OrderStatusPaymentFailed, OrderStatusAwaitingPayment, true},
		{OrderStatusPaymentFailed, OrderStatusCancelled, true},
		{OrderStatusPaymentFailed, OrderStatusConfirmed, false},

		{OrderStatusConfirmed, OrderStatusShipped, true},
		{OrderStatusConfirmed, OrderStatusCancelled, true},
		{OrderStatusConfirmed, OrderStatusPending, false},

		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusShipped, OrderStatusCancelled, false},

		{OrderStatusDelivered, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusPending, false},
		{OrderStatusCancelled, OrderStatusAwaitingPayment, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanTransition(tt.from, tt.to))
		})
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	assert.True(t, OrderStatusDelivered.Terminal())
	assert.True(t, OrderStatusCancelled.Terminal())
	assert.False(t, OrderStatusPending.Terminal())
	assert.False(t, OrderStatusPaymentFailed.Terminal())
}

func TestOrderStatusValid(t *testing.T) {
	assert.True(t, OrderStatusAwaitingPayment.Valid())
	assert.False(t, OrderStatus("refunded").Valid())
	assert.False(t, OrderStatus("").Valid())
}

func TestTotalsConsistent(t *testing.T) {
	order := &Order{
		SubtotalCents:  5000,
		VatAmountCents: 1179,
		ShippingCents:  895,
		TotalCents:     7074,
	}
	assert.True(t, order.TotalsConsistent())

	order.TotalCents = 7075
	assert.False(t, order.TotalsConsistent())
}

func TestCanCancel(t *testing.T) {
	for status, cancellable := range map[OrderStatus]bool{
		OrderStatusPending:         true,
		OrderStatusAwaitingPayment: true,
		OrderStatusPaymentFailed:   true,
		OrderStatusConfirmed:       true,
		OrderStatusShipped:         false,
		OrderStatusDelivered:       false,
		OrderStatusCancelled:       false,
	} {
		order := &Order{Status: status}
		assert.Equal(t, cancellable, order.CanCancel(), "status %s", status)
	}
}
