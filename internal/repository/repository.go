package repository

import (
	"context"
	"errors"

	"github.com/cavelier-wines/cavelier-orders-service/internal/models"
)

// ErrDuplicateIdempotencyKey is returned by WithCheckoutTx when another
// request already persisted an order under the same idempotency key.
// Callers should fetch and return the existing order instead of failing.
var ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

// CheckoutFunc runs inside the checkout transaction. It receives the
// product rows locked for the duration of the transaction, keyed by
// product ID, and returns the order to persist. Returning an error rolls
// the whole transaction back; no partial order or stock decrement remains.
type CheckoutFunc func(products map[string]models.Product) (*models.Order, error)

// OrderStore is the persistence port for orders.
type OrderStore interface {
	// WithCheckoutTx locks the given product rows, invokes fn, then writes
	// the returned order and decrements stock atomically. Concurrent
	// checkouts touching the same product serialize on its row.
	WithCheckoutTx(ctx context.Context, productIDs []string, fn CheckoutFunc) (*models.Order, error)

	GetByID(ctx context.Context, id string) (*models.Order, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	GetByCustomerID(ctx context.Context, customerID string, limit, offset int) ([]*models.Order, int, error)
	UpdateStatus(ctx context.Context, id string, status models.OrderStatus, notes string) (*models.Order, error)
	SetPayment(ctx context.Context, orderID, paymentID string) error
}

// OrderCache defines caching operations for orders. The customer list is
// cached together with the customer's true order count so a cache hit
// reports the same total as the store.
type OrderCache interface {
	Get(ctx context.Context, id string) (*models.Order, error)
	Set(ctx context.Context, order *models.Order) error
	Delete(ctx context.Context, id string) error
	GetByCustomerID(ctx context.Context, customerID string) ([]*models.Order, int, error)
	SetByCustomerID(ctx context.Context, customerID string, orders []*models.Order, total int) error
	InvalidateCustomer(ctx context.Context, customerID string) error
}
