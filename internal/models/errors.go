package models

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an order or product does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError signals malformed or missing input. Recoverable by the
// caller correcting the request.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// NewValidationError creates a field-level validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// StockIssue describes one cart line that failed the stock check.
type StockIssue struct {
	ProductID string `json:"product_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
	IsActive  bool   `json:"is_active"`
}

// StockConflictError is returned when requested quantities cannot be
// satisfied by live inventory. Recoverable by adjusting quantities.
type StockConflictError struct {
	Issues []StockIssue `json:"issues"`
}

func (e *StockConflictError) Error() string {
	return fmt.Sprintf("insufficient stock for %d product(s)", len(e.Issues))
}

// Totals is a monetary breakdown used for reconciliation reporting.
// All values are euro cents.
type Totals struct {
	SubtotalCents int64 `json:"subtotal"`
	VatCents      int64 `json:"vat_amount"`
	ShippingCents int64 `json:"shipping_cost"`
	TotalCents    int64 `json:"total"`
}

// TotalMismatchError is returned when the client-submitted breakdown
// deviates from the server-computed one beyond the fixed tolerance.
// Logged distinctly from plain validation errors; it is a potential
// tampering signal.
type TotalMismatchError struct {
	Calculated Totals           `json:"calculated"`
	Provided   Totals           `json:"provided"`
	Diffs      map[string]int64 `json:"diffs"`
}

func (e *TotalMismatchError) Error() string {
	return fmt.Sprintf("order total mismatch: calculated total %d, provided %d",
		e.Calculated.TotalCents, e.Provided.TotalCents)
}

// PaymentInitiationError is returned when the payment provider call fails
// or times out after the order was persisted. The order survives in
// payment_failed and can be retried.
type PaymentInitiationError struct {
	OrderID string
	Err     error
}

func (e *PaymentInitiationError) Error() string {
	return fmt.Sprintf("payment initiation failed for order %s: %v", e.OrderID, e.Err)
}

func (e *PaymentInitiationError) Unwrap() error { return e.Err }
