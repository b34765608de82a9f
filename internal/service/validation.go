package service

import (
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/cavelier-wines/cavelier-orders-service/internal/models"
)

var validate = validatorv10.New()

// Payment methods the storefront accepts. The provider handles the actual
// instrument; the engine only records the choice.
var paymentMethods = map[string]bool{
	"card":          true,
	"ideal":         true,
	"bancontact":    true,
	"bank_transfer": true,
}

// ValidateCreateOrderRequest checks the order creation payload beyond what
// gin binding tags already enforce. Returns the first field-level error.
func ValidateCreateOrderRequest(req *models.CreateOrderRequest) error {
	if err := validate.Struct(req); err != nil {
		if fieldErrs, ok := err.(validatorv10.ValidationErrors); ok && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return models.NewValidationError(strings.ToLower(fe.Field()),
				"failed validation rule "+fe.Tag())
		}
		return models.NewValidationError("request", err.Error())
	}

	if req.CustomerID == "" {
		return models.NewValidationError("customerId", "customer ID is required")
	}

	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return models.NewValidationError("items", "quantity must be positive")
		}
		if item.UnitPrice < 0 {
			return models.NewValidationError("items", "unit price cannot be negative")
		}
	}

	if err := validateAddress(&req.ShippingAddress, "shippingAddress"); err != nil {
		return err
	}
	if err := validateAddress(&req.BillingAddress, "billingAddress"); err != nil {
		return err
	}

	if !paymentMethods[req.PaymentMethod] {
		return models.NewValidationError("paymentMethod", "unsupported payment method")
	}

	switch req.CustomerType {
	case "", models.BuyerTypeConsumer, models.BuyerTypeBusiness:
	default:
		return models.NewValidationError("customerType", "must be consumer or business")
	}

	if req.Subtotal < 0 || req.VatAmount < 0 || req.ShippingCost < 0 || req.TotalAmount < 0 {
		return models.NewValidationError("totals", "monetary fields must be non-negative cents")
	}

	return nil
}

func validateAddress(addr *models.Address, field string) error {
	if addr.Line1 == "" {
		return models.NewValidationError(field, "address line 1 is required")
	}
	if addr.City == "" {
		return models.NewValidationError(field, "city is required")
	}
	if addr.PostalCode == "" {
		return models.NewValidationError(field, "postal code is required")
	}
	if len(addr.Country) != 2 {
		return models.NewValidationError(field, "country must be a 2-letter ISO code")
	}
	return nil
}

// ValidateUpdateOrderStatusRequest validates a status update request.
func ValidateUpdateOrderStatusRequest(req *models.UpdateOrderStatusRequest) error {
	if req.Status == "" {
		return models.NewValidationError("status", "status is required")
	}
	if !req.Status.Valid() {
		return models.NewValidationError("status", "invalid order status")
	}
	return nil
}

// ValidateCancellationReason validates an order cancellation reason.
func ValidateCancellationReason(reason string) error {
	if reason == "" {
		return models.NewValidationError("reason", "cancellation reason is required")
	}
	if len(reason) > 500 {
		return models.NewValidationError("reason", "cancellation reason too long (max 500 characters)")
	}
	return nil
}
