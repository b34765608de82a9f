package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/cavelier-wines/cavelier-orders-service/internal/config"
	"github.com/cavelier-wines/cavelier-orders-service/internal/metrics"
	"github.com/cavelier-wines/cavelier-orders-service/internal/models"
	"github.com/cavelier-wines/cavelier-orders-service/internal/repository"
	"github.com/cavelier-wines/cavelier-orders-service/internal/vat"
)

// PaymentInitiator creates a payment intent for a persisted order.
type PaymentInitiator interface {
	InitiatePayment(ctx context.Context, orderID string, amountCents int64, method string) (*models.PaymentInfo, error)
}

// CartClearer empties a customer's cart after checkout.
type CartClearer interface {
	ClearCart(ctx context.Context, customerID string) error
}

// ConfirmationSender requests the order confirmation notification.
type ConfirmationSender interface {
	SendOrderConfirmation(ctx context.Context, order *models.Order) error
}

// OrderEventPublisher publishes order lifecycle events.
type OrderEventPublisher interface {
	PublishOrderCreated(ctx context.Context, order *models.Order) error
	PublishOrderStatusChanged(ctx context.Context, order *models.Order, previousStatus models.OrderStatus) error
}

// CreateOrderResult is the outcome of a checkout submission. Payment is
// nil when initiation failed or when the result is an idempotent replay of
// an earlier submission.
type CreateOrderResult struct {
	Order    *models.Order
	Payment  *models.PaymentInfo
	Replayed bool
}

// CheckoutService runs the order finalization pipeline: stock validation,
// independent VAT recomputation, reconciliation against the client's
// figures, snapshot build, atomic persistence, payment initiation. All
// collaborators are injected so tests can substitute fakes and so the
// stock-decrement-plus-order-write transaction flows through one handle.
type CheckoutService struct {
	store      repository.OrderStore
	cache      repository.OrderCache
	payment    PaymentInitiator
	cart       CartClearer
	notifier   ConfirmationSender
	publisher  OrderEventPublisher
	calculator *vat.Calculator
	shipping   map[string]int64
	features   config.FeatureFlags
	logger     *zap.Logger
}

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(
	store repository.OrderStore,
	cache repository.OrderCache,
	payment PaymentInitiator,
	cart CartClearer,
	notifier ConfirmationSender,
	publisher OrderEventPublisher,
	calculator *vat.Calculator,
	cfg *config.Config,
	logger *zap.Logger,
) *CheckoutService {
	return &CheckoutService{
		store:      store,
		cache:      cache,
		payment:    payment,
		cart:       cart,
		notifier:   notifier,
		publisher:  publisher,
		calculator: calculator,
		shipping: map[string]int64{
			"standard": cfg.Checkout.ShippingStandardCents,
			"express":  cfg.Checkout.ShippingExpressCents,
			"pickup":   0,
		},
		features: cfg.Features,
		logger:   logger,
	}
}

// CreateOrder runs one checkout submission end to end.
//
// A failed payment initiation does not roll anything back: the order and
// the stock decrement already committed, the order moves to payment_failed
// and is returned together with a PaymentInitiationError so the customer
// can retry. Cart clearing is best effort and never blocks the order.
func (s *CheckoutService) CreateOrder(ctx context.Context, req *models.CreateOrderRequest) (*CreateOrderResult, error) {
	start := time.Now()
	result, err := s.createOrder(ctx, req)
	metrics.CheckoutDuration.Observe(time.Since(start).Seconds())
	metrics.CheckoutsTotal.WithLabelValues(checkoutResultLabel(result, err)).Inc()
	return result, err
}

func (s *CheckoutService) createOrder(ctx context.Context, req *models.CreateOrderRequest) (*CreateOrderResult, error) {
	if err := ValidateCreateOrderRequest(req); err != nil {
		return nil, err
	}

	buyerType := req.CustomerType
	if buyerType == "" {
		buyerType = models.BuyerTypeConsumer
	}

	shippingCents, err := s.resolveShipping(req.ShippingOption)
	if err != nil {
		return nil, err
	}

	if req.IdempotencyKey != "" {
		existing, err := s.store.GetByIdempotencyKey(ctx, req.IdempotencyKey)
		if err == nil {
			s.logger.Info("idempotent replay, returning existing order",
				zap.String("order_id", existing.ID),
				zap.String("idempotency_key", req.IdempotencyKey))
			return &CreateOrderResult{Order: existing, Replayed: true}, nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
	}

	lines := req.CartLines()
	productIDs := make([]string, 0, len(lines))
	seen := make(map[string]bool, len(lines))
	for _, line := range lines {
		if !seen[line.ProductID] {
			seen[line.ProductID] = true
			productIDs = append(productIDs, line.ProductID)
		}
	}

	// Everything price- and stock-related happens against the product rows
	// locked inside this transaction.
	order, err := s.store.WithCheckoutTx(ctx, productIDs, func(products map[string]models.Product) (*models.Order, error) {
		for _, line := range lines {
			if _, ok := products[line.ProductID]; !ok {
				return nil, models.NewValidationError("items", "product "+line.ProductID+" not found")
			}
		}

		if err := ValidateStock(lines, products); err != nil {
			return nil, err
		}

		var subtotal int64
		for _, line := range lines {
			subtotal += int64(line.Quantity) * products[line.ProductID].PriceCents
		}

		vatResult := s.calculator.Compute(subtotal, shippingCents,
			req.ShippingAddress.Country, buyerType, req.VatNumber)

		if err := ReconcileTotals(vatResult, req.ClientTotals()); err != nil {
			return nil, err
		}

		return BuildOrder(req.CustomerID, lines, products,
			req.ShippingAddress, req.BillingAddress,
			vatResult, req.PaymentMethod, req.IdempotencyKey)
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateIdempotencyKey) {
			existing, getErr := s.store.GetByIdempotencyKey(ctx, req.IdempotencyKey)
			if getErr != nil {
				return nil, getErr
			}
			return &CreateOrderResult{Order: existing, Replayed: true}, nil
		}
		var mismatch *models.TotalMismatchError
		if errors.As(err, &mismatch) {
			// Distinct log: this is the tampering signal, not ordinary
			// input noise.
			s.logger.Warn("order total mismatch",
				zap.String("customer_id", req.CustomerID),
				zap.Int64("calculated_total", mismatch.Calculated.TotalCents),
				zap.Int64("provided_total", mismatch.Provided.TotalCents))
		}
		return nil, err
	}

	s.afterOrderCreated(ctx, order)

	paymentInfo, payErr := s.payment.InitiatePayment(ctx, order.ID, order.TotalCents, order.PaymentMethod)
	if payErr != nil {
		failed := s.transition(ctx, order, models.OrderStatusPaymentFailed, "payment initiation failed")
		return &CreateOrderResult{Order: failed},
			&models.PaymentInitiationError{OrderID: order.ID, Err: payErr}
	}

	if err := s.store.SetPayment(ctx, order.ID, paymentInfo.PaymentID); err != nil {
		s.logger.Error("failed to record payment id",
			zap.String("order_id", order.ID), zap.Error(err))
	}
	order = s.transition(ctx, order, models.OrderStatusAwaitingPayment, "payment initiated")

	if err := s.cart.ClearCart(ctx, req.CustomerID); err != nil {
		// Best effort only; the order is already confirmed on our side.
		s.logger.Warn("cart clear failed",
			zap.String("customer_id", req.CustomerID), zap.Error(err))
	}

	go s.sendConfirmation(order)

	return &CreateOrderResult{Order: order, Payment: paymentInfo}, nil
}

// transition applies a status change with side effects, falling back to
// the previous order value when the write fails.
func (s *CheckoutService) transition(ctx context.Context, order *models.Order, to models.OrderStatus, notes string) *models.Order {
	updated, err := s.store.UpdateStatus(ctx, order.ID, to, notes)
	if err != nil {
		s.logger.Error("status transition failed",
			zap.String("order_id", order.ID),
			zap.String("to", string(to)),
			zap.Error(err))
		return order
	}

	s.afterStatusChange(ctx, updated, order.Status)
	return updated
}

func (s *CheckoutService) afterOrderCreated(ctx context.Context, order *models.Order) {
	if s.features.EnableOrderCaching {
		if err := s.cache.Set(ctx, order); err == nil {
			s.cache.InvalidateCustomer(ctx, order.CustomerID)
		}
	}
	if s.features.EnableOrderEvents {
		if err := s.publisher.PublishOrderCreated(ctx, order); err != nil {
			s.logger.Error("failed to publish order created event",
				zap.String("order_id", order.ID), zap.Error(err))
		}
	}
}

func (s *CheckoutService) afterStatusChange(ctx context.Context, order *models.Order, previous models.OrderStatus) {
	if s.features.EnableOrderCaching {
		s.cache.Set(ctx, order)
		s.cache.InvalidateCustomer(ctx, order.CustomerID)
	}
	if s.features.EnableOrderEvents {
		if err := s.publisher.PublishOrderStatusChanged(ctx, order, previous); err != nil {
			s.logger.Error("failed to publish status change event",
				zap.String("order_id", order.ID), zap.Error(err))
		}
	}
}

func (s *CheckoutService) sendConfirmation(order *models.Order) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.notifier.SendOrderConfirmation(ctx, order); err != nil {
		s.logger.Warn("order confirmation failed",
			zap.String("order_id", order.ID), zap.Error(err))
	}
}

func (s *CheckoutService) resolveShipping(option string) (int64, error) {
	if option == "" {
		option = "standard"
	}
	cents, ok := s.shipping[option]
	if !ok {
		return 0, models.NewValidationError("shippingOption", "unknown shipping option")
	}
	return cents, nil
}

// GetOrder retrieves an order by id, cache first.
func (s *CheckoutService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	if s.features.EnableOrderCaching {
		if order, err := s.cache.Get(ctx, id); err == nil && order != nil {
			return order, nil
		}
	}

	order, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.features.EnableOrderCaching {
		s.cache.Set(ctx, order)
	}
	return order, nil
}

// GetCustomerOrders retrieves a page of a customer's orders.
func (s *CheckoutService) GetCustomerOrders(ctx context.Context, customerID string, limit, offset int) ([]*models.Order, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	if s.features.EnableOrderCaching && offset == 0 {
		if orders, total, err := s.cache.GetByCustomerID(ctx, customerID); err == nil && orders != nil {
			return orders, total, nil
		}
	}

	orders, total, err := s.store.GetByCustomerID(ctx, customerID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	if s.features.EnableOrderCaching && offset == 0 {
		s.cache.SetByCustomerID(ctx, customerID, orders, total)
	}
	return orders, total, nil
}

// UpdateOrderStatus moves an order along the state machine. Illegal
// transitions are rejected; the machine is one-directional and no state
// is re-enterable.
func (s *CheckoutService) UpdateOrderStatus(ctx context.Context, id string, req *models.UpdateOrderStatusRequest) (*models.Order, error) {
	if err := ValidateUpdateOrderStatusRequest(req); err != nil {
		return nil, err
	}

	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !models.CanTransition(current.Status, req.Status) {
		return nil, models.NewValidationError("status",
			"invalid status transition from "+string(current.Status)+" to "+string(req.Status))
	}

	updated, err := s.store.UpdateStatus(ctx, id, req.Status, req.Notes)
	if err != nil {
		return nil, err
	}

	s.afterStatusChange(ctx, updated, current.Status)
	return updated, nil
}

// CancelOrder cancels an order if it has not shipped yet.
func (s *CheckoutService) CancelOrder(ctx context.Context, id, reason string) (*models.Order, error) {
	if err := ValidateCancellationReason(reason); err != nil {
		return nil, err
	}

	order, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.CanCancel() {
		return nil, models.NewValidationError("status", "order cannot be cancelled in current state")
	}

	updated, err := s.store.UpdateStatus(ctx, id, models.OrderStatusCancelled, reason)
	if err != nil {
		return nil, err
	}

	s.afterStatusChange(ctx, updated, order.Status)
	return updated, nil
}

// RetryPayment re-initiates payment for an order stuck in payment_failed.
func (s *CheckoutService) RetryPayment(ctx context.Context, id string) (*CreateOrderResult, error) {
	order, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusPaymentFailed {
		return nil, models.NewValidationError("status", "order is not awaiting a payment retry")
	}

	paymentInfo, payErr := s.payment.InitiatePayment(ctx, order.ID, order.TotalCents, order.PaymentMethod)
	if payErr != nil {
		return &CreateOrderResult{Order: order},
			&models.PaymentInitiationError{OrderID: order.ID, Err: payErr}
	}

	if err := s.store.SetPayment(ctx, order.ID, paymentInfo.PaymentID); err != nil {
		s.logger.Error("failed to record payment id",
			zap.String("order_id", order.ID), zap.Error(err))
	}
	updated := s.transition(ctx, order, models.OrderStatusAwaitingPayment, "payment retried")

	return &CreateOrderResult{Order: updated, Payment: paymentInfo}, nil
}

// PreviewVat runs the advisory VAT calculation used by the checkout UI.
// The authoritative calculation happens again inside order creation.
func (s *CheckoutService) PreviewVat(req *models.VatPreviewRequest) vat.Result {
	metrics.VatPreviewsTotal.Inc()

	buyerType := req.CustomerType
	if buyerType == "" {
		buyerType = models.BuyerTypeConsumer
	}
	return s.calculator.Compute(req.Amount, req.ShippingCost, req.CountryCode, buyerType, req.VatNumber)
}

func checkoutResultLabel(result *CreateOrderResult, err error) string {
	if err == nil {
		if result != nil && result.Replayed {
			return metrics.ResultIdempotentHit
		}
		return metrics.ResultSuccess
	}

	var validationErr *models.ValidationError
	var stockErr *models.StockConflictError
	var mismatchErr *models.TotalMismatchError
	var paymentErr *models.PaymentInitiationError

	switch {
	case errors.As(err, &validationErr):
		return metrics.ResultValidation
	case errors.As(err, &stockErr):
		return metrics.ResultStockConflict
	case errors.As(err, &mismatchErr):
		return metrics.ResultTotalMismatch
	case errors.As(err, &paymentErr):
		return metrics.ResultPaymentFailed
	default:
		return metrics.ResultPersistence
	}
}
