package handlers

import (
	"context"

	"go.uber.org/zap"

	"github.com/cavelier-wines/cavelier-orders-service/internal/models"
	"github.com/cavelier-wines/cavelier-orders-service/internal/service"
	"github.com/cavelier-wines/cavelier-orders-service/internal/vat"
)

// OrderService is what the HTTP layer needs from the checkout engine.
type OrderService interface {
	CreateOrder(ctx context.Context, req *models.CreateOrderRequest) (*service.CreateOrderResult, error)
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	GetCustomerOrders(ctx context.Context, customerID string, limit, offset int) ([]*models.Order, int, error)
	UpdateOrderStatus(ctx context.Context, id string, req *models.UpdateOrderStatusRequest) (*models.Order, error)
	CancelOrder(ctx context.Context, id, reason string) (*models.Order, error)
	RetryPayment(ctx context.Context, id string) (*service.CreateOrderResult, error)
	PreviewVat(req *models.VatPreviewRequest) vat.Result
}

// ReadinessChecker reports whether a backing dependency is reachable.
type ReadinessChecker interface {
	PingContext(ctx context.Context) error
}

// Handlers bundles the HTTP handlers with their dependencies.
type Handlers struct {
	service OrderService
	db      ReadinessChecker
	logger  *zap.Logger
}

// New creates the handler set.
func New(svc OrderService, db ReadinessChecker, logger *zap.Logger) *Handlers {
	return &Handlers{
		service: svc,
		db:      db,
		logger:  logger,
	}
}
