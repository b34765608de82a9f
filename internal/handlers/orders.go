package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cavelier-wines/cavelier-orders-service/internal/models"
)

// CreateOrder handles POST /api/v1/orders. A replayed idempotency key
// returns the original order with 200 instead of 201; a payment initiation
// failure returns 402 with the persisted order so the customer can retry.
func (h *Handlers) CreateOrder(c *gin.Context) {
	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if key := c.GetHeader("Idempotency-Key"); key != "" {
		req.IdempotencyKey = key
	}

	result, err := h.service.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		var paymentErr *models.PaymentInitiationError
		if errors.As(err, &paymentErr) && result != nil {
			c.JSON(http.StatusPaymentRequired, gin.H{
				"error": "payment initiation failed",
				"order": result.Order,
			})
			return
		}
		h.respondError(c, err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"order":   result.Order,
		"payment": result.Payment,
	})
}

// GetOrder handles GET /api/v1/orders/:id.
func (h *Handlers) GetOrder(c *gin.Context) {
	order, err := h.service.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// GetCustomerOrders handles GET /api/v1/customers/:id/orders.
func (h *Handlers) GetCustomerOrders(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	orders, total, err := h.service.GetCustomerOrders(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// UpdateOrderStatus handles POST /api/v1/orders/:id/status.
func (h *Handlers) UpdateOrderStatus(c *gin.Context) {
	var req models.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	order, err := h.service.UpdateOrderStatus(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// CancelOrder handles POST /api/v1/orders/:id/cancel.
func (h *Handlers) CancelOrder(c *gin.Context) {
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	order, err := h.service.CancelOrder(c.Request.Context(), c.Param("id"), body.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// RetryPayment handles POST /api/v1/orders/:id/retry-payment.
func (h *Handlers) RetryPayment(c *gin.Context) {
	result, err := h.service.RetryPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		var paymentErr *models.PaymentInitiationError
		if errors.As(err, &paymentErr) && result != nil {
			c.JSON(http.StatusPaymentRequired, gin.H{
				"error": "payment initiation failed",
				"order": result.Order,
			})
			return
		}
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order":   result.Order,
		"payment": result.Payment,
	})
}

// respondError maps domain errors to HTTP responses. The order matters:
// more specific error types are checked before the catch-all 500.
func (h *Handlers) respondError(c *gin.Context, err error) {
	var validationErr *models.ValidationError
	var stockErr *models.StockConflictError
	var mismatchErr *models.TotalMismatchError
	var paymentErr *models.PaymentInitiationError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "validation failed",
			"field": validationErr.Field,
			"message": validationErr.Message,
		})
	case errors.As(err, &stockErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":  "insufficient stock",
			"issues": stockErr.Issues,
		})
	case errors.As(err, &mismatchErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "Order total mismatch",
			"calculated": mismatchErr.Calculated,
			"provided":   mismatchErr.Provided,
		})
	case errors.As(err, &paymentErr):
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":    "payment initiation failed",
			"order_id": paymentErr.OrderID,
		})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
	default:
		h.logger.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
