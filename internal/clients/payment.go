package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/cavelier-wines/cavelier-orders-service/internal/config"
	"github.com/cavelier-wines/cavelier-orders-service/internal/models"
)

// HTTPPaymentClient talks to the payment provider gateway. It creates a
// payment intent for an order and returns the redirect URL the customer
// is sent to. The configured timeout bounds the call; a timeout counts as
// a failed initiation, never as success.
type HTTPPaymentClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPPaymentClient creates a new payment client.
func NewHTTPPaymentClient(cfg config.ServiceConfig, logger *zap.Logger) *HTTPPaymentClient {
	return &HTTPPaymentClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

type paymentIntentRequest struct {
	OrderID     string `json:"order_id"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Method      string `json:"method"`
}

type paymentIntentResponse struct {
	PaymentID  string `json:"payment_id"`
	PaymentURL string `json:"payment_url"`
	Status     string `json:"status"`
}

// InitiatePayment creates a payment intent for the order total.
func (c *HTTPPaymentClient) InitiatePayment(ctx context.Context, orderID string, amountCents int64, method string) (*models.PaymentInfo, error) {
	body, err := json.Marshal(paymentIntentRequest{
		OrderID:     orderID,
		AmountCents: amountCents,
		Currency:    models.Currency,
		Method:      method,
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/api/v1/payments/intents", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("payment intent request failed",
			zap.String("order_id", orderID),
			zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("payment provider returned status %d", resp.StatusCode)
	}

	var result paymentIntentResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if result.PaymentURL == "" {
		return nil, fmt.Errorf("payment provider returned no redirect URL")
	}

	c.logger.Info("payment intent created",
		zap.String("order_id", orderID),
		zap.String("payment_id", result.PaymentID))

	return &models.PaymentInfo{
		PaymentID:  result.PaymentID,
		PaymentURL: result.PaymentURL,
	}, nil
}
