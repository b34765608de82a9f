package clients

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/cavelier-wines/cavelier-orders-service/internal/config"
)

// HTTPCartClient clears a customer's cart after a successful checkout.
// This is explicitly best effort: failures are logged by the caller, never
// retried, and never block order confirmation.
type HTTPCartClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPCartClient creates a new cart client.
func NewHTTPCartClient(cfg config.ServiceConfig, logger *zap.Logger) *HTTPCartClient {
	return &HTTPCartClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

// ClearCart empties the customer's cart.
func (c *HTTPCartClient) ClearCart(ctx context.Context, customerID string) error {
	url := fmt.Sprintf("%s/api/v1/carts/%s", c.baseURL, customerID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("cart service returned status %d", resp.StatusCode)
	}

	c.logger.Debug("cart cleared", zap.String("customer_id", customerID))
	return nil
}
