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

// HTTPNotificationClient asks the notification collaborator to send
// transactional email. Template content lives on that side; this client
// only carries identifiers and display amounts.
type HTTPNotificationClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPNotificationClient creates a new notification client.
func NewHTTPNotificationClient(cfg config.ServiceConfig, logger *zap.Logger) *HTTPNotificationClient {
	return &HTTPNotificationClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

type notificationRequest struct {
	Template  string            `json:"template"`
	Recipient string            `json:"recipient"`
	Variables map[string]string `json:"variables"`
}

// SendOrderConfirmation requests the order confirmation email. The total
// crosses this boundary as a formatted display amount; everywhere else it
// stays in integer cents.
func (c *HTTPNotificationClient) SendOrderConfirmation(ctx context.Context, order *models.Order) error {
	body, err := json.Marshal(notificationRequest{
		Template:  "order_confirmation",
		Recipient: order.CustomerID,
		Variables: map[string]string{
			"order_id": order.ID,
			"total":    models.FormatEuros(order.TotalCents),
		},
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/api/v1/notifications", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("notification service returned status %d", resp.StatusCode)
	}

	c.logger.Debug("order confirmation requested", zap.String("order_id", order.ID))
	return nil
}
