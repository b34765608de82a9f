package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/cavelier-wines/cavelier-orders-service/internal/config"
	"github.com/cavelier-wines/cavelier-orders-service/internal/models"
)

// PaymentEventType represents the type of payment event.
type PaymentEventType string

const (
	PaymentEventCompleted PaymentEventType = "payment.completed"
	PaymentEventFailed    PaymentEventType = "payment.failed"
)

// PaymentEvent is the payment provider's asynchronous notification.
type PaymentEvent struct {
	ID        string           `json:"id"`
	Type      PaymentEventType `json:"type"`
	PaymentID string           `json:"payment_id"`
	OrderID   string           `json:"order_id"`
	Timestamp time.Time        `json:"timestamp"`
}

// StatusUpdater applies an order status transition. Implemented by the
// checkout service, which enforces the state machine.
type StatusUpdater interface {
	UpdateOrderStatus(ctx context.Context, id string, req *models.UpdateOrderStatusRequest) (*models.Order, error)
}

// KafkaConsumer consumes payment events and applies the corresponding
// order transitions: payment.completed confirms the order,
// payment.failed moves it to payment_failed.
type KafkaConsumer struct {
	reader  *kafka.Reader
	updater StatusUpdater
	logger  *zap.Logger
	stopCh  chan struct{}
}

// NewKafkaConsumer creates a new Kafka-based payment event consumer.
func NewKafkaConsumer(cfg config.KafkaConfig, updater StatusUpdater, logger *zap.Logger) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.PaymentsTopic,
		GroupID:  cfg.ConsumerGroup,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	})

	return &KafkaConsumer{
		reader:  reader,
		updater: updater,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
}

// Start begins consuming events. It blocks until the context is cancelled
// or Stop is called.
func (c *KafkaConsumer) Start(ctx context.Context) error {
	c.logger.Info("starting payment event consumer")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return nil
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.logger.Error("failed to read message", zap.Error(err))
				continue
			}
			c.handleMessage(ctx, msg)
		}
	}
}

// Stop stops the consumer.
func (c *KafkaConsumer) Stop() {
	close(c.stopCh)
	c.reader.Close()
}

func (c *KafkaConsumer) handleMessage(ctx context.Context, msg kafka.Message) {
	var event PaymentEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.logger.Error("failed to unmarshal payment event", zap.Error(err))
		return
	}

	var req *models.UpdateOrderStatusRequest
	switch event.Type {
	case PaymentEventCompleted:
		req = &models.UpdateOrderStatusRequest{
			Status: models.OrderStatusConfirmed,
			Notes:  "payment captured",
		}
	case PaymentEventFailed:
		req = &models.UpdateOrderStatusRequest{
			Status: models.OrderStatusPaymentFailed,
			Notes:  "payment declined",
		}
	default:
		return
	}

	if _, err := c.updater.UpdateOrderStatus(ctx, event.OrderID, req); err != nil {
		c.logger.Error("failed to apply payment event",
			zap.String("order_id", event.OrderID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
}
