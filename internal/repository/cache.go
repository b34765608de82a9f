package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cavelier-wines/cavelier-orders-service/internal/config"
	"github.com/cavelier-wines/cavelier-orders-service/internal/metrics"
	"github.com/cavelier-wines/cavelier-orders-service/internal/models"
)

const (
	orderKeyPrefix       = "order:"
	customerOrdersPrefix = "customer_orders:"
	defaultCacheTTL      = 5 * time.Minute
)

// Ensure RedisOrderCache implements OrderCache
var _ OrderCache = (*RedisOrderCache)(nil)

// RedisOrderCache implements OrderCache using Redis. Orders are immutable
// apart from status transitions, so a short TTL plus invalidation on write
// is enough.
type RedisOrderCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisOrderCache creates a new Redis-based order cache.
func NewRedisOrderCache(cfg config.RedisConfig, logger *zap.Logger) *RedisOrderCache {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = defaultCacheTTL
	}

	return &RedisOrderCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Get retrieves an order from cache. A miss returns (nil, nil).
func (c *RedisOrderCache) Get(ctx context.Context, id string) (*models.Order, error) {
	data, err := c.client.Get(ctx, orderKeyPrefix+id).Bytes()
	if err == redis.Nil {
		metrics.OrderCacheMisses.Inc()
		return nil, nil
	}
	if err != nil {
		c.logger.Error("cache get failed", zap.String("order_id", id), zap.Error(err))
		return nil, err
	}

	var order models.Order
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, err
	}

	metrics.OrderCacheHits.Inc()
	return &order, nil
}

// Set stores an order in cache.
func (c *RedisOrderCache) Set(ctx context.Context, order *models.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return err
	}

	if err := c.client.Set(ctx, orderKeyPrefix+order.ID, data, c.ttl).Err(); err != nil {
		c.logger.Error("cache set failed", zap.String("order_id", order.ID), zap.Error(err))
		return err
	}
	return nil
}

// Delete removes an order from cache.
func (c *RedisOrderCache) Delete(ctx context.Context, id string) error {
	return c.client.Del(ctx, orderKeyPrefix+id).Err()
}

// customerOrdersPage is the cached first page of a customer's orders. The
// total is the customer's full order count, not the page length.
type customerOrdersPage struct {
	Orders []*models.Order `json:"orders"`
	Total  int             `json:"total"`
}

// GetByCustomerID retrieves cached orders for a customer along with the
// customer's total order count. A miss returns (nil, 0, nil).
func (c *RedisOrderCache) GetByCustomerID(ctx context.Context, customerID string) ([]*models.Order, int, error) {
	data, err := c.client.Get(ctx, customerOrdersPrefix+customerID).Bytes()
	if err == redis.Nil {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}

	var page customerOrdersPage
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, 0, err
	}
	return page.Orders, page.Total, nil
}

// SetByCustomerID caches the first page of a customer's orders together
// with the total order count.
func (c *RedisOrderCache) SetByCustomerID(ctx context.Context, customerID string, orders []*models.Order, total int) error {
	data, err := json.Marshal(customerOrdersPage{Orders: orders, Total: total})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, customerOrdersPrefix+customerID, data, c.ttl).Err()
}

// InvalidateCustomer removes the cached order list for a customer.
func (c *RedisOrderCache) InvalidateCustomer(ctx context.Context, customerID string) error {
	return c.client.Del(ctx, customerOrdersPrefix+customerID).Err()
}
