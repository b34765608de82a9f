package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/cavelier-wines/cavelier-orders-service/internal/models"
)

// Ensure PostgresOrderStore implements OrderStore
var _ OrderStore = (*PostgresOrderStore)(nil)

// PostgresOrderStore implements OrderStore on PostgreSQL. Orders are stored
// as one row per order with the lines and address pair in JSONB columns, so
// the embedded product snapshots are frozen with the row.
type PostgresOrderStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresOrderStore creates a new PostgreSQL order store.
func NewPostgresOrderStore(db *sql.DB, logger *zap.Logger) *PostgresOrderStore {
	return &PostgresOrderStore{
		db:     db,
		logger: logger,
	}
}

const orderColumns = `
	id, customer_id, idempotency_key, shipping_address, billing_address, lines,
	subtotal_cents, vat_rate, vat_amount_cents, shipping_cost_cents, total_cents,
	is_reverse_charge, payment_method, payment_id, status, notes,
	created_at, updated_at
`

// WithCheckoutTx runs the checkout pipeline atomically: the product rows
// are locked with SELECT ... FOR UPDATE, fn validates stock and builds the
// order against exactly that snapshot, and the order insert plus stock
// decrement commit together or not at all. Two concurrent checkouts for
// the last unit of a product serialize on its row; the loser sees the
// decremented quantity and fails inside fn.
func (s *PostgresOrderStore) WithCheckoutTx(ctx context.Context, productIDs []string, fn CheckoutFunc) (_ *models.Order, txErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin checkout tx: %w", err)
	}
	defer func() {
		if txErr != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.logger.Error("checkout rollback failed", zap.Error(rbErr))
			}
		}
	}()

	products, err := s.lockProducts(ctx, tx, productIDs)
	if err != nil {
		return nil, err
	}

	order, err := fn(products)
	if err != nil {
		return nil, err
	}

	if err := s.insertOrder(ctx, tx, order); err != nil {
		return nil, err
	}

	for _, line := range order.Lines {
		if err := s.decrementStock(ctx, tx, line.ProductID, line.Quantity); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit checkout tx: %w", err)
	}

	s.logger.Info("order persisted",
		zap.String("order_id", order.ID),
		zap.String("customer_id", order.CustomerID),
		zap.Int64("total_cents", order.TotalCents))

	return order, nil
}

func (s *PostgresOrderStore) lockProducts(ctx context.Context, tx *sql.Tx, productIDs []string) (map[string]models.Product, error) {
	query := `
		SELECT id, name, sku, vintage, varietal, region, alcohol_content,
		       volume_ml, certifications, image_url, price_cents,
		       stock_quantity, is_active
		FROM products
		WHERE id = ANY($1)
		FOR UPDATE
	`

	rows, err := tx.QueryContext(ctx, query, pq.Array(productIDs))
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	defer rows.Close()

	products := make(map[string]models.Product)
	for rows.Next() {
		var p models.Product
		var certsJSON []byte
		if err := rows.Scan(
			&p.ID, &p.Name, &p.SKU, &p.Vintage, &p.Varietal, &p.Region,
			&p.AlcoholContent, &p.VolumeML, &certsJSON, &p.ImageURL,
			&p.PriceCents, &p.StockQuantity, &p.IsActive,
		); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		if len(certsJSON) > 0 {
			if err := json.Unmarshal(certsJSON, &p.Certifications); err != nil {
				return nil, fmt.Errorf("unmarshal certifications: %w", err)
			}
		}
		products[p.ID] = p
	}

	return products, rows.Err()
}

func (s *PostgresOrderStore) insertOrder(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	linesJSON, err := json.Marshal(order.Lines)
	if err != nil {
		return err
	}
	shippingJSON, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return err
	}
	billingJSON, err := json.Marshal(order.BillingAddress)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO orders (
			id, customer_id, idempotency_key, shipping_address, billing_address,
			lines, subtotal_cents, vat_rate, vat_amount_cents,
			shipping_cost_cents, total_cents, is_reverse_charge,
			payment_method, status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		)
	`

	var idemKey sql.NullString
	if order.IdempotencyKey != "" {
		idemKey = sql.NullString{String: order.IdempotencyKey, Valid: true}
	}

	_, err = tx.ExecContext(ctx, query,
		order.ID,
		order.CustomerID,
		idemKey,
		shippingJSON,
		billingJSON,
		linesJSON,
		order.SubtotalCents,
		order.VatRate,
		order.VatAmountCents,
		order.ShippingCents,
		order.TotalCents,
		order.IsReverseCharge,
		order.PaymentMethod,
		order.Status,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" && pqErr.Constraint == "orders_idempotency_key_key" {
			return ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("insert order: %w", err)
	}

	return nil
}

func (s *PostgresOrderStore) decrementStock(ctx context.Context, tx *sql.Tx, productID string, quantity int) error {
	// The stock check already ran against these locked rows; the guard in
	// the WHERE clause keeps a quantity from ever going negative anyway.
	query := `
		UPDATE products
		SET stock_quantity = stock_quantity - $2, updated_at = now()
		WHERE id = $1 AND stock_quantity >= $2
	`

	result, err := tx.ExecContext(ctx, query, productID, quantity)
	if err != nil {
		return fmt.Errorf("decrement stock for %s: %w", productID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("stock decrement for %s affected no rows", productID)
	}
	return nil
}

// GetByID retrieves an order by its unique identifier.
func (s *PostgresOrderStore) GetByID(ctx context.Context, id string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return s.scanOrder(s.db.QueryRowContext(ctx, query, id))
}

// GetByIdempotencyKey retrieves the order previously created under the
// given idempotency key, or ErrNotFound.
func (s *PostgresOrderStore) GetByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE idempotency_key = $1`
	return s.scanOrder(s.db.QueryRowContext(ctx, query, key))
}

// GetByCustomerID retrieves a page of a customer's orders, newest first.
func (s *PostgresOrderStore) GetByCustomerID(ctx context.Context, customerID string, limit, offset int) ([]*models.Order, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE customer_id = $1`, customerID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE customer_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := s.db.QueryContext(ctx, query, customerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*models.Order, 0)
	for rows.Next() {
		order, err := s.scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, order)
	}

	return orders, total, rows.Err()
}

// UpdateStatus updates the status of an order. Transition legality is the
// service's responsibility; the store only writes.
func (s *PostgresOrderStore) UpdateStatus(ctx context.Context, id string, status models.OrderStatus, notes string) (*models.Order, error) {
	query := `
		UPDATE orders
		SET status = $2, notes = COALESCE(NULLIF($3, ''), notes), updated_at = $4
		WHERE id = $1
		RETURNING id
	`

	var returnedID string
	err := s.db.QueryRowContext(ctx, query, id, status, notes, time.Now().UTC()).Scan(&returnedID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}

	s.logger.Info("order status updated",
		zap.String("order_id", id),
		zap.String("status", string(status)))

	return s.GetByID(ctx, id)
}

// SetPayment associates a payment intent with an order.
func (s *PostgresOrderStore) SetPayment(ctx context.Context, orderID, paymentID string) error {
	query := `
		UPDATE orders
		SET payment_id = $2, updated_at = $3
		WHERE id = $1
	`

	result, err := s.db.ExecContext(ctx, query, orderID, paymentID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set payment id: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return models.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *PostgresOrderStore) scanOrder(row rowScanner) (*models.Order, error) {
	var order models.Order
	var linesJSON, shippingJSON, billingJSON []byte
	var idemKey, paymentID, notes sql.NullString

	err := row.Scan(
		&order.ID,
		&order.CustomerID,
		&idemKey,
		&shippingJSON,
		&billingJSON,
		&linesJSON,
		&order.SubtotalCents,
		&order.VatRate,
		&order.VatAmountCents,
		&order.ShippingCents,
		&order.TotalCents,
		&order.IsReverseCharge,
		&order.PaymentMethod,
		&paymentID,
		&order.Status,
		&notes,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}

	if err := json.Unmarshal(linesJSON, &order.Lines); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(shippingJSON, &order.ShippingAddress); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(billingJSON, &order.BillingAddress); err != nil {
		return nil, err
	}

	order.IdempotencyKey = idemKey.String
	order.PaymentID = paymentID.String
	order.Notes = notes.String

	return &order, nil
}
