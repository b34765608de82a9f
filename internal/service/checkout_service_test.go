package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cavelier-wines/cavelier-orders-service/internal/config"
	"github.com/cavelier-wines/cavelier-orders-service/internal/models"
	"github.com/cavelier-wines/cavelier-orders-service/internal/repository"
	"github.com/cavelier-wines/cavelier-orders-service/internal/vat"
)

// fakeStore is an in-memory OrderStore. A single mutex held for the whole
// of WithCheckoutTx stands in for the database row locks, so concurrent
// checkouts serialize exactly as they would on the real store.
type fakeStore struct {
	mu       sync.Mutex
	products map[string]models.Product
	orders   map[string]*models.Order
	byIdem   map[string]*models.Order

	failInsert error
}

func newFakeStore(products map[string]models.Product) *fakeStore {
	return &fakeStore{
		products: products,
		orders:   make(map[string]*models.Order),
		byIdem:   make(map[string]*models.Order),
	}
}

func (s *fakeStore) WithCheckoutTx(ctx context.Context, productIDs []string, fn repository.CheckoutFunc) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	locked := make(map[string]models.Product, len(productIDs))
	for _, id := range productIDs {
		if p, ok := s.products[id]; ok {
			locked[id] = p
		}
	}

	order, err := fn(locked)
	if err != nil {
		return nil, err
	}
	if s.failInsert != nil {
		return nil, s.failInsert
	}
	if order.IdempotencyKey != "" {
		if _, exists := s.byIdem[order.IdempotencyKey]; exists {
			return nil, repository.ErrDuplicateIdempotencyKey
		}
	}

	for _, line := range order.Lines {
		p := s.products[line.ProductID]
		p.StockQuantity -= line.Quantity
		s.products[line.ProductID] = p
	}

	s.orders[order.ID] = order
	if order.IdempotencyKey != "" {
		s.byIdem[order.IdempotencyKey] = order
	}
	return order, nil
}

func (s *fakeStore) GetByID(ctx context.Context, id string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *order
	return &copied, nil
}

func (s *fakeStore) GetByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.byIdem[key]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *order
	return &copied, nil
}

func (s *fakeStore) GetByCustomerID(ctx context.Context, customerID string, limit, offset int) ([]*models.Order, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var orders []*models.Order
	for _, o := range s.orders {
		if o.CustomerID == customerID {
			copied := *o
			orders = append(orders, &copied)
		}
	}
	return orders, len(orders), nil
}

func (s *fakeStore) UpdateStatus(ctx context.Context, id string, status models.OrderStatus, notes string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	order.Status = status
	if notes != "" {
		order.Notes = notes
	}
	copied := *order
	return &copied, nil
}

func (s *fakeStore) SetPayment(ctx context.Context, orderID, paymentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return models.ErrNotFound
	}
	order.PaymentID = paymentID
	return nil
}

func (s *fakeStore) stock(productID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[productID].StockQuantity
}

type fakePayment struct {
	mu    sync.Mutex
	fail  bool
	calls int
}

func (p *fakePayment) InitiatePayment(ctx context.Context, orderID string, amountCents int64, method string) (*models.PaymentInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.fail {
		return nil, errors.New("provider unavailable")
	}
	return &models.PaymentInfo{
		PaymentID:  "pay-" + orderID,
		PaymentURL: "https://pay.example.com/" + orderID,
	}, nil
}

type fakeCart struct {
	mu      sync.Mutex
	fail    bool
	cleared []string
}

func (c *fakeCart) ClearCart(ctx context.Context, customerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("cart service down")
	}
	c.cleared = append(c.cleared, customerID)
	return nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (n *fakeNotifier) SendOrderConfirmation(ctx context.Context, order *models.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, order.ID)
	return nil
}

type fakePublisher struct {
	mu      sync.Mutex
	created []string
	changed []string
}

func (p *fakePublisher) PublishOrderCreated(ctx context.Context, order *models.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, order.ID)
	return nil
}

func (p *fakePublisher) PublishOrderStatusChanged(ctx context.Context, order *models.Order, previous models.OrderStatus) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changed = append(p.changed, string(previous)+"->"+string(order.Status))
	return nil
}

type noopCache struct{}

func (noopCache) Get(ctx context.Context, id string) (*models.Order, error) { return nil, nil }
func (noopCache) Set(ctx context.Context, order *models.Order) error        { return nil }
func (noopCache) Delete(ctx context.Context, id string) error               { return nil }
func (noopCache) GetByCustomerID(ctx context.Context, id string) ([]*models.Order, int, error) {
	return nil, 0, nil
}
func (noopCache) SetByCustomerID(ctx context.Context, id string, orders []*models.Order, total int) error {
	return nil
}
func (noopCache) InvalidateCustomer(ctx context.Context, id string) error { return nil }

// mapCache is an in-memory OrderCache for tests that exercise cache hits.
type mapCache struct {
	mu     sync.Mutex
	orders map[string]*models.Order
	pages  map[string][]*models.Order
	totals map[string]int
}

func newMapCache() *mapCache {
	return &mapCache{
		orders: make(map[string]*models.Order),
		pages:  make(map[string][]*models.Order),
		totals: make(map[string]int),
	}
}

func (c *mapCache) Get(ctx context.Context, id string) (*models.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.orders[id], nil
}

func (c *mapCache) Set(ctx context.Context, order *models.Order) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orders[order.ID] = order
	return nil
}

func (c *mapCache) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.orders, id)
	return nil
}

func (c *mapCache) GetByCustomerID(ctx context.Context, customerID string) ([]*models.Order, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pages[customerID], c.totals[customerID], nil
}

func (c *mapCache) SetByCustomerID(ctx context.Context, customerID string, orders []*models.Order, total int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages[customerID] = orders
	c.totals[customerID] = total
	return nil
}

func (c *mapCache) InvalidateCustomer(ctx context.Context, customerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pages, customerID)
	delete(c.totals, customerID)
	return nil
}

type testEnv struct {
	svc       *CheckoutService
	store     *fakeStore
	payment   *fakePayment
	cart      *fakeCart
	publisher *fakePublisher
}

func newTestEnv(products map[string]models.Product) *testEnv {
	cfg := &config.Config{
		Checkout: config.CheckoutConfig{
			SellerCountry:         "FR",
			ShippingStandardCents: 895,
			ShippingExpressCents:  1495,
		},
		Features: config.FeatureFlags{
			EnableOrderEvents: true,
		},
	}

	store := newFakeStore(products)
	payment := &fakePayment{}
	cart := &fakeCart{}
	publisher := &fakePublisher{}

	svc := NewCheckoutService(
		store,
		noopCache{},
		payment,
		cart,
		&fakeNotifier{},
		publisher,
		vat.NewCalculator(vat.NewRegistry(), cfg.Checkout.SellerCountry),
		cfg,
		zap.NewNop(),
	)

	return &testEnv{svc: svc, store: store, payment: payment, cart: cart, publisher: publisher}
}

func catalogWithStock(stock int) map[string]models.Product {
	return map[string]models.Product{
		"wine-1": {
			ID:            "wine-1",
			Name:          "Côtes du Rhône 2020",
			SKU:           "CDR-2020",
			PriceCents:    2500,
			StockQuantity: stock,
			IsActive:      true,
		},
	}
}

// validRequest is a consistent French consumer checkout: 2 bottles at
// 2500, standard shipping, 20% VAT.
func validRequest() *models.CreateOrderRequest {
	return &models.CreateOrderRequest{
		CustomerID:      "cust-1",
		ShippingAddress: testAddr,
		BillingAddress:  testAddr,
		Items: []models.OrderItemInput{
			{ProductID: "wine-1", Quantity: 2, UnitPrice: 2500},
		},
		Subtotal:      5000,
		VatAmount:     1179,
		ShippingCost:  895,
		TotalAmount:   7074,
		PaymentMethod: "card",
	}
}

func TestCreateOrder_Success(t *testing.T) {
	env := newTestEnv(catalogWithStock(10))

	result, err := env.svc.CreateOrder(context.Background(), validRequest())
	require.NoError(t, err)
	require.NotNil(t, result.Order)
	require.NotNil(t, result.Payment)
	assert.False(t, result.Replayed)

	order := result.Order
	assert.Equal(t, models.OrderStatusAwaitingPayment, order.Status)
	assert.Equal(t, int64(7074), order.TotalCents)
	assert.True(t, order.TotalsConsistent())

	assert.Equal(t, 8, env.store.stock("wine-1"))
	assert.Equal(t, []string{"cust-1"}, env.cart.cleared)
	assert.NotEmpty(t, result.Payment.PaymentURL)
}

func TestCreateOrder_StockConflict(t *testing.T) {
	env := newTestEnv(catalogWithStock(1))

	_, err := env.svc.CreateOrder(context.Background(), validRequest())

	var conflict *models.StockConflictError
	require.ErrorAs(t, err, &conflict)

	// Nothing persisted, nothing decremented, no payment attempted.
	assert.Equal(t, 1, env.store.stock("wine-1"))
	assert.Empty(t, env.store.orders)
	assert.Equal(t, 0, env.payment.calls)
}

func TestCreateOrder_TotalMismatch(t *testing.T) {
	env := newTestEnv(catalogWithStock(10))

	req := validRequest()
	req.TotalAmount = 6074 // client claims 10 euros less

	_, err := env.svc.CreateOrder(context.Background(), req)

	var mismatch *models.TotalMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, int64(7074), mismatch.Calculated.TotalCents)

	assert.Equal(t, 10, env.store.stock("wine-1"))
	assert.Empty(t, env.store.orders)
	assert.Equal(t, 0, env.payment.calls)
}

func TestCreateOrder_PaymentFailureKeepsOrder(t *testing.T) {
	env := newTestEnv(catalogWithStock(10))
	env.payment.fail = true

	result, err := env.svc.CreateOrder(context.Background(), validRequest())

	var paymentErr *models.PaymentInitiationError
	require.ErrorAs(t, err, &paymentErr)
	require.NotNil(t, result)
	require.NotNil(t, result.Order)

	// The order and the stock decrement survive the payment failure.
	assert.Equal(t, models.OrderStatusPaymentFailed, result.Order.Status)
	assert.Equal(t, 8, env.store.stock("wine-1"))

	persisted, getErr := env.store.GetByID(context.Background(), result.Order.ID)
	require.NoError(t, getErr)
	assert.Equal(t, models.OrderStatusPaymentFailed, persisted.Status)
}

func TestCreateOrder_IdempotentReplay(t *testing.T) {
	env := newTestEnv(catalogWithStock(10))

	req := validRequest()
	req.IdempotencyKey = "key-1"

	first, err := env.svc.CreateOrder(context.Background(), req)
	require.NoError(t, err)

	second, err := env.svc.CreateOrder(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.Order.ID, second.Order.ID)

	// No second order, no second decrement, no second payment.
	assert.Equal(t, 8, env.store.stock("wine-1"))
	assert.Len(t, env.store.orders, 1)
	assert.Equal(t, 1, env.payment.calls)
}

func TestCreateOrder_ConcurrentCheckoutsOnLastBottle(t *testing.T) {
	env := newTestEnv(catalogWithStock(2))

	req := validRequest() // wants 2 bottles

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = env.svc.CreateOrder(context.Background(), req)
		}(i)
	}
	wg.Wait()

	var successes, conflicts int
	for _, err := range results {
		var conflict *models.StockConflictError
		switch {
		case err == nil:
			successes++
		case errors.As(err, &conflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, conflicts)
	assert.Equal(t, 0, env.store.stock("wine-1"))
}

func TestCreateOrder_CartClearFailureDoesNotBlock(t *testing.T) {
	env := newTestEnv(catalogWithStock(10))
	env.cart.fail = true

	result, err := env.svc.CreateOrder(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusAwaitingPayment, result.Order.Status)
}

func TestCreateOrder_UnknownShippingOption(t *testing.T) {
	env := newTestEnv(catalogWithStock(10))

	req := validRequest()
	req.ShippingOption = "drone"

	_, err := env.svc.CreateOrder(context.Background(), req)

	var validationErr *models.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "shippingOption", validationErr.Field)
}

func TestCreateOrder_PickupShipsFree(t *testing.T) {
	env := newTestEnv(catalogWithStock(10))

	req := validRequest()
	req.ShippingOption = "pickup"
	req.ShippingCost = 0
	req.VatAmount = 1000 // 20% of 5000 only
	req.TotalAmount = 6000

	result, err := env.svc.CreateOrder(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.Order.ShippingCents)
	assert.Equal(t, int64(6000), result.Order.TotalCents)
}

func TestCreateOrder_DuplicateLinesExceedStock(t *testing.T) {
	env := newTestEnv(catalogWithStock(3))

	// Two lines for the same bottle, 2 each against stock 3. Each line fits
	// on its own; the order as a whole must still hit the stock gate, not
	// fail later in persistence.
	req := validRequest()
	req.Items = []models.OrderItemInput{
		{ProductID: "wine-1", Quantity: 2, UnitPrice: 2500},
		{ProductID: "wine-1", Quantity: 2, UnitPrice: 2500},
	}
	req.Subtotal = 10000
	req.VatAmount = 2179
	req.TotalAmount = 13074

	_, err := env.svc.CreateOrder(context.Background(), req)

	var conflict *models.StockConflictError
	require.ErrorAs(t, err, &conflict)
	require.Len(t, conflict.Issues, 1)
	assert.Equal(t, 4, conflict.Issues[0].Requested)

	assert.Equal(t, 3, env.store.stock("wine-1"))
	assert.Empty(t, env.store.orders)
	assert.Equal(t, 0, env.payment.calls)
}

func TestCreateOrder_UnknownProduct(t *testing.T) {
	env := newTestEnv(catalogWithStock(10))

	req := validRequest()
	req.Items = append(req.Items, models.OrderItemInput{ProductID: "ghost", Quantity: 1, UnitPrice: 100})

	_, err := env.svc.CreateOrder(context.Background(), req)

	var validationErr *models.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Empty(t, env.store.orders)
}

func TestCreateOrder_PersistenceFailure(t *testing.T) {
	env := newTestEnv(catalogWithStock(10))
	env.store.failInsert = errors.New("connection reset")

	_, err := env.svc.CreateOrder(context.Background(), validRequest())
	require.Error(t, err)
	assert.Equal(t, 0, env.payment.calls)
}

func TestUpdateOrderStatus_ValidTransition(t *testing.T) {
	env := newTestEnv(catalogWithStock(10))

	result, err := env.svc.CreateOrder(context.Background(), validRequest())
	require.NoError(t, err)

	updated, err := env.svc.UpdateOrderStatus(context.Background(), result.Order.ID,
		&models.UpdateOrderStatusRequest{Status: models.OrderStatusConfirmed})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusConfirmed, updated.Status)
}

func TestUpdateOrderStatus_InvalidTransition(t *testing.T) {
	env := newTestEnv(catalogWithStock(10))

	result, err := env.svc.CreateOrder(context.Background(), validRequest())
	require.NoError(t, err)

	// awaiting_payment cannot jump straight to delivered.
	_, err = env.svc.UpdateOrderStatus(context.Background(), result.Order.ID,
		&models.UpdateOrderStatusRequest{Status: models.OrderStatusDelivered})

	var validationErr *models.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestCancelOrder(t *testing.T) {
	env := newTestEnv(catalogWithStock(10))

	result, err := env.svc.CreateOrder(context.Background(), validRequest())
	require.NoError(t, err)

	cancelled, err := env.svc.CancelOrder(context.Background(), result.Order.ID, "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)

	// Cancelled is terminal.
	_, err = env.svc.UpdateOrderStatus(context.Background(), result.Order.ID,
		&models.UpdateOrderStatusRequest{Status: models.OrderStatusConfirmed})
	require.Error(t, err)
}

func TestCancelOrder_ShippedCannotCancel(t *testing.T) {
	env := newTestEnv(catalogWithStock(10))

	result, err := env.svc.CreateOrder(context.Background(), validRequest())
	require.NoError(t, err)

	for _, status := range []models.OrderStatus{models.OrderStatusConfirmed, models.OrderStatusShipped} {
		_, err = env.svc.UpdateOrderStatus(context.Background(), result.Order.ID,
			&models.UpdateOrderStatusRequest{Status: status})
		require.NoError(t, err)
	}

	_, err = env.svc.CancelOrder(context.Background(), result.Order.ID, "too late")
	var validationErr *models.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestRetryPayment(t *testing.T) {
	env := newTestEnv(catalogWithStock(10))
	env.payment.fail = true

	result, err := env.svc.CreateOrder(context.Background(), validRequest())
	var paymentErr *models.PaymentInitiationError
	require.ErrorAs(t, err, &paymentErr)

	env.payment.mu.Lock()
	env.payment.fail = false
	env.payment.mu.Unlock()

	retried, err := env.svc.RetryPayment(context.Background(), result.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusAwaitingPayment, retried.Order.Status)
	require.NotNil(t, retried.Payment)
}

func TestRetryPayment_WrongState(t *testing.T) {
	env := newTestEnv(catalogWithStock(10))

	result, err := env.svc.CreateOrder(context.Background(), validRequest())
	require.NoError(t, err)

	_, err = env.svc.RetryPayment(context.Background(), result.Order.ID)

	var validationErr *models.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestGetCustomerOrders_CacheHitKeepsStoreTotal(t *testing.T) {
	cfg := &config.Config{
		Checkout: config.CheckoutConfig{
			SellerCountry:         "FR",
			ShippingStandardCents: 895,
			ShippingExpressCents:  1495,
		},
		Features: config.FeatureFlags{EnableOrderCaching: true},
	}

	cache := newMapCache()
	// The customer has 7 orders in total; only the 2-order first page is
	// cached.
	cache.SetByCustomerID(context.Background(), "cust-1", []*models.Order{
		{ID: "order-1", CustomerID: "cust-1"},
		{ID: "order-2", CustomerID: "cust-1"},
	}, 7)

	svc := NewCheckoutService(
		newFakeStore(nil),
		cache,
		&fakePayment{},
		&fakeCart{},
		&fakeNotifier{},
		&fakePublisher{},
		vat.NewCalculator(vat.NewRegistry(), cfg.Checkout.SellerCountry),
		cfg,
		zap.NewNop(),
	)

	orders, total, err := svc.GetCustomerOrders(context.Background(), "cust-1", 2, 0)
	require.NoError(t, err)
	assert.Len(t, orders, 2)
	assert.Equal(t, 7, total)
}

func TestPreviewVat(t *testing.T) {
	env := newTestEnv(catalogWithStock(10))

	result := env.svc.PreviewVat(&models.VatPreviewRequest{
		Amount:       5000,
		ShippingCost: 895,
		CountryCode:  "FR",
	})

	assert.Equal(t, int64(1179), result.VatAmountCents)
	assert.Equal(t, int64(7074), result.TotalAmountCents)
	assert.Equal(t, "France", result.CountryName)
}
