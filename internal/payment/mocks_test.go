package payment

import (
	"context"
	"fmt"

	"github.com/biki-cloud/online-shop/internal/cart"
	"github.com/biki-cloud/online-shop/internal/orders"

	"github.com/stripe/stripe-go/v81"
)

// mockCartStore implements CartStore for testing.
type mockCartStore struct {
	activeCart  *cart.Cart
	items       []cart.DetailedItem
	clearCalls  int
	clearErr    error
	clearedUser string
}

func (m *mockCartStore) FindActiveCart(_ context.Context, userID string) (cart.Cart, error) {
	if m.activeCart == nil {
		return cart.Cart{}, cart.ErrNoActiveCart
	}
	return *m.activeCart, nil
}

func (m *mockCartStore) GetCartItems(_ context.Context, cartID int64) ([]cart.DetailedItem, error) {
	return m.items, nil
}

func (m *mockCartStore) Clear(_ context.Context, userID string) error {
	if m.clearErr != nil {
		return m.clearErr
	}
	m.clearCalls++
	m.clearedUser = userID
	if m.activeCart != nil {
		m.activeCart.Status = cart.StatusCompleted
		m.activeCart = nil
	}
	return nil
}

// mockOrderStore keeps orders in memory and mirrors the store's
// pending-only transition rule.
type mockOrderStore struct {
	orders     map[string]*orders.Order
	orderItems map[string][]orders.OrderItem
	createErr  error
}

func newMockOrderStore() *mockOrderStore {
	return &mockOrderStore{
		orders:     map[string]*orders.Order{},
		orderItems: map[string][]orders.OrderItem{},
	}
}

func (m *mockOrderStore) CreateOrder(_ context.Context, orderID string, userID string, totalAmount int64, currency string, items []orders.NewOrderItem) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.orders[orderID] = &orders.Order{
		ID:          orderID,
		UserID:      userID,
		Status:      orders.StatusPending,
		TotalAmount: totalAmount,
		Currency:    currency,
	}
	for _, item := range items {
		m.orderItems[orderID] = append(m.orderItems[orderID], orders.OrderItem{
			OrderID:   orderID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
			Currency:  item.Currency,
		})
	}
	return nil
}

func (m *mockOrderStore) SetStripeSession(_ context.Context, orderID string, sessionID string) error {
	o, ok := m.orders[orderID]
	if !ok {
		return orders.ErrOrderNotFound
	}
	o.StripeSessionID = &sessionID
	return nil
}

func (m *mockOrderStore) Transition(_ context.Context, orderID string, to orders.Status, paymentIntentID string) (bool, error) {
	o, ok := m.orders[orderID]
	if !ok {
		return false, orders.ErrOrderNotFound
	}
	if o.Status != orders.StatusPending {
		return false, nil
	}
	o.Status = to
	if paymentIntentID != "" {
		o.StripePaymentIntentID = &paymentIntentID
	}
	return true, nil
}

func (m *mockOrderStore) GetOrder(_ context.Context, orderID string) (orders.Order, error) {
	o, ok := m.orders[orderID]
	if !ok {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	return *o, nil
}

func (m *mockOrderStore) GetOrderItems(_ context.Context, orderID string) ([]orders.OrderItem, error) {
	return m.orderItems[orderID], nil
}

func (m *mockOrderStore) single() *orders.Order {
	for _, o := range m.orders {
		return o
	}
	return nil
}

// mockStripeClient captures session params and serves canned sessions.
type mockStripeClient struct {
	createdParams *stripe.CheckoutSessionParams
	createErr     error
	session       *stripe.CheckoutSession
	getSession    *stripe.CheckoutSession
	getErr        error
}

func (m *mockStripeClient) NewCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	m.createdParams = params
	if m.createErr != nil {
		return nil, m.createErr
	}
	if m.session != nil {
		return m.session, nil
	}
	return &stripe.CheckoutSession{
		ID:  "cs_test_123",
		URL: "https://checkout.stripe.test/pay/cs_test_123",
	}, nil
}

func (m *mockStripeClient) GetCheckoutSession(sessionID string, _ *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.getSession == nil {
		return nil, fmt.Errorf("no such session: %s", sessionID)
	}
	return m.getSession, nil
}

// mockProducer records produced events.
type mockProducer struct {
	produced [][]byte
	err      error
}

func (m *mockProducer) ProduceMessage(topic string, key []byte, value []byte) error {
	if m.err != nil {
		return m.err
	}
	m.produced = append(m.produced, value)
	return nil
}
