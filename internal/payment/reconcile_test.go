package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/biki-cloud/online-shop/internal/cart"
	"github.com/biki-cloud/online-shop/internal/orders"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81"
)

func seedPendingOrder(t *testing.T, orderStore *mockOrderStore, orderID, userID string) {
	t.Helper()
	err := orderStore.CreateOrder(context.Background(), orderID, userID, 5500, "JPY", []orders.NewOrderItem{
		{ProductID: "p1", Quantity: 1, Price: 1000, Currency: "JPY"},
		{ProductID: "p2", Quantity: 2, Price: 2000, Currency: "JPY"},
	})
	require.NoError(t, err)
}

func paidSession(orderID string) *stripe.CheckoutSession {
	return &stripe.CheckoutSession{
		ID:            "cs_test_123",
		PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
		PaymentIntent: &stripe.PaymentIntent{ID: "pi_test_456"},
		Metadata:      map[string]string{MetadataOrderID: orderID},
	}
}

func TestHandleSessionCompleted_MarksPaidAndClearsCart(t *testing.T) {
	const orderID = "f4b7a9a2-64f4-4c3e-9f2e-0d6c1a6a0b11"
	carts := &mockCartStore{activeCart: &cart.Cart{ID: 1, UserID: "user-1", Status: cart.StatusActive}}
	orderStore := newMockOrderStore()
	seedPendingOrder(t, orderStore, orderID, "user-1")
	producer := &mockProducer{}
	svc, err := NewConf(carts, orderStore, &mockStripeClient{}, producer, testConfig())
	require.NoError(t, err)

	err = svc.HandleSessionCompleted(context.Background(), paidSession(orderID))

	require.NoError(t, err)
	order := orderStore.orders[orderID]
	assert.Equal(t, orders.StatusPaid, order.Status)
	require.NotNil(t, order.StripePaymentIntentID)
	assert.Equal(t, "pi_test_456", *order.StripePaymentIntentID)
	assert.Equal(t, 1, carts.clearCalls)
	assert.Equal(t, "user-1", carts.clearedUser)
	assert.Len(t, producer.produced, 2, "one event per order item")
}

func TestHandleSessionCompleted_Idempotent(t *testing.T) {
	const orderID = "f4b7a9a2-64f4-4c3e-9f2e-0d6c1a6a0b11"
	carts := &mockCartStore{activeCart: &cart.Cart{ID: 1, UserID: "user-1", Status: cart.StatusActive}}
	orderStore := newMockOrderStore()
	seedPendingOrder(t, orderStore, orderID, "user-1")
	producer := &mockProducer{}
	svc, err := NewConf(carts, orderStore, &mockStripeClient{}, producer, testConfig())
	require.NoError(t, err)

	require.NoError(t, svc.HandleSessionCompleted(context.Background(), paidSession(orderID)))
	// stripe redelivers the same notification
	require.NoError(t, svc.HandleSessionCompleted(context.Background(), paidSession(orderID)))

	assert.Equal(t, orders.StatusPaid, orderStore.orders[orderID].Status)
	assert.Equal(t, 1, carts.clearCalls, "cart must only be cleared once")
	assert.Len(t, producer.produced, 2, "events must only be produced once")
}

func TestHandleSessionCompleted_UnpaidSessionIgnored(t *testing.T) {
	const orderID = "f4b7a9a2-64f4-4c3e-9f2e-0d6c1a6a0b11"
	carts := &mockCartStore{activeCart: &cart.Cart{ID: 1, UserID: "user-1", Status: cart.StatusActive}}
	orderStore := newMockOrderStore()
	seedPendingOrder(t, orderStore, orderID, "user-1")
	svc, err := NewConf(carts, orderStore, &mockStripeClient{}, nil, testConfig())
	require.NoError(t, err)

	session := paidSession(orderID)
	session.PaymentStatus = stripe.CheckoutSessionPaymentStatusUnpaid

	require.NoError(t, svc.HandleSessionCompleted(context.Background(), session))
	assert.Equal(t, orders.StatusPending, orderStore.orders[orderID].Status)
	assert.Equal(t, 0, carts.clearCalls)
}

func TestHandleSessionFailed_KeepsCart(t *testing.T) {
	const orderID = "f4b7a9a2-64f4-4c3e-9f2e-0d6c1a6a0b11"
	carts := &mockCartStore{activeCart: &cart.Cart{ID: 1, UserID: "user-1", Status: cart.StatusActive}}
	orderStore := newMockOrderStore()
	seedPendingOrder(t, orderStore, orderID, "user-1")
	svc, err := NewConf(carts, orderStore, &mockStripeClient{}, nil, testConfig())
	require.NoError(t, err)

	session := &stripe.CheckoutSession{
		ID:       "cs_test_123",
		Metadata: map[string]string{MetadataOrderID: orderID},
	}
	require.NoError(t, svc.HandleSessionFailed(context.Background(), session))

	assert.Equal(t, orders.StatusFailed, orderStore.orders[orderID].Status)
	assert.Equal(t, 0, carts.clearCalls, "cart must stay intact so the user can retry")
	require.NotNil(t, carts.activeCart)
	assert.Equal(t, cart.StatusActive, carts.activeCart.Status)
}

func TestHandleSessionExpired(t *testing.T) {
	const orderID = "f4b7a9a2-64f4-4c3e-9f2e-0d6c1a6a0b11"
	carts := &mockCartStore{activeCart: &cart.Cart{ID: 1, UserID: "user-1", Status: cart.StatusActive}}
	orderStore := newMockOrderStore()
	seedPendingOrder(t, orderStore, orderID, "user-1")
	svc, err := NewConf(carts, orderStore, &mockStripeClient{}, nil, testConfig())
	require.NoError(t, err)

	session := &stripe.CheckoutSession{
		ID:       "cs_test_123",
		Metadata: map[string]string{MetadataOrderID: orderID},
	}
	require.NoError(t, svc.HandleSessionExpired(context.Background(), session))

	assert.Equal(t, orders.StatusExpired, orderStore.orders[orderID].Status)
	assert.Equal(t, 0, carts.clearCalls)
}

func TestHandleSessionCompleted_MissingMetadata(t *testing.T) {
	svc, err := NewConf(&mockCartStore{}, newMockOrderStore(), &mockStripeClient{}, nil, testConfig())
	require.NoError(t, err)

	session := &stripe.CheckoutSession{
		ID:            "cs_test_123",
		PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
	}
	err = svc.HandleSessionCompleted(context.Background(), session)
	assert.ErrorIs(t, err, ErrCorrelation)
}

func TestHandleSessionCompleted_GarbageMetadata(t *testing.T) {
	svc, err := NewConf(&mockCartStore{}, newMockOrderStore(), &mockStripeClient{}, nil, testConfig())
	require.NoError(t, err)

	session := &stripe.CheckoutSession{
		ID:            "cs_test_123",
		PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
		Metadata:      map[string]string{MetadataOrderID: "not-an-id"},
	}
	err = svc.HandleSessionCompleted(context.Background(), session)
	assert.ErrorIs(t, err, ErrCorrelation)
}

func TestHandleSessionCompleted_CartClearFailureIsNotFatal(t *testing.T) {
	const orderID = "f4b7a9a2-64f4-4c3e-9f2e-0d6c1a6a0b11"
	carts := &mockCartStore{
		activeCart: &cart.Cart{ID: 1, UserID: "user-1", Status: cart.StatusActive},
		clearErr:   errors.New("db gone"),
	}
	orderStore := newMockOrderStore()
	seedPendingOrder(t, orderStore, orderID, "user-1")
	svc, err := NewConf(carts, orderStore, &mockStripeClient{}, nil, testConfig())
	require.NoError(t, err)

	// the order transition sticks even though the cart clear failed
	require.NoError(t, svc.HandleSessionCompleted(context.Background(), paidSession(orderID)))
	assert.Equal(t, orders.StatusPaid, orderStore.orders[orderID].Status)
}

func TestHandleReturn_PaidSession(t *testing.T) {
	const orderID = "f4b7a9a2-64f4-4c3e-9f2e-0d6c1a6a0b11"
	carts := &mockCartStore{activeCart: &cart.Cart{ID: 1, UserID: "user-1", Status: cart.StatusActive}}
	orderStore := newMockOrderStore()
	seedPendingOrder(t, orderStore, orderID, "user-1")
	stripeClient := &mockStripeClient{getSession: paidSession(orderID)}
	svc, err := NewConf(carts, orderStore, stripeClient, nil, testConfig())
	require.NoError(t, err)

	order, err := svc.HandleReturn(context.Background(), "cs_test_123")

	require.NoError(t, err)
	assert.Equal(t, orders.StatusPaid, order.Status)
	assert.Equal(t, 1, carts.clearCalls)
}

func TestHandleReturn_RacesWebhook(t *testing.T) {
	// the webhook already reconciled; the user's return must converge on the
	// same terminal state without re-running side effects
	const orderID = "f4b7a9a2-64f4-4c3e-9f2e-0d6c1a6a0b11"
	carts := &mockCartStore{activeCart: &cart.Cart{ID: 1, UserID: "user-1", Status: cart.StatusActive}}
	orderStore := newMockOrderStore()
	seedPendingOrder(t, orderStore, orderID, "user-1")
	stripeClient := &mockStripeClient{getSession: paidSession(orderID)}
	svc, err := NewConf(carts, orderStore, stripeClient, nil, testConfig())
	require.NoError(t, err)

	require.NoError(t, svc.HandleSessionCompleted(context.Background(), paidSession(orderID)))

	order, err := svc.HandleReturn(context.Background(), "cs_test_123")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPaid, order.Status)
	assert.Equal(t, 1, carts.clearCalls)
}

func TestHandleReturn_OpenSessionStaysPending(t *testing.T) {
	const orderID = "f4b7a9a2-64f4-4c3e-9f2e-0d6c1a6a0b11"
	orderStore := newMockOrderStore()
	seedPendingOrder(t, orderStore, orderID, "user-1")
	stripeClient := &mockStripeClient{getSession: &stripe.CheckoutSession{
		ID:            "cs_test_123",
		Status:        stripe.CheckoutSessionStatusOpen,
		PaymentStatus: stripe.CheckoutSessionPaymentStatusUnpaid,
		Metadata:      map[string]string{MetadataOrderID: orderID},
	}}
	svc, err := NewConf(&mockCartStore{}, orderStore, stripeClient, nil, testConfig())
	require.NoError(t, err)

	order, err := svc.HandleReturn(context.Background(), "cs_test_123")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, order.Status)
}

func TestHandleReturn_StripeUnreachable(t *testing.T) {
	stripeClient := &mockStripeClient{getErr: errors.New("connection refused")}
	svc, err := NewConf(&mockCartStore{}, newMockOrderStore(), stripeClient, nil, testConfig())
	require.NoError(t, err)

	_, err = svc.HandleReturn(context.Background(), "cs_test_123")
	assert.ErrorIs(t, err, ErrPaymentProvider)
}
