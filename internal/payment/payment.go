// Package payment orchestrates the checkout handoff to stripe and the
// reconciliation of order status from stripe's payment outcome notifications.
package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/biki-cloud/online-shop/internal/cart"
	"github.com/biki-cloud/online-shop/internal/orders"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v81"
)

var (
	// ErrEmptyCart signals the caller to send the user back to the cart page.
	ErrEmptyCart = errors.New("cart is empty, nothing to check out")

	// ErrPaymentProvider wraps failures talking to stripe. The order stays
	// pending and checkout may be retried.
	ErrPaymentProvider = errors.New("payment provider request failed")

	// ErrCorrelation means a notification carried no usable order reference.
	// It is logged and discarded, never propagated as a handler failure.
	ErrCorrelation = errors.New("notification has no usable order correlation metadata")
)

// MetadataOrderID is the metadata key stripe echoes back on notifications,
// correlating them to the originating order.
const MetadataOrderID = "order_id"

type Config struct {
	TaxRate    float64 // e.g. 0.10
	Currency   string  // store operating currency, e.g. JPY
	SuccessURL string  // stripe appends the session id placeholder value
	CancelURL  string
}

type CartStore interface {
	FindActiveCart(ctx context.Context, userID string) (cart.Cart, error)
	GetCartItems(ctx context.Context, cartID int64) ([]cart.DetailedItem, error)
	Clear(ctx context.Context, userID string) error
}

type OrderStore interface {
	CreateOrder(ctx context.Context, orderID string, userID string, totalAmount int64, currency string, items []orders.NewOrderItem) error
	SetStripeSession(ctx context.Context, orderID string, sessionID string) error
	Transition(ctx context.Context, orderID string, to orders.Status, paymentIntentID string) (bool, error)
	GetOrder(ctx context.Context, orderID string) (orders.Order, error)
	GetOrderItems(ctx context.Context, orderID string) ([]orders.OrderItem, error)
}

// StripeClient is the slice of the stripe API this package uses; the live
// implementation is in stripe.go.
type StripeClient interface {
	NewCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	GetCheckoutSession(sessionID string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// EventProducer publishes order lifecycle events. May be nil when the broker
// is not configured.
type EventProducer interface {
	ProduceMessage(topic string, key []byte, value []byte) error
}

type Conf struct {
	carts  CartStore
	orders OrderStore
	stripe StripeClient
	events EventProducer
	cfg    Config
}

func NewConf(carts CartStore, orderStore OrderStore, stripeClient StripeClient, events EventProducer, cfg Config) (*Conf, error) {
	if carts == nil || orderStore == nil || stripeClient == nil {
		return nil, fmt.Errorf("nil dependency passed to payment.NewConf")
	}
	if cfg.TaxRate < 0 || cfg.TaxRate >= 1 {
		return nil, fmt.Errorf("tax rate %v out of range", cfg.TaxRate)
	}
	if cfg.Currency == "" {
		return nil, fmt.Errorf("currency is not set")
	}
	return &Conf{carts: carts, orders: orderStore, stripe: stripeClient, events: events, cfg: cfg}, nil
}

// orderIDFromSession extracts and validates the correlation metadata.
func orderIDFromSession(session *stripe.CheckoutSession) (string, error) {
	if session == nil || session.Metadata == nil {
		return "", ErrCorrelation
	}
	orderID := session.Metadata[MetadataOrderID]
	if orderID == "" {
		return "", ErrCorrelation
	}
	if _, err := uuid.Parse(orderID); err != nil {
		return "", fmt.Errorf("%w: %q is not an order id", ErrCorrelation, orderID)
	}
	return orderID, nil
}
