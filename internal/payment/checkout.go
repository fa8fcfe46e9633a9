package payment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/biki-cloud/online-shop/internal/cart"
	"github.com/biki-cloud/online-shop/internal/orders"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v81"
)

// InitiateCheckout snapshots the user's active cart into a pending order,
// creates a hosted stripe checkout session for it, and returns the redirect
// URL. It does not wait for payment; the reconciliation paths in reconcile.go
// finish the order later.
//
// If stripe is unreachable the order is left pending without a session id and
// the user may retry; a retry creates a fresh pending order. Pending orders
// are deliberately not deduplicated here, matching the storefront's existing
// behavior.
func (c *Conf) InitiateCheckout(ctx context.Context, userID string) (string, error) {
	activeCart, err := c.carts.FindActiveCart(ctx, userID)
	if err != nil {
		if errors.Is(err, cart.ErrNoActiveCart) {
			return "", ErrEmptyCart
		}
		return "", fmt.Errorf("failed to load active cart: %w", err)
	}

	items, err := c.carts.GetCartItems(ctx, activeCart.ID)
	if err != nil {
		return "", fmt.Errorf("failed to load cart items: %w", err)
	}
	if len(items) == 0 {
		return "", ErrEmptyCart
	}

	var subtotal int64
	for _, item := range items {
		subtotal += item.Price * int64(item.Quantity)
	}
	tax := int64(math.Round(float64(subtotal) * c.cfg.TaxRate))
	total := subtotal + tax

	orderID := uuid.NewString()
	orderItems := make([]orders.NewOrderItem, 0, len(items))
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(items))
	for _, item := range items {
		orderItems = append(orderItems, orders.NewOrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
			Currency:  item.Currency,
		})

		unitWithTax := int64(math.Round(float64(item.Price) * (1 + c.cfg.TaxRate)))
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(item.Currency)),
				UnitAmount: stripe.Int64(unitWithTax),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.ProductName),
				},
			},
			Quantity: stripe.Int64(int64(item.Quantity)),
		})
	}

	if err := c.orders.CreateOrder(ctx, orderID, userID, total, c.cfg.Currency, orderItems); err != nil {
		return "", fmt.Errorf("failed to create order: %w", err)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:  lineItems,
		SuccessURL: stripe.String(c.cfg.SuccessURL + "?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(c.cfg.CancelURL),
		Metadata: map[string]string{
			MetadataOrderID: orderID,
		},
	}
	session, err := c.stripe.NewCheckoutSession(params)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPaymentProvider, err)
	}

	if err := c.orders.SetStripeSession(ctx, orderID, session.ID); err != nil {
		return "", fmt.Errorf("failed to record stripe session: %w", err)
	}
	return session.URL, nil
}
