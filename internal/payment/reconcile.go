package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/biki-cloud/online-shop/internal/orders"
	"github.com/biki-cloud/online-shop/internal/stores/kafka"
	"github.com/biki-cloud/online-shop/pkg/logkey"

	"github.com/stripe/stripe-go/v81"
)

// HandleSessionCompleted advances the order referenced by a completed
// checkout session. Sessions that completed without the payment actually
// settling yet are ignored; stripe will follow up with another event.
func (c *Conf) HandleSessionCompleted(ctx context.Context, session *stripe.CheckoutSession) error {
	if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return nil
	}
	orderID, err := orderIDFromSession(session)
	if err != nil {
		return err
	}
	paymentIntentID := ""
	if session.PaymentIntent != nil {
		paymentIntentID = session.PaymentIntent.ID
	}
	return c.reconcile(ctx, orderID, orders.StatusPaid, paymentIntentID)
}

// HandleSessionFailed marks the order failed. The cart is left untouched so
// the user can try again with the same items.
func (c *Conf) HandleSessionFailed(ctx context.Context, session *stripe.CheckoutSession) error {
	orderID, err := orderIDFromSession(session)
	if err != nil {
		return err
	}
	return c.reconcile(ctx, orderID, orders.StatusFailed, "")
}

// HandleSessionExpired marks the order expired. The cart is left untouched.
func (c *Conf) HandleSessionExpired(ctx context.Context, session *stripe.CheckoutSession) error {
	orderID, err := orderIDFromSession(session)
	if err != nil {
		return err
	}
	return c.reconcile(ctx, orderID, orders.StatusExpired, "")
}

// HandleReturn is the synchronous entry point, hit when the user comes back
// from the stripe payment page. It fetches the session state eagerly and runs
// the same reconciliation the webhook would, so the user sees the final order
// status without waiting for the asynchronous notification to arrive.
func (c *Conf) HandleReturn(ctx context.Context, sessionID string) (orders.Order, error) {
	session, err := c.stripe.GetCheckoutSession(sessionID, nil)
	if err != nil {
		return orders.Order{}, fmt.Errorf("%w: %v", ErrPaymentProvider, err)
	}

	orderID, err := orderIDFromSession(session)
	if err != nil {
		return orders.Order{}, err
	}

	switch {
	case session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid:
		if err := c.reconcile(ctx, orderID, orders.StatusPaid, paymentIntentID(session)); err != nil {
			return orders.Order{}, err
		}
	case session.Status == stripe.CheckoutSessionStatusExpired:
		if err := c.reconcile(ctx, orderID, orders.StatusExpired, ""); err != nil {
			return orders.Order{}, err
		}
	default:
		// payment still in flight, leave the order pending
	}

	return c.orders.GetOrder(ctx, orderID)
}

// reconcile is the single idempotent transition function both entry points
// converge on. The store only moves pending orders, so running this twice for
// the same notification leaves the same end state and performs the success
// side effects exactly once.
func (c *Conf) reconcile(ctx context.Context, orderID string, to orders.Status, paymentIntentID string) error {
	transitioned, err := c.orders.Transition(ctx, orderID, to, paymentIntentID)
	if err != nil {
		return fmt.Errorf("failed to transition order %s: %w", orderID, err)
	}
	if !transitioned {
		slog.Info("order already in a terminal state, notification ignored",
			slog.String(logkey.OrderID, orderID), slog.String("Status", to.String()))
		return nil
	}

	slog.Info("order status updated", slog.String(logkey.OrderID, orderID), slog.String("Status", to.String()))

	if to != orders.StatusPaid {
		return nil
	}

	order, err := c.orders.GetOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to load order %s after transition: %w", orderID, err)
	}

	// the order is already paid at this point; a failed clear must not
	// turn into a webhook failure
	if err := c.carts.Clear(ctx, order.UserID); err != nil {
		slog.Warn("order paid but cart clear failed",
			slog.String(logkey.OrderID, orderID), slog.String(logkey.UserID, order.UserID),
			slog.String(logkey.ERROR, err.Error()))
	}

	c.publishOrderPaid(ctx, order)
	return nil
}

func (c *Conf) publishOrderPaid(ctx context.Context, order orders.Order) {
	if c.events == nil {
		return
	}

	items, err := c.orders.GetOrderItems(ctx, order.ID)
	if err != nil {
		slog.Error("failed to load order items for event publish",
			slog.String(logkey.OrderID, order.ID), slog.String(logkey.ERROR, err.Error()))
		return
	}

	for _, item := range items {
		data, err := json.Marshal(kafka.OrderPaidEvent{
			OrderId:   order.ID,
			ProductId: item.ProductID,
			Quantity:  item.Quantity,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			slog.Error("failed to marshal order paid event", slog.String(logkey.ERROR, err.Error()))
			return
		}
		if err := c.events.ProduceMessage(kafka.TopicOrderPaid, []byte(order.ID), data); err != nil {
			slog.Error("failed to produce order paid event",
				slog.String(logkey.OrderID, order.ID), slog.String(logkey.ERROR, err.Error()))
			return
		}
	}
}

func paymentIntentID(session *stripe.CheckoutSession) string {
	if session.PaymentIntent == nil {
		return ""
	}
	return session.PaymentIntent.ID
}
