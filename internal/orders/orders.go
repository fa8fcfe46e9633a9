package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var ErrOrderNotFound = errors.New("order not found")

type Conf struct {
	db *sql.DB
}

func NewConf(db *sql.DB) (*Conf, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Conf{db: db}, nil
}

// CreateOrder inserts the pending order together with its frozen item
// snapshot in one transaction.
func (c *Conf) CreateOrder(ctx context.Context, orderID string, userID string, totalAmount int64, currency string, items []NewOrderItem) error {
	return c.withTx(ctx, func(tx *sql.Tx) error {
		queryOrder := `
			INSERT INTO orders (id, user_id, status, total_amount, currency, created_at, updated_at)
			VALUES ($1, $2, 'pending', $3, $4, NOW(), NOW())
		`
		if _, err := tx.ExecContext(ctx, queryOrder, orderID, userID, totalAmount, currency); err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}

		queryItem := `
			INSERT INTO order_items (order_id, product_id, quantity, price, currency, created_at)
			VALUES ($1, $2, $3, $4, $5, NOW())
		`
		for _, item := range items {
			if _, err := tx.ExecContext(ctx, queryItem, orderID, item.ProductID,
				item.Quantity, item.Price, item.Currency); err != nil {
				return fmt.Errorf("failed to insert order item: %w", err)
			}
		}
		return nil
	})
}

// SetStripeSession records the checkout session id handed back by stripe.
// The order stays pending.
func (c *Conf) SetStripeSession(ctx context.Context, orderID string, sessionID string) error {
	res, err := c.db.ExecContext(ctx, `
		UPDATE orders SET stripe_session_id = $2, updated_at = NOW() WHERE id = $1
	`, orderID, sessionID)
	if err != nil {
		return fmt.Errorf("failed to set stripe session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// Transition moves a pending order into the given terminal state with one
// conditional update. It reports whether this call performed the transition:
// (false, nil) means the order was already in a terminal state, so redelivered
// notifications and the synchronous return path converge on the same row
// without fighting each other.
func (c *Conf) Transition(ctx context.Context, orderID string, to Status, paymentIntentID string) (bool, error) {
	if !to.IsTerminal() {
		return false, fmt.Errorf("cannot transition order %s to non-terminal status %s", orderID, to)
	}

	query := `
		UPDATE orders
		SET status = $2,
		    stripe_payment_intent_id = COALESCE(NULLIF($3, ''), stripe_payment_intent_id),
		    updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`
	res, err := c.db.ExecContext(ctx, query, orderID, to, paymentIntentID)
	if err != nil {
		return false, fmt.Errorf("failed to transition order: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 1 {
		return true, nil
	}

	// no row moved: either the order does not exist, or it is already terminal
	var current Status
	err = c.db.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = $1`, orderID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrOrderNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to query order status: %w", err)
	}
	return false, nil
}

func (c *Conf) GetOrder(ctx context.Context, orderID string) (Order, error) {
	query := `
		SELECT id, user_id, status, total_amount, currency, stripe_session_id,
		       stripe_payment_intent_id, shipping_address, created_at, updated_at
		FROM orders WHERE id = $1
	`
	return c.scanOrder(c.db.QueryRowContext(ctx, query, orderID))
}

func (c *Conf) GetOrderByStripeSessionID(ctx context.Context, sessionID string) (Order, error) {
	query := `
		SELECT id, user_id, status, total_amount, currency, stripe_session_id,
		       stripe_payment_intent_id, shipping_address, created_at, updated_at
		FROM orders WHERE stripe_session_id = $1
	`
	return c.scanOrder(c.db.QueryRowContext(ctx, query, sessionID))
}

func (c *Conf) ListOrdersByUser(ctx context.Context, userID string) ([]Order, error) {
	query := `
		SELECT id, user_id, status, total_amount, currency, stripe_session_id,
		       stripe_payment_intent_id, shipping_address, created_at, updated_at
		FROM orders WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := c.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var list []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.Status, &o.TotalAmount, &o.Currency,
			&o.StripeSessionID, &o.StripePaymentIntentID, &o.ShippingAddress,
			&o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		list = append(list, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}
	return list, nil
}

func (c *Conf) GetOrderItems(ctx context.Context, orderID string) ([]OrderItem, error) {
	query := `
		SELECT id, order_id, product_id, quantity, price, currency, created_at
		FROM order_items WHERE order_id = $1
		ORDER BY id
	`
	rows, err := c.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity,
			&item.Price, &item.Currency, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}
	return items, nil
}

func (c *Conf) scanOrder(row *sql.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.UserID, &o.Status, &o.TotalAmount, &o.Currency,
		&o.StripeSessionID, &o.StripePaymentIntentID, &o.ShippingAddress,
		&o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	if err != nil {
		return Order{}, fmt.Errorf("failed to scan order: %w", err)
	}
	return o, nil
}

func (c *Conf) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		if er := tx.Rollback(); er != nil && !errors.Is(er, sql.ErrTxDone) {
			return fmt.Errorf("failed to rollback tx: %w", er)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tx: %w", err)
	}
	return nil
}
