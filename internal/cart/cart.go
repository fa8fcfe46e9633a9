package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var (
	ErrNoActiveCart    = errors.New("no active cart for user")
	ErrItemNotFound    = errors.New("cart item not found")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

type Conf struct {
	db *sql.DB
}

func NewConf(db *sql.DB) (*Conf, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Conf{db: db}, nil
}

// FindActiveCart returns the single active cart for the user. A completed cart
// is never returned.
func (c *Conf) FindActiveCart(ctx context.Context, userID string) (Cart, error) {
	query := `
		SELECT id, user_id, status, created_at, updated_at
		FROM carts
		WHERE user_id = $1 AND status = 'active'
	`
	var crt Cart
	err := c.db.QueryRowContext(ctx, query, userID).Scan(
		&crt.ID, &crt.UserID, &crt.Status, &crt.CreatedAt, &crt.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Cart{}, ErrNoActiveCart
	}
	if err != nil {
		return Cart{}, fmt.Errorf("failed to query active cart: %w", err)
	}
	return crt, nil
}

// AddItem resolves (or lazily creates) the user's active cart and adds the
// product to it. Adding a product already in the cart increments the existing
// row's quantity instead of inserting a duplicate.
func (c *Conf) AddItem(ctx context.Context, userID string, productID string, quantity int) (CartItem, error) {
	if quantity < 1 {
		return CartItem{}, ErrInvalidQuantity
	}

	var item CartItem
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		var cartID int64

		queryActiveCart := `
			SELECT id
			FROM carts
			WHERE user_id = $1 AND status = 'active'
			FOR UPDATE
		`
		err := tx.QueryRowContext(ctx, queryActiveCart, userID).Scan(&cartID)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("failed to query active cart: %w", err)
			}
			queryCreateCart := `
				INSERT INTO carts (user_id, status, created_at, updated_at)
				VALUES ($1, 'active', NOW(), NOW())
				RETURNING id
			`
			if err := tx.QueryRowContext(ctx, queryCreateCart, userID).Scan(&cartID); err != nil {
				return fmt.Errorf("failed to create new cart: %w", err)
			}
		}

		// single atomic upsert keeps concurrent increments from losing updates
		queryUpsertItem := `
			INSERT INTO cart_items (cart_id, product_id, quantity, created_at, updated_at)
			VALUES ($1, $2, $3, NOW(), NOW())
			ON CONFLICT (cart_id, product_id)
			DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = NOW()
			RETURNING id, cart_id, product_id, quantity, created_at, updated_at
		`
		err = tx.QueryRowContext(ctx, queryUpsertItem, cartID, productID, quantity).Scan(
			&item.ID, &item.CartID, &item.ProductID, &item.Quantity, &item.CreatedAt, &item.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to upsert cart item: %w", err)
		}

		return c.touchCart(ctx, tx, cartID)
	})
	if err != nil {
		return CartItem{}, err
	}
	return item, nil
}

// UpdateItemQuantity overwrites the quantity of an existing cart item.
func (c *Conf) UpdateItemQuantity(ctx context.Context, cartItemID int64, quantity int) (CartItem, error) {
	if quantity < 1 {
		return CartItem{}, ErrInvalidQuantity
	}

	var item CartItem
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		query := `
			UPDATE cart_items
			SET quantity = $2, updated_at = NOW()
			WHERE id = $1
			RETURNING id, cart_id, product_id, quantity, created_at, updated_at
		`
		err := tx.QueryRowContext(ctx, query, cartItemID, quantity).Scan(
			&item.ID, &item.CartID, &item.ProductID, &item.Quantity, &item.CreatedAt, &item.UpdatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrItemNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to update cart item: %w", err)
		}
		return c.touchCart(ctx, tx, item.CartID)
	})
	if err != nil {
		return CartItem{}, err
	}
	return item, nil
}

// RemoveItem deletes the cart item. Removing an item that is already gone is
// not an error; the bool reports whether a row was actually deleted.
func (c *Conf) RemoveItem(ctx context.Context, cartItemID int64) (bool, error) {
	var removed bool
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		var cartID int64
		err := tx.QueryRowContext(ctx,
			`DELETE FROM cart_items WHERE id = $1 RETURNING cart_id`, cartItemID).Scan(&cartID)
		if errors.Is(err, sql.ErrNoRows) {
			removed = false
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to delete cart item: %w", err)
		}
		removed = true
		return c.touchCart(ctx, tx, cartID)
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// Clear marks the user's active cart completed and deletes its items, so a
// later FindActiveCart starts fresh. Clearing when no active cart exists is a
// no-op.
func (c *Conf) Clear(ctx context.Context, userID string) error {
	return c.withTx(ctx, func(tx *sql.Tx) error {
		var cartID int64
		query := `
			UPDATE carts
			SET status = 'completed', updated_at = NOW()
			WHERE user_id = $1 AND status = 'active'
			RETURNING id
		`
		err := tx.QueryRowContext(ctx, query, userID).Scan(&cartID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to complete cart: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
			return fmt.Errorf("failed to delete cart items: %w", err)
		}
		return nil
	})
}

// GetCartItems returns the cart's items joined with their products. Items
// whose product has since been deleted are skipped.
func (c *Conf) GetCartItems(ctx context.Context, cartID int64) ([]DetailedItem, error) {
	query := `
		SELECT ci.id, ci.product_id, p.name, ci.quantity, p.price, p.currency
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at
	`
	rows, err := c.db.QueryContext(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	defer rows.Close()

	var items []DetailedItem
	for rows.Next() {
		var item DetailedItem
		if err := rows.Scan(&item.CartItemID, &item.ProductID, &item.ProductName,
			&item.Quantity, &item.Price, &item.Currency); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart items: %w", err)
	}
	return items, nil
}

func (c *Conf) touchCart(ctx context.Context, tx *sql.Tx, cartID int64) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE carts SET updated_at = NOW() WHERE id = $1`, cartID); err != nil {
		return fmt.Errorf("failed to touch cart: %w", err)
	}
	return nil
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
