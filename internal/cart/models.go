package cart

import "time"

const (
	StatusActive    = "active"
	StatusCompleted = "completed"
)

type Cart struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CartItem struct {
	ID        int64     `json:"id"`
	CartID    int64     `json:"cart_id"`
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DetailedItem is a cart item joined with its product. Items whose product no
// longer exists are not returned at all.
type DetailedItem struct {
	CartItemID  int64  `json:"cart_item_id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	Price       int64  `json:"price"` // per unit, smallest currency unit
	Currency    string `json:"currency"`
}
