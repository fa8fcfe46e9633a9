package orders

import "time"

type Status string

// An order starts pending and moves to exactly one terminal state. There is
// no transition out of a terminal state.
const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusFailed  Status = "failed"
	StatusExpired Status = "expired"
)

func (s Status) IsTerminal() bool {
	return s == StatusPaid || s == StatusFailed || s == StatusExpired
}

func (s Status) String() string {
	return string(s)
}

type Order struct {
	ID                    string    `json:"id"`
	UserID                string    `json:"user_id"`
	Status                Status    `json:"status"`
	TotalAmount           int64     `json:"total_amount"` // smallest currency unit
	Currency              string    `json:"currency"`
	StripeSessionID       *string   `json:"stripe_session_id,omitempty"`
	StripePaymentIntentID *string   `json:"stripe_payment_intent_id,omitempty"`
	ShippingAddress       *string   `json:"shipping_address,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// OrderItem freezes the product's price and currency at order-creation time.
// Later product price changes never affect existing orders.
type OrderItem struct {
	ID        int64     `json:"id"`
	OrderID   string    `json:"order_id"`
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Price     int64     `json:"price"` // per unit snapshot
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
}

type NewOrderItem struct {
	ProductID string
	Quantity  int
	Price     int64
	Currency  string
}
