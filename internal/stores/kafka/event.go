package kafka

import "time"

const (
	TopicOrderPaid = `orders.order-paid`
)

// OrderPaidEvent is produced for every line item of a successfully paid order.
type OrderPaidEvent struct {
	OrderId   string    `json:"order_id"`
	ProductId string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}
