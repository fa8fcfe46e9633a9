package logkey

// Keys used for structured logging attributes across the service.
const (
	TraceID = "Trace ID"
	ERROR   = "Error"
	OrderID = "Order ID"
	UserID  = "User ID"
)
