package events

import "time"

// LowStockAlert tells the notification worker a product dropped below the
// low-stock threshold.
type LowStockAlert struct {
	EventType string    `json:"eventType"`
	ProductID string    `json:"productId"`
	Name      string    `json:"name"`
	Stock     int       `json:"stock"`
	Timestamp time.Time `json:"timestamp"`
}

type OrderLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

// OrderEvent is shared by every order lifecycle notification; EventType
// tells the worker which templates to render (customer, admin or both).
type OrderEvent struct {
	EventType   string      `json:"eventType"`
	OrderID     string      `json:"orderId"`
	UserID      string      `json:"userId"`
	Status      string      `json:"status"`
	TotalAmount string      `json:"totalAmount"`
	Items       []OrderLine `json:"items"`
	Timestamp   time.Time   `json:"timestamp"`
}
