package cart

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is an outstanding reservation: its quantity has already been
// subtracted from the product's stock counter.
type Item struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	ProductID string    `json:"productId"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"createdAt"`
}

// ItemView joins an item to its product's display fields for the cart page.
type ItemView struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"productId"`
	Quantity    int             `json:"quantity"`
	ProductName string          `json:"productName"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"imageUrl,omitempty"`
}

// Confirmation is returned by removals.
type Confirmation struct {
	Message string `json:"message"`
}
