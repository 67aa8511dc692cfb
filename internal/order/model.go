package order

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Item is a snapshot taken at order creation: price and quantity are immune
// to later catalog changes.
type Item struct {
	ProductID   string          `json:"productId"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	ProductName string          `json:"productName,omitempty"`
	ImageURL    string          `json:"imageUrl,omitempty"`
}

type Address struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type Order struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	Status      Status          `json:"status"`
	IsPaid      bool            `json:"isPaid"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Address     Address         `json:"shippingAddress"`
	Items       []Item          `json:"items"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}
