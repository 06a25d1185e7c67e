package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderCreated    OrderStatus = "created"
	OrderProcessing OrderStatus = "processing"
	OrderPaid       OrderStatus = "paid"
	OrderCompleted  OrderStatus = "completed"
	OrderFailed     OrderStatus = "failed"
	OrderCancelled  OrderStatus = "cancelled"
)

// OrderStatuses lists the built-in order statuses in display order.
var OrderStatuses = []OrderStatus{
	OrderCreated,
	OrderProcessing,
	OrderPaid,
	OrderCompleted,
	OrderFailed,
	OrderCancelled,
}

// DefaultStatus is the settings sentinel meaning "use the store's built-in status".
const DefaultStatus = "default"

type Customer struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state"`
	Postcode  string `json:"postcode"`
	Country   string `json:"country"`
}

type LineItem struct {
	ProductID string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Total     decimal.Decimal `json:"total_amount"`
	Quantity  int             `json:"quantity"`
}

// Order is the external order record the gateway reads and transitions.
type Order struct {
	ID               string
	Total            decimal.Decimal
	Currency         string
	Customer         Customer
	Items            []LineItem
	Status           OrderStatus
	PaymentReference string
	TransactionID    string
	PaidAt           *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (o *Order) IsPaid() bool {
	return o.PaidAt != nil
}

// OrderNote is an annotation attached to an order's history.
type OrderNote struct {
	OrderID   string
	Note      string
	CreatedAt time.Time
}
