package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderCreatedEvent is published after the order creation transaction
// commits. It carries everything the notification worker needs so the
// worker never reads the orders tables.
type OrderCreatedEvent struct {
	OrderID        string          `json:"order_id"`
	ClientID       string          `json:"client_id"`
	ClientEmail    string          `json:"client_email"`
	Items          []OrderItem     `json:"items"`
	Total          decimal.Decimal `json:"total"`
	DeliveryMethod DeliveryMethod  `json:"delivery_method"`
	Timestamp      time.Time       `json:"timestamp"`
}
