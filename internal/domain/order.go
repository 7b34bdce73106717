package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderState string

const (
	OrderStatePending   OrderState = "pending"
	OrderStateInProcess OrderState = "in-process"
	OrderStateSent      OrderState = "sent"
	OrderStateReceived  OrderState = "received"
	OrderStateCancelled OrderState = "cancelled"
)

func (s OrderState) Valid() bool {
	switch s {
	case OrderStatePending, OrderStateInProcess, OrderStateSent, OrderStateReceived, OrderStateCancelled:
		return true
	}
	return false
}

func (s OrderState) Terminal() bool {
	return s == OrderStateReceived || s == OrderStateCancelled
}

// CanTransition reports whether the state machine allows moving to next.
// Forward-only pending → in-process → sent → received; any non-terminal
// state may be cancelled.
func (s OrderState) CanTransition(next OrderState) bool {
	if s.Terminal() {
		return false
	}
	if next == OrderStateCancelled {
		return true
	}
	switch s {
	case OrderStatePending:
		return next == OrderStateInProcess
	case OrderStateInProcess:
		return next == OrderStateSent
	case OrderStateSent:
		return next == OrderStateReceived
	}
	return false
}

type DeliveryMethod string

const (
	DeliveryStandard DeliveryMethod = "standard"
	DeliveryExpress  DeliveryMethod = "express"
	DeliveryUrgent   DeliveryMethod = "urgent"
)

func (m DeliveryMethod) Valid() bool {
	switch m {
	case DeliveryStandard, DeliveryExpress, DeliveryUrgent:
		return true
	}
	return false
}

type ShippingAddress struct {
	Street   string `json:"street"`
	Number   string `json:"number"`
	Postal   string `json:"postal"`
	City     string `json:"city"`
	Province string `json:"province"`
}

// OrderItem is an immutable snapshot: UnitPrice is the effective price
// captured at reservation time, never a live reference to the product.
type OrderItem struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type Order struct {
	ID              string          `json:"id"`
	ClientID        string          `json:"client_id"`
	State           OrderState      `json:"state"`
	DeliveryMethod  DeliveryMethod  `json:"delivery_method"`
	Items           []OrderItem     `json:"items"`
	Total           decimal.Decimal `json:"total"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
