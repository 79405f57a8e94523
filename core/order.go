package core

import (
	"fmt"
	"time"
)

// OrderFilter defines a function type for filtering orders
type OrderFilter func(order Order) bool

// SideType represents the direction of an order (BUY or SELL)
type SideType string

// OrderType represents the type of order (LIMIT, MARKET, etc.)
type OrderType string

// OrderStatusType represents the status of an order (NEW, FILLED, etc.)
type OrderStatusType string

// Order side constants
const (
	SideTypeBuy  SideType = "BUY"
	SideTypeSell SideType = "SELL"
)

// Order type constants
const (
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeMarket OrderType = "MARKET"
)

// Order status constants
const (
	OrderStatusTypeNew             OrderStatusType = "NEW"
	OrderStatusTypePartiallyFilled OrderStatusType = "PARTIALLY_FILLED"
	OrderStatusTypeFilled          OrderStatusType = "FILLED"
	OrderStatusTypeCanceled        OrderStatusType = "CANCELED"
	OrderStatusTypeRejected        OrderStatusType = "REJECTED"
)

// Order represents a trading order with its properties and status
type Order struct {
	ID         int64           `db:"id" json:"id" gorm:"primaryKey,autoIncrement"`
	ExchangeID string          `db:"exchange_id" json:"exchange_id"`
	Pair       string          `db:"pair" json:"pair"`
	Side       SideType        `db:"side" json:"side"`
	Type       OrderType       `db:"type" json:"type"`
	Status     OrderStatusType `db:"status" json:"status"`
	Price      float64         `db:"price" json:"price"`
	Quantity   float64         `db:"quantity" json:"quantity"`

	// AnnouncementID links the order to the announcement that triggered it.
	// One order per announcement; duplicate triggers are rejected on it.
	AnnouncementID string `db:"announcement_id" json:"announcement_id"`

	// Attached conditional close prices, nil when not set
	Stop *float64 `db:"stop" json:"stop"`
	Take *float64 `db:"take" json:"take"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// GetValue returns the total value of the order (price * quantity)
func (o Order) GetValue() float64 {
	return o.Price * o.Quantity
}

// IsBuy returns true if the order is a buy order
func (o Order) IsBuy() bool {
	return o.Side == SideTypeBuy
}

// IsActive returns true if the order is in an active state
func (o Order) IsActive() bool {
	return o.Status == OrderStatusTypeNew || o.Status == OrderStatusTypePartiallyFilled
}

// IsFilled returns true if the order is completely filled
func (o Order) IsFilled() bool {
	return o.Status == OrderStatusTypeFilled
}

// String returns a human-readable representation of the order
func (o Order) String() string {
	return fmt.Sprintf("[%s] %s %s | ID: %s, Type: %s, %f x $%f (~$%.2f)",
		o.Status, o.Side, o.Pair, o.ExchangeID, o.Type, o.Quantity, o.Price, o.Quantity*o.Price)
}
