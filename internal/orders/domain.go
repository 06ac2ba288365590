package orders

import (
	"errors"
	"time"
)

// OrderStatus represents the lifecycle of a sales order.
type OrderStatus string

const (
	// StatusOpen means the order awaits fulfillment.
	StatusOpen OrderStatus = "OPEN"
	// StatusFulfilled means every line was deducted from stock.
	StatusFulfilled OrderStatus = "FULFILLED"
	// StatusCancelled means the order will never be fulfilled.
	StatusCancelled OrderStatus = "CANCELLED"
)

// CanFulfill reports whether fulfillment may start from this status.
func (s OrderStatus) CanFulfill() bool {
	return s == StatusOpen
}

// Order is a sales order consumed by reference. The ledger treats orders as
// an external source of batch items; it never writes order rows itself.
type Order struct {
	ID        int64
	Reference string
	Status    OrderStatus
	Lines     []OrderLine
	CreatedAt time.Time
}

// OrderLine is one product demand within an order.
type OrderLine struct {
	ProductID  int64
	LocationID int64
	Quantity   int64
}

// FulfillResult reports a committed fulfillment.
type FulfillResult struct {
	Order         Order
	TransactionID string
}

// ErrOrderNotFound indicates an unknown order reference.
var ErrOrderNotFound = errors.New("orders: order not found")

// ErrOrderNotOpen indicates the order was already fulfilled or cancelled.
var ErrOrderNotOpen = errors.New("orders: order is not open")

// ErrNoLines indicates an order without lines cannot ship.
var ErrNoLines = errors.New("orders: order has no lines")
