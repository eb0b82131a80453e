package exchange

import (
	"github.com/ethereum/go-ethereum/common"
)

// OrderStatus represents the lifecycle state of an order.
// Cancelled and Filled are terminal and mutually exclusive: once either is
// set the order admits no further transition.
type OrderStatus int8

const (
	OrderOpen OrderStatus = iota
	OrderCancelled
	OrderFilled
)

func (s OrderStatus) String() string {
	switch s {
	case OrderOpen:
		return "open"
	case OrderCancelled:
		return "cancelled"
	case OrderFilled:
		return "filled"
	default:
		return "unknown"
	}
}

// Order is a resting limit order: the owner offers AmountGive of TokenGive
// in exchange for AmountGet of TokenGet. Terms are fixed at creation; only
// Status changes afterwards.
type Order struct {
	ID         uint64         `json:"id"` // monotonic, starts at 1
	Owner      common.Address `json:"owner"`
	TokenGet   common.Address `json:"tokenGet"`
	AmountGet  int64          `json:"amountGet"`
	TokenGive  common.Address `json:"tokenGive"`
	AmountGive int64          `json:"amountGive"`
	Status     OrderStatus    `json:"status"`
	CreatedAt  int64          `json:"createdAt"` // Unix milliseconds
}

// IsOpen reports whether the order can still be cancelled or filled.
func (o *Order) IsOpen() bool {
	return o.Status == OrderOpen
}
