package exchange

import "github.com/ethereum/go-ethereum/common"

// EventKind tags an entry in the append-only event log.
type EventKind string

const (
	EventDeposit  EventKind = "deposit"
	EventWithdraw EventKind = "withdraw"
	EventOrder    EventKind = "order"
	EventCancel   EventKind = "cancel"
	EventTrade    EventKind = "trade"
)

// Event is one committed state transition. Events carry a process-wide
// sequence number and are emitted strictly in the order their causing
// operations were committed; consumers must not assume anything stronger.
//
// Field usage by kind:
//   deposit/withdraw: Token, User, Amount, Balance
//   order/cancel:     OrderID, User, TokenGet/AmountGet, TokenGive/AmountGive
//   trade:            OrderID, Maker, Taker (= User), all four terms, Fee
type Event struct {
	Seq       uint64         `json:"seq"`
	Kind      EventKind      `json:"kind"`
	Timestamp int64          `json:"timestamp"` // Unix milliseconds

	User common.Address `json:"user"` // acting caller

	// Ledger fields
	Token   common.Address `json:"token"`
	Amount  int64          `json:"amount,omitempty"`
	Balance int64          `json:"balance,omitempty"` // resulting custodial balance

	// Order fields
	OrderID    uint64         `json:"orderId,omitempty"`
	TokenGet   common.Address `json:"tokenGet"`
	AmountGet  int64          `json:"amountGet,omitempty"`
	TokenGive  common.Address `json:"tokenGive"`
	AmountGive int64          `json:"amountGive,omitempty"`

	// Trade fields
	Maker common.Address `json:"maker"`
	Fee   int64          `json:"fee,omitempty"`
}
