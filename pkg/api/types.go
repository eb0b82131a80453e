package api

// API request/response types for REST endpoints and WebSocket messages

// ==============================
// REST Request Types
// ==============================

// DepositRequest is the payload for POST /api/v1/deposit. The exchange pulls
// the tokens from the user's approved allowance into custody.
type DepositRequest struct {
	Token     string `json:"token"`     // Token contract address
	Amount    int64  `json:"amount"`    // Amount in base units
	Address   string `json:"address"`   // User's Ethereum address
	Signature string `json:"signature"` // Hex signature over the request hash
}

// WithdrawRequest is the payload for POST /api/v1/withdraw
type WithdrawRequest struct {
	Token     string `json:"token"`
	Amount    int64  `json:"amount"`
	Address   string `json:"address"`
	Signature string `json:"signature"`
}

// MakeOrderRequest is the payload for POST /api/v1/orders
type MakeOrderRequest struct {
	TokenGet   string `json:"tokenGet"`   // Token the maker wants to receive
	AmountGet  int64  `json:"amountGet"`
	TokenGive  string `json:"tokenGive"`  // Token the maker offers
	AmountGive int64  `json:"amountGive"`
	Address    string `json:"address"`
	Signature  string `json:"signature"`
}

// CancelOrderRequest is the payload for POST /api/v1/orders/cancel
type CancelOrderRequest struct {
	OrderID   uint64 `json:"orderId"`
	Address   string `json:"address"`
	Signature string `json:"signature"`
}

// FillOrderRequest is the payload for POST /api/v1/orders/fill
type FillOrderRequest struct {
	OrderID   uint64 `json:"orderId"`
	Address   string `json:"address"`
	Signature string `json:"signature"`
}

// ==============================
// REST Response Types
// ==============================

// TokenInfo describes a token registered with the exchange
type TokenInfo struct {
	ID string `json:"id"` // Token contract address
}

// BalanceResponse is the ledger balance of one (token, owner) pair
type BalanceResponse struct {
	Token   string `json:"token"`
	Address string `json:"address"`
	Balance int64  `json:"balance"`
}

// OrderInfo represents an order (open or terminal)
type OrderInfo struct {
	ID         uint64 `json:"id"`
	Owner      string `json:"owner"`
	TokenGet   string `json:"tokenGet"`
	AmountGet  int64  `json:"amountGet"`
	TokenGive  string `json:"tokenGive"`
	AmountGive int64  `json:"amountGive"`
	Status     string `json:"status"` // "open", "cancelled", "filled"
	Timestamp  int64  `json:"timestamp"` // Unix milliseconds
}

// OrderCountResponse reports how many orders have ever been made
type OrderCountResponse struct {
	Count uint64 `json:"count"`
}

// EventInfo is one entry of the append-only event log
type EventInfo struct {
	Seq        uint64 `json:"seq"`
	Kind       string `json:"kind"` // "deposit", "withdraw", "order", "cancel", "trade"
	Timestamp  int64  `json:"timestamp"`
	User       string `json:"user"`
	Token      string `json:"token,omitempty"`
	Amount     int64  `json:"amount,omitempty"`
	Balance    int64  `json:"balance,omitempty"`
	OrderID    uint64 `json:"orderId,omitempty"`
	TokenGet   string `json:"tokenGet,omitempty"`
	AmountGet  int64  `json:"amountGet,omitempty"`
	TokenGive  string `json:"tokenGive,omitempty"`
	AmountGive int64  `json:"amountGive,omitempty"`
	Maker      string `json:"maker,omitempty"`
	Fee        int64  `json:"fee,omitempty"`
}

// SubmitResponse is returned from mutating endpoints
type SubmitResponse struct {
	Status  string `json:"status"` // "ok"
	OrderID uint64 `json:"orderId,omitempty"`
	Balance int64  `json:"balance,omitempty"`
}

// ErrorResponse is returned for all errors
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSSubscribeRequest is sent by client to subscribe to channels
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // e.g., ["events", "trades", "account:0x..."]
}

// EventUpdate is broadcast on every committed exchange event
type EventUpdate struct {
	Type  string    `json:"type"` // "event"
	Event EventInfo `json:"event"`
}
