package exchange

import "errors"

// Caller-visible failure kinds. None are transient and the core never
// retries: an operation either fully commits and emits its event, or fails
// with one of these and leaves all observable state unchanged.
var (
	// ErrInsufficientBalance means a precondition on custodial funds failed.
	ErrInsufficientBalance = errors.New("exchange: insufficient balance")

	// ErrTransferFailed means the external token capability rejected a
	// transfer; any tentative ledger mutation has been rolled back.
	ErrTransferFailed = errors.New("exchange: token transfer failed")

	// ErrOrderNotFound means the referenced order id never existed.
	ErrOrderNotFound = errors.New("exchange: order not found")

	// ErrUnauthorized means the caller is not the order's owner.
	ErrUnauthorized = errors.New("exchange: caller is not order owner")

	// ErrOrderNotOpen means the order is already cancelled or filled.
	ErrOrderNotOpen = errors.New("exchange: order not open")
)
