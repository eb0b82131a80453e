// Package token models the external fungible-token collaborators the
// exchange custodies. The exchange never assumes a token call succeeds:
// every capability method is fallible and crosses a trust boundary.
package token

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrInsufficientFunds is returned when the sender's external balance
	// cannot cover a transfer.
	ErrInsufficientFunds = errors.New("token: insufficient funds")

	// ErrInsufficientAllowance is returned when a transferFrom exceeds the
	// allowance granted to the caller.
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")

	// ErrUnknownToken is returned by the registry for unregistered tokens.
	ErrUnknownToken = errors.New("token: unknown token")
)

// Token is the capability view of a fungible token as seen by one caller.
// Transfer moves the caller's own funds; TransferFrom spends an allowance
// previously granted to the caller.
type Token interface {
	Transfer(to common.Address, amount int64) error
	TransferFrom(from, to common.Address, amount int64) error
	BalanceOf(owner common.Address) (int64, error)
}

// Registry maps token identities to the capability the exchange holds for
// them. Bound capabilities carry the exchange's own identity, so Transfer
// moves out of custody and TransferFrom pulls approved user funds in.
type Registry struct {
	mu     sync.RWMutex
	tokens map[common.Address]Token
}

func NewRegistry() *Registry {
	return &Registry{tokens: make(map[common.Address]Token)}
}

// Register installs the capability for a token identity, replacing any
// previous registration.
func (r *Registry) Register(id common.Address, t Token) {
	r.mu.Lock()
	r.tokens[id] = t
	r.mu.Unlock()
}

// Resolve returns the capability for a token identity.
func (r *Registry) Resolve(id common.Address) (Token, error) {
	r.mu.RLock()
	t, ok := r.tokens[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, id.Hex())
	}
	return t, nil
}

// List returns the registered token identities.
func (r *Registry) List() []common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]common.Address, 0, len(r.tokens))
	for id := range r.tokens {
		ids = append(ids, id)
	}
	return ids
}
