package token

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ERC20 is an in-memory fungible token with the usual balance/allowance
// semantics. It stands in for the on-chain contracts in the seed tool and
// tests; the exchange core only ever sees it through the Token interface.
type ERC20 struct {
	mu sync.Mutex

	id         common.Address
	name       string
	symbol     string
	decimals   uint8
	totalSupply int64

	balances   map[common.Address]int64
	allowances map[common.Address]map[common.Address]int64 // owner → spender → amount
}

// NewERC20 mints the full supply to the deployer. The token identity is
// derived from name and symbol so demo deployments are reproducible.
func NewERC20(name, symbol string, decimals uint8, supply int64, deployer common.Address) *ERC20 {
	id := common.BytesToAddress(crypto.Keccak256([]byte(name + ":" + symbol))[12:])
	t := &ERC20{
		id:          id,
		name:        name,
		symbol:      symbol,
		decimals:    decimals,
		totalSupply: supply,
		balances:    make(map[common.Address]int64),
		allowances:  make(map[common.Address]map[common.Address]int64),
	}
	t.balances[deployer] = supply
	return t
}

func (t *ERC20) ID() common.Address { return t.id }
func (t *ERC20) Name() string       { return t.name }
func (t *ERC20) Symbol() string     { return t.symbol }
func (t *ERC20) Decimals() uint8    { return t.decimals }

func (t *ERC20) TotalSupply() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalSupply
}

// BalanceOf returns the external balance of owner.
func (t *ERC20) BalanceOf(owner common.Address) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balances[owner], nil
}

// Allowance returns how much spender may pull from owner.
func (t *ERC20) Allowance(owner, spender common.Address) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.allowances[owner][spender]
}

// Approve sets spender's allowance over owner's funds.
func (t *ERC20) Approve(owner, spender common.Address, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("token %s: negative approval: %d", t.symbol, amount)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.allowances[owner]
	if !ok {
		m = make(map[common.Address]int64)
		t.allowances[owner] = m
	}
	m[spender] = amount
	return nil
}

// Transfer moves funds from `from` to `to`.
func (t *ERC20) Transfer(from, to common.Address, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("token %s: transfer amount must be positive: %d", t.symbol, amount)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.move(from, to, amount)
}

// TransferFrom moves funds from `from` to `to` on behalf of spender,
// consuming spender's allowance.
func (t *ERC20) TransferFrom(spender, from, to common.Address, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("token %s: transfer amount must be positive: %d", t.symbol, amount)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	allowed := t.allowances[from][spender]
	if allowed < amount {
		return fmt.Errorf("%w: %s spender=%s allowed=%d need=%d",
			ErrInsufficientAllowance, t.symbol, spender.Hex(), allowed, amount)
	}
	if err := t.move(from, to, amount); err != nil {
		return err
	}
	t.allowances[from][spender] = allowed - amount
	return nil
}

// move assumes the lock is held.
func (t *ERC20) move(from, to common.Address, amount int64) error {
	if t.balances[from] < amount {
		return fmt.Errorf("%w: %s owner=%s have=%d need=%d",
			ErrInsufficientFunds, t.symbol, from.Hex(), t.balances[from], amount)
	}
	t.balances[from] -= amount
	t.balances[to] += amount
	return nil
}

// Bind returns the capability view of this token for one caller. The bound
// view is what the exchange registry holds: its Transfer spends the caller's
// funds and its TransferFrom consumes allowances granted to the caller.
func (t *ERC20) Bind(caller common.Address) Token {
	return &boundToken{t: t, caller: caller}
}

type boundToken struct {
	t      *ERC20
	caller common.Address
}

func (b *boundToken) Transfer(to common.Address, amount int64) error {
	return b.t.Transfer(b.caller, to, amount)
}

func (b *boundToken) TransferFrom(from, to common.Address, amount int64) error {
	return b.t.TransferFrom(b.caller, from, to, amount)
}

func (b *boundToken) BalanceOf(owner common.Address) (int64, error) {
	return b.t.BalanceOf(owner)
}
