// Package exchange implements the custodial core: the per-(token, user)
// ledger, the append-only order store, and the settlement engine. Every
// mutating operation runs under one mutex and commits through one Pebble
// batch, so callers never observe a partially applied mutation.
package exchange

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/custodex/custodex/pkg/token"
	"github.com/custodex/custodex/pkg/util"
)

// Config fixes the fee policy and custody identity for the lifetime of the
// instance.
type Config struct {
	// Custodian is the external account that holds deposited tokens.
	Custodian common.Address

	// FeeAccount is credited the settlement fee on every fill.
	FeeAccount common.Address

	// FeePercent is the taker fee as an integer percentage (10 = 10%).
	FeePercent int64

	// AllowSelfFill permits a maker to fill their own order.
	AllowSelfFill bool
}

// Exchange is the authoritative record of custodial balances and orders.
// The in-memory maps are the working set; Pebble is the durable record and
// is replayed on construction.
type Exchange struct {
	mu     sync.RWMutex
	cfg    Config
	tokens *token.Registry
	store  *Store
	clock  util.Clock
	log    *zap.SugaredLogger

	balances   map[common.Address]map[common.Address]int64 // token → owner → amount
	orders     map[uint64]*Order
	orderCount uint64
	eventSeq   uint64

	// OnEvent, when set, is invoked synchronously after each commit, in
	// commit order. The handler runs under the exchange lock and must not
	// call back into the exchange.
	OnEvent func(Event)
}

// New builds an Exchange over an open store, replaying persisted balances,
// orders, and counters.
func New(cfg Config, registry *token.Registry, store *Store, clock util.Clock, logger *zap.SugaredLogger) (*Exchange, error) {
	if cfg.FeePercent < 0 || cfg.FeePercent > 100 {
		return nil, fmt.Errorf("fee percent out of range: %d", cfg.FeePercent)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if clock == nil {
		clock = util.RealClock{}
	}

	balances, err := store.LoadBalances()
	if err != nil {
		return nil, fmt.Errorf("failed to load balances: %w", err)
	}
	persisted, err := store.LoadOrders()
	if err != nil {
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}
	orderCount, err := store.LoadCounter(keyOrderCount)
	if err != nil {
		return nil, err
	}
	eventSeq, err := store.LoadCounter(keyEventSeq)
	if err != nil {
		return nil, err
	}

	orders := make(map[uint64]*Order, len(persisted))
	for _, o := range persisted {
		orders[o.ID] = o
	}

	e := &Exchange{
		cfg:        cfg,
		tokens:     registry,
		store:      store,
		clock:      clock,
		log:        logger,
		balances:   balances,
		orders:     orders,
		orderCount: orderCount,
		eventSeq:   eventSeq,
	}

	logger.Infow("exchange_loaded",
		"orders", len(orders),
		"order_count", orderCount,
		"event_seq", eventSeq,
		"fee_account", cfg.FeeAccount.Hex(),
		"fee_percent", cfg.FeePercent)

	return e, nil
}

// Close closes the underlying store.
func (e *Exchange) Close() error {
	return e.store.Close()
}

// Config returns the immutable instance configuration.
func (e *Exchange) Config() Config {
	return e.cfg
}

// DepositToken pulls amount of tok from the caller's external wallet into
// custody and credits the caller's ledger balance. The caller must have
// approved the custodian beforehand; a rejected external transfer surfaces
// as ErrTransferFailed with no ledger mutation.
func (e *Exchange) DepositToken(tok common.Address, amount int64, caller common.Address) error {
	if amount <= 0 {
		return fmt.Errorf("deposit amount must be positive: %d", amount)
	}
	tcap, err := e.tokens.Resolve(tok)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := tcap.TransferFrom(caller, e.cfg.Custodian, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	newBalance := e.balance(tok, caller) + amount
	ev := e.nextEvent(EventDeposit, caller)
	ev.Token = tok
	ev.Amount = amount
	ev.Balance = newBalance

	batch := e.store.NewBatch()
	batch.SetBalance(tok, caller, newBalance)
	batch.AppendEvent(ev)
	batch.SetCounter(keyEventSeq, ev.Seq)
	if err := batch.Commit(); err != nil {
		// Funds already crossed into custody; push them back out so the
		// external world matches the unrecorded ledger.
		if rbErr := tcap.Transfer(caller, amount); rbErr != nil {
			e.log.Errorw("deposit_refund_failed", "token", tok.Hex(), "user", caller.Hex(), "err", rbErr)
		}
		return fmt.Errorf("failed to commit deposit: %w", err)
	}

	e.setBalance(tok, caller, newBalance)
	e.commitEvent(ev)
	return nil
}

// WithdrawToken debits the caller's ledger balance and transfers amount of
// tok from custody back to the caller. The ledger decrement happens before
// the external transfer; if the transfer fails the decrement is rolled back.
func (e *Exchange) WithdrawToken(tok common.Address, amount int64, caller common.Address) error {
	if amount <= 0 {
		return fmt.Errorf("withdraw amount must be positive: %d", amount)
	}
	tcap, err := e.tokens.Resolve(tok)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	have := e.balance(tok, caller)
	if have < amount {
		return fmt.Errorf("%w: token=%s user=%s have=%d need=%d",
			ErrInsufficientBalance, tok.Hex(), caller.Hex(), have, amount)
	}

	// Debit before the external call so a re-entrant withdrawal cannot
	// observe the pre-debit balance.
	newBalance := have - amount
	e.setBalance(tok, caller, newBalance)

	if err := tcap.Transfer(caller, amount); err != nil {
		e.setBalance(tok, caller, have)
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	ev := e.nextEvent(EventWithdraw, caller)
	ev.Token = tok
	ev.Amount = amount
	ev.Balance = newBalance

	batch := e.store.NewBatch()
	batch.SetBalance(tok, caller, newBalance)
	batch.AppendEvent(ev)
	batch.SetCounter(keyEventSeq, ev.Seq)
	if err := batch.Commit(); err != nil {
		// The external transfer is done; the in-memory ledger stays debited
		// so state remains consistent with the outside world.
		return fmt.Errorf("failed to commit withdrawal: %w", err)
	}

	e.commitEvent(ev)
	return nil
}

// BalanceOf returns the custodial balance for (tok, owner), zero by default.
func (e *Exchange) BalanceOf(tok, owner common.Address) int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.balance(tok, owner)
}

// MakeOrder creates a fully collateralized order: the caller must already
// hold amountGive of tokenGive in custody. Ids are gap-free; a rejected
// make consumes no id.
func (e *Exchange) MakeOrder(tokenGet common.Address, amountGet int64, tokenGive common.Address, amountGive int64, caller common.Address) (Order, error) {
	if amountGet <= 0 || amountGive <= 0 {
		return Order{}, fmt.Errorf("order amounts must be positive: get=%d give=%d", amountGet, amountGive)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	have := e.balance(tokenGive, caller)
	if have < amountGive {
		return Order{}, fmt.Errorf("%w: token=%s user=%s have=%d need=%d",
			ErrInsufficientBalance, tokenGive.Hex(), caller.Hex(), have, amountGive)
	}

	o := &Order{
		ID:         e.orderCount + 1,
		Owner:      caller,
		TokenGet:   tokenGet,
		AmountGet:  amountGet,
		TokenGive:  tokenGive,
		AmountGive: amountGive,
		Status:     OrderOpen,
		CreatedAt:  e.clock.Now().UnixMilli(),
	}

	ev := e.nextEvent(EventOrder, caller)
	ev.OrderID = o.ID
	ev.TokenGet = tokenGet
	ev.AmountGet = amountGet
	ev.TokenGive = tokenGive
	ev.AmountGive = amountGive

	batch := e.store.NewBatch()
	batch.SetOrder(o)
	batch.SetCounter(keyOrderCount, o.ID)
	batch.AppendEvent(ev)
	batch.SetCounter(keyEventSeq, ev.Seq)
	if err := batch.Commit(); err != nil {
		return Order{}, fmt.Errorf("failed to commit order: %w", err)
	}

	e.orders[o.ID] = o
	e.orderCount = o.ID
	e.commitEvent(ev)
	return *o, nil
}

// CancelOrder marks an open order cancelled. Only the owner may cancel, and
// a terminal order stays terminal.
func (e *Exchange) CancelOrder(id uint64, caller common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, ok := e.orders[id]
	if !ok {
		return fmt.Errorf("%w: id=%d", ErrOrderNotFound, id)
	}
	if o.Owner != caller {
		return fmt.Errorf("%w: id=%d owner=%s caller=%s", ErrUnauthorized, id, o.Owner.Hex(), caller.Hex())
	}
	if !o.IsOpen() {
		return fmt.Errorf("%w: id=%d status=%s", ErrOrderNotOpen, id, o.Status)
	}

	cancelled := *o
	cancelled.Status = OrderCancelled

	ev := e.nextEvent(EventCancel, caller)
	ev.OrderID = o.ID
	ev.TokenGet = o.TokenGet
	ev.AmountGet = o.AmountGet
	ev.TokenGive = o.TokenGive
	ev.AmountGive = o.AmountGive

	batch := e.store.NewBatch()
	batch.SetOrder(&cancelled)
	batch.AppendEvent(ev)
	batch.SetCounter(keyEventSeq, ev.Seq)
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("failed to commit cancel: %w", err)
	}

	o.Status = OrderCancelled
	e.commitEvent(ev)
	return nil
}

// FillOrder settles an open order between its maker and the calling taker.
// The taker pays amountGet plus the fee in tokenGet and receives amountGive
// of tokenGive; the maker receives exactly amountGet. Both sides are
// re-validated at fill time; nothing mutates on any failure path.
func (e *Exchange) FillOrder(id uint64, caller common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, ok := e.orders[id]
	if !ok {
		return fmt.Errorf("%w: id=%d", ErrOrderNotFound, id)
	}
	if !o.IsOpen() {
		return fmt.Errorf("%w: id=%d status=%s", ErrOrderNotOpen, id, o.Status)
	}
	maker, taker := o.Owner, caller
	if maker == taker && !e.cfg.AllowSelfFill {
		return fmt.Errorf("%w: self-fill disabled, id=%d", ErrUnauthorized, id)
	}

	fee := o.AmountGet * e.cfg.FeePercent / 100
	takerOwes := o.AmountGet + fee

	if have := e.balance(o.TokenGet, taker); have < takerOwes {
		return fmt.Errorf("%w: taker token=%s have=%d need=%d",
			ErrInsufficientBalance, o.TokenGet.Hex(), have, takerOwes)
	}
	if have := e.balance(o.TokenGive, maker); have < o.AmountGive {
		return fmt.Errorf("%w: maker token=%s have=%d need=%d",
			ErrInsufficientBalance, o.TokenGive.Hex(), have, o.AmountGive)
	}

	// Accumulate per-(token, owner) deltas so overlapping parties
	// (self-fill, maker as fee account) resolve to one entry each.
	type entry struct {
		tok, owner common.Address
	}
	deltas := make(map[entry]int64)
	deltas[entry{o.TokenGet, taker}] -= takerOwes
	deltas[entry{o.TokenGet, maker}] += o.AmountGet
	deltas[entry{o.TokenGet, e.cfg.FeeAccount}] += fee
	deltas[entry{o.TokenGive, maker}] -= o.AmountGive
	deltas[entry{o.TokenGive, taker}] += o.AmountGive

	filled := *o
	filled.Status = OrderFilled

	ev := e.nextEvent(EventTrade, taker)
	ev.OrderID = o.ID
	ev.Maker = maker
	ev.TokenGet = o.TokenGet
	ev.AmountGet = o.AmountGet
	ev.TokenGive = o.TokenGive
	ev.AmountGive = o.AmountGive
	ev.Fee = fee

	batch := e.store.NewBatch()
	next := make(map[entry]int64, len(deltas))
	for k, d := range deltas {
		v := e.balance(k.tok, k.owner) + d
		if v < 0 {
			batch.Close()
			return fmt.Errorf("%w: token=%s owner=%s would go negative",
				ErrInsufficientBalance, k.tok.Hex(), k.owner.Hex())
		}
		next[k] = v
		batch.SetBalance(k.tok, k.owner, v)
	}
	batch.SetOrder(&filled)
	batch.AppendEvent(ev)
	batch.SetCounter(keyEventSeq, ev.Seq)
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("failed to commit fill: %w", err)
	}

	for k, v := range next {
		e.setBalance(k.tok, k.owner, v)
	}
	o.Status = OrderFilled
	e.commitEvent(ev)
	return nil
}

// OrderCount returns the id of the most recently created order (0 when none).
func (e *Exchange) OrderCount() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.orderCount
}

// OrderStatus returns the status of an order.
func (e *Exchange) OrderStatus(id uint64) (OrderStatus, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	o, ok := e.orders[id]
	if !ok {
		return 0, fmt.Errorf("%w: id=%d", ErrOrderNotFound, id)
	}
	return o.Status, nil
}

// GetOrder returns a copy of an order.
func (e *Exchange) GetOrder(id uint64) (Order, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	o, ok := e.orders[id]
	if !ok {
		return Order{}, fmt.Errorf("%w: id=%d", ErrOrderNotFound, id)
	}
	return *o, nil
}

// Orders returns copies of all orders sorted by id.
func (e *Exchange) Orders() []Order {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Order, 0, len(e.orders))
	for _, o := range e.orders {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RecentEvents returns up to limit committed events, newest first.
func (e *Exchange) RecentEvents(limit int) ([]Event, error) {
	return e.store.LoadRecentEvents(limit)
}

// balance assumes at least the read lock is held.
func (e *Exchange) balance(tok, owner common.Address) int64 {
	return e.balances[tok][owner]
}

// setBalance assumes the write lock is held.
func (e *Exchange) setBalance(tok, owner common.Address, amount int64) {
	byOwner, ok := e.balances[tok]
	if !ok {
		byOwner = make(map[common.Address]int64)
		e.balances[tok] = byOwner
	}
	byOwner[owner] = amount
}

// nextEvent builds the next sequenced event; the sequence number only
// becomes visible once commitEvent runs after a successful batch commit.
func (e *Exchange) nextEvent(kind EventKind, user common.Address) Event {
	return Event{
		Seq:       e.eventSeq + 1,
		Kind:      kind,
		Timestamp: e.clock.Now().UnixMilli(),
		User:      user,
	}
}

// commitEvent advances the sequence and publishes the event.
func (e *Exchange) commitEvent(ev Event) {
	e.eventSeq = ev.Seq
	e.log.Infow(string(ev.Kind),
		"seq", ev.Seq,
		"user", ev.User.Hex(),
		"order_id", ev.OrderID,
		"amount", ev.Amount,
		"fee", ev.Fee)
	if e.OnEvent != nil {
		e.OnEvent(ev)
	}
}
