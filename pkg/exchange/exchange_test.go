package exchange_test

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/custodex/custodex/pkg/exchange"
	"github.com/custodex/custodex/pkg/token"
	"github.com/custodex/custodex/pkg/util"
)

var (
	deployer   = common.HexToAddress("0xD0D0000000000000000000000000000000000000")
	custodian  = common.HexToAddress("0xEE00000000000000000000000000000000000000")
	feeAccount = common.HexToAddress("0xFEE0000000000000000000000000000000000000")
	user1      = common.HexToAddress("0x1100000000000000000000000000000000000000")
	user2      = common.HexToAddress("0x2200000000000000000000000000000000000000")
)

type fixture struct {
	ex     *exchange.Exchange
	reg    *token.Registry
	tokenA *token.ERC20
	tokenB *token.ERC20
	clock  *util.ManualClock
	dbPath string
}

// newFixture builds an exchange with two demo tokens and both users funded
// externally with 1,000,000 units of each.
func newFixture(t *testing.T, cfg exchange.Config) *fixture {
	t.Helper()

	dbPath := t.TempDir() + "/exchange.db"
	store, err := exchange.OpenStore(dbPath)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	tokenA := token.NewERC20("Demo Apple", "DAPP", 18, 10_000_000, deployer)
	tokenB := token.NewERC20("Mock Ether", "mETH", 18, 10_000_000, deployer)
	reg := token.NewRegistry()
	reg.Register(tokenA.ID(), tokenA.Bind(cfg.Custodian))
	reg.Register(tokenB.ID(), tokenB.Bind(cfg.Custodian))

	for _, u := range []common.Address{user1, user2} {
		tokenA.Transfer(deployer, u, 1_000_000)
		tokenB.Transfer(deployer, u, 1_000_000)
	}

	clock := util.NewManualClock(time.UnixMilli(1_700_000_000_000))
	ex, err := exchange.New(cfg, reg, store, clock, nil)
	if err != nil {
		t.Fatalf("failed to create exchange: %v", err)
	}
	t.Cleanup(func() { ex.Close() })

	return &fixture{ex: ex, reg: reg, tokenA: tokenA, tokenB: tokenB, clock: clock, dbPath: dbPath}
}

func defaultConfig() exchange.Config {
	return exchange.Config{
		Custodian:     custodian,
		FeeAccount:    feeAccount,
		FeePercent:    10,
		AllowSelfFill: true,
	}
}

// approveAndDeposit funds the exchange ledger for a user.
func (f *fixture) approveAndDeposit(t *testing.T, tok *token.ERC20, user common.Address, amount int64) {
	t.Helper()
	if err := tok.Approve(user, custodian, amount); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if err := f.ex.DepositToken(tok.ID(), amount, user); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
}

func TestDeposit(t *testing.T) {
	f := newFixture(t, defaultConfig())

	f.approveAndDeposit(t, f.tokenA, user1, 100)

	if got := f.ex.BalanceOf(f.tokenA.ID(), user1); got != 100 {
		t.Errorf("ledger balance = %d, want 100", got)
	}
	// Custody actually holds the funds externally
	custodyBal, _ := f.tokenA.BalanceOf(custodian)
	if custodyBal != 100 {
		t.Errorf("custody balance = %d, want 100", custodyBal)
	}
	external, _ := f.tokenA.BalanceOf(user1)
	if external != 999_900 {
		t.Errorf("external balance = %d, want 999900", external)
	}
}

func TestDepositWithoutApproval(t *testing.T) {
	f := newFixture(t, defaultConfig())

	err := f.ex.DepositToken(f.tokenA.ID(), 100, user1)
	if !errors.Is(err, exchange.ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	if got := f.ex.BalanceOf(f.tokenA.ID(), user1); got != 0 {
		t.Errorf("ledger mutated on failed deposit: %d", got)
	}
}

func TestDepositUnknownToken(t *testing.T) {
	f := newFixture(t, defaultConfig())

	unknown := common.HexToAddress("0x9999000000000000000000000000000000000000")
	err := f.ex.DepositToken(unknown, 100, user1)
	if !errors.Is(err, exchange.ErrTransferFailed) {
		t.Errorf("expected ErrTransferFailed for unknown token, got %v", err)
	}
}

func TestDepositRejectsNonPositive(t *testing.T) {
	f := newFixture(t, defaultConfig())

	if err := f.ex.DepositToken(f.tokenA.ID(), 0, user1); err == nil {
		t.Error("expected error for zero deposit")
	}
	if err := f.ex.DepositToken(f.tokenA.ID(), -5, user1); err == nil {
		t.Error("expected error for negative deposit")
	}
}

func TestWithdraw(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.approveAndDeposit(t, f.tokenA, user1, 100)

	if err := f.ex.WithdrawToken(f.tokenA.ID(), 40, user1); err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}
	if got := f.ex.BalanceOf(f.tokenA.ID(), user1); got != 60 {
		t.Errorf("ledger balance = %d, want 60", got)
	}
	external, _ := f.tokenA.BalanceOf(user1)
	if external != 999_940 {
		t.Errorf("external balance = %d, want 999940", external)
	}

	// Overdraw
	err := f.ex.WithdrawToken(f.tokenA.ID(), 100, user1)
	if !errors.Is(err, exchange.ErrInsufficientBalance) {
		t.Errorf("expected ErrInsufficientBalance, got %v", err)
	}
	if got := f.ex.BalanceOf(f.tokenA.ID(), user1); got != 60 {
		t.Errorf("ledger mutated on failed withdraw: %d", got)
	}
}

// failingToken rejects every transfer; deposits through it cannot succeed
// and withdrawals must roll their ledger debit back.
type failingToken struct{}

func (failingToken) Transfer(common.Address, int64) error {
	return errors.New("transfer rejected")
}
func (failingToken) TransferFrom(common.Address, common.Address, int64) error {
	return errors.New("transferFrom rejected")
}
func (failingToken) BalanceOf(common.Address) (int64, error) { return 0, nil }

func TestWithdrawRollbackOnTransferFailure(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.approveAndDeposit(t, f.tokenA, user1, 100)

	// Swap the capability for one that rejects transfers: the ledger debit
	// must be rolled back when the external transfer fails.
	f.reg.Register(f.tokenA.ID(), failingToken{})

	err := f.ex.WithdrawToken(f.tokenA.ID(), 40, user1)
	if !errors.Is(err, exchange.ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	if got := f.ex.BalanceOf(f.tokenA.ID(), user1); got != 100 {
		t.Errorf("balance after failed withdraw = %d, want 100 (rolled back)", got)
	}
}

func TestMakeOrder(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.approveAndDeposit(t, f.tokenA, user1, 100)

	o, err := f.ex.MakeOrder(f.tokenB.ID(), 5, f.tokenA.ID(), 10, user1)
	if err != nil {
		t.Fatalf("make order failed: %v", err)
	}
	if o.ID != 1 {
		t.Errorf("order id = %d, want 1", o.ID)
	}
	if f.ex.OrderCount() != 1 {
		t.Errorf("order count = %d, want 1", f.ex.OrderCount())
	}
	if o.CreatedAt != f.clock.Now().UnixMilli() {
		t.Errorf("createdAt = %d, want %d", o.CreatedAt, f.clock.Now().UnixMilli())
	}

	status, err := f.ex.OrderStatus(1)
	if err != nil {
		t.Fatalf("order status failed: %v", err)
	}
	if status != exchange.OrderOpen {
		t.Errorf("status = %s, want open", status)
	}
}

func TestMakeOrderRequiresCollateral(t *testing.T) {
	f := newFixture(t, defaultConfig())

	_, err := f.ex.MakeOrder(f.tokenB.ID(), 5, f.tokenA.ID(), 10, user1)
	if !errors.Is(err, exchange.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	// Rejected makes consume no id: the counter stays gap-free.
	if f.ex.OrderCount() != 0 {
		t.Errorf("order count = %d, want 0 after rejected make", f.ex.OrderCount())
	}
	f.approveAndDeposit(t, f.tokenA, user1, 100)
	o, err := f.ex.MakeOrder(f.tokenB.ID(), 5, f.tokenA.ID(), 10, user1)
	if err != nil {
		t.Fatalf("make order failed: %v", err)
	}
	if o.ID != 1 {
		t.Errorf("order id = %d, want 1 (no gap)", o.ID)
	}
}

func TestCancelOrder(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.approveAndDeposit(t, f.tokenA, user1, 100)
	f.ex.MakeOrder(f.tokenB.ID(), 5, f.tokenA.ID(), 10, user1)

	// Unknown id
	err := f.ex.CancelOrder(99999, user1)
	if !errors.Is(err, exchange.ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound, got %v", err)
	}

	// Wrong caller
	err = f.ex.CancelOrder(1, user2)
	if !errors.Is(err, exchange.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}

	// Owner cancels
	if err := f.ex.CancelOrder(1, user1); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	status, _ := f.ex.OrderStatus(1)
	if status != exchange.OrderCancelled {
		t.Errorf("status = %s, want cancelled", status)
	}

	// Terminal: second cancel fails
	err = f.ex.CancelOrder(1, user1)
	if !errors.Is(err, exchange.ErrOrderNotOpen) {
		t.Errorf("expected ErrOrderNotOpen, got %v", err)
	}

	// Terminal: fill after cancel fails
	err = f.ex.FillOrder(1, user2)
	if !errors.Is(err, exchange.ErrOrderNotOpen) {
		t.Errorf("expected ErrOrderNotOpen, got %v", err)
	}
}

func TestFillOrder(t *testing.T) {
	f := newFixture(t, defaultConfig())

	// user1 offers 10 tokenA for 10 tokenB; fee is 10% of amountGet.
	f.approveAndDeposit(t, f.tokenA, user1, 100)
	f.ex.MakeOrder(f.tokenB.ID(), 10, f.tokenA.ID(), 10, user1)
	f.approveAndDeposit(t, f.tokenB, user2, 11)

	if err := f.ex.FillOrder(1, user2); err != nil {
		t.Fatalf("fill failed: %v", err)
	}

	// Maker: -10 tokenA, +10 tokenB (no fee charged to maker)
	if got := f.ex.BalanceOf(f.tokenA.ID(), user1); got != 90 {
		t.Errorf("maker tokenA = %d, want 90", got)
	}
	if got := f.ex.BalanceOf(f.tokenB.ID(), user1); got != 10 {
		t.Errorf("maker tokenB = %d, want 10", got)
	}
	// Taker: -11 tokenB (10 + 1 fee), +10 tokenA
	if got := f.ex.BalanceOf(f.tokenB.ID(), user2); got != 0 {
		t.Errorf("taker tokenB = %d, want 0", got)
	}
	if got := f.ex.BalanceOf(f.tokenA.ID(), user2); got != 10 {
		t.Errorf("taker tokenA = %d, want 10", got)
	}
	// Fee account: +1 tokenB
	if got := f.ex.BalanceOf(f.tokenB.ID(), feeAccount); got != 1 {
		t.Errorf("fee account tokenB = %d, want 1", got)
	}

	status, _ := f.ex.OrderStatus(1)
	if status != exchange.OrderFilled {
		t.Errorf("status = %s, want filled", status)
	}

	// No re-fill
	err := f.ex.FillOrder(1, user2)
	if !errors.Is(err, exchange.ErrOrderNotOpen) {
		t.Errorf("expected ErrOrderNotOpen, got %v", err)
	}
	// No cancel after fill
	err = f.ex.CancelOrder(1, user1)
	if !errors.Is(err, exchange.ErrOrderNotOpen) {
		t.Errorf("expected ErrOrderNotOpen, got %v", err)
	}
}

func TestFillOrderFeeArithmetic(t *testing.T) {
	f := newFixture(t, defaultConfig())

	f.approveAndDeposit(t, f.tokenA, user1, 500)
	f.ex.MakeOrder(f.tokenB.ID(), 100, f.tokenA.ID(), 50, user1)
	f.approveAndDeposit(t, f.tokenB, user2, 110)

	if err := f.ex.FillOrder(1, user2); err != nil {
		t.Fatalf("fill failed: %v", err)
	}

	// feeRate=10, amountGet=100: taker debited 110, maker credited 100,
	// fee account credited 10.
	if got := f.ex.BalanceOf(f.tokenB.ID(), user2); got != 0 {
		t.Errorf("taker tokenB = %d, want 0", got)
	}
	if got := f.ex.BalanceOf(f.tokenB.ID(), user1); got != 100 {
		t.Errorf("maker tokenB = %d, want 100", got)
	}
	if got := f.ex.BalanceOf(f.tokenB.ID(), feeAccount); got != 10 {
		t.Errorf("fee account tokenB = %d, want 10", got)
	}
}

func TestFillOrderTakerUnderCollateralized(t *testing.T) {
	f := newFixture(t, defaultConfig())

	f.approveAndDeposit(t, f.tokenA, user1, 100)
	f.ex.MakeOrder(f.tokenB.ID(), 10, f.tokenA.ID(), 10, user1)
	// Taker deposits exactly amountGet but not the fee
	f.approveAndDeposit(t, f.tokenB, user2, 10)

	err := f.ex.FillOrder(1, user2)
	if !errors.Is(err, exchange.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	// Nothing moved
	if got := f.ex.BalanceOf(f.tokenB.ID(), user2); got != 10 {
		t.Errorf("taker tokenB = %d, want 10 (unchanged)", got)
	}
	status, _ := f.ex.OrderStatus(1)
	if status != exchange.OrderOpen {
		t.Errorf("status = %s, want open", status)
	}
}

func TestFillOrderMakerWithdrewCollateral(t *testing.T) {
	f := newFixture(t, defaultConfig())

	f.approveAndDeposit(t, f.tokenA, user1, 100)
	f.ex.MakeOrder(f.tokenB.ID(), 10, f.tokenA.ID(), 100, user1)

	// Maker drains the collateral after making the order
	if err := f.ex.WithdrawToken(f.tokenA.ID(), 50, user1); err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}

	f.approveAndDeposit(t, f.tokenB, user2, 11)
	err := f.ex.FillOrder(1, user2)
	if !errors.Is(err, exchange.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	// All balances untouched by the failed fill
	if got := f.ex.BalanceOf(f.tokenA.ID(), user1); got != 50 {
		t.Errorf("maker tokenA = %d, want 50", got)
	}
	if got := f.ex.BalanceOf(f.tokenB.ID(), user2); got != 11 {
		t.Errorf("taker tokenB = %d, want 11", got)
	}
	if got := f.ex.BalanceOf(f.tokenB.ID(), feeAccount); got != 0 {
		t.Errorf("fee account tokenB = %d, want 0", got)
	}
}

func TestSelfFillConfigurable(t *testing.T) {
	// Allowed (default): maker fills own order, netting only the fee
	f := newFixture(t, defaultConfig())
	f.approveAndDeposit(t, f.tokenA, user1, 100)
	f.approveAndDeposit(t, f.tokenB, user1, 11)
	f.ex.MakeOrder(f.tokenB.ID(), 10, f.tokenA.ID(), 10, user1)

	if err := f.ex.FillOrder(1, user1); err != nil {
		t.Fatalf("self-fill failed: %v", err)
	}
	if got := f.ex.BalanceOf(f.tokenA.ID(), user1); got != 100 {
		t.Errorf("tokenA = %d, want 100 (give round-trips)", got)
	}
	if got := f.ex.BalanceOf(f.tokenB.ID(), user1); got != 10 {
		t.Errorf("tokenB = %d, want 10 (fee paid once)", got)
	}
	if got := f.ex.BalanceOf(f.tokenB.ID(), feeAccount); got != 1 {
		t.Errorf("fee account tokenB = %d, want 1", got)
	}

	// Disallowed
	cfg := defaultConfig()
	cfg.AllowSelfFill = false
	g := newFixture(t, cfg)
	g.approveAndDeposit(t, g.tokenA, user1, 100)
	g.ex.MakeOrder(g.tokenB.ID(), 10, g.tokenA.ID(), 10, user1)

	err := g.ex.FillOrder(1, user1)
	if !errors.Is(err, exchange.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for self-fill, got %v", err)
	}
}

// tokenSum adds a token's ledger entries across every participant.
func tokenSum(f *fixture, tok common.Address) int64 {
	sum := int64(0)
	for _, who := range []common.Address{user1, user2, feeAccount, custodian, deployer} {
		sum += f.ex.BalanceOf(tok, who)
	}
	return sum
}

func TestConservation(t *testing.T) {
	f := newFixture(t, defaultConfig())

	f.approveAndDeposit(t, f.tokenA, user1, 1000)
	f.approveAndDeposit(t, f.tokenB, user2, 500)
	f.ex.MakeOrder(f.tokenB.ID(), 100, f.tokenA.ID(), 200, user1)
	f.ex.FillOrder(1, user2)
	f.ex.WithdrawToken(f.tokenA.ID(), 150, user2)
	f.ex.MakeOrder(f.tokenA.ID(), 50, f.tokenB.ID(), 80, user2)
	f.ex.CancelOrder(2, user2)

	// Ledger totals equal deposits minus withdrawals...
	if got := tokenSum(f, f.tokenA.ID()); got != 850 {
		t.Errorf("tokenA ledger sum = %d, want 850", got)
	}
	if got := tokenSum(f, f.tokenB.ID()); got != 500 {
		t.Errorf("tokenB ledger sum = %d, want 500", got)
	}
	// ...and never exceed what custody actually holds externally.
	custodyA, _ := f.tokenA.BalanceOf(custodian)
	custodyB, _ := f.tokenB.BalanceOf(custodian)
	if got := tokenSum(f, f.tokenA.ID()); got > custodyA {
		t.Errorf("tokenA ledger sum %d exceeds custody %d", got, custodyA)
	}
	if got := tokenSum(f, f.tokenB.ID()); got > custodyB {
		t.Errorf("tokenB ledger sum %d exceeds custody %d", got, custodyB)
	}
}

func TestReadIdempotence(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.approveAndDeposit(t, f.tokenA, user1, 100)
	f.ex.MakeOrder(f.tokenB.ID(), 5, f.tokenA.ID(), 10, user1)

	b1 := f.ex.BalanceOf(f.tokenA.ID(), user1)
	b2 := f.ex.BalanceOf(f.tokenA.ID(), user1)
	if b1 != b2 {
		t.Errorf("balanceOf not idempotent: %d vs %d", b1, b2)
	}

	s1, _ := f.ex.OrderStatus(1)
	s2, _ := f.ex.OrderStatus(1)
	if s1 != s2 {
		t.Errorf("orderStatus not idempotent: %s vs %s", s1, s2)
	}
}

func TestEventLog(t *testing.T) {
	f := newFixture(t, defaultConfig())

	var seen []exchange.Event
	f.ex.OnEvent = func(ev exchange.Event) { seen = append(seen, ev) }

	f.approveAndDeposit(t, f.tokenA, user1, 100)
	f.ex.MakeOrder(f.tokenB.ID(), 10, f.tokenA.ID(), 10, user1)
	f.approveAndDeposit(t, f.tokenB, user2, 11)
	f.ex.FillOrder(1, user2)
	f.ex.WithdrawToken(f.tokenA.ID(), 10, user2)

	wantKinds := []exchange.EventKind{
		exchange.EventDeposit,
		exchange.EventOrder,
		exchange.EventDeposit,
		exchange.EventTrade,
		exchange.EventWithdraw,
	}
	if len(seen) != len(wantKinds) {
		t.Fatalf("saw %d events, want %d", len(seen), len(wantKinds))
	}
	for i, ev := range seen {
		if ev.Kind != wantKinds[i] {
			t.Errorf("event %d kind = %s, want %s", i, ev.Kind, wantKinds[i])
		}
		if ev.Seq != uint64(i+1) {
			t.Errorf("event %d seq = %d, want %d", i, ev.Seq, i+1)
		}
	}

	trade := seen[3]
	if trade.Maker != user1 || trade.User != user2 {
		t.Errorf("trade parties wrong: maker=%s taker=%s", trade.Maker.Hex(), trade.User.Hex())
	}
	if trade.Fee != 1 {
		t.Errorf("trade fee = %d, want 1", trade.Fee)
	}

	// The persisted log matches, newest first
	events, err := f.ex.RecentEvents(3)
	if err != nil {
		t.Fatalf("recent events failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if events[0].Kind != exchange.EventWithdraw || events[0].Seq != 5 {
		t.Errorf("newest event = %s/%d, want withdraw/5", events[0].Kind, events[0].Seq)
	}
}

func TestRestartReplay(t *testing.T) {
	cfg := defaultConfig()
	f := newFixture(t, cfg)

	f.approveAndDeposit(t, f.tokenA, user1, 100)
	f.ex.MakeOrder(f.tokenB.ID(), 10, f.tokenA.ID(), 10, user1)
	f.ex.MakeOrder(f.tokenB.ID(), 5, f.tokenA.ID(), 5, user1)
	f.ex.CancelOrder(2, user1)

	if err := f.ex.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	// Reopen over the same database: balances, orders, and counters must
	// come back exactly.
	store, err := exchange.OpenStore(f.dbPath)
	if err != nil {
		t.Fatalf("reopen store failed: %v", err)
	}
	ex2, err := exchange.New(cfg, f.reg, store, f.clock, nil)
	if err != nil {
		t.Fatalf("reopen exchange failed: %v", err)
	}
	defer ex2.Close()

	if got := ex2.BalanceOf(f.tokenA.ID(), user1); got != 100 {
		t.Errorf("replayed balance = %d, want 100", got)
	}
	if ex2.OrderCount() != 2 {
		t.Errorf("replayed order count = %d, want 2", ex2.OrderCount())
	}
	s1, _ := ex2.OrderStatus(1)
	if s1 != exchange.OrderOpen {
		t.Errorf("order 1 status = %s, want open", s1)
	}
	s2, _ := ex2.OrderStatus(2)
	if s2 != exchange.OrderCancelled {
		t.Errorf("order 2 status = %s, want cancelled", s2)
	}

	// New orders continue the id sequence
	o, err := ex2.MakeOrder(f.tokenB.ID(), 1, f.tokenA.ID(), 1, user1)
	if err != nil {
		t.Fatalf("make order after replay failed: %v", err)
	}
	if o.ID != 3 {
		t.Errorf("order id after replay = %d, want 3", o.ID)
	}
}

func TestOrdersListing(t *testing.T) {
	f := newFixture(t, defaultConfig())
	f.approveAndDeposit(t, f.tokenA, user1, 100)
	f.ex.MakeOrder(f.tokenB.ID(), 1, f.tokenA.ID(), 1, user1)
	f.ex.MakeOrder(f.tokenB.ID(), 2, f.tokenA.ID(), 2, user1)
	f.ex.MakeOrder(f.tokenB.ID(), 3, f.tokenA.ID(), 3, user1)

	orders := f.ex.Orders()
	if len(orders) != 3 {
		t.Fatalf("got %d orders, want 3", len(orders))
	}
	for i, o := range orders {
		if o.ID != uint64(i+1) {
			t.Errorf("orders[%d].ID = %d, want %d", i, o.ID, i+1)
		}
	}
}

func TestZeroFee(t *testing.T) {
	cfg := defaultConfig()
	cfg.FeePercent = 0
	f := newFixture(t, cfg)

	f.approveAndDeposit(t, f.tokenA, user1, 100)
	f.ex.MakeOrder(f.tokenB.ID(), 10, f.tokenA.ID(), 10, user1)
	f.approveAndDeposit(t, f.tokenB, user2, 10)

	if err := f.ex.FillOrder(1, user2); err != nil {
		t.Fatalf("fill failed: %v", err)
	}
	if got := f.ex.BalanceOf(f.tokenB.ID(), feeAccount); got != 0 {
		t.Errorf("fee account = %d, want 0", got)
	}
}
