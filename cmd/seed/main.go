package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/custodex/custodex/params"
	"github.com/custodex/custodex/pkg/crypto"
	"github.com/custodex/custodex/pkg/exchange"
	"github.com/custodex/custodex/pkg/token"
	"github.com/custodex/custodex/pkg/util"
)

// Seeds the exchange database with demo activity: two funded users, a
// cancelled order, three filled orders, and ten open orders on each side.
// Run before starting the node to get a populated devnet.

// Hardhat dev account keys; fine to hardcode, they are public knowledge.
const (
	user1Key = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	user2Key = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"
)

const deployerHex = "0x00000000000000000000000000000000DE910000"

func main() {
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLogger()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	user1Signer, err := crypto.FromPrivateKeyHex(user1Key)
	if err != nil {
		sugar.Fatalw("bad_user1_key", "err", err)
	}
	user2Signer, err := crypto.FromPrivateKeyHex(user2Key)
	if err != nil {
		sugar.Fatalw("bad_user2_key", "err", err)
	}
	user1 := user1Signer.Address()
	user2 := user2Signer.Address()
	deployer := common.HexToAddress(deployerHex)

	// Same token set the node registers at startup
	dapp := token.NewERC20("Dapp Token", "DAPP", 18, 1_000_000_000, deployer)
	mdai := token.NewERC20("Mock DAI", "mDAI", 18, 1_000_000_000, deployer)
	meth := token.NewERC20("Mock Ether", "mETH", 18, 1_000_000_000, deployer)

	registry := token.NewRegistry()
	registry.Register(dapp.ID(), dapp.Bind(cfg.Exchange.Custodian))
	registry.Register(mdai.ID(), mdai.Bind(cfg.Exchange.Custodian))
	registry.Register(meth.ID(), meth.Bind(cfg.Exchange.Custodian))

	// Distribute external balances
	must(sugar, dapp.Transfer(deployer, user1, 1_000_000))
	must(sugar, mdai.Transfer(deployer, user1, 1_000_000))
	must(sugar, meth.Transfer(deployer, user2, 1_000_000))

	os.MkdirAll(filepath.Dir(cfg.Node.DBPath), 0755)
	store, err := exchange.OpenStore(cfg.Node.DBPath)
	if err != nil {
		sugar.Fatalw("store_open_failed", "path", cfg.Node.DBPath, "err", err)
	}

	ex, err := exchange.New(exchange.Config{
		Custodian:     cfg.Exchange.Custodian,
		FeeAccount:    cfg.Exchange.FeeAccount,
		FeePercent:    cfg.Exchange.FeePercent,
		AllowSelfFill: cfg.Exchange.AllowSelfFill,
	}, registry, store, util.RealClock{}, sugar)
	if err != nil {
		sugar.Fatalw("exchange_init_failed", "err", err)
	}
	defer ex.Close()

	// Approve and deposit working capital
	must(sugar, dapp.Approve(user1, cfg.Exchange.Custodian, 100_000))
	must(sugar, ex.DepositToken(dapp.ID(), 100_000, user1))
	must(sugar, meth.Approve(user2, cfg.Exchange.Custodian, 100_000))
	must(sugar, ex.DepositToken(meth.ID(), 100_000, user2))

	// One order made and cancelled by user1
	o, err := ex.MakeOrder(meth.ID(), 100, dapp.ID(), 100, user1)
	must(sugar, err)
	must(sugar, ex.CancelOrder(o.ID, user1))

	// Three orders made by user1, filled by user2
	for i := int64(1); i <= 3; i++ {
		o, err := ex.MakeOrder(meth.ID(), 10*i, dapp.ID(), 50*i, user1)
		must(sugar, err)
		must(sugar, ex.FillOrder(o.ID, user2))
	}

	// Ten open orders on each side
	for i := int64(1); i <= 10; i++ {
		_, err := ex.MakeOrder(meth.ID(), 10*i, dapp.ID(), 100, user1)
		must(sugar, err)
	}
	for i := int64(1); i <= 10; i++ {
		_, err := ex.MakeOrder(dapp.ID(), 100, meth.ID(), 10*i, user2)
		must(sugar, err)
	}

	sugar.Infow("seed_complete",
		"db_path", cfg.Node.DBPath,
		"order_count", ex.OrderCount(),
		"user1", user1.Hex(),
		"user2", user2.Hex(),
		"dapp", dapp.ID().Hex(),
		"meth", meth.ID().Hex())
}

func must(sugar *zap.SugaredLogger, err error) {
	if err != nil {
		sugar.Fatalw("seed_failed", "err", err)
	}
}
