package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ethereum/go-ethereum/common"

	"github.com/custodex/custodex/params"
	"github.com/custodex/custodex/pkg/api"
	"github.com/custodex/custodex/pkg/exchange"
	"github.com/custodex/custodex/pkg/token"
	"github.com/custodex/custodex/pkg/util"
)

// demoToken describes a token deployed at node startup. A production
// deployment would resolve real on-chain contracts instead.
type demoToken struct {
	name     string
	symbol   string
	supply   int64
	deployer common.Address
}

var demoTokens = []demoToken{
	{"Dapp Token", "DAPP", 1_000_000_000, common.HexToAddress("0x00000000000000000000000000000000DE910000")},
	{"Mock DAI", "mDAI", 1_000_000_000, common.HexToAddress("0x00000000000000000000000000000000DE910000")},
	{"Mock Ether", "mETH", 1_000_000_000, common.HexToAddress("0x00000000000000000000000000000000DE910000")},
}

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("") // "" means load from .env in current directory

	// Setup logging (write to both console and file)
	logFile := cfg.Node.LogFile
	if logFile == "" {
		logFile = "data/node.log"
	}
	os.MkdirAll(filepath.Dir(logFile), 0755)

	logger, err := util.NewLoggerWithFile(logFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", logFile)

	// ---- Token registry ----
	// Demo ERC20s, bound to the custodian so the exchange can pull approved
	// deposits and pay out withdrawals.
	registry := token.NewRegistry()
	for _, dt := range demoTokens {
		t := token.NewERC20(dt.name, dt.symbol, 18, dt.supply, dt.deployer)
		registry.Register(t.ID(), t.Bind(cfg.Exchange.Custodian))
		sugar.Infow("token_registered", "symbol", dt.symbol, "id", t.ID().Hex())
	}

	// ---- Storage ----
	os.MkdirAll(filepath.Dir(cfg.Node.DBPath), 0755)
	store, err := exchange.OpenStore(cfg.Node.DBPath)
	if err != nil {
		sugar.Fatalw("store_open_failed", "path", cfg.Node.DBPath, "err", err)
	}

	// ---- Exchange ----
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

	sugar.Infow("exchange_ready",
		"fee_account", cfg.Exchange.FeeAccount.Hex(),
		"fee_percent", cfg.Exchange.FeePercent,
		"order_count", ex.OrderCount(),
		"db_path", cfg.Node.DBPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- API Server ----
	// Serves REST + WebSocket; registers itself as the exchange event sink.
	apiServer := api.NewServer(ex, registry, cfg.API)

	go func() {
		sugar.Infow("api_server_starting", "addr", cfg.API.ListenAddr, "auth_required", cfg.API.AuthRequired)
		if err := apiServer.Start(cfg.API.ListenAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	<-ctx.Done()
	sugar.Info("shutting down")
}
