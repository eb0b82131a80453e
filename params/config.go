package params

import (
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

type Exchange struct {
	// Custodian is the account that holds deposited tokens. Tokens must be
	// approved to this address before DepositToken can pull them.
	Custodian common.Address
	// FeeAccount collects the taker fee on every trade.
	FeeAccount common.Address
	// FeePercent is the taker fee in whole percent of amountGet, 0-100.
	FeePercent int64
	// AllowSelfFill permits a maker to take their own order. The net effect
	// of a self-fill is paying the fee, which some operators prefer to block.
	AllowSelfFill bool
}

type Node struct {
	DBPath  string
	LogFile string
}

type API struct {
	ListenAddr string
	// AuthRequired demands a signature over every mutating request.
	AuthRequired bool
	CORSOrigins  []string
}

type Config struct {
	Exchange Exchange
	Node     Node
	API      API
}

func Default() Config {
	return Config{
		Exchange: Exchange{
			Custodian:     common.HexToAddress("0x00000000000000000000000000000000C0570D14"),
			FeeAccount:    common.HexToAddress("0x0000000000000000000000000000000000000FEE"),
			FeePercent:    10,
			AllowSelfFill: true,
		},
		Node: Node{
			DBPath:  "data/exchange.db",
			LogFile: "", // stdout only
		},
		API: API{
			ListenAddr:   ":8080",
			AuthRequired: false, // devnet default: unsigned requests accepted
			CORSOrigins:  []string{"*"},
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	// Try to load .env file (optional - won't fail if not exists)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	if v := os.Getenv("CUSTODIAN"); v != "" {
		cfg.Exchange.Custodian = common.HexToAddress(v)
	}
	if v := os.Getenv("FEE_ACCOUNT"); v != "" {
		cfg.Exchange.FeeAccount = common.HexToAddress(v)
	}
	if v := os.Getenv("FEE_PERCENT"); v != "" {
		if pct, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Exchange.FeePercent = pct
		}
	}
	if v := os.Getenv("ALLOW_SELF_FILL"); v != "" {
		cfg.Exchange.AllowSelfFill = v == "true"
	}

	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.Node.DBPath = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Node.LogFile = v
	}

	if v := os.Getenv("API_ADDR"); v != "" {
		cfg.API.ListenAddr = v
	}
	if v := os.Getenv("AUTH_REQUIRED"); v != "" {
		cfg.API.AuthRequired = v == "true"
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		// Example: "http://localhost:3000,https://app.example.com"
		cfg.API.CORSOrigins = strings.Split(v, ",")
	}

	return cfg
}
