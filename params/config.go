package params

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Gateway struct {
	URL string
	// CallTimeout bounds one gateway round trip. Zero leaves calls pending
	// until the transport settles them; the engine imposes no timeout of
	// its own.
	CallTimeout time.Duration
}

type Chain struct {
	Network       string
	ContractID    string
	PlatformToken string

	// Native balance display conversion: drop NativeDropDigits trailing
	// digits of the raw smallest-unit amount, then shift the remainder
	// right by NativeDisplayExp decimal places. Defaults fit a chain whose
	// native unit has 24 decimals displayed to 2 decimal places.
	NativeDropDigits int
	NativeDisplayExp int32
}

type API struct {
	ListenAddr     string
	AllowedOrigins []string
}

type Wallet struct {
	AccountID    string
	KeyStorePath string
}

type Config struct {
	Gateway Gateway
	Chain   Chain
	API     API
	Wallet  Wallet
}

func Default() Config {
	return Config{
		Gateway: Gateway{
			URL:         "http://localhost:8080",
			CallTimeout: 0,
		},
		Chain: Chain{
			Network:          "testnet",
			ContractID:       "xdex.testnet",
			PlatformToken:    "XDHO",
			NativeDropDigits: 22,
			NativeDisplayExp: 2,
		},
		API: API{
			ListenAddr:     ":8090",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Wallet: Wallet{
			KeyStorePath: "data/keystore",
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("GATEWAY_URL"); v != "" {
		cfg.Gateway.URL = v
	}
	if v := os.Getenv("GATEWAY_CALL_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.CallTimeout = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("NETWORK"); v != "" {
		cfg.Chain.Network = v
	}
	if v := os.Getenv("CONTRACT_ID"); v != "" {
		cfg.Chain.ContractID = v
	}
	if v := os.Getenv("PLATFORM_TOKEN"); v != "" {
		cfg.Chain.PlatformToken = v
	}
	if v := os.Getenv("NATIVE_DROP_DIGITS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Chain.NativeDropDigits = n
		}
	}
	if v := os.Getenv("NATIVE_DISPLAY_EXP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Chain.NativeDisplayExp = int32(n)
		}
	}
	if v := os.Getenv("API_LISTEN"); v != "" {
		cfg.API.ListenAddr = v
	}
	if v := os.Getenv("API_ALLOWED_ORIGINS"); v != "" {
		cfg.API.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("ACCOUNT_ID"); v != "" {
		cfg.Wallet.AccountID = v
	}
	if v := os.Getenv("KEYSTORE_PATH"); v != "" {
		cfg.Wallet.KeyStorePath = v
	}

	return cfg
}
