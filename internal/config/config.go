package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileConfig models the optional JSON overlay pointed to by STABLETRADE_CONFIG.
type FileConfig struct {
	Network string  `json:"network"`
	Brand   string  `json:"brand"`
	Brands  []Brand `json:"brands"`
	Chain   struct {
		RPCURL    string `json:"rpcUrl"`
		GasBudget uint64 `json:"gasBudget"`
	} `json:"chain"`
	Settlement struct {
		ThresholdSeconds int `json:"thresholdSeconds"`
	} `json:"settlement"`
}

// AppConfig ties together the static tables, the overlay and environment values.
type AppConfig struct {
	Service    ServiceConfig
	Store      StoreConfig
	Chain      ChainConfig
	Settlement SettlementConfig
	Brands     []Brand
	// Network and Brand are the initial selection.
	Network string
	Brand   string
}

type ServiceConfig struct {
	HTTPPort      int
	HMACSecret    string
	HMACClockSkew time.Duration
	LogLevel      string
}

type StoreConfig struct {
	Backend     string
	Path        string
	PostgresDSN string
	RedisAddr   string
}

type ChainConfig struct {
	RPCURL     string
	PrivateKey string
	Sender     string
	GasBudget  uint64
}

type SettlementConfig struct {
	Threshold time.Duration
}

const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

const defaultGasBudget = 50_000_000

// Load aggregates configuration from disk and environment.
func Load() (*AppConfig, error) {
	var overlay FileConfig
	if path := envOr("STABLETRADE_CONFIG", ""); path != "" {
		loaded, err := loadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
		overlay = *loaded
	}

	brands := DefaultBrands()
	if len(overlay.Brands) > 0 {
		brands = mergeBrands(brands, overlay.Brands)
	}

	gasBudget := overlay.Chain.GasBudget
	if gasBudget == 0 {
		gasBudget = defaultGasBudget
	}
	thresholdSecs := overlay.Settlement.ThresholdSeconds
	if thresholdSecs <= 0 {
		thresholdSecs = 60
	}

	cfg := &AppConfig{
		Service: ServiceConfig{
			HTTPPort:      envOrInt("API_HTTP_PORT", 3000),
			HMACSecret:    envOr("API_HMAC_SECRET", ""),
			HMACClockSkew: time.Duration(envOrInt("HMAC_CLOCK_SKEW_SECONDS", 60)) * time.Second,
			LogLevel:      envOr("LOG_LEVEL", "info"),
		},
		Store: StoreConfig{
			Backend:     envOr("STORE_BACKEND", BackendFile),
			Path:        envOr("STORE_PATH", filepath.Join(os.TempDir(), "stabletrade-store.json")),
			PostgresDSN: envOr("POSTGRES_DSN", ""),
			RedisAddr:   envOr("REDIS_ADDR", "localhost:6379"),
		},
		Chain: ChainConfig{
			RPCURL:     envOr("CHAIN_RPC_URL", overlay.Chain.RPCURL),
			PrivateKey: envOr("CHAIN_PRIVATE_KEY", ""),
			Sender:     envOr("CHAIN_SENDER", ""),
			GasBudget:  uint64(envOrInt("CHAIN_GAS_BUDGET", int(gasBudget))),
		},
		Settlement: SettlementConfig{
			Threshold: time.Duration(envOrInt("SETTLEMENT_THRESHOLD_SECONDS", thresholdSecs)) * time.Second,
		},
		Brands:  brands,
		Network: envOr("CHAIN_NETWORK", orDefault(overlay.Network, "mainnet")),
		Brand:   envOr("BRAND_KEY", orDefault(overlay.Brand, brands[0].Key)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the selection and store settings.
func (c *AppConfig) Validate() error {
	if _, err := LookupNetwork(c.Network); err != nil {
		return err
	}
	if _, err := LookupBrand(c.Brands, c.Brand); err != nil {
		return err
	}
	switch c.Store.Backend {
	case BackendMemory, BackendFile, BackendRedis:
	case BackendPostgres:
		if c.Store.PostgresDSN == "" {
			return errors.New("POSTGRES_DSN is required for the postgres store backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	return nil
}

// RPCURLFor returns the fullnode URL for network, honouring the override.
func (c *AppConfig) RPCURLFor(n Network) string {
	if c.Chain.RPCURL != "" {
		return c.Chain.RPCURL
	}
	return n.RPCURL
}

func loadFile(path string) (*FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// mergeBrands replaces built-in entries by key and appends new ones.
func mergeBrands(base, overrides []Brand) []Brand {
	out := base
	for _, o := range overrides {
		replaced := false
		for i := range out {
			if out[i].Key == o.Key {
				out[i] = o
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, o)
		}
	}
	return out
}

func orDefault(val, fallback string) string {
	if val == "" {
		return fallback
	}
	return val
}

func envOr(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
	}
	return fallback
}
