package infra

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SymbolConfig is one subscribed instrument.
type SymbolConfig struct {
	Name           string `yaml:"name"`
	InstrumentType string `yaml:"instrument_type"` // spot|future|inverse|option
	BookDepth      int    `yaml:"book_depth"`
}

// RateLimitConfig configures the executor token bucket.
type RateLimitConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Capacity   int     `yaml:"capacity"`
	RefillRate float64 `yaml:"refill_rate"`
	Policy     string  `yaml:"policy"` // reject|wait|callback
}

// TimeoutConfig configures the order timeout tracker.
type TimeoutConfig struct {
	Enabled         bool   `yaml:"enabled"`
	SubmitMS        int    `yaml:"submit_ms"`
	CancelMS        int    `yaml:"cancel_ms"`
	ReplaceMS       int    `yaml:"replace_ms"`
	CheckIntervalMS int    `yaml:"check_interval_ms"`
	Policy          string `yaml:"policy"` // log_only|reject|callback|reconcile
}

// PoolConfig sizes the HTTPS transport session pool.
type PoolConfig struct {
	Initial          int `yaml:"initial"`
	Max              int `yaml:"max"`
	AcquireTimeoutMS int `yaml:"acquire_timeout_ms"`
	ConnectTimeoutMS int `yaml:"connect_timeout_ms"`
	RequestTimeoutMS int `yaml:"request_timeout_ms"`
}

// VenueConfig is the per-venue connector configuration.
type VenueConfig struct {
	PublicEndpoint   string          `yaml:"public_endpoint"`
	PrivateEndpoint  string          `yaml:"private_endpoint"`
	RestEndpoint     string          `yaml:"rest_endpoint"`
	Symbols          []SymbolConfig  `yaml:"symbols"`
	ReconnectDelayMS int             `yaml:"reconnect_delay_ms"`
	APIKey           string          `yaml:"api_key"`
	APISecret        string          `yaml:"api_secret"`
	Passphrase       string          `yaml:"passphrase"`
	EnablePrivate    bool            `yaml:"enable_private"`
	RateLimit        RateLimitConfig `yaml:"rate_limit"`
	Timeouts         TimeoutConfig   `yaml:"timeouts"`
	Pool             PoolConfig      `yaml:"pool"`
}

// HyperliquidConfig extends VenueConfig with wallet-signing options.
type HyperliquidConfig struct {
	VenueConfig    `yaml:",inline"`
	AccountAddress string `yaml:"account_address"`
	VaultAddress   string `yaml:"vault_address"`
	PrivateKey     string `yaml:"private_key"`
	Mainnet        bool   `yaml:"mainnet"`
	SignerSocket   string `yaml:"signer_socket"`
	SignerTCPAddr  string `yaml:"signer_tcp_addr"`
	UseLocalSigner bool   `yaml:"use_local_signer"`
}

// PolymarketConfig extends VenueConfig with CLOB token subscriptions.
type PolymarketConfig struct {
	VenueConfig   `yaml:",inline"`
	TokenIDs      []string `yaml:"token_ids"`
	WalletKey     string   `yaml:"wallet_key"`
	FunderWallet  string   `yaml:"funder_wallet"`
	PingIntervalS int      `yaml:"ping_interval_s"`
}

// Config is the application configuration. Credentials can be overridden
// through environment variables after load.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Venues struct {
		Bybit       VenueConfig       `yaml:"bybit"`
		Bitget      VenueConfig       `yaml:"bitget"`
		Hyperliquid HyperliquidConfig `yaml:"hyperliquid"`
		Polymarket  PolymarketConfig  `yaml:"polymarket"`
	} `yaml:"venues"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and validates the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks every configured venue. Venues with no endpoint are
// treated as disabled and skipped.
func (c *Config) Validate() error {
	venues := []struct {
		name string
		cfg  *VenueConfig
	}{
		{"bybit", &c.Venues.Bybit},
		{"bitget", &c.Venues.Bitget},
		{"hyperliquid", &c.Venues.Hyperliquid.VenueConfig},
		{"polymarket", &c.Venues.Polymarket.VenueConfig},
	}
	for _, v := range venues {
		if v.cfg.PublicEndpoint == "" {
			continue
		}
		if err := v.cfg.validate(); err != nil {
			return fmt.Errorf("%s: %w", v.name, err)
		}
	}
	if c.Venues.Polymarket.PublicEndpoint != "" && len(c.Venues.Polymarket.TokenIDs) == 0 &&
		len(c.Venues.Polymarket.Symbols) == 0 {
		return fmt.Errorf("polymarket: at least one token id is required")
	}
	return nil
}

func (v *VenueConfig) validate() error {
	if !isWSURL(v.PublicEndpoint) {
		return fmt.Errorf("invalid public endpoint: %s", v.PublicEndpoint)
	}
	if v.EnablePrivate {
		if v.PrivateEndpoint != "" && !isWSURL(v.PrivateEndpoint) {
			return fmt.Errorf("invalid private endpoint: %s", v.PrivateEndpoint)
		}
		if v.APIKey == "" || v.APISecret == "" {
			return fmt.Errorf("private channels require api_key and api_secret")
		}
	}
	for _, s := range v.Symbols {
		if s.Name == "" {
			return fmt.Errorf("symbol name is empty")
		}
		if s.InstrumentType != "" {
			switch s.InstrumentType {
			case "spot", "future", "linear", "inverse", "option":
			default:
				return fmt.Errorf("symbol %s: unknown instrument type %q", s.Name, s.InstrumentType)
			}
		}
	}
	if v.ReconnectDelayMS < 0 {
		return fmt.Errorf("reconnect_delay_ms must be >= 0")
	}
	return nil
}

func isWSURL(s string) bool {
	return strings.HasPrefix(s, "ws://") || strings.HasPrefix(s, "wss://")
}

// overrideWithEnv lets credentials come from the environment instead of
// the config file.
func overrideWithEnv(cfg *Config) {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&cfg.Venues.Bybit.APIKey, "CONNECTOR_BYBIT_KEY")
	set(&cfg.Venues.Bybit.APISecret, "CONNECTOR_BYBIT_SECRET")
	set(&cfg.Venues.Bitget.APIKey, "CONNECTOR_BITGET_KEY")
	set(&cfg.Venues.Bitget.APISecret, "CONNECTOR_BITGET_SECRET")
	set(&cfg.Venues.Bitget.Passphrase, "CONNECTOR_BITGET_PASSPHRASE")
	set(&cfg.Venues.Hyperliquid.PrivateKey, "CONNECTOR_HL_PRIVATE_KEY")
	set(&cfg.Venues.Polymarket.WalletKey, "CONNECTOR_POLY_WALLET_KEY")
}
