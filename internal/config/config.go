package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	DBPath   string `envconfig:"TOKENSCOUT_DB_PATH" default:"./data/tokenscout.sqlite"`
	Port     int    `envconfig:"TOKENSCOUT_PORT" default:"8080"`
	LogLevel string `envconfig:"TOKENSCOUT_LOG_LEVEL" default:"info"`
	LogDir   string `envconfig:"TOKENSCOUT_LOG_DIR" default:"./logs"`
	Network  string `envconfig:"TOKENSCOUT_NETWORK" default:"mainnet"`

	RPCURLs            []string `envconfig:"TOKENSCOUT_RPC_URLS"`
	ExplorerAPIURL     string   `envconfig:"TOKENSCOUT_EXPLORER_API_URL"`
	ExplorerAPIKey     string   `envconfig:"TOKENSCOUT_EXPLORER_API_KEY"`
	AssetDefinitionURL string   `envconfig:"TOKENSCOUT_ASSET_DEFINITION_URL" default:"https://repo.tokenscript.org/0.0"`

	AutoFetchDisabled bool   `envconfig:"TOKENSCOUT_AUTO_FETCH_DISABLED" default:"false"`
	PartnersFile      string `envconfig:"TOKENSCOUT_PARTNERS_FILE"`

	MnemonicFile string `envconfig:"TOKENSCOUT_MNEMONIC_FILE"`
	WalletIndex  uint32 `envconfig:"TOKENSCOUT_WALLET_INDEX" default:"0"`
}

// Load reads configuration from .env file (if present) then from environment variables.
// Environment variables override .env values.
func Load() (*Config, error) {
	// godotenv does NOT override already-set env vars,
	// so real environment variables take precedence over .env values.
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			slog.Warn("failed to load .env file", "file", ".env", "error", err)
		} else {
			slog.Info("loaded .env file", "file", ".env")
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	cfg.applyNetworkDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyNetworkDefaults fills in public endpoints for the selected network
// when none were configured explicitly.
func (c *Config) applyNetworkDefaults() {
	endpoints, ok := DefaultEndpoints[c.Network]
	if !ok {
		return
	}
	if len(c.RPCURLs) == 0 {
		c.RPCURLs = []string{endpoints.RPCURL}
	}
	if c.ExplorerAPIURL == "" {
		c.ExplorerAPIURL = endpoints.ExplorerAPIURL
	}
}

// Validate checks configuration values for correctness.
func (c *Config) Validate() error {
	if _, ok := ChainIDs[c.Network]; !ok {
		return fmt.Errorf("%w: network must be one of %s, got %q",
			ErrInvalidConfig, strings.Join(SupportedNetworks(), ", "), c.Network)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port must be 1-65535, got %d", ErrInvalidConfig, c.Port)
	}
	if len(c.RPCURLs) == 0 {
		return fmt.Errorf("%w: at least one RPC URL is required", ErrInvalidConfig)
	}
	for _, u := range c.RPCURLs {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return fmt.Errorf("%w: RPC URL must be http(s), got %q", ErrInvalidConfig, u)
		}
	}
	return nil
}
