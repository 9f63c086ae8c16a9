// The application's root configuration: network profiles, ledger deposits,
// per-platform OAuth credentials, and the ambient logger/database settings.
package config

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

var (
	instance *Config
	once     sync.Once
)

// Config is the root configuration structure for the entire application.
type Config struct {
	Logger       LoggerConfig              `mapstructure:"logger"`
	Network      string                    `mapstructure:"network"`
	Networks     map[string]NetworkConfig  `mapstructure:"networks"`
	Ledger       LedgerConfig              `mapstructure:"ledger"`
	HTTP         HTTPConfig                `mapstructure:"http"`
	Platforms    map[string]PlatformConfig `mapstructure:"platforms"`
	Verification VerificationConfig        `mapstructure:"verification"`
	Database     DatabaseConfig            `mapstructure:"database"`
}

// ColorConfig defines the color settings for different log levels.
// These are used for console output to make logs more readable.
type ColorConfig struct {
	Debug string `mapstructure:"debug" json:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" json:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" json:"warn" yaml:"warn"`
	Error string `mapstructure:"error" json:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" json:"fatal" yaml:"fatal"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" json:"level" yaml:"level"`
	Format      string      `mapstructure:"format" json:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" json:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" json:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" json:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" json:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" json:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" json:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" json:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" json:"colors" yaml:"colors"`
}

// NetworkConfig describes one deployment target of the multivault contract.
type NetworkConfig struct {
	ChainID           int64  `mapstructure:"chain_id"`
	RPCURL            string `mapstructure:"rpc_url"`
	MultivaultAddress string `mapstructure:"multivault_address"`
	ProxyAddress      string `mapstructure:"proxy_address"`
	PinningURL        string `mapstructure:"pinning_url"`
}

// LedgerConfig holds the signing credential and the fixed deposit policy.
// Deposits are wei strings so they round-trip exactly through YAML and env.
type LedgerConfig struct {
	SigningKey          string        `mapstructure:"signing_key"`
	Route               string        `mapstructure:"route"` // "direct" or "proxied"
	AtomDepositWei      string        `mapstructure:"atom_deposit_wei"`
	TripleSurchargeWei  string        `mapstructure:"triple_surcharge_wei"`
	ProxyFeeWei         string        `mapstructure:"proxy_fee_wei"`
	ConfirmPollInterval time.Duration `mapstructure:"confirm_poll_interval"`
}

// HTTPConfig holds settings for outbound provider/pinning requests.
type HTTPConfig struct {
	Timeout         time.Duration `mapstructure:"timeout"`
	IgnoreTLSErrors bool          `mapstructure:"ignore_tls_errors"`
}

// PlatformConfig holds per-platform auxiliary credentials. Only twitch
// currently requires one (the Client-Id header).
type PlatformConfig struct {
	ClientID string `mapstructure:"client_id"`
}

// VerificationConfig controls joint multi-platform verification.
type VerificationConfig struct {
	Threshold int      `mapstructure:"threshold"`
	Platforms []string `mapstructure:"platforms"`
}

// DatabaseConfig holds the optional link-store connection string.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// Active returns the selected network profile.
func (c *Config) Active() (NetworkConfig, error) {
	net, ok := c.Networks[c.Network]
	if !ok {
		return NetworkConfig{}, fmt.Errorf("unknown network '%s'", c.Network)
	}
	return net, nil
}

// Validate checks the parts of the configuration that would otherwise fail
// deep inside a pipeline run.
func (c *Config) Validate() error {
	net, err := c.Active()
	if err != nil {
		return err
	}
	if net.RPCURL == "" {
		return fmt.Errorf("network '%s': rpc_url is required", c.Network)
	}
	if !common.IsHexAddress(net.MultivaultAddress) {
		return fmt.Errorf("network '%s': multivault_address '%s' is not a valid address", c.Network, net.MultivaultAddress)
	}
	if net.PinningURL == "" {
		return fmt.Errorf("network '%s': pinning_url is required", c.Network)
	}
	switch c.Ledger.Route {
	case "direct":
	case "proxied":
		if !common.IsHexAddress(net.ProxyAddress) {
			return fmt.Errorf("network '%s': proxied route requires a valid proxy_address", c.Network)
		}
	default:
		return fmt.Errorf("ledger.route must be 'direct' or 'proxied', got '%s'", c.Ledger.Route)
	}
	for _, field := range []struct{ name, val string }{
		{"ledger.atom_deposit_wei", c.Ledger.AtomDepositWei},
		{"ledger.triple_surcharge_wei", c.Ledger.TripleSurchargeWei},
		{"ledger.proxy_fee_wei", c.Ledger.ProxyFeeWei},
	} {
		if _, err := ParseWei(field.val); err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
	}
	if c.Verification.Threshold < 1 {
		return fmt.Errorf("verification.threshold must be at least 1")
	}
	return nil
}

// ParseWei parses a base-10 wei amount.
func ParseWei(s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("'%s' is not a non-negative wei amount", s)
	}
	return v, nil
}

// SetDefaults seeds viper so the app can run against the testnet with only a
// signing key supplied.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "sofia-attestor")
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	v.SetDefault("network", "testnet")
	v.SetDefault("networks.testnet.chain_id", 84532)
	v.SetDefault("networks.testnet.rpc_url", "https://sepolia.base.org")
	v.SetDefault("networks.testnet.multivault_address", "0x1A6950807E33d5bC9975067e6D6b5Ea4cD661665")
	v.SetDefault("networks.testnet.pinning_url", "https://dev.base-sepolia.intuition-api.com/v1/graphql")
	v.SetDefault("networks.mainnet.chain_id", 8453)
	v.SetDefault("networks.mainnet.rpc_url", "https://mainnet.base.org")
	v.SetDefault("networks.mainnet.multivault_address", "0x430BbF52503Bd4801E51182f4cB9f8F534225DE5")
	v.SetDefault("networks.mainnet.pinning_url", "https://prod.base.intuition-api.com/v1/graphql")

	v.SetDefault("ledger.route", "direct")
	v.SetDefault("ledger.atom_deposit_wei", "400000000000000")     // 0.0004 ether
	v.SetDefault("ledger.triple_surcharge_wei", "600000000000000") // 0.0006 ether
	v.SetDefault("ledger.proxy_fee_wei", "100000000000000")        // 0.0001 ether
	v.SetDefault("ledger.confirm_poll_interval", 2*time.Second)

	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("http.ignore_tls_errors", false)

	v.SetDefault("verification.threshold", 1)
}

// Load initializes the configuration singleton from Viper.
func Load(v *viper.Viper) error {
	var loadErr error
	once.Do(func() {
		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			loadErr = fmt.Errorf("error unmarshaling config: %w", err)
			return
		}
		instance = &cfg
	})
	return loadErr
}

// Set stores a configuration directly. Intended for tests and for callers
// that build their own Config without viper.
func Set(cfg *Config) {
	instance = cfg
}

// Get returns the loaded configuration instance.
func Get() *Config {
	if instance == nil {
		panic("Configuration not initialized. Call config.Load() in the root command.")
	}
	return instance
}
