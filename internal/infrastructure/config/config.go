package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Environment string           `mapstructure:"environment"`
	LogLevel    string           `mapstructure:"log_level"`
	Server      ServerConfig     `mapstructure:"server"`
	Database    DatabaseConfig   `mapstructure:"database"`
	Redis       RedisConfig      `mapstructure:"redis"`
	Aptos       AptosConfig      `mapstructure:"aptos"`
	Escrow      EscrowConfig     `mapstructure:"escrow"`
	Settlement  SettlementConfig `mapstructure:"settlement"`
	Tracing     TracingConfig    `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port            int      `mapstructure:"port"`
	Host            string   `mapstructure:"host"`
	ReadTimeout     int      `mapstructure:"read_timeout"`
	WriteTimeout    int      `mapstructure:"write_timeout"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	RateLimitPerMin int      `mapstructure:"rate_limit_per_min"`
	APIKey          string   `mapstructure:"api_key"`
}

type DatabaseConfig struct {
	URL             string `mapstructure:"url"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	QueryTimeout    int    `mapstructure:"query_timeout"`
}

type RedisConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	MaxRetries int    `mapstructure:"max_retries"`
	PoolSize   int    `mapstructure:"pool_size"`
}

// AptosConfig contains fullnode and transaction parameters.
type AptosConfig struct {
	NodeURL              string `mapstructure:"node_url"`
	ExplorerBaseURL      string `mapstructure:"explorer_base_url"`
	Network              string `mapstructure:"network"` // mainnet, testnet, devnet
	ChainID              uint8  `mapstructure:"chain_id"`
	MaxGasAmount         uint64 `mapstructure:"max_gas_amount"`
	GasUnitPrice         uint64 `mapstructure:"gas_unit_price"`
	ExpirationSecs       uint64 `mapstructure:"expiration_secs"`
	RequestTimeout       int    `mapstructure:"request_timeout"`
	ConfirmationTimeout  int    `mapstructure:"confirmation_timeout"`
	ConfirmationInterval int    `mapstructure:"confirmation_interval"`
}

// EscrowConfig identifies the custodial escrow account. The private key is
// the single shared signing secret; it is read here, handed to the chain
// client, and never logged or echoed in responses.
type EscrowConfig struct {
	Address         string  `mapstructure:"address"`
	PrivateKeyHex   string  `mapstructure:"private_key"`
	MinAPTBalance   float64 `mapstructure:"min_apt_balance"`
	MinEmojiBalance float64 `mapstructure:"min_emoji_balance"`
}

// SettlementConfig tunes the orchestrator and its workers.
type SettlementConfig struct {
	WalletLockTTL          int    `mapstructure:"wallet_lock_ttl"` // seconds
	FundingPollInterval    int    `mapstructure:"funding_poll_interval"`
	FundingSnapshotTTL     int    `mapstructure:"funding_snapshot_ttl"`
	ReconciliationSchedule string `mapstructure:"reconciliation_schedule"`
	ReconciliationMaxAge   int    `mapstructure:"reconciliation_max_age"` // hours before a stuck pending record is alerted on
}

type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	CollectorURL string  `mapstructure:"collector_url"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	Insecure     bool    `mapstructure:"insecure"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	// Read from config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Override with environment variables
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Build database URL if not provided
	if config.Database.URL == "" {
		config.Database.URL = fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s?sslmode=%s",
			config.Database.User,
			config.Database.Password,
			config.Database.Host,
			config.Database.Port,
			config.Database.Name,
			config.Database.SSLMode,
		)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)
	viper.SetDefault("server.rate_limit_per_min", 120)

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "escrow_service")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 300)
	viper.SetDefault("database.query_timeout", 30)

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.pool_size", 10)

	// Aptos defaults (testnet)
	viper.SetDefault("aptos.node_url", "https://fullnode.testnet.aptoslabs.com")
	viper.SetDefault("aptos.explorer_base_url", "https://explorer.aptoslabs.com")
	viper.SetDefault("aptos.network", "testnet")
	viper.SetDefault("aptos.chain_id", 2)
	viper.SetDefault("aptos.max_gas_amount", 20000)
	viper.SetDefault("aptos.gas_unit_price", 100)
	viper.SetDefault("aptos.expiration_secs", 600)
	viper.SetDefault("aptos.request_timeout", 30)
	viper.SetDefault("aptos.confirmation_timeout", 30)
	viper.SetDefault("aptos.confirmation_interval", 1)

	// Escrow defaults
	viper.SetDefault("escrow.min_apt_balance", 1.0)
	viper.SetDefault("escrow.min_emoji_balance", 1000.0)

	// Settlement defaults
	viper.SetDefault("settlement.wallet_lock_ttl", 90)
	viper.SetDefault("settlement.funding_poll_interval", 30)
	viper.SetDefault("settlement.funding_snapshot_ttl", 15)
	viper.SetDefault("settlement.reconciliation_schedule", "*/5 * * * *")
	viper.SetDefault("settlement.reconciliation_max_age", 24)

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.collector_url", "localhost:4317")
	viper.SetDefault("tracing.sample_rate", 1.0)
	viper.SetDefault("tracing.insecure", true)
}

// validate checks the fields without which the service cannot run. A missing
// escrow signing key aborts startup rather than failing on the first
// withdrawal.
func validate(cfg *Config) error {
	if cfg.Escrow.Address == "" {
		return fmt.Errorf("escrow.address is required")
	}
	if cfg.Escrow.PrivateKeyHex == "" {
		return fmt.Errorf("escrow.private_key is required")
	}
	if cfg.Aptos.NodeURL == "" {
		return fmt.Errorf("aptos.node_url is required")
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	return nil
}
