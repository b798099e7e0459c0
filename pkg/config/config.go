package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config represents the bot process configuration
type Config struct {
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Chain      ChainConfig      `mapstructure:"chain"`
	Payments   PaymentsConfig   `mapstructure:"payments"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// TelegramConfig contains chat platform settings
type TelegramConfig struct {
	BotToken      string `mapstructure:"bot_token" validate:"required"`
	UpdateTimeout int    `mapstructure:"update_timeout" validate:"gte=1"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// ChainConfig contains blockchain RPC settings.
// An empty RPCURL selects the mocked chain client.
type ChainConfig struct {
	RPCURL          string        `mapstructure:"rpc_url"`
	ChainID         int64         `mapstructure:"chain_id"`
	GasLimit        uint64        `mapstructure:"gas_limit"`
	MaxGasPrice     string        `mapstructure:"max_gas_price"`
	ConfirmTimeout  time.Duration `mapstructure:"confirm_timeout"`
	PollingInterval time.Duration `mapstructure:"polling_interval"`
	FallbackFee     string        `mapstructure:"fallback_fee"`
}

// PaymentsConfig contains payment coordination settings.
// All three ceilings (confirmation TTL, chain confirm timeout, ledger retries)
// are finite; unbounded waits are not representable here.
type PaymentsConfig struct {
	SupportedTokens  []string          `mapstructure:"supported_tokens"`
	ConfirmationTTL  time.Duration     `mapstructure:"confirmation_ttl" validate:"gt=0"`
	SweepInterval    time.Duration     `mapstructure:"sweep_interval" validate:"gt=0"`
	LedgerRetries    int               `mapstructure:"ledger_retries" validate:"gte=1"`
	LedgerRetryDelay time.Duration     `mapstructure:"ledger_retry_delay" validate:"gt=0"`
	RequestExpiry    time.Duration     `mapstructure:"request_expiry" validate:"gt=0"`
	DailyLimit       string            `mapstructure:"daily_limit"`
	KeySecret        string            `mapstructure:"key_secret" validate:"required"`
	FaucetAmount     string            `mapstructure:"faucet_amount"`
	// TokenPrices are static display prices (token symbol -> USD) for the
	// price command; no live feed is consulted.
	TokenPrices map[string]string `mapstructure:"token_prices"`
	Overrides   map[string]string `mapstructure:"resolver_overrides"`
	Contacts    map[string]string `mapstructure:"resolver_contacts"`
}

// MonitoringConfig contains the health/metrics HTTP surface settings
type MonitoringConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Telegram defaults
	viper.SetDefault("telegram.update_timeout", 60)

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.database", "paybot")

	// Chain defaults
	viper.SetDefault("chain.chain_id", 31337)
	viper.SetDefault("chain.gas_limit", 21000)
	viper.SetDefault("chain.confirm_timeout", "60s")
	viper.SetDefault("chain.polling_interval", "2s")
	viper.SetDefault("chain.fallback_fee", "0.0001")

	// Payments defaults
	viper.SetDefault("payments.supported_tokens", []string{"PC"})
	viper.SetDefault("payments.confirmation_ttl", "10m")
	viper.SetDefault("payments.sweep_interval", "1m")
	viper.SetDefault("payments.ledger_retries", 3)
	viper.SetDefault("payments.ledger_retry_delay", "200ms")
	viper.SetDefault("payments.request_expiry", "24h")
	viper.SetDefault("payments.daily_limit", "1000")
	viper.SetDefault("payments.faucet_amount", "10")
	viper.SetDefault("payments.token_prices", map[string]string{"PC": "1.00"})

	// Monitoring defaults
	viper.SetDefault("monitoring.enabled", true)
	viper.SetDefault("monitoring.host", "0.0.0.0")
	viper.SetDefault("monitoring.port", 8081)
	viper.SetDefault("monitoring.shutdown_timeout", "30s")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output_path", "stdout")
}
