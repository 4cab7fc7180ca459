package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config represents the tracker configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Sepolia    ChainConfig      `mapstructure:"sepolia"`
	Goliath    ChainConfig      `mapstructure:"goliath"`
	Bridge     BridgeConfig     `mapstructure:"bridge"`
	StatusAPI  StatusAPIConfig  `mapstructure:"status_api"`
	Polling    PollingConfig    `mapstructure:"polling"`
	Balances   BalancesConfig   `mapstructure:"balances"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ChainConfig contains per-chain client settings
type ChainConfig struct {
	ChainID               int64  `mapstructure:"chain_id" validate:"required"`
	RPCURL                string `mapstructure:"rpc_url" validate:"required"`
	ExplorerURL           string `mapstructure:"explorer_url"`
	BridgeContract        string `mapstructure:"bridge_contract" validate:"required"`
	WalletPrivateKey      string `mapstructure:"wallet_private_key"`
	RequiredConfirmations int    `mapstructure:"required_confirmations"`
	GasLimit              uint64 `mapstructure:"gas_limit"`
}

// BridgeConfig contains submission flow settings
type BridgeConfig struct {
	Enabled               bool          `mapstructure:"enabled"`
	AllowCustomRecipient  bool          `mapstructure:"allow_custom_recipient"`
	MinAmount             string        `mapstructure:"min_amount"`
	MaxEthFromGoliath     string        `mapstructure:"max_eth_from_goliath"`
	MaxRetries            int           `mapstructure:"max_retries"`
	RetryDelay            time.Duration `mapstructure:"retry_delay"`
	MiningTimeout         time.Duration `mapstructure:"mining_timeout"`
	SubmittingResetAfter  time.Duration `mapstructure:"submitting_reset_after"`
	ReadinessSettleDelay  time.Duration `mapstructure:"readiness_settle_delay"`
	ReadinessRecheckDelay time.Duration `mapstructure:"readiness_recheck_delay"`
}

// StatusAPIConfig contains settings for the remote status authority
type StatusAPIConfig struct {
	BaseURL        string        `mapstructure:"base_url" validate:"required"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// PollingConfig contains status poller settings
type PollingConfig struct {
	Interval         time.Duration `mapstructure:"interval"`
	FailureThreshold int           `mapstructure:"failure_threshold"`
	BackfillAttempts int           `mapstructure:"backfill_attempts"`
	StuckThreshold   time.Duration `mapstructure:"stuck_threshold"`
}

// BalancesConfig contains balance tracker settings
type BalancesConfig struct {
	NormalInterval     time.Duration `mapstructure:"normal_interval"`
	AggressiveInterval time.Duration `mapstructure:"aggressive_interval"`
	AggressiveWindow   time.Duration `mapstructure:"aggressive_window"`
}

// StorageConfig contains snapshot persistence settings
type StorageConfig struct {
	Path       string        `mapstructure:"path"`
	Retention  time.Duration `mapstructure:"retention"`
	MaxEntries int           `mapstructure:"max_entries"`
	SaveEvery  time.Duration `mapstructure:"save_every"`
}

// MonitoringConfig contains monitoring and metrics settings
type MonitoringConfig struct {
	Enabled bool `mapstructure:"enabled"`
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
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "15s")
	viper.SetDefault("server.idle_timeout", "60s")
	viper.SetDefault("server.shutdown_timeout", "30s")

	// Chain defaults
	viper.SetDefault("sepolia.chain_id", 11155111)
	viper.SetDefault("sepolia.required_confirmations", 10)
	viper.SetDefault("sepolia.gas_limit", 300000)
	viper.SetDefault("sepolia.explorer_url", "https://sepolia.etherscan.io")
	viper.SetDefault("goliath.chain_id", 8901)
	viper.SetDefault("goliath.required_confirmations", 6)
	viper.SetDefault("goliath.gas_limit", 300000)
	viper.SetDefault("goliath.explorer_url", "https://testnet.explorer.goliath.net")

	// Bridge defaults
	viper.SetDefault("bridge.enabled", true)
	viper.SetDefault("bridge.allow_custom_recipient", false)
	viper.SetDefault("bridge.min_amount", "0.000001")
	viper.SetDefault("bridge.max_eth_from_goliath", "0.05")
	viper.SetDefault("bridge.max_retries", 2)
	viper.SetDefault("bridge.retry_delay", "500ms")
	viper.SetDefault("bridge.mining_timeout", "5m")
	viper.SetDefault("bridge.submitting_reset_after", "10m")
	viper.SetDefault("bridge.readiness_settle_delay", "100ms")
	viper.SetDefault("bridge.readiness_recheck_delay", "300ms")

	// Status API defaults
	viper.SetDefault("status_api.request_timeout", "10s")

	// Polling defaults
	viper.SetDefault("polling.interval", "5s")
	viper.SetDefault("polling.failure_threshold", 3)
	viper.SetDefault("polling.backfill_attempts", 12)
	viper.SetDefault("polling.stuck_threshold", "10m")

	// Balance defaults
	viper.SetDefault("balances.normal_interval", "2s")
	viper.SetDefault("balances.aggressive_interval", "500ms")
	viper.SetDefault("balances.aggressive_window", "15s")

	// Storage defaults
	viper.SetDefault("storage.path", "operations.json")
	viper.SetDefault("storage.retention", "720h")
	viper.SetDefault("storage.max_entries", 100)
	viper.SetDefault("storage.save_every", "30s")

	// Monitoring defaults
	viper.SetDefault("monitoring.enabled", true)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output_path", "stdout")
}
