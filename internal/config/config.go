// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	HTTP       HTTPConfig       `mapstructure:"http"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	Custody    CustodyConfig    `mapstructure:"custody"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Ticks      TicksConfig      `mapstructure:"ticks"`
	Settlement SettlementConfig `mapstructure:"settlement"`
	Watchdog   WatchdogConfig   `mapstructure:"watchdog"`
	Status     StatusConfig     `mapstructure:"status"`
}

// HTTPConfig holds the HTTP listener configuration.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// LedgerConfig holds RPC endpoints for the base ledger and the ephemeral rollup.
type LedgerConfig struct {
	BaseRPC    string `mapstructure:"base_rpc"`
	BaseWS     string `mapstructure:"base_ws"`
	RollupRPC  string `mapstructure:"rollup_rpc"`
	Commitment string `mapstructure:"commitment"`
	// ExplorerCluster is appended to explorer links recorded on traces,
	// e.g. "devnet" or "mainnet-beta".
	ExplorerCluster string `mapstructure:"explorer_cluster"`
}

// CustodyConfig holds the treasury signing key configuration.
// The configured keypair must match the on-chain treasury address; a mismatch
// is fatal at startup since no session could ever be created or settled.
type CustodyConfig struct {
	KeypairPath string `mapstructure:"keypair_path"`
}

// DatabaseConfig holds PostgreSQL connection configuration for the leaderboard store.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// TicksConfig holds the periods of the per-session periodic actions.
// The four actions are independent: a slow effect is never delayed by a fast one.
type TicksConfig struct {
	Score   time.Duration `mapstructure:"score"`
	King    time.Duration `mapstructure:"king"`
	Powerup time.Duration `mapstructure:"powerup"`
	Bomb    time.Duration `mapstructure:"bomb"`
}

// RetryConfig parameterizes one retry policy.
type RetryConfig struct {
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	JitterRatio float64       `mapstructure:"jitter_ratio"`
}

// SettlementConfig holds settlement timing and retry configuration.
type SettlementConfig struct {
	// SettleDelay is how long to wait after the end transaction before reading
	// the committed board from the base ledger.
	SettleDelay time.Duration `mapstructure:"settle_delay"`
	// NotOverWait is the pause before re-checking when the ledger reports the
	// session has not actually ended yet.
	NotOverWait time.Duration `mapstructure:"not_over_wait"`
	// Reward is the retry policy for generic reward-distribution failures.
	Reward RetryConfig `mapstructure:"reward"`
	// Ownership is the tighter retry policy for the board-still-delegated case,
	// which normally self-resolves as soon as the commit lands.
	Ownership RetryConfig `mapstructure:"ownership"`
}

// WatchdogConfig holds the stuck-session sweep configuration.
type WatchdogConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// StatusConfig holds the status cache configuration.
type StatusConfig struct {
	ActiveTTL   time.Duration `mapstructure:"active_ttl"`
	InactiveTTL time.Duration `mapstructure:"inactive_ttl"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the given directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables use underscore separator and uppercase,
	// e.g. LEDGER_BASE_RPC, DATABASE_HOST, CUSTODY_KEYPAIR_PATH.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK - we can use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")

	v.SetDefault("ledger.base_rpc", "https://api.devnet.solana.com")
	v.SetDefault("ledger.base_ws", "wss://api.devnet.solana.com")
	v.SetDefault("ledger.rollup_rpc", "https://devnet.magicblock.app")
	v.SetDefault("ledger.commitment", "confirmed")
	v.SetDefault("ledger.explorer_cluster", "devnet")

	v.SetDefault("custody.keypair_path", "treasury.json")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "kingtiles")
	v.SetDefault("database.name", "kingtiles")
	v.SetDefault("database.pool_size", 10)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("ticks.score", "1s")
	v.SetDefault("ticks.king", "5s")
	v.SetDefault("ticks.powerup", "7s")
	v.SetDefault("ticks.bomb", "10s")

	v.SetDefault("settlement.settle_delay", "3s")
	v.SetDefault("settlement.not_over_wait", "2s")
	v.SetDefault("settlement.reward.base_delay", "2s")
	v.SetDefault("settlement.reward.max_delay", "30s")
	v.SetDefault("settlement.reward.max_attempts", 5)
	v.SetDefault("settlement.reward.jitter_ratio", 0.2)
	v.SetDefault("settlement.ownership.base_delay", "500ms")
	v.SetDefault("settlement.ownership.max_delay", "2s")
	v.SetDefault("settlement.ownership.max_attempts", 8)
	v.SetDefault("settlement.ownership.jitter_ratio", 0.2)

	v.SetDefault("watchdog.interval", "10s")

	v.SetDefault("status.active_ttl", "500ms")
	v.SetDefault("status.inactive_ttl", "5s")
}
