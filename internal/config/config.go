// Package config loads nftlab configuration from a YAML file, NFTLAB_*
// environment variables and command flags.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix prefixes every environment override, e.g. NFTLAB_RPC_ENDPOINT.
const EnvPrefix = "NFTLAB"

// Ledger backends.
const (
	BackendMemory   = "memory"
	BackendPebble   = "pebble"
	BackendPostgres = "postgres"
)

// Config is the full nftlab configuration.
type Config struct {
	RPC        RPCConfig        `mapstructure:"rpc"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	Clickhouse ClickhouseConfig `mapstructure:"clickhouse"`
	Server     ServerConfig     `mapstructure:"server"`
	Scenario   ScenarioConfig   `mapstructure:"scenario"`
	Log        LogConfig        `mapstructure:"log"`
}

// RPCConfig points clients at a cluster.
type RPCConfig struct {
	Endpoint   string        `mapstructure:"endpoint"`
	WSEndpoint string        `mapstructure:"ws_endpoint"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	Commitment string        `mapstructure:"commitment"`
}

// LedgerConfig configures the local validator.
type LedgerConfig struct {
	Backend              string `mapstructure:"backend"`
	PebblePath           string `mapstructure:"pebble_path"`
	FeePerSignature      uint64 `mapstructure:"fee_per_signature"`
	MaxRecentBlockhashes int    `mapstructure:"max_recent_blockhashes"`
	// FaucetKeypair is a solana CLI keypair file. Empty uses a fixed
	// development key.
	FaucetKeypair  string `mapstructure:"faucet_keypair"`
	FaucetLamports uint64 `mapstructure:"faucet_lamports"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

type ClickhouseConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

type ServerConfig struct {
	Listen string `mapstructure:"listen"`
}

// ScenarioConfig controls the scenario runner.
type ScenarioConfig struct {
	Parallel int           `mapstructure:"parallel"`
	Timeout  time.Duration `mapstructure:"timeout"`
	// Airdrop is the SOL amount each scenario wallet is funded with.
	Airdrop string `mapstructure:"airdrop"`
}

// LogConfig selects the zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json | console
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		RPC: RPCConfig{
			Endpoint:   "http://127.0.0.1:8899",
			WSEndpoint: "ws://127.0.0.1:8899/ws",
			Timeout:    30 * time.Second,
			MaxRetries: 3,
			Commitment: "confirmed",
		},
		Ledger: LedgerConfig{
			Backend:              BackendMemory,
			PebblePath:           "data/ledger",
			FeePerSignature:      5000,
			MaxRecentBlockhashes: 150,
			FaucetLamports:       500_000_000 * 1_000_000_000,
		},
		Clickhouse: ClickhouseConfig{
			DSN: "clickhouse://localhost:9000/nftlab",
		},
		Server: ServerConfig{
			Listen: ":8899",
		},
		Scenario: ScenarioConfig{
			Parallel: 4,
			Timeout:  2 * time.Minute,
			Airdrop:  "1",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// SetDefaults registers Default on v so that every key is known to viper
// and can be overridden from the environment.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("rpc.endpoint", d.RPC.Endpoint)
	v.SetDefault("rpc.ws_endpoint", d.RPC.WSEndpoint)
	v.SetDefault("rpc.timeout", d.RPC.Timeout)
	v.SetDefault("rpc.max_retries", d.RPC.MaxRetries)
	v.SetDefault("rpc.commitment", d.RPC.Commitment)
	v.SetDefault("ledger.backend", d.Ledger.Backend)
	v.SetDefault("ledger.pebble_path", d.Ledger.PebblePath)
	v.SetDefault("ledger.fee_per_signature", d.Ledger.FeePerSignature)
	v.SetDefault("ledger.max_recent_blockhashes", d.Ledger.MaxRecentBlockhashes)
	v.SetDefault("ledger.faucet_keypair", d.Ledger.FaucetKeypair)
	v.SetDefault("ledger.faucet_lamports", d.Ledger.FaucetLamports)
	v.SetDefault("postgres.dsn", d.Postgres.DSN)
	v.SetDefault("clickhouse.enabled", d.Clickhouse.Enabled)
	v.SetDefault("clickhouse.dsn", d.Clickhouse.DSN)
	v.SetDefault("server.listen", d.Server.Listen)
	v.SetDefault("scenario.parallel", d.Scenario.Parallel)
	v.SetDefault("scenario.timeout", d.Scenario.Timeout)
	v.SetDefault("scenario.airdrop", d.Scenario.Airdrop)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// New returns a viper instance with defaults and environment overrides set up.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads file (if not empty) into v and decodes the result.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", file)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks option combinations that cannot work.
func (c *Config) Validate() error {
	switch c.Ledger.Backend {
	case BackendMemory:
	case BackendPebble:
		if c.Ledger.PebblePath == "" {
			return errors.New("ledger.pebble_path is required for the pebble backend")
		}
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required for the postgres backend")
		}
	default:
		return errors.Errorf("unknown ledger backend %q", c.Ledger.Backend)
	}
	if c.Clickhouse.Enabled && c.Clickhouse.DSN == "" {
		return errors.New("clickhouse.dsn is required when clickhouse is enabled")
	}
	if c.Scenario.Parallel < 1 {
		return errors.Errorf("scenario.parallel must be positive, got %d", c.Scenario.Parallel)
	}
	return nil
}

// NewLogger builds the zap logger described by cfg.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, errors.Wrapf(err, "log level %q", cfg.Level)
	}

	var zc zap.Config
	switch cfg.Format {
	case "json":
		zc = zap.NewProductionConfig()
	case "console", "":
		zc = zap.NewDevelopmentConfig()
	default:
		return nil, errors.Errorf("unknown log format %q", cfg.Format)
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	log, err := zc.Build()
	if err != nil {
		return nil, errors.Wrap(err, "build logger")
	}
	return log, nil
}
