// Package config provides configuration management using viper.
// It supports loading from YAML files, an optional .env file and
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Bot       BotConfig       `mapstructure:"bot"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Whitelist WhitelistConfig `mapstructure:"whitelist"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Game      GameConfig      `mapstructure:"game"`
	Wallet    WalletConfig    `mapstructure:"wallet"`
	Payment   PaymentConfig   `mapstructure:"payment"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	PublicURL       string        `mapstructure:"public_url"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimit       int           `mapstructure:"rate_limit"`
	RateWindow      time.Duration `mapstructure:"rate_window"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// StorageConfig selects the document store.
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

// RedisConfig holds the optional Redis connection. An empty Addr disables
// the Redis bus, the caller lease and the rate limiter.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	LeaseTTL time.Duration `mapstructure:"lease_ttl"`
}

// BotConfig holds Telegram bot configuration. An empty token disables
// Telegram announcements and the command bot.
type BotConfig struct {
	Token   string `mapstructure:"token"`
	JoinURL string `mapstructure:"join_url"`
	Poll    bool   `mapstructure:"poll"`
}

// AdminConfig holds Telegram admin user configuration.
type AdminConfig struct {
	IDs []int64 `mapstructure:"ids"`
}

// WhitelistConfig holds chat whitelist configuration.
type WhitelistConfig struct {
	Chats []int64 `mapstructure:"chats"`
}

// AuthConfig holds the identity token settings.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// GameConfig holds room and scheduler defaults.
type GameConfig struct {
	CommissionRate  float64       `mapstructure:"commission_rate"`
	CallInterval    time.Duration `mapstructure:"call_interval"`
	Warmup          time.Duration `mapstructure:"warmup"`
	StrictFreeRooms bool          `mapstructure:"strict_free_rooms"`
	MaxEntryFee     float64       `mapstructure:"max_entry_fee"`
}

// Commission returns the commission rate as a decimal.
func (g GameConfig) Commission() decimal.Decimal {
	return decimal.NewFromFloat(g.CommissionRate)
}

// WalletConfig holds ledger limits.
type WalletConfig struct {
	Currency      string  `mapstructure:"currency"`
	MinDeposit    float64 `mapstructure:"min_deposit"`
	MaxDeposit    float64 `mapstructure:"max_deposit"`
	MinWithdrawal float64 `mapstructure:"min_withdrawal"`
	MaxWithdrawal float64 `mapstructure:"max_withdrawal"`
}

// PaymentConfig holds payment gateway configuration.
type PaymentConfig struct {
	Chapa ChapaConfig `mapstructure:"chapa"`
}

// ChapaConfig holds Chapa credentials and redirect URLs.
type ChapaConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	SecretKey   string        `mapstructure:"secret_key"`
	CallbackURL string        `mapstructure:"callback_url"`
	ReturnURL   string        `mapstructure:"return_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in configPath, the working directory and ./config.
// A .env file in the working directory is loaded first if present.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// e.g. DATABASE_HOST, AUTH_JWT_SECRET, GAME_CALL_INTERVAL
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.public_url", "http://localhost:8080")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.rate_limit", 120)
	v.SetDefault("server.rate_window", "1m")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "bingo")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "bingo")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("storage.driver", StoragePostgres)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "bingo:")
	v.SetDefault("redis.lease_ttl", "30s")

	v.SetDefault("bot.token", "")
	v.SetDefault("bot.join_url", "")
	v.SetDefault("bot.poll", false)

	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("game.commission_rate", 0.10)
	v.SetDefault("game.call_interval", "8s")
	v.SetDefault("game.warmup", "5s")
	v.SetDefault("game.strict_free_rooms", true)
	v.SetDefault("game.max_entry_fee", 10000)

	v.SetDefault("wallet.currency", "ETB")
	v.SetDefault("wallet.min_deposit", 1)
	v.SetDefault("wallet.max_deposit", 100000)
	v.SetDefault("wallet.min_withdrawal", 50)
	v.SetDefault("wallet.max_withdrawal", 50000)

	v.SetDefault("payment.chapa.base_url", "https://api.chapa.co/v1")
	v.SetDefault("payment.chapa.secret_key", "")
	v.SetDefault("payment.chapa.callback_url", "")
	v.SetDefault("payment.chapa.return_url", "")
	v.SetDefault("payment.chapa.timeout", "15s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if c.Game.CommissionRate < 0 || c.Game.CommissionRate >= 1 {
		return fmt.Errorf("game.commission_rate must be in [0,1), got %v", c.Game.CommissionRate)
	}
	if c.Game.CallInterval <= 0 {
		return errors.New("game.call_interval must be positive")
	}
	if c.Wallet.MinDeposit > c.Wallet.MaxDeposit || c.Wallet.MinWithdrawal > c.Wallet.MaxWithdrawal {
		return errors.New("wallet limits are inverted")
	}
	return nil
}

// IsAdmin checks if a Telegram user ID is in the admin list.
func (c *Config) IsAdmin(userID int64) bool {
	return slices.Contains(c.Admin.IDs, userID)
}

// IsChatAllowed checks if a chat ID is in the whitelist.
func (c *Config) IsChatAllowed(chatID int64) bool {
	// Empty whitelist means all chats are allowed
	if len(c.Whitelist.Chats) == 0 {
		return true
	}
	return slices.Contains(c.Whitelist.Chats, chatID)
}
