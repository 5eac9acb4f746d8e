package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Esewa    EsewaConfig    `mapstructure:"esewa"`
	Payments PaymentsConfig `mapstructure:"payments"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig configures validation of tokens issued by the school identity
// service. The secret is shared with that service.
type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

// EsewaConfig configures the eSewa payment gateway integration.
type EsewaConfig struct {
	SecretKey        string        `mapstructure:"secret_key"`
	ProductCode      string        `mapstructure:"product_code"`
	Environment      string        `mapstructure:"environment"` // development, production
	SkipVerification bool          `mapstructure:"skip_verification"`
	StatusTimeout    time.Duration `mapstructure:"status_timeout"`
}

// IsProduction reports whether the gateway integration targets the live
// eSewa endpoint.
func (e EsewaConfig) IsProduction() bool {
	return e.Environment == "production"
}

// StatusURL returns the transaction status endpoint for the configured
// environment.
func (e EsewaConfig) StatusURL() string {
	if e.IsProduction() {
		return "https://epay.esewa.com.np/api/epay/transaction/status/"
	}
	return "https://rc-epay.esewa.com.np/api/epay/transaction/status/"
}

// PaymentsConfig holds payment engine tunables.
type PaymentsConfig struct {
	PendingRetention time.Duration `mapstructure:"pending_retention"` // Age cutoff for global cleanup
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: SFG_ (School Fee Gateway).
// Nested keys use underscore: SFG_DATABASE_HOST, SFG_ESEWA_SECRET_KEY, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "school_fees")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "school-identity")
	v.SetDefault("esewa.secret_key", "")
	v.SetDefault("esewa.product_code", "EPAYTEST")
	v.SetDefault("esewa.environment", "development")
	v.SetDefault("esewa.skip_verification", false)
	v.SetDefault("esewa.status_timeout", "10s")
	v.SetDefault("payments.pending_retention", "5m")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: SFG_DATABASE_HOST -> database.host
	v.SetEnvPrefix("SFG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required — env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations that must never reach a running system.
// The verification bypass is a test convenience and cannot be combined with
// the production gateway environment.
func (c *Config) Validate() error {
	if c.Esewa.SkipVerification && c.Esewa.IsProduction() {
		return fmt.Errorf("esewa.skip_verification cannot be enabled in the production environment")
	}
	if c.Payments.PendingRetention <= 0 {
		return fmt.Errorf("payments.pending_retention must be positive")
	}
	return nil
}
