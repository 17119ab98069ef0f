package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	HTTPPort               string        `mapstructure:"http_port"`
	DBDriver               string        `mapstructure:"db_driver"`
	DatabaseURL            string        `mapstructure:"database_url"`
	JWTSecret              string        `mapstructure:"jwt_secret"`
	JWTExpiresIn           time.Duration `mapstructure:"jwt_expires_in"`
	LogLevel               string        `mapstructure:"log_level"`
	ReceiptDir             string        `mapstructure:"receipt_dir"`
	ReceiptURLPrefix       string        `mapstructure:"receipt_url_prefix"`
	StrictReferenceUpdates bool          `mapstructure:"strict_reference_updates"`
	RedisURL               string        `mapstructure:"redis_url"`
	RateLimitPerMinute     int           `mapstructure:"rate_limit_per_minute"`
	TrustProxy             bool          `mapstructure:"trust_proxy"`
	AdminUsername          string        `mapstructure:"admin_username"`
	AdminEmail             string        `mapstructure:"admin_email"`
	AdminPassword          string        `mapstructure:"admin_password"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	cfg.ReceiptURLPrefix = "/" + strings.Trim(cfg.ReceiptURLPrefix, "/")
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_port", "8080")
	v.SetDefault("db_driver", "postgres")
	v.SetDefault("database_url", "")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("jwt_expires_in", 24*time.Hour)
	v.SetDefault("log_level", "info")
	v.SetDefault("receipt_dir", "./static/receipts")
	v.SetDefault("receipt_url_prefix", "/static/receipts")
	v.SetDefault("strict_reference_updates", false)
	v.SetDefault("redis_url", "")
	v.SetDefault("rate_limit_per_minute", 20)
	v.SetDefault("trust_proxy", false)
	v.SetDefault("admin_username", "admin")
	v.SetDefault("admin_email", "admin@turnos.local")
	v.SetDefault("admin_password", "admin1234")
}

func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is empty")
	}
	switch c.DBDriver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	return nil
}
