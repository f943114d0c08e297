package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

const (
	StoreMongo  = "mongo"
	StoreSQLite = "sqlite"
)

// Config holds the application configuration.
type Config struct {
	ServerPort    int
	AppEnv        string
	LogLevel      string
	StoreDriver   string
	MongoURL      string
	MongoDatabase string
	DatabasePath  string // SQLite file, used when StoreDriver is "sqlite"
	JWTSecret     string
	AllowedOrigin string // CORS origin of the web client
	ClientURL     string // base URL for links in verification emails
	RedisURL      string // enables the asynq mail queue when set
	MailWorkers   int
	BcryptCost    int
	StatsSchedule string
	Mail          MailConfig
}

// MailConfig holds outbound SMTP settings.
type MailConfig struct {
	Host     string
	Port     int
	Address  string
	Password string
}

// Enabled reports whether SMTP credentials are present.
func (m MailConfig) Enabled() bool {
	return m.Address != "" && m.Password != ""
}

// IsProduction reports whether the app runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Load loads configuration from environment variables (and an optional
// CONFIG_FILE) or sets defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		ServerPort:    v.GetInt("PORT"),
		AppEnv:        v.GetString("APP_ENV"),
		LogLevel:      v.GetString("LOG_LEVEL"),
		StoreDriver:   v.GetString("STORE_DRIVER"),
		MongoURL:      v.GetString("MONGODB_URL"),
		MongoDatabase: v.GetString("MONGODB_DATABASE"),
		DatabasePath:  v.GetString("DATABASE_PATH"),
		JWTSecret:     v.GetString("JWT_SECRET"),
		AllowedOrigin: v.GetString("ORIGIN"),
		ClientURL:     v.GetString("CLIENT_URL"),
		RedisURL:      v.GetString("REDIS_URL"),
		MailWorkers:   v.GetInt("MAIL_WORKERS"),
		BcryptCost:    v.GetInt("BCRYPT_COST"),
		StatsSchedule: v.GetString("STATS_SCHEDULE"),
		Mail: MailConfig{
			Host:     v.GetString("MAIL_HOST"),
			Port:     v.GetInt("MAIL_PORT"),
			Address:  v.GetString("MAIL_ADDRESS"),
			Password: v.GetString("MAIL_PASSWORD"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", 3001)
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_DRIVER", StoreMongo)
	v.SetDefault("MONGODB_URL", "mongodb://localhost:27017")
	v.SetDefault("MONGODB_DATABASE", "chatapp")
	v.SetDefault("DATABASE_PATH", "./auth.db")
	v.SetDefault("ORIGIN", "http://localhost:5173")
	v.SetDefault("CLIENT_URL", "http://localhost:5173")
	v.SetDefault("MAIL_HOST", "smtp.gmail.com")
	v.SetDefault("MAIL_PORT", 587)
	v.SetDefault("MAIL_WORKERS", 2)
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("STATS_SCHEDULE", "@every 5m")
}

// Validate checks that required settings are present and well formed.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid PORT %d", c.ServerPort)
	}
	switch c.StoreDriver {
	case StoreMongo:
		if c.MongoURL == "" {
			return errors.New("MONGODB_URL is required for the mongo store")
		}
	case StoreSQLite:
		if c.DatabasePath == "" {
			return errors.New("DATABASE_PATH is required for the sqlite store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.MailWorkers < 1 {
		c.MailWorkers = 1
	}
	return nil
}
