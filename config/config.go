// config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

type Config struct {
	Telegram struct {
		Token string
	}
	Store struct {
		Backend string
	}
	DB struct {
		Host           string
		Port           string
		User           string
		Password       string
		DBName         string
		SSLMode        string
		MaxOpenConns   int
		MaxIdleConns   int
		ConnLifetime   time.Duration
		MigrationsPath string
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	Stripe struct {
		SecretKey  string
		PublicKey  string
		WebhookKey string
		SuccessURL string
		CancelURL  string
		// product id (credits_5, weekly, ...) -> Stripe price id
		Prices map[string]string
	}
	GPT struct {
		APIKey string
		Model  string
	}
	Server struct {
		Port   string
		APIKey string
	}
	Progression struct {
		XPPerSet       int
		XPPerLevel     int
		InitialCredits int
		AdminEmail     string
		Timezone       string
	}
	LogLevel        string
	ShutdownTimeout time.Duration
}

// DSN returns the pgx connection string for the DB section.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.DBName, c.DB.SSLMode,
	)
}

// Location resolves Progression.Timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	if c.Progression.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Progression.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate checks the settings the chosen store backend and services depend on.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StoreMemory, StorePostgres, StoreRedis:
	default:
		return fmt.Errorf("unknown store backend: %q", c.Store.Backend)
	}
	if c.Store.Backend == StorePostgres && c.DB.Host == "" {
		return fmt.Errorf("db host is required for the postgres store")
	}
	if c.Store.Backend == StoreRedis && c.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required for the redis store")
	}
	if c.Progression.XPPerLevel <= 0 {
		return fmt.Errorf("progression xp per level must be positive")
	}
	if c.Progression.XPPerSet < 0 {
		return fmt.Errorf("progression xp per set must not be negative")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ShutdownTimeout", 10*time.Second)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("Store.Backend", StoreMemory)
	v.SetDefault("GPT.Model", "gpt-4o-mini")
	v.SetDefault("Server.Port", "8080")
	v.SetDefault("DB.Port", "5432")
	v.SetDefault("DB.SSLMode", "disable")
	v.SetDefault("DB.MaxOpenConns", 20)
	v.SetDefault("DB.MaxIdleConns", 10)
	v.SetDefault("DB.ConnLifetime", 5*time.Minute)
	v.SetDefault("DB.MigrationsPath", "migrations")
	v.SetDefault("Redis.Addr", "localhost:6379")
	v.SetDefault("Progression.XPPerSet", 25)
	v.SetDefault("Progression.XPPerLevel", 1000)
	v.SetDefault("Progression.InitialCredits", 3)
	v.SetDefault("Progression.Timezone", "UTC")
}

// Load loads the configuration
func Load() (*Config, error) {
	_ = godotenv.Load()
	return load(viper.New(), ".", "./config", "$HOME/.fitness-bot")
}

func load(v *viper.Viper, paths ...string) (*Config, error) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
		// no file: build everything from the environment
		cfg := fromEnv()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	// Process any ${ENV_VAR} syntax in the config values
	for _, key := range v.AllKeys() {
		value := v.GetString(key)
		if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
			envVar := strings.TrimPrefix(strings.TrimSuffix(value, "}"), "${")
			if envValue := os.Getenv(envVar); envValue != "" {
				v.Set(key, envValue)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func fromEnv() *Config {
	cfg := &Config{}

	cfg.Telegram.Token = os.Getenv("TELEGRAM_TOKEN")
	cfg.Store.Backend = getEnvOr("STORE_BACKEND", StoreMemory)
	cfg.DB.Host = getEnvOr("DB_HOST", "localhost")
	cfg.DB.Port = getEnvOr("DB_PORT", "5432")
	cfg.DB.User = getEnvOr("DB_USER", "postgres")
	cfg.DB.Password = getEnvOr("DB_PASSWORD", "postgres")
	cfg.DB.DBName = getEnvOr("DB_NAME", "fitness_bot")
	cfg.DB.SSLMode = getEnvOr("DB_SSL_MODE", "disable")
	cfg.DB.MaxOpenConns = getEnvIntOr("DB_MAX_OPEN_CONNS", 20)
	cfg.DB.MaxIdleConns = getEnvIntOr("DB_MAX_IDLE_CONNS", 10)
	cfg.DB.ConnLifetime = 5 * time.Minute
	cfg.DB.MigrationsPath = getEnvOr("DB_MIGRATIONS_PATH", "migrations")
	cfg.Redis.Addr = getEnvOr("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	cfg.Redis.DB = getEnvIntOr("REDIS_DB", 0)
	cfg.Stripe.SecretKey = os.Getenv("STRIPE_SECRET_KEY")
	cfg.Stripe.PublicKey = os.Getenv("STRIPE_PUBLIC_KEY")
	cfg.Stripe.WebhookKey = os.Getenv("STRIPE_WEBHOOK_KEY")
	cfg.Stripe.SuccessURL = os.Getenv("STRIPE_SUCCESS_URL")
	cfg.Stripe.CancelURL = os.Getenv("STRIPE_CANCEL_URL")
	cfg.Stripe.Prices = pricesFromEnv()
	cfg.GPT.APIKey = os.Getenv("GPT_API_KEY")
	cfg.GPT.Model = getEnvOr("GPT_MODEL", "gpt-4o-mini")
	cfg.Server.Port = getEnvOr("SERVER_PORT", "8080")
	cfg.Server.APIKey = os.Getenv("SERVER_API_KEY")
	cfg.Progression.XPPerSet = getEnvIntOr("XP_PER_SET", 25)
	cfg.Progression.XPPerLevel = getEnvIntOr("XP_PER_LEVEL", 1000)
	cfg.Progression.InitialCredits = getEnvIntOr("INITIAL_CREDITS", 3)
	cfg.Progression.AdminEmail = os.Getenv("ADMIN_EMAIL")
	cfg.Progression.Timezone = getEnvOr("TIMEZONE", "UTC")
	cfg.LogLevel = getEnvOr("LOG_LEVEL", "info")
	cfg.ShutdownTimeout = 10 * time.Second

	return cfg
}

// pricesFromEnv reads STRIPE_PRICE_<PRODUCT> variables, e.g. STRIPE_PRICE_CREDITS_5.
func pricesFromEnv() map[string]string {
	prices := make(map[string]string)
	for _, product := range []string{"credits_5", "credits_15", "credits_30", "daily", "weekly", "monthly"} {
		if price := os.Getenv("STRIPE_PRICE_" + strings.ToUpper(product)); price != "" {
			prices[product] = price
		}
	}
	return prices
}

// Helper function to get environment variable with default value
func getEnvOr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOr(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
