package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv  string
	AppPort string

	DBHost         string
	DBUser         string
	DBPassword     string
	DBName         string
	DBPort         string
	DBURL          string
	DBMaxOpenConns int

	InventoryURL    string
	PricingURL      string
	CustomerURL     string
	NotificationURL string

	InventoryTimeout    time.Duration
	PricingTimeout      time.Duration
	LoyaltyTimeout      time.Duration
	NotificationTimeout time.Duration
	EventTimeout        time.Duration

	DefaultRegion     string
	SideEffectWorkers int
	SideEffectQueue   int

	RedisAddr     string
	OrderCacheTTL time.Duration

	KafkaBroker      string
	OrderEventsTopic string

	OtelEndpoint string

	SecretKey          string
	InternalSecretKey  string
	CORSAllowedOrigins []string

	ShutdownTimeout time.Duration
}

// LoadConfig reads .env (if present) and the process environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:  getEnv("APP_ENV", "development"),
		AppPort: getEnv("APP_PORT", "5001"),

		DBHost:         os.Getenv("DB_HOST"),
		DBUser:         os.Getenv("DB_USER"),
		DBPassword:     os.Getenv("DB_PASSWORD"),
		DBName:         os.Getenv("DB_NAME"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBURL:          os.Getenv("DB_URL"),
		DBMaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 10),

		InventoryURL:    getEnv("INVENTORY_SERVICE_URL", "http://localhost:5002"),
		PricingURL:      getEnv("PRICING_SERVICE_URL", "http://localhost:5003"),
		CustomerURL:     getEnv("CUSTOMER_SERVICE_URL", "http://localhost:5004"),
		NotificationURL: getEnv("NOTIFICATION_SERVICE_URL", "http://localhost:5005"),

		InventoryTimeout:    getEnvAsDuration("INVENTORY_TIMEOUT", 5*time.Second),
		PricingTimeout:      getEnvAsDuration("PRICING_TIMEOUT", 5*time.Second),
		LoyaltyTimeout:      getEnvAsDuration("LOYALTY_TIMEOUT", 5*time.Second),
		NotificationTimeout: getEnvAsDuration("NOTIFICATION_TIMEOUT", 10*time.Second),
		EventTimeout:        getEnvAsDuration("EVENT_TIMEOUT", 5*time.Second),

		DefaultRegion:     getEnv("DEFAULT_REGION", "Cairo"),
		SideEffectWorkers: getEnvAsInt("SIDE_EFFECT_WORKERS", 4),
		SideEffectQueue:   getEnvAsInt("SIDE_EFFECT_QUEUE", 256),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		OrderCacheTTL: getEnvAsDuration("ORDER_CACHE_TTL", 10*time.Minute),

		KafkaBroker:      os.Getenv("KAFKA_BROKER"),
		OrderEventsTopic: getEnv("ORDER_EVENTS_TOPIC", "OrderConfirmed"),

		OtelEndpoint: os.Getenv("OTEL_ENDPOINT"),

		SecretKey:          os.Getenv("SECRET_KEY"),
		InternalSecretKey:  os.Getenv("INTERNAL_SECRET_KEY"),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),

		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the settings the saga cannot run without.
func (c *Config) Validate() error {
	if c.DBURL == "" && c.DBHost == "" {
		return fmt.Errorf("DB_URL or DB_HOST is required")
	}

	for name, raw := range map[string]string{
		"INVENTORY_SERVICE_URL":    c.InventoryURL,
		"PRICING_SERVICE_URL":      c.PricingURL,
		"CUSTOMER_SERVICE_URL":     c.CustomerURL,
		"NOTIFICATION_SERVICE_URL": c.NotificationURL,
	} {
		if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
			return fmt.Errorf("%s must be an http(s) URL, got %q", name, raw)
		}
	}

	if c.SideEffectWorkers <= 0 {
		return fmt.Errorf("SIDE_EFFECT_WORKERS must be positive")
	}
	if c.SideEffectQueue < 0 {
		return fmt.Errorf("SIDE_EFFECT_QUEUE must not be negative")
	}
	if c.InventoryTimeout <= 0 || c.PricingTimeout <= 0 {
		return fmt.Errorf("collaborator timeouts must be positive")
	}

	return nil
}

// DSN returns DB_URL when set, otherwise a key/value DSN built from the parts.
func (c *Config) DSN() string {
	if c.DBURL != "" {
		return c.DBURL
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
