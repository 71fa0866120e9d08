package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	PostgresURL        string
	RedisAddr          string
	RedisPassword      string
	ClickHouseAddr     string
	ClickHouseUser     string
	ClickHousePassword string
	ClickHouseDB       string

	TelegramToken string
	GeoIPPath     string
	BaseURL       string

	CodeLength    int
	MaxAttempts   int
	CacheTTL      time.Duration
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
	FlushRetries  int
	OverflowWait  time.Duration
	DropOldest    bool
}

// Load reads configuration from the environment, after best-effort loading
// of a local .env file. Connection strings are required; tunables default.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		PostgresURL:        os.Getenv("DB_URL"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		ClickHouseAddr:     os.Getenv("CLICKHOUSE_ADDR"),
		ClickHouseUser:     os.Getenv("CLICKHOUSE_USER"),
		ClickHousePassword: os.Getenv("CLICKHOUSE_PASSWORD"),
		ClickHouseDB:       os.Getenv("CLICKHOUSE_DB"),
		TelegramToken:      os.Getenv("TELEGRAM_API_TOKEN"),
		GeoIPPath:          os.Getenv("GEOIP_DB_PATH"),
		BaseURL:            getEnv("BASE_URL", "http://localhost:8080"),
		CodeLength:         getEnvInt("CODE_LENGTH", 7),
		MaxAttempts:        getEnvInt("CODE_MAX_ATTEMPTS", 5),
		CacheTTL:           getEnvDuration("CACHE_TTL", 10*time.Minute),
		BufferSize:         getEnvInt("CLICK_BUFFER_SIZE", 1000),
		BatchSize:          getEnvInt("CLICK_BATCH_SIZE", 100),
		FlushInterval:      getEnvDuration("CLICK_FLUSH_INTERVAL", 5*time.Second),
		FlushRetries:       getEnvInt("CLICK_FLUSH_RETRIES", 3),
		OverflowWait:       getEnvDuration("CLICK_OVERFLOW_WAIT", 2*time.Millisecond),
		DropOldest:         getEnv("CLICK_OVERFLOW_POLICY", "drop-oldest") == "drop-oldest",
	}

	if cfg.PostgresURL == "" ||
		cfg.RedisAddr == "" ||
		cfg.ClickHouseAddr == "" ||
		cfg.ClickHouseUser == "" ||
		cfg.ClickHouseDB == "" {
		return nil, errors.New("missing required environment variables")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
