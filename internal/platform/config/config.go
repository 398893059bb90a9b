package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Addr                string
	Environment         string
	StoreDriver         string
	DatabaseURL         string
	DBMaxConns          int
	DBConnectAttempts   int
	SQLitePath          string
	JWTSecret           string
	TokenTTL            time.Duration
	SeedAdminEmail      string
	SeedAdminPassword   string
	SettingsSeedFile    string
	PDFFontPath         string
	PageSize            int
	MaxBodyBytes        int64
	RateLimitPerMinute  int
	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	ViewCacheTTL        time.Duration
	RecycleBinRetention time.Duration
	RetentionInterval   time.Duration
	SessionIdleTimeout  time.Duration
	LogFilePath         string
	LogLevel            string
	MetricsEnabled      bool
}

// LoadDotEnv reads .env when present; a missing file is not an error.
func LoadDotEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func Load() Config {
	return Config{
		Addr:                getEnv("APP_ADDR", ":8080"),
		Environment:         getEnv("APP_ENV", "development"),
		StoreDriver:         strings.ToLower(getEnv("STORE_DRIVER", DriverMemory)),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		DBMaxConns:          getEnvInt("DB_MAX_CONNS", 10),
		DBConnectAttempts:   getEnvInt("DB_CONNECT_ATTEMPTS", 5),
		SQLitePath:          getEnv("SQLITE_PATH", "staffbook.db"),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		TokenTTL:            getEnvDuration("TOKEN_TTL", 12*time.Hour),
		SeedAdminEmail:      getEnv("SEED_ADMIN_EMAIL", ""),
		SeedAdminPassword:   getEnv("SEED_ADMIN_PASSWORD", ""),
		SettingsSeedFile:    getEnv("SETTINGS_SEED_FILE", ""),
		PDFFontPath:         getEnv("PDF_FONT_PATH", ""),
		PageSize:            getEnvInt("PAGE_SIZE", 50),
		MaxBodyBytes:        int64(getEnvInt("MAX_BODY_BYTES", 1048576)),
		RateLimitPerMinute:  getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		RedisAddr:           getEnv("REDIS_ADDR", ""),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisDB:             getEnvInt("REDIS_DB", 0),
		ViewCacheTTL:        getEnvDuration("VIEW_CACHE_TTL", 10*time.Minute),
		RecycleBinRetention: getEnvDuration("RECYCLE_BIN_RETENTION", 0),
		RetentionInterval:   getEnvDuration("RETENTION_INTERVAL", 24*time.Hour),
		SessionIdleTimeout:  getEnvDuration("SESSION_IDLE_TIMEOUT", 2*time.Hour),
		LogFilePath:         getEnv("LOG_FILE_PATH", ""),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		MetricsEnabled:      getEnvBool("METRICS_ENABLED", true),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (c Config) Validate() error {
	switch c.StoreDriver {
	case DriverMemory:
	case DriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("SQLITE_PATH is required when STORE_DRIVER is sqlite")
		}
	case DriverPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is postgres")
		}
		if c.DBMaxConns <= 0 || c.DBMaxConns > 1000 {
			return fmt.Errorf("DB_MAX_CONNS must be between 1 and 1000")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be one of memory, sqlite, postgres")
	}
	if c.Environment == "production" {
		if len(strings.TrimSpace(c.JWTSecret)) < 32 {
			return fmt.Errorf("JWT_SECRET must be set to a strong value in production")
		}
		if c.StoreDriver == DriverMemory {
			return fmt.Errorf("STORE_DRIVER memory keeps nothing across restarts and is not allowed in production")
		}
		if c.SeedAdminEmail != "" && len(c.SeedAdminPassword) < 12 {
			return fmt.Errorf("SEED_ADMIN_PASSWORD must be at least 12 characters in production")
		}
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	if c.PageSize <= 0 || c.PageSize > 500 {
		return fmt.Errorf("PAGE_SIZE must be between 1 and 500")
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.RecycleBinRetention < 0 {
		return fmt.Errorf("RECYCLE_BIN_RETENTION must not be negative")
	}
	if c.RecycleBinRetention > 0 && c.RetentionInterval <= 0 {
		return fmt.Errorf("RETENTION_INTERVAL must be positive when RECYCLE_BIN_RETENTION is set")
	}
	if c.RedisAddr != "" && c.ViewCacheTTL <= 0 {
		return fmt.Errorf("VIEW_CACHE_TTL must be positive when REDIS_ADDR is set")
	}
	return nil
}
