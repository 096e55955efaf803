package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	Addr                 string
	DatabaseURL          string
	JWTSecret            string
	TokenTTL             time.Duration
	DataEncryptionKey    string
	Environment          string
	LogLevel             string
	LogFormat            string
	RedisAddr            string
	RedisDB              int
	ExchangeRateTTL      time.Duration
	StorageDir           string
	MaxUploadBytes       int64
	CORSAllowedOrigins   []string
	AdvanceCapRatio      decimal.Decimal
	AdvanceFeeRate       decimal.Decimal
	AdvanceMinAmount     decimal.Decimal
	SettlementInterval   time.Duration
	SeedOperatorEmail    string
	SeedOperatorPassword string
	EmailFrom            string
	EmailEnabled         bool
	SMTPHost             string
	SMTPPort             int
	SMTPUser             string
	SMTPPassword         string
	SMTPUseTLS           bool
	RunMigrations        bool
	RunSeed              bool
	MigrationsDir        string
	MaxBodyBytes         int64
	RateLimitPerMinute   int
	MetricsEnabled       bool
}

func Load() Config {
	return Config{
		Addr:                 getEnv("APP_ADDR", ":8080"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		JWTSecret:            getEnv("JWT_SECRET", ""),
		TokenTTL:             getEnvDuration("JWT_TTL", 12*time.Hour),
		DataEncryptionKey:    getEnv("DATA_ENCRYPTION_KEY", ""),
		Environment:          getEnv("APP_ENV", "development"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "json"),
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		ExchangeRateTTL:      getEnvDuration("EXCHANGE_RATE_TTL", 10*time.Minute),
		StorageDir:           getEnv("STORAGE_DIR", "storage"),
		MaxUploadBytes:       int64(getEnvInt("MAX_UPLOAD_BYTES", 5<<20)),
		CORSAllowedOrigins:   getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		AdvanceCapRatio:      getEnvDecimal("ADVANCE_CAP_RATIO", decimal.RequireFromString("0.8")),
		AdvanceFeeRate:       getEnvDecimal("ADVANCE_FEE_RATE", decimal.RequireFromString("0.05")),
		AdvanceMinAmount:     getEnvDecimal("ADVANCE_MIN_AMOUNT", decimal.NewFromInt(1)),
		SettlementInterval:   getEnvDuration("SETTLEMENT_INTERVAL", time.Hour),
		SeedOperatorEmail:    getEnv("SEED_OPERATOR_EMAIL", ""),
		SeedOperatorPassword: getEnv("SEED_OPERATOR_PASSWORD", ""),
		EmailFrom:            getEnv("EMAIL_FROM", "no-reply@example.com"),
		EmailEnabled:         getEnvBool("EMAIL_ENABLED", false),
		SMTPHost:             getEnv("SMTP_HOST", ""),
		SMTPPort:             getEnvInt("SMTP_PORT", 587),
		SMTPUser:             getEnv("SMTP_USER", ""),
		SMTPPassword:         getEnv("SMTP_PASSWORD", ""),
		SMTPUseTLS:           getEnvBool("SMTP_USE_TLS", true),
		RunMigrations:        getEnvBool("RUN_MIGRATIONS", true),
		RunSeed:              getEnvBool("RUN_SEED", true),
		MigrationsDir:        getEnv("MIGRATIONS_DIR", "migrations"),
		MaxBodyBytes:         int64(getEnvInt("MAX_BODY_BYTES", 1048576)),
		RateLimitPerMinute:   getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		MetricsEnabled:       getEnvBool("METRICS_ENABLED", true),
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

func getEnvDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.IsProduction() {
		if strings.TrimSpace(c.JWTSecret) == "" {
			return fmt.Errorf("JWT_SECRET must be set to a strong value in production")
		}
		if strings.TrimSpace(c.DataEncryptionKey) == "" {
			return fmt.Errorf("DATA_ENCRYPTION_KEY must be set in production for bank data at rest")
		}
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive")
	}
	if !c.AdvanceCapRatio.IsPositive() || c.AdvanceCapRatio.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("ADVANCE_CAP_RATIO must be in (0, 1]")
	}
	if c.AdvanceFeeRate.IsNegative() || c.AdvanceFeeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("ADVANCE_FEE_RATE must be in [0, 1)")
	}
	if c.AdvanceMinAmount.IsNegative() {
		return fmt.Errorf("ADVANCE_MIN_AMOUNT must not be negative")
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.MaxUploadBytes < 1024 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.EmailEnabled && c.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST must be set when EMAIL_ENABLED is true")
	}
	return nil
}
