package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	applog "finanzas/internal/log"
	"finanzas/internal/storage"

	"golang.org/x/crypto/bcrypt"
)

const minSecretLength = 16

type Config struct {
	// HTTP Server
	Port               string
	CORSAllowedOrigins []string
	ExposeErrorDetails bool
	AuthRatePerMinute  int
	TrustedProxies     []string

	// Database
	DBDriver          string
	DBHost            string
	DBPort            string
	DBUser            string
	DBPassword        string
	DBName            string
	DBSSLMode         string
	SQLiteDBPath      string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	MigrateOnStart    bool

	// Auth
	JWTSecret        string
	TokenTTL         time.Duration
	BcryptCost       int
	EnforceOwnership bool

	// AMQP, optional
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "3001"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		ExposeErrorDetails: getEnvBool("EXPOSE_ERROR_DETAILS", false),
		AuthRatePerMinute:  getEnvInt("AUTH_RATE_LIMIT_PER_MINUTE", 20),
		TrustedProxies:     getEnvList("TRUSTED_PROXIES", nil),

		DBDriver:          getEnv("DB_DRIVER", string(storage.DriverPostgres)),
		DBHost:            getEnv("DB_HOST", ""),
		DBPort:            getEnv("DB_PORT", "5432"),
		DBUser:            getEnv("DB_USER", ""),
		DBPassword:        getEnv("DB_PASSWORD", ""),
		DBName:            getEnv("DB_NAME", ""),
		DBSSLMode:         getEnv("DB_SSLMODE", "disable"),
		SQLiteDBPath:      getEnv("SQLITE_DB_PATH", "./data/finanzas.db"),
		DBMaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 10),
		DBMaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		MigrateOnStart:    getEnvBool("MIGRATE_ON_START", true),

		JWTSecret:        os.Getenv("SECRET_JWT_KEY"),
		TokenTTL:         getEnvDuration("TOKEN_TTL", time.Hour),
		BcryptCost:       getEnvInt("BCRYPT_COST", bcrypt.DefaultCost),
		EnforceOwnership: getEnvBool("ENFORCE_OWNERSHIP", false),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "finanzas"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_events"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	errors = append(errors, c.validateDatabase()...)

	if len(c.JWTSecret) < minSecretLength {
		errors = append(errors, fmt.Sprintf("SECRET_JWT_KEY must be at least %d bytes", minSecretLength))
	}
	if c.TokenTTL < time.Minute || c.TokenTTL > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid token TTL %v: must be between 1 minute and 24 hours", c.TokenTTL))
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		errors = append(errors, fmt.Sprintf("invalid bcrypt cost %d: must be between %d and %d", c.BcryptCost, bcrypt.MinCost, bcrypt.MaxCost))
	}
	if c.AuthRatePerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid auth rate limit %d: must be at least 1", c.AuthRatePerMinute))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL: %v", err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if _, err := applog.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}
	if f := strings.ToLower(c.LogFormat); f != "text" && f != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func (c *Config) validateDatabase() []string {
	var errors []string
	switch storage.Driver(c.DBDriver) {
	case storage.DriverPostgres:
		if c.DBHost == "" {
			errors = append(errors, "DB_HOST is required for the postgres driver")
		}
		if c.DBName == "" {
			errors = append(errors, "DB_NAME is required for the postgres driver")
		}
		if c.DBUser == "" {
			errors = append(errors, "DB_USER is required for the postgres driver")
		}
		if port, err := strconv.Atoi(c.DBPort); err != nil || port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("invalid database port '%s'", c.DBPort))
		}
	case storage.DriverSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using the sqlite driver")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid database driver '%s': must be 'postgres' or 'sqlite'", c.DBDriver))
	}
	if c.DBMaxOpenConns < 0 || c.DBMaxIdleConns < 0 {
		errors = append(errors, "database pool sizes cannot be negative")
	}
	return errors
}

// DSN builds the connection string for the configured driver.
func (c *Config) DSN() string {
	if storage.Driver(c.DBDriver) == storage.DriverSQLite {
		return storage.SQLiteDSN(c.SQLiteDBPath)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     c.DBHost + ":" + c.DBPort,
		Path:     "/" + c.DBName,
		RawQuery: url.Values{"sslmode": {c.DBSSLMode}}.Encode(),
	}
	return u.String()
}

// StorageOptions converts the database settings for storage.Open.
func (c *Config) StorageOptions() storage.Options {
	return storage.Options{
		Driver:          storage.Driver(c.DBDriver),
		DSN:             c.DSN(),
		MaxOpenConns:    c.DBMaxOpenConns,
		MaxIdleConns:    c.DBMaxIdleConns,
		ConnMaxLifetime: c.DBConnMaxLifetime,
		Migrate:         c.MigrateOnStart,
	}
}

// Logger builds the application logger from LOG_LEVEL and LOG_FORMAT.
func (c *Config) Logger(component string) *applog.Logger {
	level, err := applog.ParseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	return applog.New(applog.Config{Level: level, Format: c.LogFormat, Component: component, Output: os.Stdout})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
