package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds application configuration
type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	SQLitePath string

	// Auth
	JWTSecret        string
	JWTExpirationDur time.Duration
	PipelineAPIKey   string

	// Exchange rates
	FXBaseURL          string
	FXRequestTimeout   time.Duration
	FXFetchConcurrency int
	FXFallbackDays     int

	// Tax
	MinReportYear        int
	DefaultMunicipalRate *decimal.Decimal
}

var appConfig *Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if not already loaded
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := &Config{
		// Server
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		// Database
		DBDriver:   getEnv("DB_DRIVER", "postgres"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "aktieskat"),
		DBPassword: getEnv("DB_PASSWORD", "aktieskat"),
		DBName:     getEnv("DB_NAME", "aktieskat"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		SQLitePath: getEnv("SQLITE_PATH", "aktieskat.db"),

		// Auth
		JWTSecret:        getEnv("JWT_SECRET", "fallback-secret-key-for-dev-only"),
		JWTExpirationDur: getDuration("JWT_EXPIRES_IN", 24*time.Hour),
		PipelineAPIKey:   getEnv("PIPELINE_API_KEY", ""),

		// Exchange rates
		FXBaseURL:          getEnv("FX_BASE_URL", "https://api.frankfurter.app"),
		FXRequestTimeout:   getDuration("FX_REQUEST_TIMEOUT", 10*time.Second),
		FXFetchConcurrency: getInt("FX_FETCH_CONCURRENCY", 4),
		FXFallbackDays:     getInt("FX_FALLBACK_DAYS", 5),

		// Tax
		MinReportYear: getInt("MIN_REPORT_YEAR", 2015),
	}

	if v := os.Getenv("DEFAULT_MUNICIPAL_RATE"); v != "" {
		rate, err := decimal.NewFromString(v)
		if err != nil || rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			log.Printf("Warning: invalid DEFAULT_MUNICIPAL_RATE value '%s', using the yearly average\n", v)
		} else {
			config.DefaultMunicipalRate = &rate
		}
	}

	appConfig = config
	return config, nil
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	str := getEnv(key, "")
	if str == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(str)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', falling back to %s\n", key, str, defaultValue)
		return defaultValue
	}
	return d
}

func getInt(key string, defaultValue int) int {
	str := getEnv(key, "")
	if str == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(str)
	if err != nil || n < 0 {
		log.Printf("Warning: invalid %s value '%s', falling back to %d\n", key, str, defaultValue)
		return defaultValue
	}
	return n
}
