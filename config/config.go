package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	LogLevel string

	ModelType     string
	MinProperties int
	TrainTimeout  time.Duration

	HTTPEnabled bool
	HTTPPort    string

	ScrapeComps    bool
	MaxConcurrency int
	RateLimitMs    int
	MaxRetries     int
	MaxCompsPerURL int
	PageTimeout    time.Duration

	CSVOutputPath string
	ChromeBin     string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "valuation"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "valuation"),
		PostgresDB:       getEnv("POSTGRES_DB", "properties"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		ModelType:     getEnv("MODEL_TYPE", "ridge"),
		MinProperties: getEnvInt("MIN_PROPERTIES", 5),
		TrainTimeout:  getEnvDuration("TRAIN_TIMEOUT", 30*time.Second),

		HTTPEnabled: getEnvBool("HTTP_ENABLED", true),
		HTTPPort:    getEnv("APP_PORT", "8080"),

		ScrapeComps:    getEnvBool("SCRAPE_COMPS", false),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 3),
		RateLimitMs:    getEnvInt("RATE_LIMIT_MS", 2000),
		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		MaxCompsPerURL: getEnvInt("MAX_COMPS_PER_URL", 10),
		PageTimeout:    getEnvDuration("PAGE_TIMEOUT", 60*time.Second),

		CSVOutputPath: getEnv("CSV_OUTPUT_PATH", "./output/raw_comparables.csv"),
		ChromeBin:     getEnv("CHROME_BIN", ""),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
		log.Printf("[config] Invalid int for %s=%q, using default %d", key, val, fallback)
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
		log.Printf("[config] Invalid bool for %s=%q, using default %t", key, val, fallback)
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil {
			return d
		}
		log.Printf("[config] Invalid duration for %s=%q, using default %v", key, val, fallback)
	}
	return fallback
}
