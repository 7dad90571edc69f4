package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Env   string
	Debug bool
	Port  string

	DatabasePath string

	JWTSecret     string
	IndexerSecret string

	FactoryAccountID string
	FactoryBalance   uint64

	NATSURL         string
	IndexerDurable  string
	InfoAPIURL      string
	InfoServicePort string
	ServerAPIURL    string

	BlockInterval  time.Duration
	MatchingWindow time.Duration
	PaymentWindow  time.Duration
}

// Load reads configuration from .env and the environment. All ambient
// environment access belongs here.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("no .env file found, using environment variables")
	}

	return &Config{
		Env:   getEnv("ENV", "development"),
		Debug: getEnv("DEBUG", "false") == "true",
		Port:  getEnv("PORT", "8080"),

		DatabasePath: getEnv("DATABASE_PATH", "rtp.db"),

		JWTSecret:     getEnv("JWT_SECRET", "rtp-secret-key"),
		IndexerSecret: getEnv("INDEXER_SECRET", "rtp-indexer-secret"),

		FactoryAccountID: getEnv("FACTORY_ACCOUNT_ID", "factory.rtp"),
		FactoryBalance:   getEnvAsUint64("FACTORY_BALANCE", 1_000_000_000_000),

		NATSURL:         getEnv("NATS_URL", "nats://localhost:4222"),
		IndexerDurable:  getEnv("INDEXER_DURABLE", "rtp-indexer"),
		InfoAPIURL:      getEnv("INFO_API_URL", "http://localhost:8081"),
		InfoServicePort: getEnv("INFO_SERVICE_PORT", "8081"),
		ServerAPIURL:    getEnv("SERVER_API_URL", "http://localhost:8080"),

		BlockInterval:  getEnvAsDuration("BLOCK_INTERVAL", time.Second),
		MatchingWindow: getEnvAsDuration("MATCHING_WINDOW", 60*time.Second),
		PaymentWindow:  getEnvAsDuration("PAYMENT_WINDOW", 24*time.Hour),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsUint64(key string, defaultValue uint64) uint64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		log.Warn().Str("key", key).Uint64("default", defaultValue).Msg("invalid integer value, using default")
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Warn().Str("key", key).Dur("default", defaultValue).Msg("invalid duration value, using default")
		return defaultValue
	}
	return value
}
