package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the flat, environment-sourced process configuration. Fields map
// 1:1 onto the enumerated configuration keys the hub depends on.
type Config struct {
	Environment string `env:"ENVIRONMENT"`
	BindAddress string `env:"BIND_ADDRESS"`
	LogLevel    string `env:"LOG_LEVEL"`

	DatabaseURL string `env:"DATABASE_URL,secret"`
	RedisURL    string `env:"REDIS_URL"`

	JWTRSAPrivateKey string `env:"JWT_RSA_PRIVATE_KEY,secret"`
	JWTRSAPublicKey  string `env:"JWT_RSA_PUBLIC_KEY,secret"`

	HeartbeatInterval      time.Duration `env:"HEARTBEAT_INTERVAL"`
	MaxMessageLength       int           `env:"MAX_MESSAGE_LENGTH"`
	MaxMessagesPerMinute   int           `env:"MAX_MESSAGES_PER_MINUTE"`
	ConnectionLimitPerUser int           `env:"CONNECTION_LIMIT_PER_USER"`
	ShutdownTimeout        time.Duration `env:"SHUTDOWN_TIMEOUT"`

	OTelServiceName    string `env:"OTEL_SERVICE_NAME"`
	OTelServiceVersion string `env:"OTEL_SERVICE_VERSION"`
}

// Load loads configuration from environment variables, first populating the
// process environment from a .env file when one is present (local dev only;
// its absence is never an error).
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		BindAddress: getEnv("BIND_ADDRESS", ":8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),

		JWTRSAPrivateKey: getEnv("JWT_RSA_PRIVATE_KEY", ""),
		JWTRSAPublicKey:  getEnv("JWT_RSA_PUBLIC_KEY", ""),

		HeartbeatInterval:      getEnvAsDuration("HEARTBEAT_INTERVAL", 30*time.Second),
		MaxMessageLength:       getEnvAsInt("MAX_MESSAGE_LENGTH", 4000),
		MaxMessagesPerMinute:   getEnvAsInt("MAX_MESSAGES_PER_MINUTE", 20),
		ConnectionLimitPerUser: getEnvAsInt("CONNECTION_LIMIT_PER_USER", 5),
		ShutdownTimeout:        getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		OTelServiceName:    getEnv("OTEL_SERVICE_NAME", "sessionhub"),
		OTelServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
