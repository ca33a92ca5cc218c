package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Env string

	DatabaseDSN string
	RedisURL    string

	CacheBackend     string // redis | memory
	TransportBackend string // redis | zmq
	ZMQPubAddr       string

	PresenceTTL time.Duration
	DeliveryTTL time.Duration

	PushURL string
	PushKey string
}

// Load reads configuration from environment variables. In development, a
// .env file is honoured if present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Env:              getEnv("ENV", "development"),
		DatabaseDSN:      getEnv("DATABASE_DSN", "courier.db"),
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		CacheBackend:     getEnv("CACHE_BACKEND", "redis"),
		TransportBackend: getEnv("TRANSPORT_BACKEND", "redis"),
		ZMQPubAddr:       getEnv("ZMQ_PUB_ADDR", "tcp://*:46010"),
		PresenceTTL:      getDuration("PRESENCE_TTL", 60*time.Second),
		DeliveryTTL:      getDuration("DELIVERY_TTL", 5*time.Second),
		PushURL:          os.Getenv("PUSH_URL"),
		PushKey:          os.Getenv("PUSH_KEY"),
	}
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
