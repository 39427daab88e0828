package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	Env         string
	ServerPort  string
	ServiceName string

	DBDriver    string
	DatabaseDSN string
	ResetDB     bool

	CacheDriver string
	CacheTTL    time.Duration
	CachePrefix string
	RedisAddr   string
	RedisDB     int
	RedisPass   string

	OTLPEndpoint     string
	OTLPInsecure     bool
	TraceSampleRatio float64
	SwaggerHost      string
}

// Load builds Config from environment with sensible defaults. Values from a
// .env file in the working directory are used when the variable is unset.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Env:         getEnv("APP_ENV", "dev"),
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		ServiceName: getEnv("SERVICE_NAME", "usersapi"),

		DBDriver:    getEnv("DB_DRIVER", "mysql"),
		DatabaseDSN: getEnv("DATABASE_DSN", getEnv("MYSQL_DSN", "user:password@tcp(localhost:3306)/app?charset=utf8mb4&parseTime=True&loc=Local")),
		ResetDB:     getEnvBool("RESET_DB", false),

		CacheDriver: getEnv("CACHE_DRIVER", "redis"),
		CacheTTL:    getEnvDuration("CACHE_TTL", time.Hour),
		CachePrefix: getEnv("CACHE_PREFIX", "usersapi"),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:     getEnvInt("REDIS_DB", 0),
		RedisPass:   os.Getenv("REDIS_PASSWORD"),

		OTLPEndpoint:     os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTLPInsecure:     getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		TraceSampleRatio: getEnvFloat("OTEL_TRACES_SAMPLER_ARG", 1),
		SwaggerHost:      os.Getenv("SWAGGER_HOST"),
	}
}

// TracingEnabled reports whether spans should be exported.
func (c *Config) TracingEnabled() bool {
	return c.OTLPEndpoint != ""
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil && parsed > 0 {
			return parsed
		}
	}
	return def
}
