package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// dev-only fallback so `go run ./cmd/api` works without a .env file.
const devJWTSecret = "devhub-dev-secret-change-me"

var ErrMissingJWTSecret = errors.New("JWT_SECRET must be set outside dev")

type Config struct {
	Env  string
	Port int

	DBURL         string
	DBMaxConns    int32
	MigrationsDir string
	AutoMigrate   bool

	JWTSecret string
	JWTTTL    time.Duration

	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	ProfilesCacheTTL time.Duration

	CORSOrigins []string

	OTelEnabled  bool
	OTelEndpoint string

	GitHubAPIBase string
	GitHubToken   string
	GitHubTimeout time.Duration

	AuthRateLimit  int
	AuthRateWindow time.Duration

	WorkerPollInterval time.Duration
	WorkerConcurrency  int
	WorkerHealthPort   int
}

func Load() Config {
	// a missing .env is normal in containers
	_ = godotenv.Load()

	env := getEnv("APP_ENV", "dev")

	secret := getEnv("JWT_SECRET", "")
	if secret == "" && env == "dev" {
		secret = devJWTSecret
	}

	return Config{
		Env:  env,
		Port: getEnvInt("PORT", 8080),

		DBURL:         buildDBURL(),
		DBMaxConns:    int32(getEnvInt("DB_MAX_CONNS", 10)),
		MigrationsDir: getEnv("MIGRATIONS_DIR", "migrations"),
		AutoMigrate:   getEnvBool("AUTO_MIGRATE", true),

		JWTSecret: secret,
		JWTTTL:    getEnvDuration("JWT_TTL", 10*time.Hour),

		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		ProfilesCacheTTL: getEnvDuration("PROFILES_CACHE_TTL", 30*time.Second),

		CORSOrigins: getEnvList("CORS_ORIGINS", []string{"http://localhost:3000"}),

		OTelEnabled:  getEnvBool("OTEL_ENABLED", false),
		OTelEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		GitHubAPIBase: strings.TrimRight(getEnv("GITHUB_API_BASE", "https://api.github.com"), "/"),
		GitHubToken:   getEnv("GITHUB_TOKEN", ""),
		GitHubTimeout: getEnvDuration("GITHUB_TIMEOUT", 5*time.Second),

		AuthRateLimit:  getEnvInt("AUTH_RATE_LIMIT", 20),
		AuthRateWindow: getEnvDuration("AUTH_RATE_WINDOW", time.Minute),

		WorkerPollInterval: getEnvDuration("WORKER_POLL_INTERVAL", 500*time.Millisecond),
		WorkerConcurrency:  getEnvInt("WORKER_CONCURRENCY", 2),
		WorkerHealthPort:   getEnvInt("WORKER_HEALTH_PORT", 8081),
	}
}

// Validate catches settings that would make the process unsafe to start.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive, got %s", c.JWTTTL)
	}
	return nil
}

func buildDBURL() string {
	if url := getEnv("DATABASE_URL", ""); url != "" {
		return url
	}

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "devhub")
	pass := getEnv("DB_PASSWORD", "devhub")
	name := getEnv("DB_NAME", "devhub")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)
		if err != nil {
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return b
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fallback
		}
		return d
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	out := make([]string, 0)
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
