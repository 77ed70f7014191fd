package config

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env       string
	Port      int
	PublicURL string

	// "postgres" (default) or "memory"
	Storage    string
	DBURL      string
	DBMaxConns int
	DBMinConns int

	AllowedOrigins []string
	MaxBodyBytes   int64

	PhoneRegion string
	BcryptCost  int

	RateLimitMax          int
	RateLimitWindow       time.Duration
	CreateRateLimitMax    int
	CreateRateLimitWindow time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	ServiceName  string
	OTLPEndpoint string

	// bootstrap admin, skipped when email or password is empty
	AdminEmail     string
	AdminPassword  string
	AdminFirstName string
	AdminLastName  string
}

func Load() Config {
	port := getEnvInt("PORT", 3000)

	return Config{
		Env:       getEnv("APP_ENV", "dev"),
		Port:      port,
		PublicURL: getEnv("PUBLIC_URL", "http://localhost:"+strconv.Itoa(port)),

		Storage: strings.ToLower(getEnv("STORAGE", "postgres")),
		DBURL:   getEnv("DATABASE_URL", buildDBURL()),

		DBMaxConns: getEnvInt("DB_MAX_CONNS", 10),
		DBMinConns: getEnvInt("DB_MIN_CONNS", 0),

		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		MaxBodyBytes:   int64(getEnvInt("MAX_BODY_BYTES", 1<<20)),

		PhoneRegion: strings.ToUpper(getEnv("PHONE_REGION", "PE")),
		BcryptCost:  getEnvInt("BCRYPT_COST", 10),

		RateLimitMax:          getEnvInt("RATE_LIMIT_MAX", 10),
		RateLimitWindow:       getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		CreateRateLimitMax:    getEnvInt("CREATE_RATE_LIMIT_MAX", 3),
		CreateRateLimitWindow: getEnvDuration("CREATE_RATE_LIMIT_WINDOW", time.Minute),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		ServiceName:  getEnv("OTEL_SERVICE_NAME", "userhub-api"),
		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		AdminEmail:     getEnv("ADMIN_EMAIL", ""),
		AdminPassword:  getEnv("ADMIN_PASSWORD", ""),
		AdminFirstName: getEnv("ADMIN_FIRST_NAME", "Admin"),
		AdminLastName:  getEnv("ADMIN_LAST_NAME", "User"),
	}
}

func buildDBURL() string {
	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "userhub")
	pass := getEnv("DB_PASSWORD", "userhub")
	name := getEnv("DB_NAME", "userhub")
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
			slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", fallback)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)

		if err != nil {
			slog.Warn("invalid duration env var, using default", "key", key, "value", v, "default", fallback)
			return fallback
		}

		return d
	}
	return fallback
}

// comma separated, blanks dropped
func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	out := make([]string, 0)
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}

	if len(out) == 0 {
		return fallback
	}
	return out
}
