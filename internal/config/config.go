package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends accepted by KASIR_BACKEND.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	DBPath                string
	Backend               string
	DatabaseURL           string
	HTTPAddr              string
	AllowedOrigin         string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	RedisChannel          string
	AuthSecret            string
	AccessTokenTTLMinutes int
	ManagerPIN            string
	VersionCheckURL       string
	AppVersion            string
	VersionCheckTimeout   time.Duration
	LowStockThreshold     int
	BackupReminder        time.Duration
	LogFormat             string
}

// Load reads a .env file when present and then the process environment.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		DBPath:                getEnv("KASIR_DB_PATH", "kasirgratisan-db.sqlite"),
		Backend:               strings.ToLower(strings.TrimSpace(os.Getenv("KASIR_BACKEND"))),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		HTTPAddr:              getEnv("HTTP_ADDR", "127.0.0.1:8787"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:5173"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               getInt("REDIS_DB", 0, 0),
		RedisChannel:          getEnv("REDIS_CHANNEL", "kasirgratisan:events"),
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: getInt("ACCESS_TOKEN_TTL_MINUTES", 480, 1),
		ManagerPIN:            strings.TrimSpace(os.Getenv("MANAGER_PIN")),
		VersionCheckURL:       strings.TrimSpace(os.Getenv("VERSION_CHECK_URL")),
		AppVersion:            getEnv("APP_VERSION", "dev"),
		VersionCheckTimeout:   getDuration("VERSION_CHECK_TIMEOUT", 5*time.Second),
		LowStockThreshold:     getInt("LOW_STOCK_THRESHOLD", 5, 1),
		BackupReminder:        time.Duration(getInt("BACKUP_REMINDER_HOURS", 24, 1)) * time.Hour,
		LogFormat:             strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}
}

// ResolvedBackend is the explicit KASIR_BACKEND, else postgres when
// DATABASE_URL is set, else sqlite.
func (c Config) ResolvedBackend() string {
	switch c.Backend {
	case BackendSQLite, BackendPostgres, BackendMemory:
		return c.Backend
	}
	if c.DatabaseURL != "" {
		return BackendPostgres
	}
	return BackendSQLite
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getInt(key string, fallback, min int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || n < min {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
