package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable.
type Config struct {
	Env  string // application environment (e.g. "dev", "prod")
	Port string // HTTP port to listen on

	// DBDriver selects the storage backend: "mysql" (default) or "memory".
	DBDriver string
	DBUser   string
	DBPass   string
	DBHost   string
	DBPort   string
	DBName   string
	// MigrateOnStart applies embedded migrations before serving.
	MigrateOnStart bool

	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshTTLDays int    // refresh token time-to-live in days
	BcryptCost     int    // bcrypt cost for password hashing

	// ResetCodeTTL bounds how long a password reset code stays valid.
	ResetCodeTTL time.Duration
	// InviteCodeTTL bounds how long an invitation code can be used to set a password.
	InviteCodeTTL time.Duration

	LogLevel  string
	LogFormat string
	LogFile   string
}

// Load reads configuration values from environment variables and returns a
// Config. A .env file in the working directory is loaded first when present;
// variables already set in the process environment win.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Env:            getenv("APP_ENV", "dev"),
		Port:           getenv("APP_PORT", "3000"),
		DBDriver:       getenv("DB_DRIVER", "mysql"),
		MigrateOnStart: envBool("DB_MIGRATE", true),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   envInt("ACCESS_TOKEN_TTL_MIN", 60*24),
		RefreshTTLDays: envInt("REFRESH_TOKEN_TTL_DAYS", 30),
		BcryptCost:     envInt("BCRYPT_COST", 10),
		ResetCodeTTL:   envDur("RESET_CODE_TTL", 10*time.Minute),
		InviteCodeTTL:  envDur("INVITE_CODE_TTL", 72*time.Hour),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		LogFormat:      getenv("LOG_FORMAT", "text"),
		LogFile:        os.Getenv("LOG_FILE"),
	}
	if cfg.DBDriver == "mysql" {
		cfg.DBUser = must("DB_USER")
		cfg.DBPass = os.Getenv("DB_PASS") // empty allowed
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = getenv("DB_PORT", "3306")
		cfg.DBName = must("DB_NAME")
	}
	return cfg
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}
