package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	HTTPAddr string

	DBDriver     string
	DatabaseURL  string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration

	JWTSecret string
	JWTTTL    time.Duration

	UploadDir      string
	MaxUploadBytes int64

	AuthRateLimit  int
	AuthRateWindow time.Duration
	RedisAddr      string
	RedisPassword  string
	RedisDB        int

	NATSURL  string
	FeedAddr string
	GRPCAddr string

	SeedDemo bool
	SeedFile string
}

var supportedDrivers = map[string]bool{"sqlite3": true, "postgres": true, "pgx": true}

// Load reads .env (if present) and the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("warn: .env not loaded: %v", err)
	}

	cfg := Config{
		Env:      getEnv("APP_ENV", "development"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		DBDriver:     strings.ToLower(getEnv("DB_DRIVER", "sqlite3")),
		DatabaseURL:  getEnv("DATABASE_URL", "./data/vidstream.db"),
		MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		MaxLifetime:  getEnvAsDuration("DB_MAX_LIFETIME", 5*time.Minute),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTTTL:    getEnvAsDuration("JWT_TTL", 24*time.Hour),

		UploadDir:      getEnv("UPLOAD_DIR", "./data/uploads"),
		MaxUploadBytes: int64(getEnvAsInt("MAX_UPLOAD_BYTES", 100<<20)),

		AuthRateLimit:  getEnvAsInt("AUTH_RATE_LIMIT", 5),
		AuthRateWindow: getEnvAsDuration("AUTH_RATE_WINDOW", 15*time.Minute),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvAsInt("REDIS_DB", 0),

		NATSURL:  getEnv("NATS_URL", ""),
		FeedAddr: getEnv("FEED_ADDR", ":9090"),
		GRPCAddr: getEnv("GRPC_ADDR", ":50051"),

		SeedDemo: getEnvAsBool("SEED_DEMO", true),
		SeedFile: getEnv("SEED_FILE", "./data/seed.json"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if !supportedDrivers[c.DBDriver] {
		return fmt.Errorf("unsupported DB_DRIVER %q (want sqlite3, postgres or pgx)", c.DBDriver)
	}
	if c.JWTSecret == "" {
		if c.Env == "production" {
			return errors.New("JWT_SECRET is required in production")
		}
		log.Println("warn: JWT_SECRET not set, using development secret")
		c.JWTSecret = "dev-secret-change-me"
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive, got %s", c.JWTTTL)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
