package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends.
const (
	BackendSQLite = "sqlite"
	BackendBucket = "bucket"
)

type Config struct {
	ListenAddr string
	LogLevel   string

	Backend        string
	DBPath         string
	MaxDocumentKB  int
	BucketURL      string
	BucketAccessID string
	BucketTimeout  time.Duration

	JWTSecret  string
	SessionTTL time.Duration

	ImageTargetKB float64
	ImageLimitKB  float64
	PayloadWarnKB float64
	MaxUploadMB   int

	AuthRatePerSec float64
	AuthRateBurst  int
	CacheTTL       time.Duration

	// TrustProxy takes the client address from X-Real-IP or X-Forwarded-For.
	// Enable only behind a reverse proxy that sets those headers.
	TrustProxy bool
}

// Load reads configuration from the environment. Values in a .env file in
// the working directory are applied first without overriding real variables.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ListenAddr: getEnv("CARDVAULT_LISTEN_ADDR", ":8080"),
		LogLevel:   getEnv("CARDVAULT_LOG_LEVEL", "info"),

		Backend:        getEnv("CARDVAULT_BACKEND", BackendSQLite),
		DBPath:         getEnv("CARDVAULT_DB_PATH", "/data/db/cardvault.db"),
		MaxDocumentKB:  getEnvInt("CARDVAULT_MAX_DOCUMENT_KB", 100),
		BucketURL:      getEnv("CARDVAULT_BUCKET_URL", ""),
		BucketAccessID: getEnv("CARDVAULT_BUCKET_ACCESS_ID", ""),
		BucketTimeout:  getEnvDuration("CARDVAULT_BUCKET_TIMEOUT", 15*time.Second),

		JWTSecret:  getEnv("CARDVAULT_JWT_SECRET", ""),
		SessionTTL: getEnvDuration("CARDVAULT_SESSION_TTL", 24*time.Hour),

		ImageTargetKB: getEnvFloat("CARDVAULT_IMAGE_TARGET_KB", 45),
		ImageLimitKB:  getEnvFloat("CARDVAULT_IMAGE_LIMIT_KB", 50),
		PayloadWarnKB: getEnvFloat("CARDVAULT_PAYLOAD_WARN_KB", 50),
		MaxUploadMB:   getEnvInt("CARDVAULT_MAX_UPLOAD_MB", 20),

		AuthRatePerSec: getEnvFloat("CARDVAULT_AUTH_RATE", 1),
		AuthRateBurst:  getEnvInt("CARDVAULT_AUTH_BURST", 5),
		CacheTTL:       getEnvDuration("CARDVAULT_CACHE_TTL", 30*time.Second),

		TrustProxy: getEnvBool("CARDVAULT_TRUST_PROXY", false),
	}
}

// Validate reports every setting that would prevent the server from starting.
func (c *Config) Validate() error {
	var errs []error
	switch c.Backend {
	case BackendSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New("CARDVAULT_DB_PATH is required for the sqlite backend"))
		}
	case BackendBucket:
		if c.BucketURL == "" {
			errs = append(errs, errors.New("CARDVAULT_BUCKET_URL is required for the bucket backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown CARDVAULT_BACKEND %q", c.Backend))
	}
	if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("CARDVAULT_JWT_SECRET must be at least 16 characters"))
	}
	if c.ImageTargetKB <= 0 || c.ImageLimitKB < c.ImageTargetKB {
		errs = append(errs, fmt.Errorf("image budget: target %.0fKB must be positive and not above the limit %.0fKB",
			c.ImageTargetKB, c.ImageLimitKB))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return defaultValue
	}
	return n
}

func getEnvFloat(key string, defaultValue float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return defaultValue
	}
	return f
}

func getEnvBool(key string, defaultValue bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}
