package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the complete service configuration, assembled from the
// environment at startup.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Detector  DetectorConfig
	Auth      AuthConfig
	Audit     AuditConfig
	Verify    VerifyConfig
	LogMode   string
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds the Postgres connection settings.
type DatabaseConfig struct {
	DSN          string
	MaxIdleConns int
	MaxOpenConns int
}

// RedisConfig holds the cache connection settings.
type RedisConfig struct {
	Addr string
}

// DetectorConfig holds settings for the detector sidecar that runs the face,
// OCR, quality, and tamper models.
type DetectorConfig struct {
	BaseURL string
	Timeout time.Duration
}

// AuthConfig holds JWT validation settings.
type AuthConfig struct {
	JWTSecret   string
	JWTAudience string
}

// AuditConfig holds audit trail output settings.
type AuditConfig struct {
	Dir string
}

// VerifyConfig holds the base decision thresholds and the per-request
// processing budget.
type VerifyConfig struct {
	FaceThreshold float64
	OCRThreshold  float64
	Budget        time.Duration
}

// Load reads configuration from the environment, consulting a .env file when
// present (ignored if missing).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Addr:            getEnv("HTTP_ADDR", ":8080"),
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:          getEnv("DATABASE_DSN", "host=postgres user=postgres password=postgres dbname=docverify port=5432 sslmode=disable"),
			MaxIdleConns: 5,
			MaxOpenConns: 10,
		},
		Redis: RedisConfig{
			Addr: getEnv("REDIS_ADDR", "redis:6379"),
		},
		Detector: DetectorConfig{
			BaseURL: getEnv("DETECTOR_BASE_URL", "http://detector:8000"),
			Timeout: 30 * time.Second,
		},
		Auth: AuthConfig{
			JWTSecret:   getEnv("JWT_SECRET", "dev-secret"),
			JWTAudience: os.Getenv("JWT_AUDIENCE"),
		},
		Audit: AuditConfig{
			Dir: getEnv("AUDIT_LOG_DIR", "logs/audit"),
		},
		Verify: VerifyConfig{
			FaceThreshold: 0.75,
			OCRThreshold:  0.60,
			Budget:        90 * time.Second,
		},
		LogMode: getEnv("LOG_MODE", "production"),
	}

	if v := os.Getenv("VERIFY_TIMEOUT_SECONDS"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil || seconds <= 0 {
			return nil, fmt.Errorf("invalid VERIFY_TIMEOUT_SECONDS %q", v)
		}
		cfg.Verify.Budget = time.Duration(seconds) * time.Second
	}
	if v := os.Getenv("FACE_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 || f >= 1 {
			return nil, fmt.Errorf("invalid FACE_THRESHOLD %q", v)
		}
		cfg.Verify.FaceThreshold = f
	}
	if v := os.Getenv("OCR_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 || f >= 1 {
			return nil, fmt.Errorf("invalid OCR_THRESHOLD %q", v)
		}
		cfg.Verify.OCRThreshold = f
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
